// Package token generates single-use invitation tokens.
package token

import (
	"crypto/rand"

	"github.com/mr-tron/base58"
)

// MinLength is the minimum length of a generated token.
const MinLength = 40

const entropyBytes = 32

// Generator returns a new token.
type Generator func() (string, error)

// New returns a base58 encoded token built from 256 bits of crypto/rand
// entropy. The result is always at least MinLength characters.
func New() (string, error) {
	for {
		buf := make([]byte, entropyBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		// leading zero bytes shorten base58 output, draw again when that happens
		if tok := base58.Encode(buf); len(tok) >= MinLength {
			return tok, nil
		}
	}
}
