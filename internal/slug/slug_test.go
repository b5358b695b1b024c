package slug

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"John's Organization", "johns-organization"},
		{"  Acme   Widgets  ", "acme-widgets"},
		{"Café Société", "cafe-societe"},
		{"snake_case-and--dashes", "snake-case-and-dashes"},
		{"ops@acme", "ops-at-acme"},
		{"Team 42!", "team-42"},
		{"!!!", "organization"},
		{"", "organization"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, Make(tt.in))
		})
	}
}

func TestNew(t *testing.T) {
	pattern := regexp.MustCompile(`^johns-organization-[a-z0-9]{6}$`)

	a := New("John's Organization")
	b := New("John's Organization")

	require.Regexp(t, pattern, a)
	require.Regexp(t, pattern, b)
}

func TestSuffix(t *testing.T) {
	s := Suffix()
	require.Len(t, s, SuffixLength)
	require.Regexp(t, `^[a-z0-9]+$`, s)
}
