// Package tenant describes how queries over organization-scoped records are
// filtered.
//
// A Scope is resolved once per unit of work and passed explicitly to the
// data-access layer. Bypasses produce a new Scope value; they never change the
// Scope they were derived from.
package tenant

import "fmt"

type mode int

const (
	modeUnscoped mode = iota // no organization resolved
	modeCurrent              // filtered to the resolved organization
	modeAll                  // explicit bypass: every organization
	modeExplicit             // explicit bypass: one named organization
)

// OrganizationScoped is implemented by records that belong to exactly one
// organization.
type OrganizationScoped interface {
	TenantID() int64
	SetTenantID(orgID int64)
}

// Scope is the organization filter for a query.
type Scope struct {
	current    int64
	hasCurrent bool
	mode       mode
	explicit   int64
}

// Current returns a scope filtered to orgID.
func Current(orgID int64) Scope {
	return Scope{current: orgID, hasCurrent: true, mode: modeCurrent}
}

// None returns the scope used when no organization could be resolved.
// Queries through it are not filtered.
func None() Scope {
	return Scope{mode: modeUnscoped}
}

// AllOrganizations bypasses filtering for one query.
func (s Scope) AllOrganizations() Scope {
	s.mode = modeAll
	return s
}

// ForOrganization targets orgID regardless of the current organization.
func (s Scope) ForOrganization(orgID int64) Scope {
	s.mode = modeExplicit
	s.explicit = orgID
	return s
}

// OrganizationID returns the organization this scope filters to, if any.
func (s Scope) OrganizationID() (int64, bool) {
	switch s.mode {
	case modeCurrent:
		return s.current, true
	case modeExplicit:
		return s.explicit, true
	}
	return 0, false
}

// CurrentOrganizationID returns the resolved organization, ignoring bypasses.
func (s Scope) CurrentOrganizationID() (int64, bool) {
	return s.current, s.hasCurrent
}

// Bypassed reports whether an explicit bypass is in effect.
func (s Scope) Bypassed() bool {
	return s.mode == modeAll || s.mode == modeExplicit
}

// Includes reports whether a record owned by orgID is visible through the scope.
func (s Scope) Includes(orgID int64) bool {
	id, ok := s.OrganizationID()
	if !ok {
		return true
	}
	return id == orgID
}

// Where returns a SQL predicate for column using the positional parameter
// argN, and the arguments it binds. An unfiltered scope yields "TRUE".
func (s Scope) Where(column string, argN int) (string, []any) {
	id, ok := s.OrganizationID()
	if !ok {
		return "TRUE", nil
	}
	return fmt.Sprintf("%s = $%d", column, argN), []any{id}
}

// Stamp fills in the organization of a new record from the resolved
// organization when the record does not name one. It returns false when the
// record has no organization afterwards.
func (s Scope) Stamp(rec OrganizationScoped) bool {
	if rec.TenantID() != 0 {
		return true
	}
	if s.mode == modeExplicit {
		rec.SetTenantID(s.explicit)
		return true
	}
	if s.hasCurrent {
		rec.SetTenantID(s.current)
		return true
	}
	return false
}

func (s Scope) String() string {
	switch s.mode {
	case modeCurrent:
		return fmt.Sprintf("organization:%d", s.current)
	case modeExplicit:
		return fmt.Sprintf("organization:%d (bypass)", s.explicit)
	case modeAll:
		return "all organizations (bypass)"
	}
	return "unscoped"
}
