// Package policy derives what a user may do to an organization from their
// relationship with it.
package policy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/wolfeidau/orgscope/internal/apperrors"
	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/store"
)

// Ability is an action on an organization.
type Ability string

const (
	AbilityViewAny           Ability = "organizations:view-any"
	AbilityView              Ability = "organizations:view"
	AbilityCreate            Ability = "organizations:create"
	AbilityUpdate            Ability = "organizations:update"
	AbilityDelete            Ability = "organizations:delete"
	AbilityRestore           Ability = "organizations:restore"
	AbilityForceDelete       Ability = "organizations:force-delete"
	AbilityTransferOwnership Ability = "organizations:transfer-ownership"
	AbilityManageSettings    Ability = "settings:manage"
	AbilityManageMembers     Ability = "members:manage"
	AbilityAddMember         Ability = "members:add"
	AbilityRemoveMember      Ability = "members:remove"
	AbilityChangeMemberRole  Ability = "members:change-role"
	AbilityInviteMembers     Ability = "invitations:send"
)

// Relationship is how a user relates to one organization.
type Relationship int

const (
	Stranger       Relationship = iota
	InactiveMember              // has a membership row with the active flag cleared
	Member
	Administrator
	Owner
)

func (r Relationship) String() string {
	switch r {
	case Owner:
		return "owner"
	case Administrator:
		return "administrator"
	case Member:
		return "member"
	case InactiveMember:
		return "inactive-member"
	}
	return "stranger"
}

// RelationshipAbilities maps relationships to allowed abilities
var RelationshipAbilities = map[Relationship][]Ability{
	Owner: {
		AbilityViewAny,
		AbilityView,
		AbilityCreate,
		AbilityUpdate,
		AbilityDelete,
		AbilityRestore,
		AbilityForceDelete,
		AbilityTransferOwnership,
		AbilityManageSettings,
		AbilityManageMembers,
		AbilityAddMember,
		AbilityRemoveMember,
		AbilityChangeMemberRole,
		AbilityInviteMembers,
	},
	Administrator: {
		AbilityViewAny,
		AbilityView,
		AbilityCreate,
		AbilityUpdate,
		AbilityManageSettings,
		AbilityManageMembers,
		AbilityAddMember,
		AbilityRemoveMember,
		AbilityChangeMemberRole,
		AbilityInviteMembers,
	},
	Member: {
		AbilityViewAny,
		AbilityView,
		AbilityCreate,
		AbilityInviteMembers,
	},
	InactiveMember: {
		AbilityViewAny,
		AbilityView,
		AbilityCreate,
	},
	Stranger: {
		AbilityViewAny,
		AbilityCreate,
	},
}

var denyMessages = map[Ability]string{
	AbilityUpdate:            "You do not have permission to update this organization.",
	AbilityDelete:            "Only the organization owner can delete the organization.",
	AbilityForceDelete:       "Only the organization owner can delete the organization.",
	AbilityRestore:           "Only the organization owner can restore the organization.",
	AbilityTransferOwnership: "Only the organization owner can transfer ownership.",
	AbilityManageSettings:    "You do not have permission to manage this organization's settings.",
	AbilityInviteMembers:     "You do not have permission to invite members to this organization.",
}

// Can checks if a relationship grants an ability
func Can(rel Relationship, ability Ability) bool {
	abilities, ok := RelationshipAbilities[rel]
	if !ok {
		return false
	}
	return slices.Contains(abilities, ability)
}

// Require returns a Forbidden error if rel does not grant ability.
func Require(rel Relationship, ability Ability) error {
	if Can(rel, ability) {
		return nil
	}
	msg, ok := denyMessages[ability]
	if !ok {
		msg = "This action is unauthorized."
	}
	return apperrors.Wrap(apperrors.KindForbidden, msg, fmt.Errorf("permission denied: %s requires %s", rel, ability))
}

// MembershipGetter is the part of the membership store the policy reads.
type MembershipGetter interface {
	Get(ctx context.Context, orgID, userID int64) (*models.Membership, error)
}

// Relate works out how userID relates to org.
func Relate(ctx context.Context, members MembershipGetter, org *models.Organization, userID int64) (Relationship, error) {
	if org.IsOwnedBy(userID) {
		return Owner, nil
	}

	m, err := members.Get(ctx, org.ID, userID)
	if errors.Is(err, store.ErrMembershipNotFound) {
		return Stranger, nil
	}
	if err != nil {
		return Stranger, err
	}

	return FromMembership(m), nil
}

// FromMembership returns the relationship implied by a membership row,
// ignoring ownership.
func FromMembership(m *models.Membership) Relationship {
	switch {
	case m == nil:
		return Stranger
	case !m.IsActive:
		return InactiveMember
	case m.Role.IsAdministrator():
		return Administrator
	}
	return Member
}

// Authorize relates userID to org and requires ability in one step.
func Authorize(ctx context.Context, members MembershipGetter, org *models.Organization, userID int64, ability Ability) error {
	rel, err := Relate(ctx, members, org, userID)
	if err != nil {
		return apperrors.FromStore(err, "membership")
	}
	return Require(rel, ability)
}
