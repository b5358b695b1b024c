package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/orgscope/internal/apperrors"
	"github.com/wolfeidau/orgscope/internal/events"
	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/orgcontext"
	"github.com/wolfeidau/orgscope/internal/settings"
	"github.com/wolfeidau/orgscope/internal/slug"
	"github.com/wolfeidau/orgscope/internal/store"
	"github.com/wolfeidau/orgscope/internal/store/memory"
)

type fixture struct {
	st       *memory.Store
	overlay  *memory.SessionOverlay
	resolver *orgcontext.Resolver
	rec      *events.Recorder
	svc      *Service
	jane     *models.User
	max      *models.User
	slugs    int
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		st:      memory.NewStore(),
		overlay: memory.NewSessionOverlay(),
		rec:     events.NewRecorder(),
	}
	f.resolver = orgcontext.NewResolver(f.st, f.overlay)

	f.jane = &models.User{Email: "jane@example.com", Name: "Jane Doe"}
	f.max = &models.User{Email: "max@example.com", Name: "Max Power"}
	require.NoError(t, f.st.Users().Create(ctx, f.jane))
	require.NoError(t, f.st.Users().Create(ctx, f.max))

	opts = append([]Option{
		WithSlugGenerator(func(name string) string {
			f.slugs++
			return fmt.Sprintf("%s-%06d", slug.Make(name), f.slugs)
		}),
		WithSettings(settings.NewManager(
			settings.Document{"ui": map[string]any{"theme": "light", "compact": false}},
			settings.Rules{"ui.theme": "required|in:light,dark", "ui.compact": "boolean"},
		)),
	}, opts...)

	f.svc = NewService(f.st, f.resolver, f.rec, opts...)
	return f
}

func (f *fixture) actor(u *models.User) models.Actor {
	return models.NewActor(u, fmt.Sprintf("session-%d", u.ID))
}

func (f *fixture) create(t *testing.T, u *models.User, name string) *models.Organization {
	t.Helper()
	org, err := f.svc.CreateAdditional(context.Background(), f.actor(u), name, nil)
	require.NoError(t, err)
	return org
}

func (f *fixture) addMember(t *testing.T, org *models.Organization, u *models.User, role models.Role) *models.Membership {
	t.Helper()
	m := &models.Membership{OrganizationID: org.ID, UserID: u.ID, Role: role, IsActive: true}
	require.NoError(t, f.st.Memberships().Add(context.Background(), m))
	return m
}

func TestCreateDefault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	actor := f.actor(f.jane)

	org, err := f.svc.Create(ctx, actor, CreateInput{Default: true})
	require.NoError(t, err)
	require.Equal(t, "Jane's Organization", org.Name)
	require.Equal(t, "Default organization for Jane Doe", org.DescriptionOrEmpty())
	require.Equal(t, "janes-organization-000001", org.Slug)
	require.Equal(t, f.jane.ID, org.OwnerID)
	require.Equal(t, "light", settings.GetOr(org.AllSettings(), "ui.theme", nil))

	user, err := f.st.Users().Get(ctx, f.jane.ID)
	require.NoError(t, err)
	require.Equal(t, org.ID, *user.DefaultOrganizationID)

	current, ok, err := f.resolver.CurrentOrganizationID(ctx, actor)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, org.ID, current)

	created := f.rec.OfType(events.OrganizationCreated)
	require.Len(t, created, 1)
	require.Equal(t, org.ID, created[0].OrganizationID)

	t.Run("second default is rejected", func(t *testing.T) {
		_, err := f.svc.Create(ctx, actor, CreateInput{Default: true, Name: ptr("Another")})
		require.ErrorIs(t, err, apperrors.ErrDuplicateDefaultOrganization)
		require.Len(t, f.rec.OfType(events.OrganizationCreated), 1)
	})

	t.Run("dangling default does not block", func(t *testing.T) {
		other, err := f.svc.Create(ctx, f.actor(f.max), CreateInput{Default: true})
		require.NoError(t, err)
		require.NoError(t, f.svc.SoftDelete(ctx, f.actor(f.max), other.ID))

		_, err = f.svc.Create(ctx, f.actor(f.max), CreateInput{Default: true, Name: ptr("Max Again")})
		require.NoError(t, err)
	})
}

func TestCreateAdditional(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	org, err := f.svc.CreateAdditional(ctx, f.actor(f.jane), "  Crème Brûlée Co  ", nil)
	require.NoError(t, err)
	require.Equal(t, "Crème Brûlée Co", org.Name)
	require.Equal(t, "Organization for Jane Doe", org.DescriptionOrEmpty())
	require.True(t, strings.HasPrefix(org.Slug, "creme-brulee-co-"))

	user, err := f.st.Users().Get(ctx, f.jane.ID)
	require.NoError(t, err)
	require.Nil(t, user.DefaultOrganizationID)

	t.Run("explicit description", func(t *testing.T) {
		org, err := f.svc.CreateAdditional(ctx, f.actor(f.jane), "Described", ptr("Our team"))
		require.NoError(t, err)
		require.Equal(t, "Our team", org.DescriptionOrEmpty())
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := f.svc.CreateAdditional(ctx, f.actor(f.max), "Crème Brûlée Co", nil)
		require.ErrorIs(t, err, apperrors.ErrValidationFailed)
		require.Equal(t, []string{"An organization with this name already exists."}, apperrors.FieldsOf(err)["name"])
	})

	t.Run("name too short", func(t *testing.T) {
		_, err := f.svc.CreateAdditional(ctx, f.actor(f.jane), "X", nil)
		require.ErrorIs(t, err, apperrors.ErrValidationFailed)
		require.Equal(t, []string{"The organization name must be at least 2 characters."}, apperrors.FieldsOf(err)["name"])
	})
}

func TestCreateGeneratedDetails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("non-default without a name", func(t *testing.T) {
		org, err := f.svc.Create(ctx, f.actor(f.max), CreateInput{})
		require.NoError(t, err)
		require.Equal(t, "Max's Organization", org.Name)
		require.Equal(t, "Default organization for Max Power", org.DescriptionOrEmpty())

		user, err := f.st.Users().Get(ctx, f.max.ID)
		require.NoError(t, err)
		require.Nil(t, user.DefaultOrganizationID)
	})

	t.Run("blank display name falls back to email", func(t *testing.T) {
		anon := &models.User{Email: "anon@example.com", Name: "   "}
		require.NoError(t, f.st.Users().Create(ctx, anon))

		org, err := f.svc.Create(ctx, f.actor(anon), CreateInput{Default: true})
		require.NoError(t, err)
		require.Equal(t, "anon@example.com's Organization", org.Name)
		require.Equal(t, "Default organization for anon@example.com", org.DescriptionOrEmpty())

		named, err := f.svc.CreateAdditional(ctx, f.actor(anon), "Anon Labs", nil)
		require.NoError(t, err)
		require.Equal(t, "Organization for anon@example.com", named.DescriptionOrEmpty())
	})

	t.Run("distinct nameless owners get distinct names", func(t *testing.T) {
		other := &models.User{Email: "other@example.com"}
		require.NoError(t, f.st.Users().Create(ctx, other))

		org, err := f.svc.Create(ctx, f.actor(other), CreateInput{Default: true})
		require.NoError(t, err)
		require.Equal(t, "other@example.com's Organization", org.Name)
	})

	t.Run("no name or email", func(t *testing.T) {
		require.Equal(t, "User", ownerLabel(&models.User{ID: 99}))
	})
}

func TestCreateSlugCollision(t *testing.T) {
	ctx := context.Background()

	t.Run("retries with a new slug", func(t *testing.T) {
		calls := 0
		f := newFixture(t, WithSlugGenerator(func(name string) string {
			calls++
			if calls <= 2 {
				return "fixed-slug"
			}
			return fmt.Sprintf("fixed-slug-%d", calls)
		}))

		first := f.create(t, f.jane, "First")
		require.Equal(t, "fixed-slug", first.Slug)

		second := f.create(t, f.jane, "Second")
		require.Equal(t, "fixed-slug-3", second.Slug)
	})

	t.Run("gives up after the attempt limit", func(t *testing.T) {
		f := newFixture(t, WithSlugGenerator(func(string) string { return "always" }))
		f.create(t, f.jane, "First")

		_, err := f.svc.CreateAdditional(ctx, f.actor(f.jane), "Second", nil)
		require.ErrorIs(t, err, apperrors.ErrSlugCollision)
		require.Len(t, f.rec.OfType(events.OrganizationCreated), 1)
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	org := f.create(t, f.jane, "Acme")
	actor := f.actor(f.jane)

	t.Run("description only keeps the slug", func(t *testing.T) {
		updated, err := f.svc.Update(ctx, actor, org.ID, UpdateInput{Description: ptr("Widgets")})
		require.NoError(t, err)
		require.Equal(t, org.Slug, updated.Slug)
		require.Equal(t, "Widgets", updated.DescriptionOrEmpty())

		evts := f.rec.OfType(events.OrganizationUpdated)
		require.Len(t, evts, 1)
		require.Equal(t, map[string]any{"description": "Widgets"}, evts[0].Changes)
	})

	t.Run("same name keeps the slug", func(t *testing.T) {
		updated, err := f.svc.Update(ctx, actor, org.ID, UpdateInput{Name: ptr("Acme")})
		require.NoError(t, err)
		require.Equal(t, org.Slug, updated.Slug)
	})

	t.Run("rename regenerates the slug", func(t *testing.T) {
		updated, err := f.svc.Update(ctx, actor, org.ID, UpdateInput{Name: ptr("Acme Labs")})
		require.NoError(t, err)
		require.NotEqual(t, org.Slug, updated.Slug)
		require.True(t, strings.HasPrefix(updated.Slug, "acme-labs-"))

		evts := f.rec.OfType(events.OrganizationUpdated)
		last := evts[len(evts)-1]
		require.Equal(t, "Acme Labs", last.Changes["name"])
		require.Equal(t, updated.Slug, last.Changes["slug"])
	})

	t.Run("empty description clears it", func(t *testing.T) {
		updated, err := f.svc.Update(ctx, actor, org.ID, UpdateInput{Description: ptr("  ")})
		require.NoError(t, err)
		require.Nil(t, updated.Description)
	})

	t.Run("validation", func(t *testing.T) {
		other := f.create(t, f.max, "Taken Name")
		f.addMember(t, other, f.jane, models.RoleAdministrator)

		tests := []struct {
			name  string
			input UpdateInput
			field string
			msg   string
		}{
			{"blank name", UpdateInput{Name: ptr(" ")}, "name", "The organization name is required."},
			{"long name", UpdateInput{Name: ptr(strings.Repeat("a", 256))}, "name", "The organization name must not exceed 255 characters."},
			{"duplicate name", UpdateInput{Name: ptr("Acme Labs")}, "name", "An organization with this name already exists."},
			{"long description", UpdateInput{Description: ptr(strings.Repeat("d", 1001))}, "description", "The description must not exceed 1000 characters."},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.Update(ctx, actor, other.ID, tt.input)
				require.ErrorIs(t, err, apperrors.ErrValidationFailed)
				require.Equal(t, []string{tt.msg}, apperrors.FieldsOf(err)[tt.field])
			})
		}
	})
}

func TestUpdateAuthorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	org := f.create(t, f.jane, "Acme")

	_, err := f.svc.Update(ctx, f.actor(f.max), org.ID, UpdateInput{Name: ptr("Mine Now")})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	m := f.addMember(t, org, f.max, models.RoleMember)
	_, err = f.svc.Update(ctx, f.actor(f.max), org.ID, UpdateInput{Name: ptr("Mine Now")})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	m.Role = models.RoleAdministrator
	require.NoError(t, f.st.Memberships().Update(ctx, m))
	updated, err := f.svc.Update(ctx, f.actor(f.max), org.ID, UpdateInput{Name: ptr("Renamed by Admin")})
	require.NoError(t, err)
	require.Equal(t, "Renamed by Admin", updated.Name)
}

func TestUpdateSettings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	org := f.create(t, f.jane, "Acme")
	actor := f.actor(f.jane)

	updated, err := f.svc.UpdateSettings(ctx, actor, org.ID, settings.Document{"ui": map[string]any{"theme": "dark"}})
	require.NoError(t, err)
	require.Equal(t, "dark", settings.GetOr(updated.AllSettings(), "ui.theme", nil))
	require.Equal(t, false, settings.GetOr(updated.AllSettings(), "ui.compact", nil))

	_, err = f.svc.UpdateSettings(ctx, actor, org.ID, settings.Document{"ui": map[string]any{"theme": "neon"}})
	require.ErrorIs(t, err, apperrors.ErrValidationFailed)
	require.Contains(t, apperrors.FieldsOf(err), "settings.ui.theme")

	stored, err := f.st.Organizations().Get(ctx, org.ID)
	require.NoError(t, err)
	require.Equal(t, "dark", settings.GetOr(stored.AllSettings(), "ui.theme", nil))

	reset, err := f.svc.ResetSettings(ctx, actor, org.ID)
	require.NoError(t, err)
	require.Equal(t, "light", settings.GetOr(reset.AllSettings(), "ui.theme", nil))

	_, err = f.svc.UpdateSettings(ctx, f.actor(f.max), org.ID, settings.Document{})
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestDeleteGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	actor := f.actor(f.jane)

	home, err := f.svc.Create(ctx, actor, CreateInput{Default: true})
	require.NoError(t, err)

	// only organization
	require.ErrorIs(t, f.svc.Delete(ctx, actor, home.ID), apperrors.ErrLastOrganization)

	// strangers are rejected before any other guard
	require.ErrorIs(t, f.svc.Delete(ctx, f.actor(f.max), home.ID), apperrors.ErrForbidden)

	side := f.create(t, f.jane, "Side Project")

	// home is current
	require.ErrorIs(t, f.svc.Delete(ctx, actor, home.ID), apperrors.ErrCannotDeleteCurrent)

	f.addMember(t, side, f.max, models.RoleMember)
	require.ErrorIs(t, f.svc.CanDelete(ctx, actor, side.ID), apperrors.ErrHasActiveMembers)
	require.ErrorIs(t, f.svc.Delete(ctx, actor, side.ID), apperrors.ErrHasActiveMembers)

	// members cannot delete
	require.ErrorIs(t, f.svc.Delete(ctx, f.actor(f.max), side.ID), apperrors.ErrForbidden)

	require.NoError(t, f.st.Memberships().Remove(ctx, side.ID, f.max.ID))
	require.NoError(t, f.svc.CanDelete(ctx, actor, side.ID))
	require.NoError(t, f.svc.Delete(ctx, actor, side.ID))

	_, err = f.st.Organizations().GetWithTrashed(ctx, side.ID)
	require.ErrorIs(t, err, store.ErrOrganizationNotFound)

	deleted := f.rec.OfType(events.OrganizationDeleted)
	require.Len(t, deleted, 1)
	require.Equal(t, side.ID, deleted[0].OrganizationID)
	require.Equal(t, "Side Project", deleted[0].OrganizationName)

	require.ErrorIs(t, f.svc.Delete(ctx, actor, side.ID), apperrors.ErrNotFound)
}

func TestDeleteInactiveMembersDoNotBlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	actor := f.actor(f.jane)

	f.create(t, f.jane, "One")
	two := f.create(t, f.jane, "Two")

	m := f.addMember(t, two, f.max, models.RoleMember)
	m.IsActive = false
	require.NoError(t, f.st.Memberships().Update(ctx, m))

	require.NoError(t, f.svc.Delete(ctx, actor, two.ID))

	_, err := f.st.Memberships().Get(ctx, two.ID, f.max.ID)
	require.ErrorIs(t, err, store.ErrMembershipNotFound)
}

func TestDeleteClearsSessionOverrides(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	actor := f.actor(f.jane)

	home, err := f.svc.Create(ctx, actor, CreateInput{Default: true})
	require.NoError(t, err)
	side := f.create(t, f.jane, "Side")

	// another session of the same user has switched to side
	other := models.NewActor(f.jane, "laptop")
	_, err = f.resolver.Switch(ctx, other, side.ID)
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.Delete(ctx, other, side.ID), apperrors.ErrCannotDeleteCurrent)
	require.NoError(t, f.svc.Delete(ctx, actor, side.ID))

	current, ok, err := f.resolver.CurrentOrganizationID(ctx, other)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, home.ID, current)
}

func TestDeletionRequirements(t *testing.T) {
	reqs := DeletionRequirements()
	require.Len(t, reqs, 4)
	require.Equal(t, "This deletion is permanent and cannot be undone", reqs[3])
}

func TestSoftDeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return now }))
	actor := f.actor(f.jane)

	org := f.create(t, f.jane, "Acme")

	require.ErrorIs(t, f.svc.SoftDelete(ctx, f.actor(f.max), org.ID), apperrors.ErrForbidden)
	require.NoError(t, f.svc.SoftDelete(ctx, actor, org.ID))

	_, err := f.st.Organizations().Get(ctx, org.ID)
	require.ErrorIs(t, err, store.ErrOrganizationNotFound)

	trashed, err := f.st.Organizations().GetWithTrashed(ctx, org.ID)
	require.NoError(t, err)
	require.Equal(t, now, *trashed.DeletedAt)

	t.Run("restore fails while the name is reused", func(t *testing.T) {
		reused := f.create(t, f.max, "Acme")

		_, err := f.svc.Restore(ctx, actor, org.ID)
		require.ErrorIs(t, err, apperrors.ErrValidationFailed)

		require.NoError(t, f.st.Organizations().Delete(ctx, reused.ID))
	})

	t.Run("restore", func(t *testing.T) {
		_, err := f.svc.Restore(ctx, f.actor(f.max), org.ID)
		require.ErrorIs(t, err, apperrors.ErrForbidden)

		restored, err := f.svc.Restore(ctx, actor, org.ID)
		require.NoError(t, err)
		require.True(t, restored.IsActive())
		require.Equal(t, org.Slug, restored.Slug)
	})
}

func TestTransferOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	org := f.create(t, f.jane, "Acme")

	_, err := f.svc.TransferOwnership(ctx, f.actor(f.max), org.ID, f.max.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.svc.TransferOwnership(ctx, f.actor(f.jane), org.ID, 999)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	updated, err := f.svc.TransferOwnership(ctx, f.actor(f.jane), org.ID, f.max.ID)
	require.NoError(t, err)
	require.Equal(t, f.max.ID, updated.OwnerID)

	evts := f.rec.OfType(events.OwnershipTransferred)
	require.Len(t, evts, 1)
	require.Equal(t, f.jane.ID, evts[0].PreviousOwnerID)
	require.Equal(t, f.max.ID, evts[0].NewOwnerID)

	_, err = f.svc.Update(ctx, f.actor(f.jane), org.ID, UpdateInput{Name: ptr("Nope")})
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	org := f.create(t, f.jane, "Acme")

	byID, err := f.svc.Lookup(ctx, fmt.Sprint(org.ID))
	require.NoError(t, err)
	require.Equal(t, org.ID, byID.ID)

	bySlug, err := f.svc.Lookup(ctx, org.Slug)
	require.NoError(t, err)
	require.Equal(t, org.ID, bySlug.ID)

	_, err = f.svc.Lookup(ctx, "nope")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
