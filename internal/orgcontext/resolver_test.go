package orgcontext

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/orgscope/internal/apperrors"
	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/store"
	"github.com/wolfeidau/orgscope/internal/store/memory"
)

type fixture struct {
	st       *memory.Store
	overlay  *memory.SessionOverlay
	resolver *Resolver
	user     *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.NewStore()
	overlay := memory.NewSessionOverlay()
	user := &models.User{Email: "jane@example.com", Name: "Jane Doe"}
	require.NoError(t, st.Users().Create(context.Background(), user))
	return &fixture{st: st, overlay: overlay, resolver: NewResolver(st, overlay), user: user}
}

func (f *fixture) org(t *testing.T, ownerID int64, name string) *models.Organization {
	t.Helper()
	org := &models.Organization{UUID: uuid.Must(uuid.NewV7()), OwnerID: ownerID, Name: name, Slug: name}
	require.NoError(t, f.st.Organizations().Create(context.Background(), org))
	return org
}

func TestCurrentOrganizationID(t *testing.T) {
	ctx := context.Background()

	t.Run("no organization", func(t *testing.T) {
		f := newFixture(t)
		_, ok, err := f.resolver.CurrentOrganizationID(ctx, models.NewActor(f.user, "s1"))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("durable default", func(t *testing.T) {
		f := newFixture(t)
		org := f.org(t, f.user.ID, "acme")
		require.NoError(t, f.st.Users().SetDefaultOrganization(ctx, f.user.ID, &org.ID))

		id, ok, err := f.resolver.CurrentOrganizationID(ctx, models.NewActor(f.user, "s1"))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, org.ID, id)
	})

	t.Run("session override wins", func(t *testing.T) {
		f := newFixture(t)
		a := f.org(t, f.user.ID, "a")
		b := f.org(t, f.user.ID, "b")
		require.NoError(t, f.st.Users().SetDefaultOrganization(ctx, f.user.ID, &a.ID))

		actor := models.NewActor(f.user, "s1")
		require.NoError(t, f.resolver.SetEphemeral(ctx, actor, &b.ID))

		id, ok, err := f.resolver.CurrentOrganizationID(ctx, actor)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, b.ID, id)

		// durable state untouched
		u, err := f.st.Users().Get(ctx, f.user.ID)
		require.NoError(t, err)
		require.Equal(t, a.ID, *u.DefaultOrganizationID)

		// another session of the same user still sees the default
		id, _, err = f.resolver.CurrentOrganizationID(ctx, models.NewActor(f.user, "s2"))
		require.NoError(t, err)
		require.Equal(t, a.ID, id)

		require.NoError(t, f.resolver.ClearSession(ctx, actor))
		id, _, err = f.resolver.CurrentOrganizationID(ctx, actor)
		require.NoError(t, err)
		require.Equal(t, a.ID, id)
	})

	t.Run("dangling default resolves to none", func(t *testing.T) {
		f := newFixture(t)
		org := f.org(t, f.user.ID, "acme")
		require.NoError(t, f.st.Users().SetDefaultOrganization(ctx, f.user.ID, &org.ID))

		now := time.Now()
		org.DeletedAt = &now
		require.NoError(t, f.st.Organizations().Update(ctx, org))

		_, ok, err := f.resolver.CurrentOrganizationID(ctx, models.NewActor(f.user, ""))
		require.NoError(t, err)
		require.False(t, ok)

		scope, err := f.resolver.Scope(ctx, models.NewActor(f.user, ""))
		require.NoError(t, err)
		_, scoped := scope.OrganizationID()
		require.False(t, scoped)
	})
}

func TestSetDefaultSyncsOverlay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.org(t, f.user.ID, "a")
	b := f.org(t, f.user.ID, "b")
	actor := models.NewActor(f.user, "s1")

	require.NoError(t, f.resolver.SetEphemeral(ctx, actor, &a.ID))
	require.NoError(t, f.resolver.SetDefault(ctx, actor, b.ID))

	id, ok, err := f.overlay.Get(ctx, "s1", f.user.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, b.ID, id)

	u, err := f.st.Users().Get(ctx, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, b.ID, *u.DefaultOrganizationID)
}

func TestSyncFromDefault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	org := f.org(t, f.user.ID, "acme")
	actor := models.NewActor(f.user, "s1")

	require.NoError(t, f.resolver.SyncFromDefault(ctx, actor))
	_, ok, err := f.overlay.Get(ctx, "s1", f.user.ID)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, f.st.Users().SetDefaultOrganization(ctx, f.user.ID, &org.ID))
	require.NoError(t, f.resolver.SyncFromDefault(ctx, actor))
	id, ok, err := f.overlay.Get(ctx, "s1", f.user.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, org.ID, id)
}

func TestSwitch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other := &models.User{Email: "other@example.com", Name: "Other"}
	require.NoError(t, f.st.Users().Create(ctx, other))

	own := f.org(t, f.user.ID, "own")
	theirs := f.org(t, other.ID, "theirs")
	joined := f.org(t, other.ID, "joined")
	require.NoError(t, f.st.Memberships().Add(ctx, &models.Membership{OrganizationID: joined.ID, UserID: f.user.ID, Role: models.RoleMember, IsActive: true}))

	actor := models.NewActor(f.user, "s1")

	_, err := f.resolver.Switch(ctx, actor, own.ID)
	require.NoError(t, err)

	org, err := f.resolver.Switch(ctx, actor, joined.ID)
	require.NoError(t, err)
	require.Equal(t, joined.ID, org.ID)

	_, err = f.resolver.Switch(ctx, actor, theirs.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.resolver.Switch(ctx, actor, 999)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	id, _, err := f.resolver.CurrentOrganizationID(ctx, actor)
	require.NoError(t, err)
	require.Equal(t, joined.ID, id)

	_, err = f.resolver.MakeDefault(ctx, actor, own.ID)
	require.NoError(t, err)
	u, err := f.st.Users().Get(ctx, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, own.ID, *u.DefaultOrganizationID)
}

func TestSetEphemeralWithoutSession(t *testing.T) {
	f := newFixture(t)
	org := f.org(t, f.user.ID, "acme")

	err := f.resolver.SetEphemeral(context.Background(), models.NewActor(f.user, ""), &org.ID)
	require.ErrorIs(t, err, store.ErrSessionRequired)
}
