//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/store"
	"github.com/wolfeidau/orgscope/internal/tenant"
	"github.com/wolfeidau/orgscope/internal/token"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*Store, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := NewPool(ctx, &PoolConfig{
		ConnString: fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxConns:   5,
		MinConns:   1,
	})
	require.NoError(t, err)

	st, err := NewStore(ctx, pool, &Config{AutoMigrate: true})
	require.NoError(t, err)
	require.NoError(t, st.Start())

	cleanup := func() {
		_ = st.Stop()
		_ = container.Terminate(ctx)
	}
	return st, cleanup
}

func newUser(t *testing.T, ctx context.Context, st *Store, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: email}
	require.NoError(t, st.Users().Create(ctx, u))
	return u
}

func newOrganization(t *testing.T, ctx context.Context, st *Store, ownerID int64, name, slug string) *models.Organization {
	t.Helper()
	org := &models.Organization{
		UUID:     uuid.Must(uuid.NewV7()),
		OwnerID:  ownerID,
		Name:     name,
		Slug:     slug,
		Settings: map[string]any{"ui": map[string]any{"theme": "light"}},
	}
	require.NoError(t, st.Organizations().Create(ctx, org))
	return org
}

func newInvitation(t *testing.T, orgID int64, email string, expires time.Time) *models.Invitation {
	t.Helper()
	tok, err := token.New()
	require.NoError(t, err)
	return &models.Invitation{
		UUID:           uuid.Must(uuid.NewV7()),
		OrganizationID: orgID,
		Email:          email,
		Token:          tok,
		Role:           models.RoleMember,
		ExpiresAt:      expires,
	}
}

func TestIntegration_Store(t *testing.T) {
	ctx := context.Background()
	st, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	owner := newUser(t, ctx, st, "owner@example.com")
	member := newUser(t, ctx, st, "member@example.com")

	t.Run("migrations are idempotent", func(t *testing.T) {
		require.NoError(t, RunMigrations(ctx, st.pool))
	})

	t.Run("user email is unique case-insensitively", func(t *testing.T) {
		err := st.Users().Create(ctx, &models.User{Email: "OWNER@example.com", Name: "dup"})
		require.ErrorIs(t, err, store.ErrUserAlreadyExists)

		u, err := st.Users().GetByEmail(ctx, "Owner@Example.com")
		require.NoError(t, err)
		require.Equal(t, owner.ID, u.ID)
	})

	t.Run("organization constraints", func(t *testing.T) {
		org := newOrganization(t, ctx, st, owner.ID, "Acme", "acme-aaaaaa")

		got, err := st.Organizations().GetBySlug(ctx, "acme-aaaaaa")
		require.NoError(t, err)
		require.Equal(t, org.ID, got.ID)
		require.Equal(t, "light", got.Settings["ui"].(map[string]any)["theme"])

		dupName := &models.Organization{UUID: uuid.Must(uuid.NewV7()), OwnerID: owner.ID, Name: "Acme", Slug: "acme-bbbbbb"}
		require.ErrorIs(t, st.Organizations().Create(ctx, dupName), store.ErrNameConflict)

		dupSlug := &models.Organization{UUID: uuid.Must(uuid.NewV7()), OwnerID: owner.ID, Name: "Other", Slug: "acme-aaaaaa"}
		require.ErrorIs(t, st.Organizations().Create(ctx, dupSlug), store.ErrSlugConflict)

		noOwner := &models.Organization{UUID: uuid.Must(uuid.NewV7()), OwnerID: 99999, Name: "Ghost", Slug: "ghost-aaaaaa"}
		require.ErrorIs(t, st.Organizations().Create(ctx, noOwner), store.ErrUserNotFound)

		// a trashed organization frees its name but keeps its slug
		now := time.Now()
		org.DeletedAt = &now
		require.NoError(t, st.Organizations().Update(ctx, org))

		_, err = st.Organizations().Get(ctx, org.ID)
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)

		taken, err := st.Organizations().NameTaken(ctx, "Acme", 0)
		require.NoError(t, err)
		require.False(t, taken)

		newOrganization(t, ctx, st, owner.ID, "Acme", "acme-cccccc")
	})

	t.Run("hard delete cascades", func(t *testing.T) {
		org := newOrganization(t, ctx, st, owner.ID, "Cascade", "cascade-aaaaaa")
		require.NoError(t, st.Users().SetDefaultOrganization(ctx, member.ID, &org.ID))
		require.NoError(t, st.Memberships().Add(ctx, &models.Membership{OrganizationID: org.ID, UserID: member.ID, Role: models.RoleMember, IsActive: true}))
		require.NoError(t, st.Invitations().Create(ctx, newInvitation(t, org.ID, "x@example.com", time.Now().Add(time.Hour))))

		require.NoError(t, st.Organizations().Delete(ctx, org.ID))

		_, err := st.Memberships().Get(ctx, org.ID, member.ID)
		require.ErrorIs(t, err, store.ErrMembershipNotFound)

		u, err := st.Users().Get(ctx, member.ID)
		require.NoError(t, err)
		require.Nil(t, u.DefaultOrganizationID)
	})

	t.Run("memberships", func(t *testing.T) {
		org := newOrganization(t, ctx, st, owner.ID, "Members", "members-aaaaaa")
		m := &models.Membership{OrganizationID: org.ID, UserID: member.ID, Role: models.RoleAdministrator, IsActive: true}
		require.NoError(t, st.Memberships().Add(ctx, m))

		dup := &models.Membership{OrganizationID: org.ID, UserID: member.ID, Role: models.RoleMember, IsActive: true}
		require.ErrorIs(t, st.Memberships().Add(ctx, dup), store.ErrMembershipAlreadyExists)

		admins, err := st.Memberships().ListByOrganization(ctx, org.ID, store.MembershipFilter{ActiveOnly: true, Role: models.RoleAdministrator})
		require.NoError(t, err)
		require.Len(t, admins, 1)

		has, err := st.Memberships().HasActiveMemberWithEmail(ctx, org.ID, "MEMBER@example.com")
		require.NoError(t, err)
		require.True(t, has)

		count, err := st.Memberships().CountActiveExcluding(ctx, org.ID, owner.ID)
		require.NoError(t, err)
		require.Equal(t, 1, count)

		m.IsActive = false
		require.NoError(t, st.Memberships().Update(ctx, m))
		count, err = st.Memberships().CountActiveExcluding(ctx, org.ID, owner.ID)
		require.NoError(t, err)
		require.Zero(t, count)

		require.NoError(t, st.Memberships().Remove(ctx, org.ID, member.ID))
		require.ErrorIs(t, st.Memberships().Remove(ctx, org.ID, member.ID), store.ErrMembershipNotFound)
	})

	t.Run("invitations", func(t *testing.T) {
		org := newOrganization(t, ctx, st, owner.ID, "Invites", "invites-aaaaaa")
		other := newOrganization(t, ctx, st, owner.ID, "Elsewhere", "elsewhere-aaaaaa")

		inv := newInvitation(t, org.ID, "new@example.com", time.Now().Add(time.Hour))
		require.NoError(t, st.Invitations().Create(ctx, inv))

		again := newInvitation(t, org.ID, "new@example.com", time.Now().Add(time.Hour))
		require.ErrorIs(t, st.Invitations().Create(ctx, again), store.ErrActiveInvitationConflict)

		require.NoError(t, st.Invitations().Create(ctx, newInvitation(t, other.ID, "new@example.com", time.Now().Add(time.Hour))))

		byToken, err := st.Invitations().GetByToken(ctx, inv.Token)
		require.NoError(t, err)
		require.Equal(t, inv.ID, byToken.ID)

		scoped, err := st.Invitations().List(ctx, tenant.Current(org.ID), store.InvitationFilter{PendingOnly: true, ValidAt: time.Now()})
		require.NoError(t, err)
		require.Len(t, scoped, 1)

		all, err := st.Invitations().List(ctx, tenant.Current(org.ID).AllOrganizations(), store.InvitationFilter{Email: "new@example.com"})
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(all), 2)

		// resolving the invitation frees the (organization, email) slot
		now := time.Now()
		inv.DeclinedAt = &now
		require.NoError(t, st.Invitations().Update(ctx, inv))
		require.NoError(t, st.Invitations().Create(ctx, again))

		require.NoError(t, st.Invitations().SoftDelete(ctx, again.ID, time.Now()))
		_, err = st.Invitations().Get(ctx, again.ID)
		require.ErrorIs(t, err, store.ErrInvitationNotFound)
	})

	t.Run("session overlay", func(t *testing.T) {
		org := newOrganization(t, ctx, st, owner.ID, "Session Org", "session-org-aaaaaa")
		overlay := NewSessionOverlay(st.pool, time.Hour)

		_, ok, err := overlay.Get(ctx, "s1", owner.ID)
		require.NoError(t, err)
		require.False(t, ok)

		require.ErrorIs(t, overlay.Set(ctx, "", owner.ID, org.ID), store.ErrSessionRequired)
		require.ErrorIs(t, overlay.Set(ctx, "s1", owner.ID, 99999), store.ErrOrganizationNotFound)

		require.NoError(t, overlay.Set(ctx, "s1", owner.ID, org.ID))
		require.NoError(t, overlay.Set(ctx, "s2", member.ID, org.ID))

		got, ok, err := overlay.Get(ctx, "s1", owner.ID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, org.ID, got)

		// another user presenting the same session id sees nothing
		_, ok, err = overlay.Get(ctx, "s1", member.ID)
		require.NoError(t, err)
		require.False(t, ok)

		n, err := overlay.ForgetOrganization(ctx, org.ID)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		require.NoError(t, overlay.Set(ctx, "s3", owner.ID, org.ID))
		overlay.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, ok, err = overlay.Get(ctx, "s3", owner.ID)
		require.NoError(t, err)
		require.False(t, ok)

		n, err = overlay.DeleteExpired(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		require.NoError(t, overlay.Forget(ctx, "unknown"))
	})

	t.Run("transaction rolls back on error", func(t *testing.T) {
		err := st.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
			org := &models.Organization{UUID: uuid.Must(uuid.NewV7()), OwnerID: owner.ID, Name: "Rolled Back", Slug: "rolled-back-aaaaaa"}
			if err := tx.Organizations().Create(ctx, org); err != nil {
				return err
			}
			return tx.Memberships().Add(ctx, &models.Membership{OrganizationID: org.ID, UserID: 99999, Role: models.RoleMember})
		})
		require.ErrorIs(t, err, store.ErrUserNotFound)

		_, err = st.Organizations().GetBySlug(ctx, "rolled-back-aaaaaa")
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)
	})

	t.Run("transaction commits", func(t *testing.T) {
		var orgID int64
		err := st.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
			org := &models.Organization{UUID: uuid.Must(uuid.NewV7()), OwnerID: owner.ID, Name: "Committed", Slug: "committed-aaaaaa"}
			if err := tx.Organizations().Create(ctx, org); err != nil {
				return err
			}
			orgID = org.ID

			locked, err := tx.Organizations().Get(ctx, org.ID)
			if err != nil {
				return err
			}
			return tx.Users().SetDefaultOrganization(ctx, owner.ID, &locked.ID)
		})
		require.NoError(t, err)

		u, err := st.Users().Get(ctx, owner.ID)
		require.NoError(t, err)
		require.Equal(t, orgID, *u.DefaultOrganizationID)
	})
}
