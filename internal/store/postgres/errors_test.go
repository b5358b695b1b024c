package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/orgscope/internal/store"
)

func TestMapPostgresError(t *testing.T) {
	require.NoError(t, mapPostgresError(nil))

	tests := []struct {
		name      string
		err       error
		want      error
		retryable bool
	}{
		{
			name: "slug unique violation",
			err:  &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "organizations_slug_key"},
			want: store.ErrSlugConflict,
		},
		{
			name: "active name unique violation",
			err:  &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "organizations_active_name_key"},
			want: store.ErrNameConflict,
		},
		{
			name: "pending invitation",
			err:  &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "organization_invitations_pending_key"},
			want: store.ErrActiveInvitationConflict,
		},
		{
			name: "membership pair",
			err:  &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "organization_members_org_user_key"},
			want: store.ErrMembershipAlreadyExists,
		},
		{
			name: "owner foreign key",
			err:  &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: "organizations_owner_id_fkey"},
			want: store.ErrNotFound,
		},
		{
			name: "admin shutdown",
			err:  &pgconn.PgError{Code: pgerrcode.AdminShutdown},
			want: store.ErrStorageUnavailable,
		},
		{
			name: "query canceled",
			err:  fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: pgerrcode.QueryCanceled}),
			want: store.ErrStorageUnavailable,
		},
		{
			name: "context deadline",
			err:  fmt.Errorf("query: %w", context.DeadlineExceeded),
			want: store.ErrStorageUnavailable,
		},
		{
			name:      "serialization failure",
			err:       &pgconn.PgError{Code: pgerrcode.SerializationFailure},
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapPostgresError(tt.err)
			if tt.want != nil {
				require.ErrorIs(t, got, tt.want)
			}
			require.Equal(t, tt.retryable, isRetryable(got))
		})
	}

	t.Run("unrelated errors pass through", func(t *testing.T) {
		err := errors.New("boom")
		require.Equal(t, err, mapPostgresError(err))
	})

	t.Run("unknown constraint is not a sentinel", func(t *testing.T) {
		got := mapPostgresError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "other_key"})
		require.NotErrorIs(t, got, store.ErrConflict)
		require.Contains(t, got.Error(), "other_key")
	})
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	require.Equal(t, 1, migrations[0].version)
	require.Contains(t, migrations[0].content, "CREATE TABLE IF NOT EXISTS organizations")

	for i := 1; i < len(migrations); i++ {
		require.Less(t, migrations[i-1].version, migrations[i].version)
	}
}
