package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wolfeidau/orgscope/internal/store"
)

// constraintErrors maps constraint and unique index names to store sentinels.
var constraintErrors = map[string]error{
	"organizations_slug_key":                        store.ErrSlugConflict,
	"organizations_active_name_key":                 store.ErrNameConflict,
	"organizations_uuid_key":                        store.ErrOrganizationAlreadyExists,
	"organizations_owner_id_fkey":                   store.ErrUserNotFound,
	"organization_members_org_user_key":             store.ErrMembershipAlreadyExists,
	"organization_members_organization_id_fkey":     store.ErrOrganizationNotFound,
	"organization_members_user_id_fkey":             store.ErrUserNotFound,
	"organization_invitations_pending_key":          store.ErrActiveInvitationConflict,
	"organization_invitations_token_key":            store.ErrInvitationTokenConflict,
	"organization_invitations_organization_id_fkey": store.ErrOrganizationNotFound,
	"users_email_key":                               store.ErrUserAlreadyExists,
	"users_default_organization_id_fkey":            store.ErrOrganizationNotFound,
	"session_organizations_user_id_fkey":            store.ErrUserNotFound,
	"session_organizations_organization_id_fkey":    store.ErrOrganizationNotFound,
}

// mapPostgresError maps PostgreSQL-specific errors to sentinel errors.
// Returns the original error if it's not a PostgreSQL error or doesn't match known patterns.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", store.ErrStorageUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
			return fmt.Errorf("%w: %w", store.ErrStorageUnavailable, err)
		}
		var connErr *pgconn.ConnectError
		if errors.As(err, &connErr) {
			return fmt.Errorf("%w: %w", store.ErrStorageUnavailable, err)
		}
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation, pgerrcode.ForeignKeyViolation:
		if sentinel, ok := constraintErrors[pgErr.ConstraintName]; ok {
			return fmt.Errorf("%w: %s", sentinel, pgErr.ConstraintName)
		}
		return fmt.Errorf("constraint violation: %s: %w", pgErr.ConstraintName, err)

	case pgerrcode.CheckViolation:
		return fmt.Errorf("check constraint violation: %s: %w", pgErr.ConstraintName, err)

	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		// retried by WithinTx
		return fmt.Errorf("transaction conflict (retryable): %w", err)

	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.CannotConnectNow,
		pgerrcode.SQLClientUnableToEstablishSQLConnection,
		pgerrcode.AdminShutdown,
		pgerrcode.CrashShutdown,
		pgerrcode.QueryCanceled,
		pgerrcode.LockNotAvailable,
		pgerrcode.InsufficientResources,
		pgerrcode.DiskFull,
		pgerrcode.OutOfMemory,
		pgerrcode.TooManyConnections:
		return fmt.Errorf("%w: postgres [%s]: %w", store.ErrStorageUnavailable, pgErr.Code, err)

	default:
		return fmt.Errorf("postgres error [%s]: %s (detail: %s, hint: %s): %w",
			pgErr.Code, pgErr.Message, pgErr.Detail, pgErr.Hint, err)
	}
}

// isRetryable reports whether the transaction should be run again.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}
