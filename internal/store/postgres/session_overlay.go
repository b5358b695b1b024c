package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgscope/internal/store"
)

// DefaultSessionTTL is how long a session override lives without being
// rewritten.
const DefaultSessionTTL = 7 * 24 * time.Hour

// SessionOverlay stores the per-session current organization override in
// PostgreSQL so that it survives across processes.
type SessionOverlay struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	now  func() time.Time
}

// NewSessionOverlay creates a PostgreSQL-backed overlay. A zero ttl uses
// DefaultSessionTTL.
func NewSessionOverlay(pool *pgxpool.Pool, ttl time.Duration) *SessionOverlay {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionOverlay{
		pool: pool,
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get returns the override for sessionID. Expired entries and entries
// written for a different user are ignored.
func (s *SessionOverlay) Get(ctx context.Context, sessionID string, userID int64) (int64, bool, error) {
	if sessionID == "" {
		return 0, false, nil
	}

	var orgID int64
	err := s.pool.QueryRow(ctx, `
		SELECT organization_id
		FROM session_organizations
		WHERE session_id = $1 AND user_id = $2 AND expires_at > $3
	`, sessionID, userID, s.now()).Scan(&orgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get session organization: %w", mapPostgresError(err))
	}
	return orgID, true, nil
}

// Set writes the override for sessionID and extends its expiry.
func (s *SessionOverlay) Set(ctx context.Context, sessionID string, userID, orgID int64) error {
	if sessionID == "" {
		return store.ErrSessionRequired
	}

	now := s.now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO session_organizations (session_id, user_id, organization_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    organization_id = EXCLUDED.organization_id,
		    expires_at = EXCLUDED.expires_at
	`, sessionID, userID, orgID, now, now.Add(s.ttl))
	if err != nil {
		return fmt.Errorf("failed to set session organization: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("session_id", sessionID).
		Int64("org_id", orgID).
		Msg("Set session organization")

	return nil
}

// Forget drops the override for sessionID (logout).
func (s *SessionOverlay) Forget(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM session_organizations WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to forget session: %w", mapPostgresError(err))
	}
	return nil
}

// ForgetOrganization drops every override pointing at orgID.
func (s *SessionOverlay) ForgetOrganization(ctx context.Context, orgID int64) (int, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM session_organizations WHERE organization_id = $1`, orgID)
	if err != nil {
		return 0, fmt.Errorf("failed to forget organization sessions: %w", mapPostgresError(err))
	}
	return int(result.RowsAffected()), nil
}

// DeleteExpired removes expired overrides (cleanup job).
func (s *SessionOverlay) DeleteExpired(ctx context.Context) (int, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM session_organizations WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", mapPostgresError(err))
	}

	count := int(result.RowsAffected())
	if count > 0 {
		log.Info().
			Int("count", count).
			Msg("Deleted expired session organizations")
	}
	return count, nil
}
