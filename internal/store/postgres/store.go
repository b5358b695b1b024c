package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgscope/internal/store"
	"github.com/wolfeidau/orgscope/internal/telemetry"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements store.Store using PostgreSQL.
//
// Repositories returned by the Store run each statement on its own pooled
// connection. Inside WithinTx every repository shares one transaction and
// single-row reads of organizations and invitations take a FOR UPDATE lock.
type Store struct {
	pool *pgxpool.Pool
	cfg  *Config

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewStore creates a store on top of an existing pool, running migrations
// first when cfg.AutoMigrate is set.
func NewStore(ctx context.Context, pool *pgxpool.Pool, cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.AutoMigrate {
		if err := RunMigrations(ctx, pool); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &Store{
		pool:   pool,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins logging connection pool statistics.
func (s *Store) Start() error {
	log.Info().Msg("Starting PostgreSQL store")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.monitorConnectionPool()
	}()

	return nil
}

// Stop stops background work and closes the pool.
func (s *Store) Stop() error {
	s.stopOnce.Do(func() {
		log.Info().Msg("Stopping PostgreSQL store")
		close(s.stopCh)
		s.wg.Wait()
		s.pool.Close()
	})
	return nil
}

func (s *Store) monitorConnectionPool() {
	ticker := time.NewTicker(time.Duration(s.cfg.PoolStatsIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := s.pool.Stat()
			log.Debug().
				Int32("total_conns", stats.TotalConns()).
				Int32("idle_conns", stats.IdleConns()).
				Int32("acquired_conns", stats.AcquiredConns()).
				Int64("acquire_count", stats.AcquireCount()).
				Int64("acquire_duration_ns", stats.AcquireDuration().Nanoseconds()).
				Msg("Connection pool stats")
		case <-s.stopCh:
			return
		}
	}
}

func (s *Store) Organizations() store.OrganizationStore {
	return &OrganizationStore{db: s.pool}
}

func (s *Store) Memberships() store.MembershipStore {
	return &MembershipStore{db: s.pool}
}

func (s *Store) Invitations() store.InvitationStore {
	return &InvitationStore{db: s.pool}
}

func (s *Store) Users() store.UserStore {
	return &UserStore{db: s.pool}
}

// WithinTx runs fn in a transaction. Serialization failures and deadlocks
// are retried with exponential backoff up to cfg.MaxTxAttempts; fn must
// therefore be safe to run more than once.
func (s *Store) WithinTx(ctx context.Context, fn store.TxFunc) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.QueryTimeoutSeconds)*time.Second)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
			return fn(ctx, &txRepositories{tx: tx})
		})
		switch {
		case err == nil:
			return struct{}{}, nil
		case isRetryable(err):
			telemetry.GetMetrics().TxRetriesTotal.Add(ctx, 1)
			log.Debug().Err(err).Int("attempt", attempt).Msg("Retrying transaction")
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(s.cfg.MaxTxAttempts))

	if err != nil && isRetryable(err) {
		return fmt.Errorf("%w: %w", store.ErrStorageUnavailable, err)
	}
	return mapPostgresError(err)
}

type txRepositories struct {
	tx pgx.Tx
}

func (t *txRepositories) Organizations() store.OrganizationStore {
	return &OrganizationStore{db: t.tx, lock: true}
}

func (t *txRepositories) Memberships() store.MembershipStore {
	return &MembershipStore{db: t.tx}
}

func (t *txRepositories) Invitations() store.InvitationStore {
	return &InvitationStore{db: t.tx, lock: true}
}

func (t *txRepositories) Users() store.UserStore {
	return &UserStore{db: t.tx, lock: true}
}

func lockClause(lock bool) string {
	if lock {
		return " FOR UPDATE"
	}
	return ""
}
