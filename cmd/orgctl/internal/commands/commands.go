package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgscope/internal/config"
	"github.com/wolfeidau/orgscope/internal/events"
	"github.com/wolfeidau/orgscope/internal/invitation"
	"github.com/wolfeidau/orgscope/internal/lifecycle"
	"github.com/wolfeidau/orgscope/internal/logger"
	"github.com/wolfeidau/orgscope/internal/membership"
	"github.com/wolfeidau/orgscope/internal/models"
	"github.com/wolfeidau/orgscope/internal/orgcontext"
	"github.com/wolfeidau/orgscope/internal/store"
	postgresstore "github.com/wolfeidau/orgscope/internal/store/postgres"
	"github.com/wolfeidau/orgscope/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Version string
	Config  string
	Session string
	Backend BackendFlags
}

type BackendFlags struct {
	Postgres PostgresStoreFlags `embed:"" prefix:"postgres-"`

	NATSURL     string        `name:"nats-url" help:"NATS server URL for publishing organization events" env:"ORGSCOPE_NATS_URL"`
	SessionTTL  time.Duration `help:"lifetime of a session organization override" default:"168h" env:"ORGSCOPE_SESSION_TTL"`
	Tracing     bool          `help:"enable tracing" default:"false" env:"ORGSCOPE_TRACING"`
	SampleRatio float64       `help:"fraction of traces to keep" default:"1" env:"ORGSCOPE_TRACE_SAMPLE_RATIO"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns         int32         `help:"maximum number of connections in pool" default:"5"`
	MinConns         int32         `help:"minimum number of connections in pool" default:"1"`
	MaxConnLifetime  time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime  time.Duration `help:"maximum connection idle time" default:"30m"`
	StatementTimeout time.Duration `help:"per statement timeout, 0 uses the server default" default:"30s"`

	// Store Configuration
	QueryTimeout  int32 `help:"transaction timeout in seconds" default:"10"`
	MaxTxAttempts uint  `help:"attempts for transactions that hit serialization failures" default:"3"`
	AutoMigrate   bool  `help:"run database migrations on startup" default:"false" env:"ORGSCOPE_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (s *PostgresStoreFlags) poolConfig() *postgresstore.PoolConfig {
	return &postgresstore.PoolConfig{
		ConnString:       s.ConnString,
		MaxConns:         s.MaxConns,
		MinConns:         s.MinConns,
		MaxConnLifetime:  s.MaxConnLifetime,
		MaxConnIdleTime:  s.MaxConnIdleTime,
		StatementTimeout: s.StatementTimeout,
		ApplicationName:  "orgctl",
	}
}

// app holds the services a command runs against.
type app struct {
	cfg         *config.Config
	store       store.Store
	overlay     orgcontext.Overlay
	resolver    *orgcontext.Resolver
	lifecycle   *lifecycle.Service
	invitations *invitation.Service
	memberships *membership.Service
	actions     *logger.Actions
	session     string
	out         io.Writer
}

func newApp(cfg *config.Config, st store.Store, overlay orgcontext.Overlay, dispatcher events.Dispatcher, log zerolog.Logger, out io.Writer) *app {
	resolver := orgcontext.NewResolver(st, overlay)
	return &app{
		cfg:      cfg,
		store:    st,
		overlay:  overlay,
		resolver: resolver,
		lifecycle: lifecycle.NewService(st, resolver, dispatcher,
			lifecycle.WithSettings(cfg.SettingsManager()),
		),
		invitations: invitation.NewService(st, dispatcher,
			invitation.WithExpirationDays(cfg.Invitations.ExpirationDays),
		),
		memberships: membership.NewService(st, dispatcher),
		actions:     logger.NewActions(log),
		out:         out,
	}
}

// withApp opens the configured backend, runs fn and releases everything it
// opened in reverse order.
func (g *Globals) withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	log.Logger = logger.Setup(g.Debug)
	ctx = log.Logger.WithContext(ctx)

	cfg, err := config.Load(g.Config)
	if err != nil {
		return err
	}

	if g.Backend.Tracing {
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Options{
			ServiceName: "orgctl",
			Version:     g.Version,
			SampleRatio: g.Backend.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	if err := g.Backend.Postgres.Validate(); err != nil {
		return err
	}

	pool, err := postgresstore.NewPool(ctx, g.Backend.Postgres.poolConfig())
	if err != nil {
		return err
	}
	defer pool.Close()

	st, err := postgresstore.NewStore(ctx, pool, &postgresstore.Config{
		AutoMigrate:         g.Backend.Postgres.AutoMigrate,
		QueryTimeoutSeconds: g.Backend.Postgres.QueryTimeout,
		MaxTxAttempts:       g.Backend.Postgres.MaxTxAttempts,
	})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	if err := st.Start(); err != nil {
		return err
	}
	defer func() {
		if err := st.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop store")
		}
	}()

	dispatchers := events.Fanout{events.NewLogger(log.Logger)}
	if g.Backend.NATSURL != "" {
		nc, js, err := events.ConnectNATS(g.Backend.NATSURL, cfg.Events.Stream, cfg.Events.SubjectPrefix)
		if err != nil {
			return err
		}
		defer nc.Close()

		async := events.NewAsync(events.NewNATSPublisher(js, cfg.Events.SubjectPrefix), cfg.Events.BufferSize)
		if err := async.Start(); err != nil {
			return err
		}
		// stop before the connection closes so queued events are flushed
		defer func() {
			if err := async.Stop(); err != nil {
				log.Error().Err(err).Msg("Failed to stop event publisher")
			}
		}()
		dispatchers = append(dispatchers, async)
	}

	overlay := postgresstore.NewSessionOverlay(pool, g.Backend.SessionTTL)

	a := newApp(cfg, st, overlay, dispatchers, log.Logger, os.Stdout)
	a.session = g.Session
	return fn(ctx, a)
}

// actor resolves a user by email, acting through the --session given on the
// command line, if any.
func (a *app) actor(ctx context.Context, email string) (models.Actor, error) {
	user, err := a.store.Users().GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return models.Actor{}, fmt.Errorf("user %s: %w", email, err)
	}
	return models.NewActor(user, a.session), nil
}

func (a *app) run(ctx context.Context, action string, actor models.Actor, fn logger.ActionFunc) error {
	return a.actions.Run(ctx, action, actor.UserID(), fn)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
