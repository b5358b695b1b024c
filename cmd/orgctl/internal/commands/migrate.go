package commands

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgscope/internal/logger"
	postgresstore "github.com/wolfeidau/orgscope/internal/store/postgres"
)

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	log.Logger = logger.Setup(globals.Debug)
	ctx = log.Logger.WithContext(ctx)

	if err := globals.Backend.Postgres.Validate(); err != nil {
		return err
	}

	pool, err := postgresstore.NewPool(ctx, globals.Backend.Postgres.poolConfig())
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgresstore.RunMigrations(ctx, pool); err != nil {
		return err
	}
	log.Info().Msg("Migrations complete")
	return nil
}
