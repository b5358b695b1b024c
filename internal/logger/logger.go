package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/orgscope/internal/apperrors"
)

func Setup(dev bool) zerolog.Logger {
	return New(os.Stderr, dev)
}

// New builds the process logger writing to w. Dev mode switches to the
// console writer at debug level.
func New(w io.Writer, dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(w).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: w, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

// ActionFunc is an organization operation run through Actions.
type ActionFunc func(ctx context.Context) error

// Actions attaches a request scoped logger to the context of each action and
// logs its outcome. Business rule rejections log at debug, anything else at
// error.
type Actions struct {
	logger zerolog.Logger
}

func NewActions(logger zerolog.Logger) *Actions {
	return &Actions{logger: logger}
}

// Run executes fn and returns its error unchanged.
func (a *Actions) Run(ctx context.Context, action string, actorID int64, fn ActionFunc) error {
	started := time.Now()

	ctx = a.logger.With().
		Str("action", action).
		Int64("actor_id", actorID).
		Logger().WithContext(ctx)

	err := fn(ctx)

	switch {
	case err == nil:
		zerolog.Ctx(ctx).Info().
			Dur("duration", time.Since(started)).
			Msg("action completed")
	case apperrors.IsBusinessRule(err):
		zerolog.Ctx(ctx).Debug().
			Err(err).
			Str("kind", string(apperrors.KindOf(err))).
			Dur("duration", time.Since(started)).
			Msg("action rejected")
	default:
		zerolog.Ctx(ctx).Error().
			Err(err).
			Str("kind", string(apperrors.KindOf(err))).
			Dur("duration", time.Since(started)).
			Msg("action failed")
	}

	return err
}
