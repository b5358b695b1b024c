package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Logger writes each event as a structured log line. It is the default
// dispatcher when no message broker is configured.
type Logger struct {
	log zerolog.Logger
}

func NewLogger(log zerolog.Logger) *Logger {
	return &Logger{log: log}
}

func (l *Logger) Dispatch(ctx context.Context, evts ...Event) {
	for _, e := range evts {
		Stamp(&e, time.Now())
		ev := l.log.Info().
			Str("event_id", e.ID.String()).
			Str("event_type", string(e.Type)).
			Int64("org_id", e.OrganizationID)
		if e.UserID != 0 {
			ev = ev.Int64("user_id", e.UserID)
		}
		if e.ActorID != 0 {
			ev = ev.Int64("actor_id", e.ActorID)
		}
		if e.Role != "" {
			ev = ev.Str("role", e.Role.String())
		}
		if e.OldRole != "" || e.NewRole != "" {
			ev = ev.Str("old_role", e.OldRole.String()).Str("new_role", e.NewRole.String())
		}
		if e.InvitationID != 0 {
			ev = ev.Int64("invitation_id", e.InvitationID)
		}
		if len(e.Changes) > 0 {
			ev = ev.Interface("changes", e.Changes)
		}
		ev.Msg("domain event")
	}
}
