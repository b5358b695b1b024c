package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgscope/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const defaultBufferSize = 256

type queued struct {
	ctx   context.Context
	event Event
}

// Async hands events to another dispatcher on a background goroutine so that
// actions never wait on delivery. When the buffer is full events are dropped.
type Async struct {
	next Dispatcher
	ch   chan queued

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewAsync wraps next. A bufferSize of zero uses the default.
func NewAsync(next Dispatcher, bufferSize int) *Async {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Async{
		next: next,
		ch:   make(chan queued, bufferSize),
	}
}

// Start launches the delivery goroutine.
func (a *Async) Start() error {
	a.wg.Add(1)
	go a.run()
	return nil
}

// Stop stops accepting events and waits for queued events to be delivered.
func (a *Async) Stop() error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	close(a.ch)
	a.mu.Unlock()

	a.wg.Wait()
	return nil
}

func (a *Async) Dispatch(ctx context.Context, evts ...Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	// the action's context may be cancelled as soon as it returns
	detached := context.WithoutCancel(ctx)

	for _, e := range evts {
		if a.stopped {
			a.drop(ctx, e, "dispatcher stopped")
			continue
		}
		select {
		case a.ch <- queued{ctx: detached, event: e}:
		default:
			a.drop(ctx, e, "event buffer full")
		}
	}
}

func (a *Async) drop(ctx context.Context, e Event, reason string) {
	telemetry.GetMetrics().EventsDroppedTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", string(e.Type))))
	log.Error().
		Str("event_type", string(e.Type)).
		Int64("org_id", e.OrganizationID).
		Str("reason", reason).
		Msg("Dropping domain event")
}

func (a *Async) run() {
	defer a.wg.Done()
	for q := range a.ch {
		a.next.Dispatch(q.ctx, q.event)
	}
}
