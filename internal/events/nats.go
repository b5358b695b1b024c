package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgscope/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DefaultSubjectPrefix is the subject root events are published under.
	DefaultSubjectPrefix = "orgscope.organizations"

	// DefaultStreamName is the JetStream stream that captures published events.
	DefaultStreamName = "ORGSCOPE_EVENTS"
)

// JetStreamPublisher is the part of nats.JetStreamContext used for publishing.
type JetStreamPublisher interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSPublisher publishes events to JetStream as JSON. Each message carries
// the event ID as Nats-Msg-Id so redelivered publishes are de-duplicated by
// the stream.
type NATSPublisher struct {
	js     JetStreamPublisher
	prefix string
}

// NewNATSPublisher creates a publisher. An empty prefix uses DefaultSubjectPrefix.
func NewNATSPublisher(js JetStreamPublisher, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{js: js, prefix: prefix}
}

// Subject returns the subject an event is published on,
// for example "orgscope.organizations.42.member.added".
func (p *NATSPublisher) Subject(e Event) string {
	return fmt.Sprintf("%s.%d.%s", p.prefix, e.OrganizationID, e.Type)
}

func (p *NATSPublisher) Dispatch(ctx context.Context, evts ...Event) {
	m := telemetry.GetMetrics()
	for _, e := range evts {
		Stamp(&e, time.Now())
		attrs := metric.WithAttributes(attribute.String("type", string(e.Type)))
		start := time.Now()

		err := p.publish(e)

		m.EventPublishTotal.Add(ctx, 1, attrs)
		m.EventPublishDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
		if err != nil {
			m.EventPublishErrorsTotal.Add(ctx, 1, attrs)
			log.Error().Err(err).
				Str("event_id", e.ID.String()).
				Str("event_type", string(e.Type)).
				Int64("org_id", e.OrganizationID).
				Msg("Failed to publish domain event")
		}
	}
}

func (p *NATSPublisher) publish(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(p.Subject(e))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, e.ID.String())

	if _, err := p.js.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// ConnectNATS connects to url and returns the connection with a JetStream
// context. The stream capturing prefix.> is created when it does not exist.
func ConnectNATS(url, streamName, prefix string) (*nats.Conn, nats.JetStreamContext, error) {
	if streamName == "" {
		streamName = DefaultStreamName
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	nc, err := nats.Connect(url,
		nats.Name("orgscope"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := ensureStream(js, streamName, prefix+".>"); err != nil {
		nc.Close()
		return nil, nil, err
	}

	return nc, js, nil
}

func ensureStream(js nats.JetStreamContext, name, subject string) error {
	_, err := js.StreamInfo(name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", name, err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:       name,
		Subjects:   []string{subject},
		Retention:  nats.LimitsPolicy,
		MaxAge:     7 * 24 * time.Hour,
		Duplicates: 2 * time.Minute,
		Storage:    nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", name, err)
	}

	log.Info().Str("stream", name).Str("subject", subject).Msg("Created JetStream stream")
	return nil
}
