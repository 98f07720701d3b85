package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sponsor-portal-api/internal/middleware"
)

// Record event actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// RecordEvent announces a change to a student's records.
type RecordEvent struct {
	Kind            string    `json:"kind"`
	Action          string    `json:"action"`
	AdmissionNumber string    `json:"admissionNumber"`
	Key             string    `json:"key,omitempty"`
	Backend         string    `json:"backend"`
	CorrelationID   string    `json:"correlationId,omitempty"`
	At              time.Time `json:"at"`
}

// RecordEvents publishes record changes to interested consumers.
type RecordEvents interface {
	Publish(ctx context.Context, event RecordEvent)
}

// BackendMode reports which backend currently serves records.
type BackendMode interface {
	Mode() string
}

type natsRecordEvents struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewRecordEvents publishes events on subject. A nil connection yields a
// publisher that only logs.
func NewRecordEvents(conn *nats.Conn, subject string, logger zerolog.Logger) RecordEvents {
	return &natsRecordEvents{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "record_events").Logger(),
	}
}

func (p *natsRecordEvents) Publish(ctx context.Context, event RecordEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if event.CorrelationID == "" {
		event.CorrelationID = middleware.CorrelationIDFromContext(ctx)
	}

	p.logger.Debug().
		Str("kind", event.Kind).
		Str("action", event.Action).
		Str("admission_number", event.AdmissionNumber).
		Str("backend", event.Backend).
		Str("correlation_id", event.CorrelationID).
		Msg("record changed")

	if p.conn == nil || p.subject == "" {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to encode record event")
		return
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("subject", p.subject).Msg("failed to publish record event")
	}
}
