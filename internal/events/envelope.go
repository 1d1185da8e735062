// Package events turns relay bus events into versioned envelopes and
// publishes them to RabbitMQ for downstream consumers (dashboards, other
// devices). Publishing is best effort.
package events

import (
	"time"

	"github.com/google/uuid"

	"joyrelay/internal/domain"
)

const (
	schemaVersion = 1
	producerName  = "joyrelay"
)

type Meta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Version       int       `json:"version"`
	Producer      string    `json:"producer"`
	OccurredAt    time.Time `json:"occurred_at"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// NewEnvelope wraps evt with a fresh message id.
func NewEnvelope(evt domain.Event) Envelope {
	occurred := evt.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	env := Envelope{
		Meta: Meta{
			ID:         uuid.NewString(),
			Type:       string(evt.Type),
			Version:    schemaVersion,
			Producer:   producerName,
			OccurredAt: occurred.UTC(),
		},
		Data: evt.Payload,
	}
	if evt.CorrelationID != "" {
		cid := evt.CorrelationID
		env.Meta.CorrelationID = &cid
	}
	return env
}
