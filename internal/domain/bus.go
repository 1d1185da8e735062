package domain

import "time"

// EventType names a relay event topic.
type EventType string

const (
	EventRecordAppended EventType = "relay.record.appended"
	EventNotifySent     EventType = "relay.notify.sent"
)

// Event is emitted after a state change the outside world may care about.
type Event struct {
	Type          EventType
	CorrelationID string // request id of the HTTP call that caused it
	OccurredAt    time.Time
	Payload       any
}

// NotifyPayload is the payload of EventNotifySent.
type NotifyPayload struct {
	ChatID string    `json:"chat_id"`
	SentAt time.Time `json:"sent_at"`
}

// EventBus fans events out to in-process subscribers.
type EventBus interface {
	Emit(evt Event)
	On(t EventType, handler func(Event))
}
