package domain

import "time"

// RecordKind tags where a relay record's text came from.
type RecordKind string

const (
	KindText  RecordKind = "text"
	KindVoice RecordKind = "voice"
)

// Record is one inbound exchange kept for the polling device: what the human
// said and what was answered. JSON names match what the device firmware reads.
type Record struct {
	ID         int64      `json:"id"`
	Text       string     `json:"text"`
	SenderName string     `json:"from_user"`
	Timestamp  time.Time  `json:"timestamp"`
	Response   string     `json:"response"`
	Kind       RecordKind `json:"type"`
}
