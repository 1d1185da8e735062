// Package mailbox holds the short-term store the polling device reads from:
// a bounded, insertion-ordered list of relay records plus the shared
// "waiting for reply" flag.
package mailbox

import (
	"sync"

	"joyrelay/internal/domain"
)

// DefaultCapacity is the number of records kept before the oldest is evicted.
const DefaultCapacity = 20

// Mailbox is safe for concurrent use. Records and the waiting flag share one
// lock so a poll never observes one without the other.
type Mailbox struct {
	mu       sync.Mutex
	records  []domain.Record
	capacity int
	waiting  bool
}

// Snapshot is a consistent view for one poll.
type Snapshot struct {
	Messages []domain.Record
	Total    int
	Waiting  bool
}

// New creates an empty mailbox. A non-positive capacity means DefaultCapacity.
func New(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Mailbox{
		records:  make([]domain.Record, 0, capacity+1),
		capacity: capacity,
	}
}

// Capacity returns the maximum number of records held.
func (m *Mailbox) Capacity() int { return m.capacity }

// Append adds rec at the tail, evicting from the head when over capacity.
func (m *Mailbox) Append(rec domain.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(rec)
}

// Deliver appends rec and clears the waiting flag in one step. This is what
// the webhook path does once a reply has been produced.
func (m *Mailbox) Deliver(rec domain.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(rec)
	m.waiting = false
}

func (m *Mailbox) appendLocked(rec domain.Record) {
	m.records = append(m.records, rec)
	if over := len(m.records) - m.capacity; over > 0 {
		n := copy(m.records, m.records[over:])
		clear(m.records[n:])
		m.records = m.records[:n]
	}
}

// Query returns the records with ID > sinceID in insertion order, keeping
// only the last limit of them. The result is never nil.
//
// When more than limit records qualify, the older ones are skipped and a
// client advancing its since_id to the newest id will never see them.
func (m *Mailbox) Query(limit int, sinceID int64) []domain.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryLocked(limit, sinceID)
}

func (m *Mailbox) queryLocked(limit int, sinceID int64) []domain.Record {
	out := make([]domain.Record, 0)
	if limit <= 0 {
		return out
	}
	for _, r := range m.records {
		if r.ID > sinceID {
			out = append(out, r)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Poll is Query plus the total size and waiting flag, read atomically.
func (m *Mailbox) Poll(limit int, sinceID int64) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Messages: m.queryLocked(limit, sinceID),
		Total:    len(m.records),
		Waiting:  m.waiting,
	}
}

// Latest returns the most recently appended record.
func (m *Mailbox) Latest() (domain.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		return domain.Record{}, false
	}
	return m.records[len(m.records)-1], true
}

// Clear drops every record. The waiting flag is left as is.
func (m *Mailbox) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.records)
	m.records = m.records[:0]
}

// Len returns the number of records held.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *Mailbox) IsWaiting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiting
}

func (m *Mailbox) SetWaiting(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waiting = v
}
