// Package event publishes scheduler lifecycle notifications: jobs being
// queued, started, finished or dequeued, and weaver state changes. The
// records travel through a messaging queue, so consumers can listen
// in-process or journal them to the filesystem. The scheduler core never
// interprets the records; they are the hook surface for external
// decorators and monitors.
package event

import (
	"time"

	"github.com/mirkoboehm/threadweaver/internal/clock"
)

// Type classifies a Record.
type Type string

const (
	TypeJobQueued   Type = "jobQueued"
	TypeJobStarted  Type = "jobStarted"
	TypeJobFinished Type = "jobFinished"
	TypeJobDequeued Type = "jobDequeued"
	TypeWeaverState Type = "weaverState"
)

// Record is one lifecycle notification.
type Record struct {
	Type        Type      `json:"type"`
	JobID       string    `json:"jobId,omitempty"`
	Status      string    `json:"status,omitempty"`
	WeaverState string    `json:"weaverState,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewRecord returns a timestamped record.
func NewRecord(eventType Type) *Record {
	return &Record{Type: eventType, CreatedAt: clock.Now()}
}
