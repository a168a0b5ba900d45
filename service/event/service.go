package event

import (
	"context"
	"sync"

	"github.com/mirkoboehm/threadweaver/internal/clock"
	"github.com/mirkoboehm/threadweaver/service/messaging"
	"github.com/mirkoboehm/threadweaver/service/messaging/memory"
)

// Service fans lifecycle records out through a messaging queue. Publishing
// never blocks the scheduler: the default in-memory transport drops the
// oldest record when consumers fall behind.
type Service struct {
	queue messaging.Queue[Record]

	mu       sync.Mutex
	listener *Listener
}

// New returns an event service publishing through queue; a nil queue
// selects the in-memory default.
func New(queue messaging.Queue[Record]) *Service {
	if queue == nil {
		queue = memory.NewQueue[Record](memory.DefaultConfig())
	}
	return &Service{queue: queue}
}

// Queue exposes the underlying transport so integrators can consume
// records directly.
func (s *Service) Queue() messaging.Queue[Record] { return s.queue }

// Publish stamps and publishes r.
func (s *Service) Publish(r *Record) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = clock.Now()
	}
	_ = s.queue.Publish(context.Background(), r)
}

// PublishJob publishes a job lifecycle record.
func (s *Service) PublishJob(eventType Type, jobID, status string) {
	r := NewRecord(eventType)
	r.JobID = jobID
	r.Status = status
	_ = s.queue.Publish(context.Background(), r)
}

// PublishWeaverState publishes a weaver state change.
func (s *Service) PublishWeaverState(state string) {
	r := NewRecord(TypeWeaverState)
	r.WeaverState = state
	_ = s.queue.Publish(context.Background(), r)
}

// SetListener installs handler as the consumer of published records,
// replacing and stopping any previous listener. A nil handler just stops
// the current one.
func (s *Service) SetListener(handler func(*Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		s.listener.Stop()
		s.listener = nil
	}
	if handler == nil {
		return
	}
	s.listener = NewListener(s.queue, handler)
	s.listener.Start()
}

// Close stops the listener, if any.
func (s *Service) Close() {
	s.SetListener(nil)
}
