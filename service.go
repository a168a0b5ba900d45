package threadweaver

import (
	"log"

	"github.com/viant/afs"

	"github.com/mirkoboehm/threadweaver/model/job"
	"github.com/mirkoboehm/threadweaver/runtime/weaver"
	"github.com/mirkoboehm/threadweaver/service/event"
	fsqueue "github.com/mirkoboehm/threadweaver/service/messaging/fs"
)

// Service is the scheduler façade: it wires the weaver with the optional
// event transport according to the configuration.
type Service struct {
	config *Config
	weaver *weaver.Weaver
	events *event.Service
}

// New builds a Service from options.
func New(options ...Option) *Service {
	s := &Service{config: DefaultConfig()}
	for _, option := range options {
		option(s)
	}
	s.init()
	return s
}

func (s *Service) init() {
	if s.events == nil && s.config.Events.Enabled {
		switch s.config.Events.Vendor {
		case "fs":
			queue, err := fsqueue.NewQueue[event.Record](afs.New(), fsqueue.Config{BasePath: s.config.Events.BasePath})
			if err != nil {
				log.Printf("threadweaver: falling back to in-memory events: %v", err)
				s.events = event.New(nil)
			} else {
				s.events = event.New(queue)
			}
		default:
			s.events = event.New(nil)
		}
	}
	opts := []weaver.Option{weaver.WithEventService(s.events)}
	if s.config.Weaver.MaxThreads > 0 {
		opts = append(opts, weaver.WithMaxThreads(s.config.Weaver.MaxThreads))
	}
	s.weaver = weaver.New(opts...)
}

// Weaver returns the underlying scheduler.
func (s *Service) Weaver() *weaver.Weaver { return s.weaver }

// Events returns the event service, or nil when events are disabled.
func (s *Service) Events() *event.Service { return s.events }

// Enqueue hands jobs to the weaver in one bulk operation.
func (s *Service) Enqueue(jobs ...job.Interface) { s.weaver.Enqueue(jobs...) }

// Dequeue removes a not-yet-started job from the run queue.
func (s *Service) Dequeue(j job.Interface) bool { return s.weaver.Dequeue(j) }

// Suspend pauses dispatch; running jobs finish undisturbed.
func (s *Service) Suspend() { s.weaver.Suspend() }

// Resume restarts dispatch after Suspend.
func (s *Service) Resume() { s.weaver.Resume() }

// Finish blocks until the queue is drained and all workers are idle.
func (s *Service) Finish() { s.weaver.Finish() }

// ShutDown stops the scheduler; no worker outlives the call.
func (s *Service) ShutDown() {
	s.weaver.ShutDown()
	if s.events != nil {
		s.events.Close()
	}
}
