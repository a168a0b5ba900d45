package weaver

import "github.com/mirkoboehm/threadweaver/service/event"

// Option configures a Weaver.
type Option func(w *Weaver)

// WithMaxThreads sets the maximum number of concurrent workers. The
// default is the number of CPUs.
func WithMaxThreads(n int) Option {
	return func(w *Weaver) {
		if n > 0 {
			w.maxThreads = n
		}
	}
}

// WithEventService makes the weaver publish job and state lifecycle events
// to svc. A nil service disables publishing, which is the default.
func WithEventService(svc *event.Service) Option {
	return func(w *Weaver) {
		w.events = svc
	}
}
