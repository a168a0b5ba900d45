package threadweaver

import (
	"github.com/mirkoboehm/threadweaver/service/event"
	"github.com/mirkoboehm/threadweaver/service/messaging"
	"github.com/mirkoboehm/threadweaver/tracing"
)

// Option configures the Service.
type Option func(s *Service)

// WithConfig applies a full configuration; it overrides the defaults but
// not options appearing after it.
func WithConfig(cfg *Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

// WithMaxThreads caps the number of concurrent workers.
func WithMaxThreads(n int) Option {
	return func(s *Service) {
		s.config.Weaver.MaxThreads = n
	}
}

// WithEventService installs a pre-built event service.
func WithEventService(svc *event.Service) Option {
	return func(s *Service) {
		s.events = svc
		s.config.Events.Enabled = svc != nil
	}
}

// WithEventQueue enables events published through the supplied transport.
func WithEventQueue(queue messaging.Queue[event.Record]) Option {
	return func(s *Service) {
		s.events = event.New(queue)
		s.config.Events.Enabled = true
	}
}

// WithTracing configures OpenTelemetry tracing. If outputFile is empty the
// stdout exporter is used; otherwise spans are written to the supplied
// file path. The first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}
