package tracing

import (
	"context"

	"github.com/mirkoboehm/threadweaver/model/job"
)

// Wrapper is an executor decorator that opens a span around every
// execution of the job it is attached to. When the job runs on a weaver
// thread the span becomes a child of the thread's execution span; under
// BlockingExecute it is a root span. Attach it for jobs whose executions
// inside composites should show up individually in a trace.
type Wrapper struct {
	job.ExecuteWrapper
	span *Span
}

// AttachWrapper decorates j so its executions are traced.
func AttachWrapper(j job.Interface) *Wrapper {
	w := &Wrapper{}
	w.Wrap(j.SetExecutor(w))
	return w
}

func (w *Wrapper) Begin(self job.Interface, th job.Thread) {
	ctx := context.Background()
	if th != nil {
		ctx = th.Context()
	}
	_, w.span = StartJobSpan(ctx, "job.execute", self.ID())
	w.ExecuteWrapper.Begin(self, th)
}

func (w *Wrapper) End(self job.Interface, th job.Thread) {
	w.ExecuteWrapper.End(self, th)
	if w.span != nil {
		w.span.SetJobStatus(self.Status().String())
		w.span.End(nil)
		w.span = nil
	}
}
