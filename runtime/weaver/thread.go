package weaver

import (
	"context"

	"github.com/mirkoboehm/threadweaver/model/job"
	"github.com/mirkoboehm/threadweaver/service/event"
	"github.com/mirkoboehm/threadweaver/tracing"
)

// Thread is one worker of the pool. It loops fetching the next ready job
// and driving it through its executor chain until the weaver tells it to
// exit.
type Thread struct {
	id     int
	weaver *Weaver

	// ctx carries the current execution's tracing span; only the worker
	// goroutine and the job body running on it touch it
	ctx context.Context

	// guarded by the weaver mutex
	busy    bool
	surplus bool
}

// ID returns the worker's numeric id, unique within its weaver.
func (t *Thread) ID() int { return t.id }

// Context returns the context of the execution currently running on this
// worker. It carries the execution's tracing span, so job bodies can
// start child spans or hand it to blocking calls.
func (t *Thread) Context() context.Context {
	if t.ctx == nil {
		return context.Background()
	}
	return t.ctx
}

func (t *Thread) run() {
	defer t.weaver.threadExited(t)
	wasBusy := false
	for {
		j := t.weaver.applyForWork(t, wasBusy)
		if j == nil {
			return
		}
		t.executeJob(j)
		wasBusy = true
	}
}

// executeJob wraps the execution in a tracing span and emits lifecycle
// events. A panic escaping the job body propagates and terminates the
// worker; the deferred span end and the weaver's exit bookkeeping still
// run.
func (t *Thread) executeJob(j job.Interface) {
	ctx, span := tracing.StartJobSpan(context.Background(), "weaver.execute", j.ID())
	t.ctx = ctx
	defer func() {
		t.ctx = nil
		span.SetJobStatus(j.Status().String())
		span.End(nil)
	}()

	t.weaver.publishJobEvent(event.TypeJobStarted, j)
	j.Execute(j, t)
	t.weaver.publishJobEvent(event.TypeJobFinished, j)
}
