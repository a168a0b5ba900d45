package job

import "sync/atomic"

// Executor mediates the execution of a single job. The default executor
// simply forwards to the job's own hooks; wrappers stack on top of it to
// instrument or suppress individual phases.
type Executor interface {
	Begin(self Interface, th Thread)
	Execute(self Interface, th Thread) error
	End(self Interface, th Thread)
	Cleanup(self Interface, th Thread)
}

// DefaultExecutor is the process-wide pass-through executor. A job whose
// executor slot was never set executes through it, so the slot is
// effectively never empty. It is initialised once and never mutated.
var DefaultExecutor Executor = defaultExecutor{}

type defaultExecutor struct{}

func (defaultExecutor) Begin(self Interface, th Thread)         { self.DefaultBegin(self, th) }
func (defaultExecutor) Execute(self Interface, th Thread) error { return self.Run(self, th) }
func (defaultExecutor) End(self Interface, th Thread)           { self.DefaultEnd(self, th) }
func (defaultExecutor) Cleanup(Interface, Thread)               {}

// executorSlot boxes an Executor so it can live in an atomic.Pointer; the
// dynamic type of the stored executor changes as wrappers are stacked,
// which rules out atomic.Value.
type executorSlot struct {
	executor Executor
}

// ExecuteWrapper is an Executor that forwards every phase to a wrapped
// inner executor. Concrete wrappers embed it and override the phases they
// care about. Wrappers chain by atomically swapping a job's executor slot:
//
//	w.Wrap(j.SetExecutor(w))
//
// which makes w the outermost executor and remembers the previous one
// inside w.
type ExecuteWrapper struct {
	wrapped atomic.Pointer[executorSlot]
}

// Wrap stores previous as the inner executor and returns the executor that
// was wrapped before, if any.
func (w *ExecuteWrapper) Wrap(previous Executor) Executor {
	old := w.wrapped.Swap(&executorSlot{executor: previous})
	if old == nil {
		return nil
	}
	return old.executor
}

// Unwrap removes w from the job's executor chain by restoring the wrapped
// executor into the job's slot. It returns the executor that was wrapped.
// Unwrap is commonly called from Cleanup for one-shot wrappers.
func (w *ExecuteWrapper) Unwrap(j Interface) Executor {
	inner := w.executor()
	j.SetExecutor(inner)
	return inner
}

func (w *ExecuteWrapper) executor() Executor {
	slot := w.wrapped.Load()
	if slot == nil || slot.executor == nil {
		return DefaultExecutor
	}
	return slot.executor
}

func (w *ExecuteWrapper) Begin(self Interface, th Thread) { w.executor().Begin(self, th) }

func (w *ExecuteWrapper) Execute(self Interface, th Thread) error {
	return w.executor().Execute(self, th)
}

func (w *ExecuteWrapper) End(self Interface, th Thread)     { w.executor().End(self, th) }
func (w *ExecuteWrapper) Cleanup(self Interface, th Thread) { w.executor().Cleanup(self, th) }
