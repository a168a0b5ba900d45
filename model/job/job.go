package job

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/mirkoboehm/threadweaver/internal/idgen"
)

// Thread identifies the worker executing a job. A nil Thread means the job
// runs on the caller's goroutine, as BlockingExecute does.
type Thread interface {
	ID() int

	// Context returns the context of the current execution. The weaver
	// parents it with the execution's tracing span, so job bodies can
	// start child spans or pass it to blocking calls.
	Context() context.Context
}

// QueuePolicy is the admission protocol attached to individual jobs. A
// successful CanRun is a reservation: the scheduler guarantees that every
// reservation is balanced by exactly one Free (the job ran) or one Release
// (admission was rolled back). CanRun must not block; refusal is the return
// value. Destructed tells the policy to drop any per-job bookkeeping.
type QueuePolicy interface {
	CanRun(j Interface) bool
	Free(j Interface)
	Release(j Interface)
	Destructed(j Interface)
}

// QueueAPI is the contract by which jobs interact with the scheduler that
// queued them. DequeueLocked is the variant used when the caller already
// runs inside the queue lock, e.g. from AboutToBeDequeued.
type QueueAPI interface {
	Enqueue(jobs ...Interface)
	Dequeue(j Interface) bool
	DequeueLocked(j Interface) bool
}

// Interface is the full contract of a schedulable unit. Concrete jobs embed
// Job and override Run; composites additionally override Execute and the
// queue-transition hooks. Methods that accept a self parameter receive the
// outermost job value, which is how wrappers and composites observe the
// complete object rather than the embedded base.
type Interface interface {
	// ID returns an opaque, stable identifier for the job.
	ID() string

	// Run is the job body. It is invoked through the executor chain.
	Run(self Interface, th Thread) error

	// Execute drives the executor chain around Run. Workers call it with
	// the thread they run on; BlockingExecute calls it with a nil thread.
	Execute(self Interface, th Thread)

	Priority() int
	Status() Status
	SetStatus(s Status)
	Success() bool
	IsFinished() bool

	// SetExecutor atomically installs e and returns the previous executor.
	SetExecutor(e Executor) Executor
	Executor() Executor

	// AssignQueuePolicy and RemoveQueuePolicy require the job mutex held.
	AssignQueuePolicy(p QueuePolicy)
	RemoveQueuePolicy(p QueuePolicy)
	QueuePolicies() []QueuePolicy

	// CanBeExecuted asks every attached policy, in attachment order,
	// whether the job may run now. Reservations made by earlier policies
	// are rolled back in reverse order if a later one refuses.
	CanBeExecuted(self Interface) bool

	// AboutToBeQueued and AboutToBeDequeued are invoked by a QueueAPI
	// around queue membership changes, with the queue lock held.
	AboutToBeQueued(self Interface, api QueueAPI)
	AboutToBeDequeued(self Interface, api QueueAPI)

	// DefaultBegin and DefaultEnd are the begin/done hook points the
	// default executor calls around the body. DefaultEnd frees the
	// resources reserved by queue policies.
	DefaultBegin(self Interface, th Thread)
	DefaultEnd(self Interface, th Thread)

	// Mutex exposes the per-job mutex guarding the policy list and the
	// queue-transition hooks.
	Mutex() *sync.Mutex

	// Dispose delivers Destructed to every attached policy. Call it when
	// the job will not be used again.
	Dispose(self Interface)
}

// Job is the embeddable base implementation of Interface.
//
// The zero value is a ready-to-use job with an empty body, priority 0 and
// the default executor.
type Job struct {
	mu       sync.Mutex
	idOnce   sync.Once
	id       string
	status   atomic.Int32
	executor atomic.Pointer[executorSlot]
	policies []QueuePolicy
	priority int

	// guards against double-freeing policy resources when both a
	// composite's final cleanup and DefaultEnd run for the same cycle
	freed bool
}

func (j *Job) ID() string {
	j.idOnce.Do(func() { j.id = idgen.New() })
	return j.id
}

// Run is the default, empty job body. Override it in embedding types.
func (j *Job) Run(Interface, Thread) error { return nil }

// Execute drives the executor chain: Begin, the guarded body, End,
// Cleanup. The body's error decides the terminal status; a panic is logged
// and re-raised, which terminates the worker.
func (j *Job) Execute(self Interface, th Thread) {
	executor := j.Executor()
	executor.Begin(self, th)
	self.SetStatus(StatusRunning)
	err := j.runGuarded(executor, self, th)
	switch {
	case err == nil:
		if self.Status() == StatusRunning {
			self.SetStatus(StatusSuccess)
		}
	case errors.Is(err, ErrJobAborted):
		self.SetStatus(StatusAborted)
	default:
		self.SetStatus(StatusFailed)
	}
	executor.End(self, th)
	executor.Cleanup(self, th)
}

func (j *Job) runGuarded(executor Executor, self Interface, th Thread) error {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("threadweaver: uncaught panic in job %s: %v", self.ID(), r)
			panic(r)
		}
	}()
	return executor.Execute(self, th)
}

// BlockingExecute executes j synchronously on the caller's goroutine. It
// is a package function rather than a method because a method on the
// embedded base could not recover the outermost job value.
func BlockingExecute(j Interface) {
	j.Execute(j, nil)
}

func (j *Job) Priority() int { return j.priority }

// SetPriority adjusts the job priority. Changing the priority of a job
// that is already queued has no effect on its rank.
func (j *Job) SetPriority(priority int) { j.priority = priority }

func (j *Job) Status() Status {
	return Status(j.status.Load())
}

// SetStatus stores s unless the job already reached a terminal state;
// terminal states are immutable.
func (j *Job) SetStatus(s Status) {
	for {
		current := j.status.Load()
		if Status(current).Terminal() {
			return
		}
		if j.status.CompareAndSwap(current, int32(s)) {
			return
		}
	}
}

func (j *Job) Success() bool { return j.Status() == StatusSuccess }

func (j *Job) IsFinished() bool { return j.Status().Terminal() }

func (j *Job) SetExecutor(e Executor) Executor {
	if e == nil {
		e = DefaultExecutor
	}
	old := j.executor.Swap(&executorSlot{executor: e})
	if old == nil {
		return DefaultExecutor
	}
	return old.executor
}

func (j *Job) Executor() Executor {
	slot := j.executor.Load()
	if slot == nil {
		return DefaultExecutor
	}
	return slot.executor
}

// AssignQueuePolicy attaches p to the job. The job mutex must be held.
// Assigning the same policy twice is a no-op.
func (j *Job) AssignQueuePolicy(p QueuePolicy) {
	for _, existing := range j.policies {
		if existing == p {
			return
		}
	}
	j.policies = append(j.policies, p)
}

// RemoveQueuePolicy detaches p. The job mutex must be held.
func (j *Job) RemoveQueuePolicy(p QueuePolicy) {
	for i, existing := range j.policies {
		if existing == p {
			j.policies = append(j.policies[:i], j.policies[i+1:]...)
			return
		}
	}
}

// QueuePolicies returns the attached policies. The job mutex must be held.
func (j *Job) QueuePolicies() []QueuePolicy {
	return append([]QueuePolicy(nil), j.policies...)
}

func (j *Job) CanBeExecuted(self Interface) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	acquired := make([]QueuePolicy, 0, len(j.policies))
	for _, p := range j.policies {
		if !p.CanRun(self) {
			for i := len(acquired) - 1; i >= 0; i-- {
				acquired[i].Release(self)
			}
			return false
		}
		acquired = append(acquired, p)
	}
	return true
}

func (j *Job) AboutToBeQueued(self Interface, api QueueAPI) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.aboutToBeQueuedLocked(self, api)
}

func (j *Job) aboutToBeQueuedLocked(Interface, QueueAPI) {
	j.freed = false
}

func (j *Job) AboutToBeDequeued(self Interface, api QueueAPI) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.aboutToBeDequeuedLocked(self, api)
}

func (j *Job) aboutToBeDequeuedLocked(Interface, QueueAPI) {
}

func (j *Job) DefaultBegin(Interface, Thread) {
}

func (j *Job) DefaultEnd(self Interface, _ Thread) {
	j.freeQueuePolicyResources(self)
}

// freeQueuePolicyResources calls Free on every attached policy, at most
// once per queued cycle. Composites invoke it from their final cleanup as
// well, and whichever caller comes first wins.
func (j *Job) freeQueuePolicyResources(self Interface) {
	j.mu.Lock()
	policies := j.policiesToFreeLocked()
	j.mu.Unlock()
	for _, p := range policies {
		p.Free(self)
	}
}

// freeQueuePolicyResourcesLocked is the variant for callers already
// holding the job mutex.
func (j *Job) freeQueuePolicyResourcesLocked(self Interface) {
	for _, p := range j.policiesToFreeLocked() {
		p.Free(self)
	}
}

func (j *Job) policiesToFreeLocked() []QueuePolicy {
	if j.freed {
		return nil
	}
	j.freed = true
	return append([]QueuePolicy(nil), j.policies...)
}

func (j *Job) Mutex() *sync.Mutex { return &j.mu }

func (j *Job) Dispose(self Interface) {
	j.mu.Lock()
	policies := append([]QueuePolicy(nil), j.policies...)
	j.mu.Unlock()
	for _, p := range policies {
		p.Destructed(self)
	}
}
