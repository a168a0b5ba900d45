package job

import (
	"errors"
	"sync/atomic"
)

// Collection is a job that fans out to a set of element jobs. It is queued
// like any other job; once its own body has executed, all elements are
// handed to the queue in one bulk operation. The collection reaches
// Success only after the last element finished, so a single handle
// represents the completion of the whole group.
//
// DefaultBegin fires when the first element starts, DefaultEnd when the
// last element finishes; the collection's own execution emits neither.
type Collection struct {
	Job

	// guarded by the job mutex
	elements []Interface
	api      QueueAPI
	self     Interface
	// selfIsExecuting is true from enqueue until the collection's own
	// completion slot has been processed
	selfIsExecuting bool
	// completed guards the one-time completion emission, the way freed
	// guards freeQueuePolicyResources
	completed bool

	// jobCounter is elements + 1 for self; the decrement to zero triggers
	// finalCleanup exactly once
	jobCounter  atomic.Int32
	jobsStarted atomic.Int32

	selfWrapper collectionSelfExecuteWrapper
	hooks       collectionHooks
	// parentNotify is set when this collection is an element of another
	// composite; invoked once on true completion
	parentNotify func(self Interface, th Thread)
}

// collectionHooks are the points Sequence overrides. All of them run with
// the collection mutex held, except inlineStop.
type collectionHooks interface {
	prepareToEnqueueElements()
	processCompletedElement(self, element Interface, th Thread)
	inlineStop(element Interface) bool
}

// compositeJob marks element jobs whose completion outlives their body, so
// the containing collection defers accounting until they notify.
type compositeJob interface {
	registerCompletionNotifier(fn func(self Interface, th Thread))
}

// collectionSelfExecuteWrapper suppresses the begin and end phases of the
// collection's own execution; they are emitted by the first and last
// element instead.
type collectionSelfExecuteWrapper struct {
	ExecuteWrapper
}

func (w *collectionSelfExecuteWrapper) Begin(Interface, Thread) {}
func (w *collectionSelfExecuteWrapper) End(Interface, Thread)   {}

// collectionElementWrapper reports element starts and finishes back to the
// containing collection.
type collectionElementWrapper struct {
	ExecuteWrapper
	collection *Collection
}

func (w *collectionElementWrapper) Begin(self Interface, th Thread) {
	w.ExecuteWrapper.Begin(self, th)
	w.collection.elementStarted(self, th)
}

func (w *collectionElementWrapper) End(self Interface, th Thread) {
	w.ExecuteWrapper.End(self, th)
	if _, ok := self.(compositeJob); ok {
		// a composite element notifies on true completion, after its own
		// elements finished
		return
	}
	w.collection.elementFinished(self, th)
}

// NewCollection returns a parallel collection holding jobs; further
// elements can be added with AddJob before enqueueing it.
func NewCollection(jobs ...Interface) *Collection {
	c := &Collection{}
	c.initComposite(c)
	c.AddJobs(jobs...)
	return c
}

// initComposite installs the self-execute wrapper and the hook receiver.
// Sequence calls it with itself so its hook overrides take effect.
func (c *Collection) initComposite(hooks collectionHooks) {
	c.hooks = hooks
	c.selfWrapper.Wrap(c.SetExecutor(&c.selfWrapper))
}

// ensureInitLocked makes a zero-value Collection behave; the constructors
// normally take care of this.
func (c *Collection) ensureInitLocked() {
	if c.hooks == nil {
		c.hooks = c
		c.selfWrapper.Wrap(c.SetExecutor(&c.selfWrapper))
	}
}

// AddJob appends an element. Elements may only be added before the
// collection is queued, or from the collection's own body.
func (c *Collection) AddJob(j Interface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureInitLocked()
	wrapper := &collectionElementWrapper{collection: c}
	wrapper.Wrap(j.SetExecutor(wrapper))
	if comp, ok := j.(compositeJob); ok {
		comp.registerCompletionNotifier(c.elementFinished)
	}
	c.elements = append(c.elements, j)
}

func (c *Collection) AddJobs(jobs ...Interface) {
	for _, j := range jobs {
		c.AddJob(j)
	}
}

// ElementCount returns the number of elements.
func (c *Collection) ElementCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.elements)
}

// JobsStarted returns how many elements have begun executing.
func (c *Collection) JobsStarted() int {
	return int(c.jobsStarted.Load())
}

func (c *Collection) registerCompletionNotifier(fn func(self Interface, th Thread)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parentNotify = fn
}

func (c *Collection) AboutToBeQueued(self Interface, api QueueAPI) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureInitLocked()
	c.Job.aboutToBeQueuedLocked(self, api)
	c.api = api
	c.self = self
	c.selfIsExecuting = true
	c.completed = false
	c.jobCounter.Store(int32(len(c.elements)) + 1)
	c.jobsStarted.Store(0)
}

func (c *Collection) AboutToBeDequeued(self Interface, api QueueAPI) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dequeueElementsLocked(self, true)
	c.Job.aboutToBeDequeuedLocked(self, api)
}

// Execute runs the collection's own body through the executor chain, then
// processes the self completion slot, which enqueues the elements. Unlike
// a plain job, a body that returns nil does not promote the status to
// Success; the last finishing element does.
func (c *Collection) Execute(self Interface, th Thread) {
	c.mu.Lock()
	c.ensureInitLocked()
	c.self = self
	if c.api == nil && !c.selfIsExecuting {
		// blocking execution, never queued: elements run inline
		c.selfIsExecuting = true
		c.completed = false
		c.jobCounter.Store(int32(len(c.elements)) + 1)
		c.jobsStarted.Store(0)
	}
	c.mu.Unlock()

	executor := c.Executor()
	executor.Begin(self, th)
	self.SetStatus(StatusRunning)
	err := c.runGuarded(executor, self, th)
	switch {
	case err == nil:
		// stay Running until the last element finishes
	case errors.Is(err, ErrJobAborted):
		self.SetStatus(StatusAborted)
	default:
		self.SetStatus(StatusFailed)
	}
	executor.End(self, th)
	executor.Cleanup(self, th)

	c.elementFinished(self, th)
}

// elementStarted runs when an element began executing; the first one emits
// the deferred begin.
func (c *Collection) elementStarted(_ Interface, th Thread) {
	c.mu.Lock()
	self := c.self
	first := c.jobsStarted.Add(1) == 1
	if first && self != nil {
		self.DefaultBegin(self, th)
	}
	c.mu.Unlock()
}

// elementFinished accounts for the completion of one job of the
// collection. The completion of self enqueues the elements; the decrement
// to zero runs finalCleanup and emits the deferred end.
func (c *Collection) elementFinished(element Interface, th Thread) {
	c.mu.Lock()
	self := c.self
	var inline []Interface
	if c.selfIsExecuting {
		// self is always processed first; elements are not yet queued
		c.selfIsExecuting = false
		if self != nil && self.IsFinished() {
			// the collection body failed or aborted: the elements are
			// never queued, only the self slot remains to account for
			c.jobCounter.Store(1)
		} else {
			c.jobCounter.Store(int32(len(c.elements)) + 1)
			if c.api != nil {
				c.hooks.prepareToEnqueueElements()
				c.api.Enqueue(c.elements...)
			} else {
				inline = append([]Interface(nil), c.elements...)
			}
		}
	}
	remaining := c.jobCounter.Add(-1)
	c.hooks.processCompletedElement(self, element, th)
	if remaining == 0 {
		c.finalCleanupLocked(self)
	}
	// processCompletedElement may have drained the counter itself, e.g. a
	// sequence aborting its remainder; decide on the current value, not
	// the stale decrement
	fire := c.takeCompletionLocked(self)
	c.mu.Unlock()
	if fire {
		c.emitCompletion(self, th)
	}

	for _, el := range inline {
		el.Execute(el, th)
		if c.hooks.inlineStop(el) {
			c.stopInline(th)
			return
		}
	}
}

// stopInline finalises a blocking execution that was cut short by a failed
// element; the remaining elements never ran.
func (c *Collection) stopInline(th Thread) {
	c.mu.Lock()
	self := c.self
	if c.jobCounter.Swap(0) != 0 {
		c.finalCleanupLocked(self)
	}
	fire := c.takeCompletionLocked(self)
	c.mu.Unlock()
	if fire {
		c.emitCompletion(self, th)
	}
}

// dequeueElementsLocked removes every not-yet-started element from the
// queue. The collection mutex must be held; apiLocked selects the queue
// operation variant depending on whether the queue lock is already held by
// the caller. A non-zero counter at this point means the final cleanup
// would otherwise have waited for the last element, so it runs here.
func (c *Collection) dequeueElementsLocked(self Interface, apiLocked bool) {
	if c.api == nil {
		return
	}
	for _, el := range c.elements {
		if apiLocked {
			c.api.DequeueLocked(el)
		} else {
			c.api.Dequeue(el)
		}
	}
	if c.jobCounter.Swap(0) != 0 {
		c.finalCleanupLocked(self)
	}
}

// Stop cancels the collection mid-flight: pending elements are dequeued,
// running ones finish undisturbed. Safe to call at any time.
func (c *Collection) Stop() {
	c.mu.Lock()
	self := c.self
	c.dequeueElementsLocked(self, false)
	fire := c.takeCompletionLocked(self)
	c.mu.Unlock()
	if fire {
		c.emitCompletion(self, nil)
	}
}

// finalCleanupLocked releases policy resources and settles the terminal
// status. It runs exactly once per cycle, guarded by the counter swap or
// the decrement to zero. The collection mutex must be held.
func (c *Collection) finalCleanupLocked(self Interface) {
	if self != nil {
		c.freeQueuePolicyResourcesLocked(self)
		if self.Status() == StatusRunning {
			self.SetStatus(StatusSuccess)
		}
	}
	c.api = nil
}

// clearSelf drops the self reference after the mutex was released, so a
// completion observer triggered from DefaultEnd never runs into a
// half-cleared collection.
func (c *Collection) clearSelf() {
	c.mu.Lock()
	c.self = nil
	c.mu.Unlock()
}

// takeCompletionLocked claims the one-time completion emission. It fires
// only once per cycle, and only after the counter drained and the final
// cleanup settled a terminal status. The collection mutex must be held.
func (c *Collection) takeCompletionLocked(self Interface) bool {
	if c.completed || self == nil || c.jobCounter.Load() > 0 || !self.IsFinished() {
		return false
	}
	c.completed = true
	return true
}

// emitCompletion performs the deferred end emission and, when this
// collection is itself an element, reports the completion to the parent.
// It must run without the collection mutex held.
func (c *Collection) emitCompletion(self Interface, th Thread) {
	if self != nil {
		self.DefaultEnd(self, th)
	}
	c.clearSelf()
	c.mu.Lock()
	notify := c.parentNotify
	c.mu.Unlock()
	if notify != nil {
		notify(self, th)
	}
}

// Dispose delivers Destructed for the collection and all its elements.
func (c *Collection) Dispose(self Interface) {
	c.Job.Dispose(self)
	c.mu.Lock()
	elements := append([]Interface(nil), c.elements...)
	c.mu.Unlock()
	for _, el := range elements {
		el.Dispose(el)
	}
}

// Default hook implementations; Sequence overrides all three.

func (c *Collection) prepareToEnqueueElements() {}

func (c *Collection) processCompletedElement(Interface, Interface, Thread) {}

func (c *Collection) inlineStop(Interface) bool { return false }
