// Package weaver implements the scheduler: a pool of worker goroutines
// draining a priority-ordered run queue. The weaver is the QueueAPI that
// jobs, collections and sequences interact with.
package weaver

import (
	"log"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/mirkoboehm/threadweaver/model/job"
	"github.com/mirkoboehm/threadweaver/runtime/queue"
	"github.com/mirkoboehm/threadweaver/service/event"
)

// Weaver owns the run queue and the worker threads. A single mutex guards
// the queue, the thread inventory and the state; the condition variable on
// it is the only suspension point for idle workers.
//
// Lock order: the weaver mutex is taken before job and policy mutexes,
// including a queued collection's own mutex in the queue-transition hooks.
// A collection that enqueues or dequeues its elements already holds its own
// mutex, so on that path the weaver mutex is taken after it.
type Weaver struct {
	mu   sync.Mutex
	cond *sync.Cond

	state atomic.Int32

	queue      *queue.RunQueue
	maxThreads int

	threads      []*Thread
	nextThreadID int
	busy         int
	exiting      int
	wg           sync.WaitGroup

	events *event.Service
}

// New returns a weaver in the InConstruction state. Workers are spawned on
// demand, up to the configured maximum, once jobs arrive.
func New(options ...Option) *Weaver {
	w := &Weaver{
		queue:      queue.New(),
		maxThreads: runtime.NumCPU(),
	}
	w.cond = sync.NewCond(&w.mu)
	for _, opt := range options {
		opt(w)
	}
	return w
}

// State returns the current lifecycle state.
func (w *Weaver) State() State {
	return State(w.state.Load())
}

func (w *Weaver) setStateLocked(s State) {
	w.state.Store(int32(s))
}

// Enqueue adds jobs to the run queue in one atomic bulk operation. Jobs
// must be in the New state; anything else is a double enqueue and is
// skipped. The first enqueue moves the weaver to WorkingHard.
func (w *Weaver) Enqueue(jobs ...job.Interface) {
	w.mu.Lock()
	switch w.State() {
	case ShuttingDown, Destructed:
		w.mu.Unlock()
		log.Printf("threadweaver: refusing to enqueue, weaver is shutting down")
		return
	case InConstruction:
		w.setStateLocked(WorkingHard)
	}
	accepted := make([]job.Interface, 0, len(jobs))
	for _, j := range jobs {
		if j == nil {
			continue
		}
		if j.Status() != job.StatusNew {
			log.Printf("threadweaver: refusing to enqueue job %s in state %s", j.ID(), j.Status())
			continue
		}
		j.AboutToBeQueued(j, w)
		j.SetStatus(job.StatusQueued)
		w.queue.Insert(j)
		accepted = append(accepted, j)
	}
	w.adjustThreadCountLocked()
	w.cond.Broadcast()
	w.mu.Unlock()

	for _, j := range accepted {
		w.publishJobEvent(event.TypeJobQueued, j)
	}
}

// Dequeue removes j from the run queue if it has not been dispatched yet.
// It reports whether the job was removed; a removed job returns to the New
// state.
func (w *Weaver) Dequeue(j job.Interface) bool {
	w.mu.Lock()
	removed := w.dequeueLocked(j)
	w.mu.Unlock()
	if removed {
		w.publishJobEvent(event.TypeJobDequeued, j)
	}
	return removed
}

// DequeueLocked is the variant for callers that already run under the
// weaver mutex, such as a collection dequeueing its children from inside
// AboutToBeDequeued.
func (w *Weaver) DequeueLocked(j job.Interface) bool {
	return w.dequeueLocked(j)
}

func (w *Weaver) dequeueLocked(j job.Interface) bool {
	if !w.queue.Remove(j) {
		return false
	}
	j.AboutToBeDequeued(j, w)
	j.SetStatus(job.StatusNew)
	w.cond.Broadcast()
	return true
}

// Suspend stops dispatching new jobs; running jobs finish undisturbed. The
// state becomes Suspending until the last busy worker returns, then
// Suspended.
func (w *Weaver) Suspend() {
	w.mu.Lock()
	if w.State() == WorkingHard || w.State() == InConstruction {
		w.setStateLocked(Suspending)
		if w.busy == 0 {
			w.setStateLocked(Suspended)
		}
		w.cond.Broadcast()
	}
	state := w.State()
	w.mu.Unlock()
	w.publishStateEvent(state)
}

// Resume restarts dispatch after Suspend.
func (w *Weaver) Resume() {
	w.mu.Lock()
	if w.State() == Suspending || w.State() == Suspended {
		w.setStateLocked(WorkingHard)
		w.adjustThreadCountLocked()
		w.cond.Broadcast()
	}
	state := w.State()
	w.mu.Unlock()
	w.publishStateEvent(state)
}

// ShutDown drains the queue, waits for running jobs, and joins every
// worker. No worker goroutine outlives the call. Jobs still queued are
// dequeued and return to New.
func (w *Weaver) ShutDown() {
	w.mu.Lock()
	if w.State() == ShuttingDown || w.State() == Destructed {
		w.mu.Unlock()
		return
	}
	w.setStateLocked(ShuttingDown)
	dropped := w.queue.Drain()
	for _, j := range dropped {
		j.AboutToBeDequeued(j, w)
		j.SetStatus(job.StatusNew)
	}
	w.cond.Broadcast()
	w.mu.Unlock()
	w.publishStateEvent(ShuttingDown)

	w.wg.Wait()

	w.mu.Lock()
	w.setStateLocked(Destructed)
	w.mu.Unlock()
	w.publishStateEvent(Destructed)
}

// Finish blocks until the queue is empty and every worker is idle. It
// returns immediately once the weaver shuts down.
func (w *Weaver) Finish() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for !(w.queue.IsEmpty() && w.busy == 0) {
		if w.State() == ShuttingDown || w.State() == Destructed {
			return
		}
		w.cond.Wait()
	}
}

// SetMaximumNumberOfThreads adjusts the worker pool size at runtime.
// Growing spawns workers if there is queued work; shrinking lets the
// surplus exit on their next idle cycle.
func (w *Weaver) SetMaximumNumberOfThreads(n int) {
	if n < 1 {
		n = 1
	}
	w.mu.Lock()
	w.maxThreads = n
	w.adjustThreadCountLocked()
	w.cond.Broadcast()
	w.mu.Unlock()
}

// MaximumNumberOfThreads returns the configured pool size.
func (w *Weaver) MaximumNumberOfThreads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maxThreads
}

// CurrentNumberOfThreads returns the number of live workers.
func (w *Weaver) CurrentNumberOfThreads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.threads) - w.exiting
}

// QueueLength returns the number of jobs waiting for dispatch.
func (w *Weaver) QueueLength() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.queue.Len()
}

// IsIdle reports whether no job is queued or running.
func (w *Weaver) IsIdle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.queue.IsEmpty() && w.busy == 0
}

// adjustThreadCountLocked spawns workers while the queue holds work no
// idle worker covers and the pool is below its maximum.
func (w *Weaver) adjustThreadCountLocked() {
	idle := len(w.threads) - w.busy - w.exiting
	for len(w.threads)-w.exiting < w.maxThreads && w.queue.Len() > idle {
		w.spawnThreadLocked()
		idle++
	}
}

func (w *Weaver) spawnThreadLocked() {
	t := &Thread{id: w.nextThreadID, weaver: w}
	w.nextThreadID++
	w.threads = append(w.threads, t)
	w.wg.Add(1)
	go t.run()
}

// applyForWork hands the next ready job to a worker, blocking while
// nothing is ready. It returns nil when the worker should exit, either on
// shutdown or because the pool shrank.
func (w *Weaver) applyForWork(t *Thread, wasBusy bool) job.Interface {
	w.mu.Lock()
	defer w.mu.Unlock()
	if wasBusy {
		w.busy--
		t.busy = false
		w.cond.Broadcast()
	}
	for {
		switch w.State() {
		case ShuttingDown, Destructed:
			return nil
		case WorkingHard:
			if len(w.threads)-w.exiting > w.maxThreads {
				w.exiting++
				t.surplus = true
				return nil
			}
			if j := w.queue.TakeFirstAvailable(); j != nil {
				w.busy++
				t.busy = true
				return j
			}
		case Suspending:
			if w.busy == 0 {
				w.setStateLocked(Suspended)
				w.cond.Broadcast()
			}
		}
		w.cond.Wait()
	}
}

// threadExited removes t from the inventory and repairs the busy count if
// the worker died inside a job.
func (w *Weaver) threadExited(t *Thread) {
	w.mu.Lock()
	for i := range w.threads {
		if w.threads[i] == t {
			w.threads = append(w.threads[:i], w.threads[i+1:]...)
			break
		}
	}
	if t.surplus {
		w.exiting--
	}
	if t.busy {
		w.busy--
	}
	w.cond.Broadcast()
	w.mu.Unlock()
	w.wg.Done()
}

func (w *Weaver) publishJobEvent(eventType event.Type, j job.Interface) {
	if w.events == nil {
		return
	}
	w.events.PublishJob(eventType, j.ID(), j.Status().String())
}

func (w *Weaver) publishStateEvent(s State) {
	if w.events == nil {
		return
	}
	w.events.PublishWeaverState(s.String())
}

var _ job.QueueAPI = (*Weaver)(nil)
