package weaver

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirkoboehm/threadweaver/model/job"
	"github.com/mirkoboehm/threadweaver/policy"
)

func waitFor(t *testing.T, condition func() bool, msg string) {
	t.Helper()
	assert.Eventually(t, condition, 5*time.Second, 5*time.Millisecond, msg)
}

func TestPriorityOrderingWithSingleWorker(t *testing.T) {
	w := New(WithMaxThreads(1))
	defer w.ShutDown()

	var mu sync.Mutex
	var order []int
	mkJob := func(priority int) job.Interface {
		return job.NewJobWithPriority(priority, func(job.Interface, job.Thread) error {
			mu.Lock()
			order = append(order, priority)
			mu.Unlock()
			return nil
		})
	}

	// one bulk enqueue, so the ranking is settled before dispatch starts
	w.Enqueue(mkJob(1), mkJob(5), mkJob(3))
	w.Finish()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{5, 3, 1}, order)
}

func TestResourceThrottleLimitsConcurrency(t *testing.T) {
	w := New(WithMaxThreads(4))
	defer w.ShutDown()

	throttle := policy.NewResourceRestrictionPolicy(2)
	var current, peak int32
	jobs := make([]job.Interface, 8)
	for i := range jobs {
		j := job.NewJob(func(job.Interface, job.Thread) error {
			c := atomic.AddInt32(&current, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if c <= p || atomic.CompareAndSwapInt32(&peak, p, c) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return nil
		})
		j.Mutex().Lock()
		j.AssignQueuePolicy(throttle)
		j.Mutex().Unlock()
		jobs[i] = j
	}

	started := time.Now()
	w.Enqueue(jobs...)
	w.Finish()
	elapsed := time.Since(started)

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond,
		"eight 50ms jobs through two slots cannot finish in two batches")
	for _, j := range jobs {
		assert.Equal(t, job.StatusSuccess, j.Status())
	}
}

func TestDependencyChainOrdersExecution(t *testing.T) {
	w := New(WithMaxThreads(4))
	defer w.ShutDown()

	deps := policy.NewDependencyPolicy()
	var aFinished, bStarted time.Time
	a := job.NewJob(func(job.Interface, job.Thread) error {
		time.Sleep(20 * time.Millisecond)
		aFinished = time.Now()
		return nil
	})
	b := job.NewJob(func(job.Interface, job.Thread) error {
		bStarted = time.Now()
		return nil
	})
	deps.AddDependency(b, a)

	w.Enqueue(b, a)
	w.Finish()

	require.Equal(t, job.StatusSuccess, a.Status())
	require.Equal(t, job.StatusSuccess, b.Status())
	assert.False(t, bStarted.Before(aFinished), "b must start after a finished")
}

// observedCollection counts the deferred begin/end emissions.
type observedCollection struct {
	job.Collection
	begins int32
	ends   int32
	done   chan struct{}
}

func newObservedCollection() *observedCollection {
	return &observedCollection{done: make(chan struct{})}
}

func (c *observedCollection) DefaultBegin(self job.Interface, th job.Thread) {
	atomic.AddInt32(&c.begins, 1)
	c.Collection.DefaultBegin(self, th)
}

func (c *observedCollection) DefaultEnd(self job.Interface, th job.Thread) {
	c.Collection.DefaultEnd(self, th)
	if atomic.AddInt32(&c.ends, 1) == 1 {
		close(c.done)
	}
}

func TestCollectionCompletesAfterLastChild(t *testing.T) {
	w := New(WithMaxThreads(4))
	defer w.ShutDown()

	var ran int32
	c := newObservedCollection()
	children := make([]job.Interface, 10)
	for i := range children {
		children[i] = job.NewJob(func(job.Interface, job.Thread) error {
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&ran, 1)
			return nil
		})
		c.AddJob(children[i])
	}

	w.Enqueue(c)
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("collection did not complete")
	}
	w.Finish()

	assert.EqualValues(t, 10, atomic.LoadInt32(&ran))
	assert.Equal(t, job.StatusSuccess, c.Status())
	assert.EqualValues(t, 1, atomic.LoadInt32(&c.begins))
	assert.EqualValues(t, 1, atomic.LoadInt32(&c.ends))
	for _, child := range children {
		assert.Equal(t, job.StatusSuccess, child.Status())
	}
}

func TestSequenceFailureStopsRemainder(t *testing.T) {
	w := New(WithMaxThreads(4))
	defer w.ShutDown()

	var mu sync.Mutex
	var order []int
	element := func(n int, err error) job.Interface {
		return job.NewJob(func(job.Interface, job.Thread) error {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			return err
		})
	}
	elements := []job.Interface{
		element(1, nil),
		element(2, nil),
		element(3, job.ErrJobFailed),
		element(4, nil),
		element(5, nil),
	}
	s := job.NewSequence(elements...)

	w.Enqueue(s)
	waitFor(t, s.IsFinished, "sequence did not settle")
	w.Finish()

	mu.Lock()
	assert.Equal(t, []int{1, 2, 3}, order)
	mu.Unlock()
	assert.Equal(t, job.StatusFailed, s.Status())
	assert.Equal(t, job.StatusSuccess, elements[0].Status())
	assert.Equal(t, job.StatusSuccess, elements[1].Status())
	assert.Equal(t, job.StatusFailed, elements[2].Status())
	assert.Equal(t, job.StatusNew, elements[3].Status())
	assert.Equal(t, job.StatusNew, elements[4].Status())
}

func TestSequenceRunsStrictlyInOrder(t *testing.T) {
	w := New(WithMaxThreads(4))
	defer w.ShutDown()

	var running, peak int32
	var mu sync.Mutex
	var order []int
	elements := make([]job.Interface, 6)
	for i := range elements {
		n := i
		elements[i] = job.NewJob(func(job.Interface, job.Thread) error {
			c := atomic.AddInt32(&running, 1)
			if c > atomic.LoadInt32(&peak) {
				atomic.StoreInt32(&peak, c)
			}
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			atomic.AddInt32(&running, -1)
			return nil
		})
	}
	s := job.NewSequence(elements...)
	w.Enqueue(s)
	waitFor(t, s.IsFinished, "sequence did not settle")
	w.Finish()

	assert.EqualValues(t, 1, atomic.LoadInt32(&peak), "at most one element at a time")
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, order)
	assert.Equal(t, job.StatusSuccess, s.Status())
}

func TestNestedSequenceFailureInsideCollection(t *testing.T) {
	w := New(WithMaxThreads(4))
	defer w.ShutDown()

	var ran int32
	count := func() job.Interface {
		return job.NewJob(func(job.Interface, job.Thread) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
	}
	inner := job.NewSequence(
		count(),
		count(),
		job.NewJob(func(job.Interface, job.Thread) error { return job.ErrJobFailed }),
		count(),
		count(),
	)
	parent := newObservedCollection()
	parent.AddJob(inner)
	parent.AddJob(count())

	w.Enqueue(parent)
	select {
	case <-parent.done:
	case <-time.After(5 * time.Second):
		t.Fatal("parent collection hung on the failed nested sequence")
	}
	w.Finish()

	assert.Equal(t, job.StatusFailed, inner.Status())
	assert.True(t, parent.IsFinished())
	assert.EqualValues(t, 3, atomic.LoadInt32(&ran), "two sequence elements plus the sibling")
	assert.EqualValues(t, 1, atomic.LoadInt32(&parent.ends))
}

func TestCollectionStopMidFlight(t *testing.T) {
	w := New(WithMaxThreads(4))
	defer w.ShutDown()

	c := newObservedCollection()
	for i := 0; i < 100; i++ {
		c.AddJob(job.NewJob(func(job.Interface, job.Thread) error {
			time.Sleep(10 * time.Millisecond)
			return nil
		}))
	}

	w.Enqueue(c)
	waitFor(t, func() bool { return c.JobsStarted() >= 30 }, "children did not start")
	c.Stop()
	w.Finish()

	started := c.JobsStarted()
	assert.Less(t, started, 100, "stop must prevent the remainder from starting")
	assert.True(t, c.IsFinished())

	// the weaver drained; nothing else starts
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, started, c.JobsStarted())
	assert.True(t, w.IsIdle())
}

func TestSuspendAndResume(t *testing.T) {
	w := New(WithMaxThreads(2))
	defer w.ShutDown()

	var ran, started int32
	block := make(chan struct{})
	w.Enqueue(job.NewJob(func(job.Interface, job.Thread) error {
		atomic.AddInt32(&started, 1)
		<-block
		atomic.AddInt32(&ran, 1)
		return nil
	}))
	waitFor(t, func() bool { return atomic.LoadInt32(&started) == 1 }, "job did not start")

	w.Suspend()
	assert.Equal(t, Suspending, w.State(), "a job is still running")
	close(block)
	waitFor(t, func() bool { return w.State() == Suspended }, "weaver did not suspend")

	// enqueued work stays parked while suspended
	w.Enqueue(job.NewJob(func(job.Interface, job.Thread) error {
		atomic.AddInt32(&ran, 1)
		return nil
	}))
	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&ran))
	assert.Equal(t, 1, w.QueueLength())

	w.Resume()
	w.Finish()
	assert.EqualValues(t, 2, atomic.LoadInt32(&ran))
}

func TestSuspendBeforeFirstEnqueue(t *testing.T) {
	w := New(WithMaxThreads(2))
	defer w.ShutDown()

	w.Suspend()
	assert.Equal(t, Suspended, w.State())

	var ran int32
	w.Enqueue(job.NewJob(func(job.Interface, job.Thread) error {
		atomic.AddInt32(&ran, 1)
		return nil
	}))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&ran))

	w.Resume()
	w.Finish()
	assert.EqualValues(t, 1, atomic.LoadInt32(&ran))
}

func TestDequeueRemovesQueuedJob(t *testing.T) {
	w := New(WithMaxThreads(1))
	defer w.ShutDown()
	w.Suspend()

	var ran int32
	j := job.NewJob(func(job.Interface, job.Thread) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})
	other := job.NewJob(nil)
	w.Enqueue(j, other)
	require.Equal(t, job.StatusQueued, j.Status())

	assert.True(t, w.Dequeue(j))
	assert.Equal(t, job.StatusNew, j.Status())
	assert.False(t, w.Dequeue(j), "already removed")

	w.Resume()
	w.Finish()
	assert.Zero(t, atomic.LoadInt32(&ran))
	assert.Equal(t, job.StatusSuccess, other.Status())
}

func TestShutDownJoinsAllWorkers(t *testing.T) {
	w := New(WithMaxThreads(4))

	for i := 0; i < 8; i++ {
		w.Enqueue(job.NewJob(func(job.Interface, job.Thread) error {
			time.Sleep(5 * time.Millisecond)
			return nil
		}))
	}
	w.ShutDown()

	assert.Equal(t, Destructed, w.State())
	assert.Equal(t, 0, w.CurrentNumberOfThreads())

	// idempotent
	w.ShutDown()
	assert.Equal(t, Destructed, w.State())
}

func TestShutDownReturnsQueuedJobsToNew(t *testing.T) {
	w := New(WithMaxThreads(1))
	w.Suspend()
	j := job.NewJob(nil)
	w.Enqueue(j)
	require.Equal(t, job.StatusQueued, j.Status())

	w.ShutDown()
	assert.Equal(t, job.StatusNew, j.Status())
}

func TestSetMaximumNumberOfThreads(t *testing.T) {
	w := New(WithMaxThreads(2))
	defer w.ShutDown()
	assert.Equal(t, 2, w.MaximumNumberOfThreads())

	var current, peak int32
	release := make(chan struct{})
	for i := 0; i < 8; i++ {
		w.Enqueue(job.NewJob(func(job.Interface, job.Thread) error {
			c := atomic.AddInt32(&current, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if c <= p || atomic.CompareAndSwapInt32(&peak, p, c) {
					break
				}
			}
			<-release
			atomic.AddInt32(&current, -1)
			return nil
		}))
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&current) == 2 }, "two workers expected")
	assert.LessOrEqual(t, w.CurrentNumberOfThreads(), 2)

	w.SetMaximumNumberOfThreads(4)
	waitFor(t, func() bool { return atomic.LoadInt32(&current) == 4 }, "pool did not grow")

	close(release)
	w.Finish()
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(4))
}

func TestThreadExposesExecutionContext(t *testing.T) {
	w := New(WithMaxThreads(1))
	defer w.ShutDown()

	j := job.NewJob(func(_ job.Interface, th job.Thread) error {
		if th == nil || th.Context() == nil {
			return job.ErrJobFailed
		}
		return th.Context().Err()
	})
	w.Enqueue(j)
	w.Finish()
	assert.Equal(t, job.StatusSuccess, j.Status())
}

func TestPolicyAccountingInvariant(t *testing.T) {
	w := New(WithMaxThreads(4))
	defer w.ShutDown()

	wide := newAccountingPolicy(policy.NewResourceRestrictionPolicy(3))
	narrow := newAccountingPolicy(policy.NewResourceRestrictionPolicy(1))

	jobs := make([]job.Interface, 6)
	for i := range jobs {
		j := job.NewJob(func(job.Interface, job.Thread) error {
			time.Sleep(5 * time.Millisecond)
			return nil
		})
		j.Mutex().Lock()
		j.AssignQueuePolicy(wide)
		j.AssignQueuePolicy(narrow)
		j.Mutex().Unlock()
		jobs[i] = j
	}
	w.Enqueue(jobs...)
	w.Finish()

	for _, j := range jobs {
		require.Equal(t, job.StatusSuccess, j.Status())
	}
	canRunTrue, free, release := wide.counts()
	assert.Equal(t, canRunTrue, free+release, "wide policy accounting")
	canRunTrue, free, release = narrow.counts()
	assert.Equal(t, canRunTrue, free+release, "narrow policy accounting")
	assert.Equal(t, 6, free, "each job frees the slot it ran with")
}

// accountingPolicy wraps a real policy and counts the protocol calls.
type accountingPolicy struct {
	inner job.QueuePolicy

	mu         sync.Mutex
	canRunTrue int
	free       int
	release    int
}

func newAccountingPolicy(inner job.QueuePolicy) *accountingPolicy {
	return &accountingPolicy{inner: inner}
}

func (p *accountingPolicy) CanRun(j job.Interface) bool {
	ok := p.inner.CanRun(j)
	if ok {
		p.mu.Lock()
		p.canRunTrue++
		p.mu.Unlock()
	}
	return ok
}

func (p *accountingPolicy) Free(j job.Interface) {
	p.mu.Lock()
	p.free++
	p.mu.Unlock()
	p.inner.Free(j)
}

func (p *accountingPolicy) Release(j job.Interface) {
	p.mu.Lock()
	p.release++
	p.mu.Unlock()
	p.inner.Release(j)
}

func (p *accountingPolicy) Destructed(j job.Interface) {
	p.inner.Destructed(j)
}

func (p *accountingPolicy) counts() (canRunTrue, free, release int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canRunTrue, p.free, p.release
}
