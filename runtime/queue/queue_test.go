package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirkoboehm/threadweaver/model/job"
)

func TestInsertOrdersByPriorityThenFIFO(t *testing.T) {
	q := New()
	low := job.NewJobWithPriority(1, nil)
	high := job.NewJobWithPriority(5, nil)
	mid1 := job.NewJobWithPriority(3, nil)
	mid2 := job.NewJobWithPriority(3, nil)

	q.Insert(low)
	q.Insert(mid1)
	q.Insert(high)
	q.Insert(mid2)
	require.Equal(t, 4, q.Len())

	assert.Equal(t, high, q.TakeFirstAvailable())
	assert.Equal(t, mid1, q.TakeFirstAvailable(), "FIFO within a priority class")
	assert.Equal(t, mid2, q.TakeFirstAvailable())
	assert.Equal(t, low, q.TakeFirstAvailable())
	assert.Nil(t, q.TakeFirstAvailable())
	assert.True(t, q.IsEmpty())
}

type refuseAll struct{}

func (refuseAll) CanRun(job.Interface) bool { return false }
func (refuseAll) Free(job.Interface)        {}
func (refuseAll) Release(job.Interface)     {}
func (refuseAll) Destructed(job.Interface)  {}

func TestTakeFirstAvailableSkipsRefusedJobs(t *testing.T) {
	q := New()
	blocked := job.NewJobWithPriority(9, nil)
	blocked.Mutex().Lock()
	blocked.AssignQueuePolicy(refuseAll{})
	blocked.Mutex().Unlock()
	runnable := job.NewJob(nil)

	q.Insert(blocked)
	q.Insert(runnable)

	assert.Equal(t, runnable, q.TakeFirstAvailable())
	assert.Nil(t, q.TakeFirstAvailable(), "the refused job stays queued")
	assert.Equal(t, 1, q.Len())
	assert.True(t, q.Contains(blocked))
}

func TestRemove(t *testing.T) {
	q := New()
	a, b := job.NewJob(nil), job.NewJob(nil)
	q.Insert(a)
	q.Insert(b)

	assert.True(t, q.Remove(a))
	assert.False(t, q.Remove(a))
	assert.False(t, q.Contains(a))
	assert.Equal(t, 1, q.Len())
}

func TestDrain(t *testing.T) {
	q := New()
	a := job.NewJobWithPriority(1, nil)
	b := job.NewJobWithPriority(2, nil)
	q.Insert(a)
	q.Insert(b)

	drained := q.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, job.Interface(b), drained[0])
	assert.True(t, q.IsEmpty())
}
