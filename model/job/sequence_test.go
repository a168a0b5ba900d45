package job

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func orderedJob(name string, order *[]string, mu *sync.Mutex, err error) Interface {
	return NewJob(func(Interface, Thread) error {
		mu.Lock()
		*order = append(*order, name)
		mu.Unlock()
		return err
	})
}

func TestBlockingSequenceRunsInOrder(t *testing.T) {
	var order []string
	var mu sync.Mutex
	s := NewSequence(
		orderedJob("a", &order, &mu, nil),
		orderedJob("b", &order, &mu, nil),
		orderedJob("c", &order, &mu, nil),
	)
	BlockingExecute(s)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, StatusSuccess, s.Status())
}

func TestBlockingSequenceStopsOnFailure(t *testing.T) {
	var order []string
	var mu sync.Mutex
	elements := []Interface{
		orderedJob("1", &order, &mu, nil),
		orderedJob("2", &order, &mu, nil),
		orderedJob("3", &order, &mu, ErrJobFailed),
		orderedJob("4", &order, &mu, nil),
		orderedJob("5", &order, &mu, nil),
	}
	s := NewSequence(elements...)
	BlockingExecute(s)

	assert.Equal(t, []string{"1", "2", "3"}, order)
	assert.Equal(t, StatusFailed, s.Status())
	assert.Equal(t, StatusSuccess, elements[0].Status())
	assert.Equal(t, StatusSuccess, elements[1].Status())
	assert.Equal(t, StatusFailed, elements[2].Status())
	assert.Equal(t, StatusNew, elements[3].Status())
	assert.Equal(t, StatusNew, elements[4].Status())
}

func TestBlockingSequenceAbortPropagates(t *testing.T) {
	var order []string
	var mu sync.Mutex
	s := NewSequence(
		orderedJob("1", &order, &mu, nil),
		orderedJob("2", &order, &mu, ErrJobAborted),
		orderedJob("3", &order, &mu, nil),
	)
	BlockingExecute(s)
	assert.Equal(t, []string{"1", "2"}, order)
	assert.Equal(t, StatusAborted, s.Status())
}

func TestSequenceOrderPolicyGatesOnPredecessor(t *testing.T) {
	a, b := NewJob(nil), NewJob(nil)
	p := &sequenceOrderPolicy{}
	p.reset([]Interface{a, b})

	assert.True(t, p.CanRun(a))
	assert.False(t, p.CanRun(b), "b must wait for a")

	a.SetStatus(StatusRunning)
	assert.False(t, p.CanRun(b))
	a.SetStatus(StatusSuccess)
	assert.True(t, p.CanRun(b))

	p.Destructed(b)
	assert.True(t, p.CanRun(b))
}
