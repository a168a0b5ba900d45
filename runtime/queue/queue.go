// Package queue implements the run queue: a priority-ordered multiset of
// ready jobs. Higher priorities rank first; within a priority class the
// order is FIFO by insertion. The structure is not synchronised — the
// weaver serialises access under its own mutex.
package queue

import "github.com/mirkoboehm/threadweaver/model/job"

type entry struct {
	job      job.Interface
	priority int
	seq      uint64
}

// RunQueue keeps jobs ordered by (priority desc, insertion order asc).
type RunQueue struct {
	entries []entry
	nextSeq uint64
}

func New() *RunQueue {
	return &RunQueue{}
}

// Insert places j at its rank. Duplicate insertions are allowed; the queue
// is a multiset.
func (q *RunQueue) Insert(j job.Interface) {
	e := entry{job: j, priority: j.Priority(), seq: q.nextSeq}
	q.nextSeq++
	// binary search for the first entry ranked after e
	lo, hi := 0, len(q.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if q.entries[mid].priority >= e.priority {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	q.entries = append(q.entries, entry{})
	copy(q.entries[lo+1:], q.entries[lo:])
	q.entries[lo] = e
}

// Remove deletes the first occurrence of j and reports whether it was
// present.
func (q *RunQueue) Remove(j job.Interface) bool {
	for i := range q.entries {
		if q.entries[i].job == j {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether j is queued.
func (q *RunQueue) Contains(j job.Interface) bool {
	for i := range q.entries {
		if q.entries[i].job == j {
			return true
		}
	}
	return false
}

// TakeFirstAvailable removes and returns the highest-ranked job whose
// policies all grant admission, or nil when no queued job is ready.
// Reservation rollback on refusal happens inside CanBeExecuted.
func (q *RunQueue) TakeFirstAvailable() job.Interface {
	for i := range q.entries {
		candidate := q.entries[i].job
		if candidate.CanBeExecuted(candidate) {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return candidate
		}
	}
	return nil
}

// Drain empties the queue and returns the removed jobs in rank order.
func (q *RunQueue) Drain() []job.Interface {
	jobs := make([]job.Interface, len(q.entries))
	for i := range q.entries {
		jobs[i] = q.entries[i].job
	}
	q.entries = q.entries[:0]
	return jobs
}

// Len returns the number of queued jobs.
func (q *RunQueue) Len() int { return len(q.entries) }

// IsEmpty reports whether no job is queued.
func (q *RunQueue) IsEmpty() bool { return len(q.entries) == 0 }
