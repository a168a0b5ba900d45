package job

import "sync"

// Sequence is a Collection whose elements execute strictly one after
// another, in the order they were added. The ordering is enforced by a
// per-sequence queue policy that admits an element only once its
// predecessor succeeded. When an element fails or aborts, the remaining
// elements are dequeued and the sequence adopts the element's terminal
// status.
type Sequence struct {
	Collection
	order sequenceOrderPolicy
}

func NewSequence(jobs ...Interface) *Sequence {
	s := &Sequence{}
	s.initComposite(s)
	s.AddJobs(jobs...)
	return s
}

// prepareToEnqueueElements installs the predecessor gate on every element
// just before the bulk enqueue. Runs with the sequence mutex held.
func (s *Sequence) prepareToEnqueueElements() {
	s.order.reset(s.elements)
	for _, el := range s.elements {
		el.Mutex().Lock()
		el.AssignQueuePolicy(&s.order)
		el.Mutex().Unlock()
	}
}

// processCompletedElement aborts the remainder of the sequence when an
// element terminated unsuccessfully. Runs with the sequence mutex held.
func (s *Sequence) processCompletedElement(self, element Interface, th Thread) {
	if element == nil || element == self {
		return
	}
	status := element.Status()
	if status != StatusFailed && status != StatusAborted {
		return
	}
	s.SetStatus(status)
	s.dequeueElementsLocked(self, false)
}

func (s *Sequence) inlineStop(element Interface) bool {
	status := element.Status()
	return status == StatusFailed || status == StatusAborted
}

// sequenceOrderPolicy admits an element once its predecessor reached
// Success. CanRun reserves nothing, so Free and Release have nothing to
// undo.
type sequenceOrderPolicy struct {
	mu          sync.Mutex
	predecessor map[Interface]Interface
}

func (p *sequenceOrderPolicy) reset(elements []Interface) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.predecessor = make(map[Interface]Interface, len(elements))
	for i := 1; i < len(elements); i++ {
		p.predecessor[elements[i]] = elements[i-1]
	}
}

func (p *sequenceOrderPolicy) CanRun(j Interface) bool {
	p.mu.Lock()
	pred := p.predecessor[j]
	p.mu.Unlock()
	return pred == nil || pred.Status() == StatusSuccess
}

func (p *sequenceOrderPolicy) Free(Interface)    {}
func (p *sequenceOrderPolicy) Release(Interface) {}

func (p *sequenceOrderPolicy) Destructed(j Interface) {
	p.mu.Lock()
	delete(p.predecessor, j)
	p.mu.Unlock()
}
