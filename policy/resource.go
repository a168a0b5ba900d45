package policy

import (
	"sync"

	"github.com/mirkoboehm/threadweaver/model/job"
)

// ResourceRestrictionPolicy caps how many jobs carrying the policy run
// concurrently. CanRun atomically reserves one of the configured slots;
// Free and Release return it. It is the counting-semaphore building block
// for limited resources such as network connections or scratch space.
type ResourceRestrictionPolicy struct {
	mu      sync.Mutex
	cap     int
	holders map[job.Interface]struct{}
}

func NewResourceRestrictionPolicy(capacity int) *ResourceRestrictionPolicy {
	if capacity < 1 {
		capacity = 1
	}
	return &ResourceRestrictionPolicy{
		cap:     capacity,
		holders: make(map[job.Interface]struct{}),
	}
}

// Cap returns the configured capacity.
func (p *ResourceRestrictionPolicy) Cap() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cap
}

// SetCap adjusts the capacity. Shrinking below the number of current
// holders does not interrupt them; the surplus drains as they finish.
func (p *ResourceRestrictionPolicy) SetCap(capacity int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if capacity < 1 {
		capacity = 1
	}
	p.cap = capacity
}

func (p *ResourceRestrictionPolicy) CanRun(j job.Interface) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, held := p.holders[j]; held {
		return true
	}
	if len(p.holders) >= p.cap {
		return false
	}
	p.holders[j] = struct{}{}
	return true
}

func (p *ResourceRestrictionPolicy) Free(j job.Interface) {
	p.release(j)
}

func (p *ResourceRestrictionPolicy) Release(j job.Interface) {
	p.release(j)
}

func (p *ResourceRestrictionPolicy) Destructed(j job.Interface) {
	p.release(j)
}

func (p *ResourceRestrictionPolicy) release(j job.Interface) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.holders, j)
}
