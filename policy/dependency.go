package policy

import (
	"sync"

	"github.com/mirkoboehm/threadweaver/model/job"
)

// DependencyPolicy tracks "A depends on B" edges between jobs. A job can
// run once it has no unresolved dependencies. When a job finishes
// successfully its outgoing edges are removed, unblocking its dependents.
//
// CanRun reserves nothing, so Release has nothing to undo; Free performs
// the resolution step.
type DependencyPolicy struct {
	mu sync.Mutex
	// dependencies maps a dependent job to the set of jobs it waits for
	dependencies map[job.Interface]map[job.Interface]struct{}
}

func NewDependencyPolicy() *DependencyPolicy {
	return &DependencyPolicy{
		dependencies: make(map[job.Interface]map[job.Interface]struct{}),
	}
}

// AddDependency records that dependent waits for dependee. The policy
// attaches itself to both jobs: to the dependent to gate its admission,
// and to the dependee so its completion triggers the resolution step.
// Neither job may be running or finished.
func (p *DependencyPolicy) AddDependency(dependent, dependee job.Interface) {
	dependent.Mutex().Lock()
	dependent.AssignQueuePolicy(p)
	dependent.Mutex().Unlock()
	dependee.Mutex().Lock()
	dependee.AssignQueuePolicy(p)
	dependee.Mutex().Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	set := p.dependencies[dependent]
	if set == nil {
		set = make(map[job.Interface]struct{})
		p.dependencies[dependent] = set
	}
	set[dependee] = struct{}{}
}

// RemoveDependency deletes a single edge. It reports whether the edge
// existed.
func (p *DependencyPolicy) RemoveDependency(dependent, dependee job.Interface) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.dependencies[dependent]
	if !ok {
		return false
	}
	if _, ok = set[dependee]; !ok {
		return false
	}
	delete(set, dependee)
	if len(set) == 0 {
		delete(p.dependencies, dependent)
	}
	return true
}

// HasUnresolvedDependencies reports whether j still waits for any job.
func (p *DependencyPolicy) HasUnresolvedDependencies(j job.Interface) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dependencies[j]) > 0
}

func (p *DependencyPolicy) CanRun(j job.Interface) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dependencies[j]) == 0
}

// Free resolves the dependencies of jobs waiting for j, provided j
// finished successfully. A failed or aborted job keeps its dependents
// blocked; it is the caller's responsibility to dequeue them.
func (p *DependencyPolicy) Free(j job.Interface) {
	if !j.Success() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for dependent, set := range p.dependencies {
		if _, ok := set[j]; ok {
			delete(set, j)
			if len(set) == 0 {
				delete(p.dependencies, dependent)
			}
		}
	}
}

func (p *DependencyPolicy) Release(job.Interface) {}

// Destructed drops every edge involving j, in both directions.
func (p *DependencyPolicy) Destructed(j job.Interface) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.dependencies, j)
	for dependent, set := range p.dependencies {
		delete(set, j)
		if len(set) == 0 {
			delete(p.dependencies, dependent)
		}
	}
}
