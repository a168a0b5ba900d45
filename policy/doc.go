// Package policy provides the built-in queue policies: DependencyPolicy,
// which holds a directed dependency graph between jobs, and
// ResourceRestrictionPolicy, which throttles how many jobs holding the
// policy may run at once.
//
// Both implement job.QueuePolicy. A successful CanRun is a reservation
// that the scheduler balances with exactly one Free or Release call, so a
// policy never needs to guess whether a job actually ran.
package policy
