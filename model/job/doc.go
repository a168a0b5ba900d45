// Package job defines the unit of work the scheduler executes: the Job
// base type and its Interface contract, the executor decorator chain, the
// queue-policy admission protocol, and the composite Collection and
// Sequence jobs.
//
// The consumer-side interfaces QueuePolicy, QueueAPI and Thread live here
// so concrete policies and the weaver can depend on this package without
// import cycles.
package job
