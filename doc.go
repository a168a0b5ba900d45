// Package threadweaver provides an in-process concurrent job scheduler.
//
// Units of work are jobs; the Weaver executes them on a pool of workers,
// honouring priorities, dependency constraints and resource throttles
// expressed as queue policies. Collections fan a group of jobs out in
// parallel, Sequences run them strictly in order with abort propagation.
//
// End-users typically interact with the high-level Service façade exposed
// by this package:
//
//	srv := threadweaver.New(threadweaver.WithMaxThreads(4))
//	srv.Enqueue(job.NewJob(func(self job.Interface, th job.Thread) error {
//	    return doWork()
//	}))
//	srv.Finish()
//	srv.ShutDown()
//
// The sub-packages can also be used directly: model/job holds the job
// model and composites, policy the built-in queue policies, and
// runtime/weaver the scheduler itself.
package threadweaver
