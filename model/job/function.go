package job

// funcJob adapts a function literal to a job body.
type funcJob struct {
	Job
	fn func(self Interface, th Thread) error
}

func (f *funcJob) Run(self Interface, th Thread) error {
	if f.fn == nil {
		return nil
	}
	return f.fn(self, th)
}

// NewJob returns a job whose body is fn. A nil fn yields a job that
// succeeds immediately.
func NewJob(fn func(self Interface, th Thread) error) Interface {
	return &funcJob{fn: fn}
}

// NewJobWithPriority returns a job whose body is fn, ranked by priority.
// Higher priorities are dispatched earlier.
func NewJobWithPriority(priority int, fn func(self Interface, th Thread) error) Interface {
	ret := &funcJob{fn: fn}
	ret.SetPriority(priority)
	return ret
}
