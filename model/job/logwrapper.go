package job

import "log"

// LogWrapper is a debugging executor decorator that logs the begin and end
// of every execution of the job it is attached to. Attach it with:
//
//	w := &job.LogWrapper{}
//	w.Wrap(j.SetExecutor(w))
type LogWrapper struct {
	ExecuteWrapper
}

func (w *LogWrapper) Begin(self Interface, th Thread) {
	log.Printf("threadweaver: job %s begins on thread %v", self.ID(), threadID(th))
	w.ExecuteWrapper.Begin(self, th)
}

func (w *LogWrapper) End(self Interface, th Thread) {
	w.ExecuteWrapper.End(self, th)
	log.Printf("threadweaver: job %s ends with status %s", self.ID(), self.Status())
}

func threadID(th Thread) interface{} {
	if th == nil {
		return "caller"
	}
	return th.ID()
}
