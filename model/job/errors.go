package job

import "errors"

// Control-flow signals a job body returns to communicate its outcome.
// Returning an error that matches ErrJobAborted (via errors.Is) marks the
// job Aborted; any other non-nil error marks it Failed. ErrJobFailed exists
// so a body can fail without inventing an error of its own. A panic inside
// a job body is treated as a programmer error: it is logged and re-raised,
// terminating the worker.
var (
	ErrJobAborted = errors.New("job aborted")
	ErrJobFailed  = errors.New("job failed")
)
