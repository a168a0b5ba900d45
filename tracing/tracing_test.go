package tracing

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirkoboehm/threadweaver/model/job"
)

func TestInitIsIdempotent(t *testing.T) {
	out := filepath.Join(t.TempDir(), "spans.json")
	require.NoError(t, Init("threadweaver-test", "0.0.1", out))
	assert.NoError(t, Init("threadweaver-test", "0.0.2", out), "second init is a no-op")
}

func TestStartJobSpanNesting(t *testing.T) {
	ctx, parent := StartJobSpan(context.Background(), "weaver.execute", "j-1")
	require.NotNil(t, parent)

	// a child span started from the execution context
	_, child := StartJobSpan(ctx, "job.step", "j-1")
	require.NotNil(t, child)
	child.End(nil)

	parent.SetJobStatus("success")
	parent.End(nil)
}

func TestEndRecordsError(t *testing.T) {
	_, span := StartJobSpan(context.Background(), "weaver.execute", "j-2")
	span.SetJobStatus("failed")
	span.End(assert.AnError)
}

func TestNilSpanIsSafe(t *testing.T) {
	var span *Span
	span.SetJobStatus("success")
	span.End(nil)
}

func TestWrapperTracesExecution(t *testing.T) {
	j := job.NewJob(nil)
	AttachWrapper(j)
	job.BlockingExecute(j)
	assert.Equal(t, job.StatusSuccess, j.Status())
}
