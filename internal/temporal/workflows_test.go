package temporal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/JoaoPedroMBiofy/ingestor/internal/errs"
	"github.com/JoaoPedroMBiofy/ingestor/internal/ingest"
	"github.com/JoaoPedroMBiofy/ingestor/internal/logging"
)

type fakeIngester struct {
	result *ingest.Result
	err    error
	calls  int
	req    ingest.Request
}

func (f *fakeIngester) Ingest(_ context.Context, req ingest.Request) (*ingest.Result, error) {
	f.calls++
	f.req = req
	if req.Observer != nil {
		req.Observer(ingest.Event{State: ingest.Extracting})
	}
	return f.result, f.err
}

func TestIngestDocumentWorkflow_Success(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()

	ing := &fakeIngester{result: &ingest.Result{CollectionName: "testdoc", DocumentCount: 2, SplitterType: "recursive_character"}}
	env.RegisterActivity(&Activities{Ingester: ing, Logger: logging.Nop()})

	env.ExecuteWorkflow(IngestDocumentWorkflow, IngestInput{
		PDFPath:    "/spool/x/testdoc.pdf",
		SourceName: "testdoc.pdf",
		Collection: "testdoc",
		Strategy:   "recursive_character",
		Mode:       "chunked",
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res ingest.Result
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, "testdoc", res.CollectionName)
	assert.Equal(t, 2, res.DocumentCount)

	assert.Equal(t, 1, ing.calls)
	assert.Equal(t, "/spool/x/testdoc.pdf", ing.req.PDFPath)
	assert.Equal(t, ingest.Chunked, ing.req.Mode)
}

func TestIngestDocumentWorkflow_FailureIsTypedAndNotRetried(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()

	ing := &fakeIngester{err: errs.Ef(errs.NoPages, "ingest.Extract", "no pages found in empty.pdf")}
	env.RegisterActivity(&Activities{Ingester: ing, Logger: logging.Nop()})

	env.ExecuteWorkflow(IngestDocumentWorkflow, IngestInput{PDFPath: "/tmp/empty.pdf", SourceName: "empty.pdf"})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "no_pages", appErr.Type())
	assert.True(t, appErr.NonRetryable())
	assert.Contains(t, appErr.Error(), "empty.pdf")
	assert.Equal(t, 1, ing.calls)
}

func TestIngestDocumentWorkflow_FailureKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"conversion", errs.Ef(errs.ConversionError, "ingest.Convert", "page 2"), "conversion_error"},
		{"dimension", errs.Ef(errs.DimensionMismatch, "vector.EmbedAndUpsert", "got 4 want 8"), "dimension_mismatch"},
		{"untyped", errors.New("store down"), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s testsuite.WorkflowTestSuite
			env := s.NewTestWorkflowEnvironment()
			env.RegisterActivity(&Activities{Ingester: &fakeIngester{err: tt.err}, Logger: logging.Nop()})

			env.ExecuteWorkflow(IngestDocumentWorkflow, IngestInput{PDFPath: "/tmp/doc.pdf", SourceName: "doc.pdf"})

			require.True(t, env.IsWorkflowCompleted())
			var appErr *temporal.ApplicationError
			require.True(t, errors.As(env.GetWorkflowError(), &appErr))
			assert.Equal(t, tt.want, appErr.Type())
			assert.Equal(t, tt.want, FailureKind(env.GetWorkflowError()))
		})
	}
}

func TestFailureKind(t *testing.T) {
	assert.Equal(t, "unknown", FailureKind(errors.New("plain")))
	assert.Equal(t, "no_pages", FailureKind(temporal.NewNonRetryableApplicationError("x", "no_pages", nil)))
	assert.Equal(t, "upsert_failure", FailureKind(fmt.Errorf("wrapped: %w", temporal.NewApplicationError("y", "upsert_failure"))))
}

func TestIngestDocumentWorkflow_RemovesSpooledFile(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()

	acts := &Activities{Ingester: &fakeIngester{err: errors.New("store down")}, Logger: logging.Nop()}
	env.RegisterActivity(acts)
	env.OnActivity(acts.RemoveSpooledFile, mock.Anything, "/spool/abc/doc.pdf").Return(nil).Once()

	env.ExecuteWorkflow(IngestDocumentWorkflow, IngestInput{PDFPath: "/spool/abc/doc.pdf", RemoveAfter: true})

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

func TestIngestDocumentActivity_Heartbeats(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestActivityEnvironment()

	ing := &fakeIngester{result: &ingest.Result{CollectionName: "c"}}
	env.RegisterActivity(&Activities{Ingester: ing})

	val, err := env.ExecuteActivity((&Activities{}).IngestDocument, IngestInput{PDFPath: "/tmp/c.pdf"})
	require.NoError(t, err)

	var res ingest.Result
	require.NoError(t, val.Get(&res))
	assert.Equal(t, "c", res.CollectionName)
}

func TestSpoolAndRemove(t *testing.T) {
	spoolDir := t.TempDir()
	src := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4"), 0o644))

	path, err := Spool(spoolDir, src)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", filepath.Base(path))
	assert.Equal(t, spoolDir, filepath.Dir(filepath.Dir(path)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	acts := &Activities{SpoolDir: spoolDir, Logger: logging.Nop()}
	require.NoError(t, acts.RemoveSpooledFile(context.Background(), path))
	assert.NoFileExists(t, path)
	assert.NoDirExists(t, filepath.Dir(path))

	// idempotent
	require.NoError(t, acts.RemoveSpooledFile(context.Background(), path))
}

func TestRemoveSpooledFile_OutsideSpoolDir(t *testing.T) {
	outside := filepath.Join(t.TempDir(), "keep.pdf")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

	acts := &Activities{SpoolDir: t.TempDir(), Logger: logging.Nop()}
	require.NoError(t, acts.RemoveSpooledFile(context.Background(), outside))
	assert.FileExists(t, outside)
}

func TestApplicationError_UnknownKind(t *testing.T) {
	err := applicationError(errors.New("plain"))

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "unknown", appErr.Type())
	assert.True(t, appErr.NonRetryable())
}
