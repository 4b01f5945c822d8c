package temporal

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/JoaoPedroMBiofy/ingestor/internal/ingest"
)

// IngestInput holds the workflow parameters.
type IngestInput struct {
	// PDFPath must be readable by the worker, usually a file in the spool
	// dir written by Spool.
	PDFPath    string
	SourceName string
	Collection string
	Strategy   string
	Mode       string

	// RemoveAfter deletes PDFPath once the ingestion finishes, whatever the
	// outcome.
	RemoveAfter bool
}

// IngestDocumentWorkflow runs one ingestion as a single activity. The
// pipeline is not idempotent, so the activity is never retried.
func IngestDocumentWorkflow(ctx workflow.Context, input IngestInput) (*ingest.Result, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	var a *Activities

	var result ingest.Result
	ingestErr := workflow.ExecuteActivity(ctx, a.IngestDocument, input).Get(ctx, &result)

	if input.RemoveAfter {
		cleanupCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: time.Minute,
			RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
		})
		if err := workflow.ExecuteActivity(cleanupCtx, a.RemoveSpooledFile, input.PDFPath).Get(cleanupCtx, nil); err != nil {
			logger.Warn("spooled file not removed", "path", input.PDFPath, "error", err)
		}
	}

	if ingestErr != nil {
		// the kind stays the outermost error type so clients can read it
		return nil, temporal.NewNonRetryableApplicationError(fmt.Sprintf("ingest %s: %v", input.SourceName, ingestErr), FailureKind(ingestErr), ingestErr)
	}
	return &result, nil
}

// FailureKind returns the error kind carried by a failed ingestion activity
// or workflow, or "unknown".
func FailureKind(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() != "" {
		return appErr.Type()
	}
	return "unknown"
}
