package temporal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
)

// Dial connects to the Temporal frontend at hostPort.
func Dial(hostPort, namespace string, logger *slog.Logger) (client.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c, err := client.Dial(client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal %s: %w", hostPort, err)
	}
	return c, nil
}

// StartWorker creates and starts a Temporal worker.
func StartWorker(c client.Client, taskQueue string, acts *Activities) (worker.Worker, error) {
	w := worker.New(c, taskQueue, worker.Options{
		// one ingestion at a time per worker
		MaxConcurrentActivityExecutionSize: 1,
	})

	w.RegisterWorkflow(IngestDocumentWorkflow)
	w.RegisterActivity(acts)

	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}
	return w, nil
}

// Submit starts IngestDocumentWorkflow and returns without waiting for it.
func Submit(ctx context.Context, c client.Client, taskQueue string, input IngestInput) (client.WorkflowRun, error) {
	opts := client.StartWorkflowOptions{
		ID:        "ingest-" + uuid.NewString(),
		TaskQueue: taskQueue,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, IngestDocumentWorkflow, input)
	if err != nil {
		return nil, fmt.Errorf("start ingest workflow: %w", err)
	}
	return run, nil
}
