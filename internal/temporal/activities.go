package temporal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/JoaoPedroMBiofy/ingestor/internal/chunk"
	"github.com/JoaoPedroMBiofy/ingestor/internal/errs"
	"github.com/JoaoPedroMBiofy/ingestor/internal/ingest"
)

// Ingester runs one ingestion. *ingest.Pipeline satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Result, error)
}

// Activities holds the resources shared by every activity run on a worker.
type Activities struct {
	Ingester Ingester
	// SpoolDir bounds RemoveSpooledFile. Files outside it are left alone.
	SpoolDir string
	Logger   *slog.Logger
}

func (a *Activities) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// IngestDocument runs the pipeline and heartbeats on every state change.
// Pipeline failures become non-retryable application errors typed by kind.
func (a *Activities) IngestDocument(ctx context.Context, input IngestInput) (*ingest.Result, error) {
	res, err := a.Ingester.Ingest(ctx, ingest.Request{
		PDFPath:    input.PDFPath,
		SourceName: input.SourceName,
		Collection: input.Collection,
		Strategy:   chunk.Strategy(input.Strategy),
		Mode:       ingest.Mode(input.Mode),
		Observer: func(e ingest.Event) {
			if activity.IsActivity(ctx) {
				activity.RecordHeartbeat(ctx, string(e.State), e.Page, e.Pages)
			}
		},
	})
	if err != nil {
		return nil, applicationError(err)
	}
	return res, nil
}

// RemoveSpooledFile deletes a spooled PDF and its per-submission directory.
func (a *Activities) RemoveSpooledFile(_ context.Context, path string) error {
	if a.SpoolDir == "" {
		return nil
	}
	rel, err := filepath.Rel(a.SpoolDir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		a.logger().Warn("refusing to remove file outside the spool dir", "path", path)
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if dir := filepath.Dir(path); filepath.Clean(dir) != filepath.Clean(a.SpoolDir) {
		_ = os.Remove(dir)
	}
	return nil
}

func applicationError(err error) error {
	kind := errs.KindOf(err)
	if kind == "" {
		kind = "unknown"
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), string(kind), err)
}

// Spool copies pdfPath into its own directory under spoolDir so a worker on
// a shared volume can read it. The file keeps its base name, which the
// pipeline uses for page and Markdown names.
func Spool(spoolDir, pdfPath string) (string, error) {
	dir := filepath.Join(spoolDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create spool dir: %w", err)
	}

	src, err := os.Open(pdfPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst := filepath.Join(dir, filepath.Base(pdfPath))
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create spooled file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", fmt.Errorf("copy to spool: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dst, nil
}
