// Package watch ingests PDFs dropped into an inbox directory.
//
// Files are ingested one at a time in arrival order. A file is picked up
// once its size has stopped changing, then moved to processed/ or failed/.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/JoaoPedroMBiofy/ingestor/internal/ingest"
)

// Ingester runs one ingestion. *ingest.Pipeline satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Result, error)
}

// Options configures a Watcher.
type Options struct {
	// Settle is how long a file's size must stay unchanged before it is
	// ingested.
	Settle time.Duration
	// Poll is the size check interval while settling.
	Poll time.Duration

	ProcessedDir string
	FailedDir    string

	// Request supplies Collection, Strategy and Mode for every file. Empty
	// fields use the pipeline defaults.
	Request ingest.Request

	// OnResult, if set, is called after each file.
	OnResult func(path string, res *ingest.Result, err error)
}

func (o *Options) applyDefaults(dir string) {
	if o.Settle <= 0 {
		o.Settle = 2 * time.Second
	}
	if o.Poll <= 0 {
		o.Poll = o.Settle / 4
	}
	if o.ProcessedDir == "" {
		o.ProcessedDir = filepath.Join(dir, "processed")
	}
	if o.FailedDir == "" {
		o.FailedDir = filepath.Join(dir, "failed")
	}
}

// Watcher watches one directory.
type Watcher struct {
	dir      string
	ingester Ingester
	opts     Options
	logger   *slog.Logger

	fs    *fsnotify.Watcher
	queue chan string

	mu      sync.Mutex
	pending map[string]bool

	started   atomic.Bool
	stopped   chan struct{}
	closing   chan struct{}
	closeOnce sync.Once
}

// New starts watching dir. Call Run to process files and Close to stop.
func New(dir string, ingester Ingester, opts Options, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts.applyDefaults(dir)

	for _, d := range []string{dir, opts.ProcessedDir, opts.FailedDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", d, err)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating inbox watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &Watcher{
		dir:      dir,
		ingester: ingester,
		opts:     opts,
		logger:   logger.With("inbox", dir),
		fs:       fw,
		queue:    make(chan string, 256),
		pending:  make(map[string]bool),
		stopped:  make(chan struct{}),
		closing:  make(chan struct{}),
	}, nil
}

// Close stops watching and, if Run is active, waits for the current file
// to finish.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() { close(w.closing) })
	err := w.fs.Close()
	if w.started.Load() {
		<-w.stopped
	}
	return err
}

// Run processes PDFs already in the directory, then new arrivals, until ctx
// is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watcher already running")
	}
	defer close(w.stopped)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.process(ctx)
	}()

	if err := w.scan(ctx); err != nil {
		cancel()
		<-done
		return err
	}

	err := w.loop(ctx)
	cancel()
	<-done
	return err
}

func (w *Watcher) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.enqueue(ctx, event.Name) {
				return nil
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("inbox watcher error: %w", err)
		}
	}
}

func (w *Watcher) scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("reading inbox: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		if !w.enqueue(ctx, filepath.Join(w.dir, n)) {
			return nil
		}
	}
	return nil
}

func isPDF(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".") && strings.EqualFold(filepath.Ext(base), ".pdf")
}

// enqueue queues path for processing. It reports false once the watcher is
// stopping, so callers never block on a full queue during shutdown.
func (w *Watcher) enqueue(ctx context.Context, path string) bool {
	if !isPDF(path) || filepath.Dir(path) != filepath.Clean(w.dir) {
		return true
	}

	w.mu.Lock()
	if w.pending[path] {
		w.mu.Unlock()
		return true
	}
	w.pending[path] = true
	w.mu.Unlock()

	select {
	case w.queue <- path:
		return true
	case <-ctx.Done():
		return false
	case <-w.closing:
		return false
	}
}

func (w *Watcher) process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.queue:
			w.handle(ctx, path)
			w.mu.Lock()
			delete(w.pending, path)
			w.mu.Unlock()
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	if err := w.waitStable(ctx, path); err != nil {
		if !errors.Is(err, os.ErrNotExist) && ctx.Err() == nil {
			w.logger.Warn("inbox file unreadable", "path", path, "error", err)
		}
		return
	}

	req := w.opts.Request
	req.PDFPath = path
	req.SourceName = filepath.Base(path)
	req.Observer = nil

	w.logger.Info("ingesting inbox file", "file", req.SourceName)
	res, err := w.ingester.Ingest(ctx, req)

	target := w.opts.ProcessedDir
	if err != nil {
		target = w.opts.FailedDir
		w.logger.Error("inbox ingestion failed", "file", req.SourceName, "error", err)
	} else {
		w.logger.Info("inbox ingestion completed", "file", req.SourceName,
			"collection", res.CollectionName, "documents", res.DocumentCount)
	}

	if mvErr := os.Rename(path, filepath.Join(target, req.SourceName)); mvErr != nil {
		w.logger.Error("could not move inbox file", "file", req.SourceName, "error", mvErr)
	}

	if w.opts.OnResult != nil {
		w.opts.OnResult(path, res, err)
	}
}

// waitStable returns once path's size has not changed for Settle.
func (w *Watcher) waitStable(ctx context.Context, path string) error {
	ticker := time.NewTicker(w.opts.Poll)
	defer ticker.Stop()

	last := int64(-1)
	var since time.Time
	for {
		fi, err := os.Stat(path)
		if err != nil {
			return err
		}
		switch {
		case fi.Size() != last:
			last, since = fi.Size(), time.Now()
		case time.Since(since) >= w.opts.Settle:
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
