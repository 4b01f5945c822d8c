package ingest

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/JoaoPedroMBiofy/ingestor/internal/bucket"
	"github.com/JoaoPedroMBiofy/ingestor/internal/chunk"
	"github.com/JoaoPedroMBiofy/ingestor/internal/document"
	"github.com/JoaoPedroMBiofy/ingestor/internal/embedding"
	"github.com/JoaoPedroMBiofy/ingestor/internal/errs"
	"github.com/JoaoPedroMBiofy/ingestor/internal/lineage"
	"github.com/JoaoPedroMBiofy/ingestor/internal/observability"
	"github.com/JoaoPedroMBiofy/ingestor/internal/vector"
)

// Pipeline ingests documents. It keeps no state between calls and can
// serve concurrent requests.
type Pipeline struct {
	extractor document.PageExtractor
	converter document.Converter
	gateway   *vector.Gateway
	provider  embedding.Provider
	opts      Options

	uploader bucket.Uploader
	lineage  lineage.Recorder
	metrics  *observability.IngestMetrics
	logger   *slog.Logger
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithUploader uploads the final Markdown after conversion.
func WithUploader(u bucket.Uploader) Option {
	return func(p *Pipeline) { p.uploader = u }
}

// WithLineage records every successful ingestion.
func WithLineage(r lineage.Recorder) Option {
	return func(p *Pipeline) { p.lineage = r }
}

func WithMetrics(m *observability.IngestMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline.
func New(extractor document.PageExtractor, converter document.Converter, gateway *vector.Gateway,
	provider embedding.Provider, opts Options, options ...Option) *Pipeline {
	p := &Pipeline{
		extractor: extractor,
		converter: converter,
		gateway:   gateway,
		provider:  provider,
		opts:      opts,
		lineage:   lineage.Nop{},
		logger:    slog.Default(),
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// Options returns the pipeline settings.
func (p *Pipeline) Options() Options { return p.opts }

// Ingest runs req to completion. Temporary files are removed on every path.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (result *Result, err error) {
	start := time.Now()

	r, err := p.opts.resolve(req)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartIngestSpan(ctx, r.pdfName, r.collection, string(r.strategy), string(r.mode))
	defer span.End()

	log := p.logger.With("pdf", r.pdfName, "collection", r.collection)

	if p.metrics != nil {
		p.metrics.InFlight.Inc()
		defer p.metrics.InFlight.Dec()
	}
	defer func() {
		pages, points := 0, 0
		if result != nil {
			pages, points = result.Pages, len(result.PointIDs)
		}
		if p.metrics != nil {
			p.metrics.RecordIngestion(time.Since(start), pages, points, err)
		}
		if err != nil {
			observability.RecordError(span, err)
			r.emit(Event{State: Failed, Err: err})
			log.Error("ingestion failed", "kind", errs.KindOf(err), "error", err, "duration", time.Since(start))
			return
		}
		observability.RecordIngestResult(span, pages, result.DocumentCount)
		log.Info("ingestion completed", "documents", result.DocumentCount, "pages", pages, "duration", time.Since(start))
	}()

	work, err := os.MkdirTemp(p.opts.WorkDir, "ingestor-*")
	if err != nil {
		return nil, errs.E(errs.ExtractionError, "ingest.Workdir", err)
	}
	defer os.RemoveAll(work)

	pages, err := p.extract(ctx, r, work, log)
	if err != nil {
		return nil, err
	}

	converted, err := p.convert(ctx, r, pages, work, log)
	if err != nil {
		return nil, err
	}

	result = &Result{
		CollectionName: r.collection,
		SplitterType:   string(r.strategy),
		Mode:           string(r.mode),
		Pages:          len(converted),
	}

	if p.opts.WriteMarkdown {
		path, err := document.WriteMarkdown(p.opts.OutputDir, r.pdfName, converted)
		if err != nil {
			return nil, errs.E(errs.ConversionError, "ingest.WriteMarkdown", err)
		}
		result.MarkdownFile = path
		log.Info("markdown saved", "path", path)
		result.BucketURL = p.upload(ctx, path, r.pdfName, log)
	}

	docs, err := p.split(ctx, r, converted, log)
	if err != nil {
		return nil, err
	}
	result.DocumentCount = len(docs)

	ids, err := p.embed(ctx, r, docs, log)
	if err != nil {
		return nil, err
	}
	result.PointIDs = ids

	p.recordLineage(ctx, r, converted, docs, ids, log)
	r.emit(Event{State: Upserted})
	return result, nil
}

func (p *Pipeline) stage(ctx context.Context, r resolved, s State) (context.Context, func(error)) {
	r.emit(Event{State: s})
	stageCtx, span := observability.StartStageSpan(ctx, string(s))
	start := time.Now()
	return stageCtx, func(err error) {
		if p.metrics != nil {
			p.metrics.Stage(string(s)).Observe(time.Since(start).Seconds())
		}
		observability.RecordError(span, err)
		span.End()
	}
}

// asKind types err with kind unless it already carries one.
func asKind(err error, kind errs.Kind, op string) error {
	if err == nil || errs.KindOf(err) != "" {
		return err
	}
	return errs.E(kind, op, err)
}

func (p *Pipeline) extract(ctx context.Context, r resolved, work string, log *slog.Logger) (pages []document.Page, err error) {
	ctx, done := p.stage(ctx, r, Extracting)
	defer func() { done(err) }()

	start := time.Now()
	pages, err = p.extractor.Extract(ctx, r.pdfPath, filepath.Join(work, "pages"))
	if err != nil {
		return nil, asKind(err, errs.ExtractionError, "ingest.Extract")
	}
	if len(pages) == 0 {
		return nil, errs.Ef(errs.NoPages, "ingest.Extract", "no pages found in "+r.sourceName)
	}
	log.Info("pages extracted", "pages", len(pages), "duration", time.Since(start))
	return pages, nil
}

func (p *Pipeline) convert(ctx context.Context, r resolved, pages []document.Page, work string, log *slog.Logger) (out []document.PageMarkdown, err error) {
	ctx, done := p.stage(ctx, r, Converting)
	defer func() { done(err) }()

	pageDir := filepath.Join(work, "markdown")
	if p.opts.KeepPageMarkdown {
		pageDir = p.opts.OutputDir
	}

	out = make([]document.PageMarkdown, 0, len(pages))
	for i, page := range pages {
		start := time.Now()
		pageCtx, span := observability.StartConvertSpan(ctx, p.converter.Name(), page.Number)
		md, err := p.converter.Convert(pageCtx, page.Path)
		observability.RecordError(span, err)
		span.End()
		if err != nil {
			return nil, asKind(err, errs.ConversionError, "ingest.Convert")
		}

		pm := document.PageMarkdown{Page: page, Markdown: md}
		if _, err := document.SavePage(pageDir, r.pdfName, pm); err != nil {
			return nil, errs.E(errs.ConversionError, "ingest.SavePage", err)
		}
		out = append(out, pm)

		log.Info("page converted", "page", page.Number, "of", len(pages), "duration", time.Since(start))
		r.emit(Event{State: Converting, Page: i + 1, Pages: len(pages)})
	}
	return out, nil
}

func (p *Pipeline) upload(ctx context.Context, path, pdfName string, log *slog.Logger) string {
	if p.uploader == nil {
		return ""
	}
	url, err := p.uploader.Upload(ctx, path, pdfName)
	if err != nil {
		log.Error("markdown upload failed", "path", path, "error", err)
		return ""
	}
	log.Info("markdown uploaded", "url", url)
	return url
}

func (p *Pipeline) split(ctx context.Context, r resolved, pages []document.PageMarkdown, log *slog.Logger) (docs []vector.Document, err error) {
	ctx, done := p.stage(ctx, r, Splitting)
	defer func() { done(err) }()

	base := map[string]string{
		MetaSourceFile: r.pdfName + ".md",
		MetaFileName:   r.collection,
	}
	pageMeta := func(n int) map[string]string {
		m := maps.Clone(base)
		m[MetaPage] = strconv.Itoa(n)
		return m
	}

	switch r.mode {
	case WholeDocument:
		text := document.Join(pages)
		if strings.TrimSpace(text) != "" {
			docs = append(docs, vector.Document{Content: text, Metadata: base})
		}

	case PerPage:
		for _, pm := range pages {
			if strings.TrimSpace(pm.Markdown) == "" {
				continue
			}
			docs = append(docs, vector.Document{Content: pm.Markdown, Metadata: pageMeta(pm.Page.Number)})
		}

	case Chunked:
		splitter, err := chunk.New(r.strategy, p.opts.Chunk, func() (embedding.Provider, error) {
			return p.provider, nil
		})
		if err != nil {
			return nil, err
		}
		for _, pm := range pages {
			if strings.TrimSpace(pm.Markdown) == "" {
				log.Warn("skipping blank page", "page", pm.Page.Number)
				continue
			}
			chunks, err := splitter.Split(ctx, pm.Markdown, pageMeta(pm.Page.Number))
			if err != nil {
				return nil, asKind(err, errs.SplitFailure, "ingest.Split")
			}
			docs = append(docs, chunks...)
		}
	}

	log.Info("documents prepared", "mode", r.mode, "strategy", r.strategy, "documents", len(docs))
	return docs, nil
}

func (p *Pipeline) embed(ctx context.Context, r resolved, docs []vector.Document, log *slog.Logger) (ids []string, err error) {
	ctx, done := p.stage(ctx, r, Embedding)
	defer func() { done(err) }()

	start := time.Now()
	err = p.gateway.EnsureCollection(ctx, vector.Collection{
		Name:       r.collection,
		VectorSize: p.opts.VectorSize,
		Distance:   p.opts.Distance,
	})
	if err != nil {
		return nil, err
	}

	ids, err = p.gateway.EmbedAndUpsert(ctx, r.collection, docs, p.provider)
	if err != nil {
		return nil, err
	}
	log.Info("embeddings stored", "points", len(ids), "store", p.gateway.Store().Name(), "duration", time.Since(start))
	return ids, nil
}

func (p *Pipeline) recordLineage(ctx context.Context, r resolved, pages []document.PageMarkdown, docs []vector.Document, ids []string, log *slog.Logger) {
	rec := lineage.Record{
		Document:   r.pdfName,
		SourceFile: r.sourceName,
		Collection: r.collection,
		Strategy:   string(r.strategy),
		Mode:       string(r.mode),
		IngestedAt: time.Now().UTC(),
	}
	for _, pm := range pages {
		rec.Pages = append(rec.Pages, lineage.Page{Number: pm.Page.Number, Name: pm.Page.Name})
	}
	for i, id := range ids {
		c := lineage.Chunk{PointID: id}
		if i < len(docs) {
			c.Page, _ = strconv.Atoi(docs[i].Metadata[MetaPage])
			c.Index, _ = strconv.Atoi(docs[i].Metadata[chunk.MetaChunk])
		}
		rec.Chunks = append(rec.Chunks, c)
	}

	if err := p.lineage.RecordIngestion(ctx, rec); err != nil {
		log.Error("lineage not recorded", "error", err)
	}
}
