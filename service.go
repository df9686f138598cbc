package bylawsearch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/civicgrid/bylawsearch/cache"
	"github.com/civicgrid/bylawsearch/chunker"
	"github.com/civicgrid/bylawsearch/embedding"
	"github.com/civicgrid/bylawsearch/extract"
	"github.com/civicgrid/bylawsearch/registry"
	"github.com/civicgrid/bylawsearch/vector"
	"github.com/civicgrid/bylawsearch/verify"
)

// Service is the core of the bylaw search system: the ingestion pipeline
// (extract, chunk, classify, embed, write) and the query path (embed,
// filtered similarity search, cache, verify).
type Service interface {

	// Close releases service resources.
	Close() error

	// IngestDocument runs one document through the full pipeline. The
	// returned result is populated even on failure.
	IngestDocument(ctx context.Context, doc Document) (DocumentResult, error)

	// IngestDocuments ingests independent documents through a bounded
	// worker pool. One document's failure never cancels its siblings;
	// the aggregate report covers every document.
	IngestDocuments(ctx context.Context, docs []Document) (*IngestReport, error)

	// Search serves one query: cache, query embedding, filtered
	// similarity search, verification. Results come back in descending
	// similarity order; ties are not broken further and their relative
	// order is non-deterministic.
	Search(ctx context.Context, query SearchQuery) (*SearchResponse, error)

	// ListBylaws returns the canonical registry entries.
	ListBylaws(ctx context.Context) ([]registry.BylawRecord, error)
}

type ServiceMiddleware func(Service) Service

// NewService wires the pipeline around the injected collaborators. The same
// embedder instance serves ingestion and queries, so both sides share one
// model and one normalization.
func NewService(cfg Config, embedder embedding.Embedder, index vector.Index, reg *registry.Registry) (Service, error) {
	if embedder == nil {
		return nil, errors.New("embedder not set")
	}

	if index == nil {
		return nil, errors.New("vector index not set")
	}

	if reg == nil {
		reg = registry.New(nil, nil)
	}

	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}

	if cfg.Ingest.EmbedBatchSize <= 0 {
		cfg.Ingest.EmbedBatchSize = embedding.DefaultBatchSize
	}

	if cfg.Ingest.WriteBatchSize <= 0 {
		cfg.Ingest.WriteBatchSize = DefaultWriteBatchSize
	}

	if cfg.Ingest.Concurrency <= 0 {
		cfg.Ingest.Concurrency = DefaultConcurrency
	}

	log := zap.L().With(
		zap.String("service", "bylawsearch"),
	)

	timeout := func(ctx context.Context) (context.Context, context.CancelFunc) {
		return context.WithTimeout(ctx, cfg.CallTimeout)
	}

	svc := &service{
		embedder: embedder,
		index:    index,
		registry: reg,
		verifier: verify.New(reg, cfg.Verify),
		cache:    cache.New[[]SearchResult](cfg.Cache),
		chunker: chunker.New(
			chunker.WithChunkSize(cfg.Ingest.ChunkSize),
			chunker.WithOverlap(cfg.Ingest.Overlap),
		),
		retry:   DefaultRetryPolicy(),
		timeout: timeout,

		cfg: cfg,
		log: log,
	}

	svc.writer = &indexWriter{
		index:     index,
		batchSize: cfg.Ingest.WriteBatchSize,
		retry:     svc.retry,
		timeout:   timeout,
		log:       log,
	}

	return svc, nil
}

type service struct {
	embedder embedding.Embedder
	index    vector.Index
	registry *registry.Registry
	verifier *verify.Verifier
	cache    *cache.Cache[[]SearchResult]
	chunker  *chunker.Chunker
	writer   *indexWriter
	retry    RetryPolicy
	timeout  timeoutFunc

	cfg Config
	log *zap.Logger
}

func (svc *service) Close() error {
	svc.cache.Clear()
	return nil
}

func (svc *service) IngestDocument(ctx context.Context, doc Document) (DocumentResult, error) {
	start := time.Now()

	log := svc.log.With(
		zap.String("action", "ingest_document"),
		zap.String("filename", doc.Filename),
	)

	result := DocumentResult{Filename: doc.Filename}

	defer func() {
		result.Duration = time.Since(start)
	}()

	if strings.TrimSpace(doc.Text) == "" {
		result.Err = ErrEmptyDocument.Error()
		return result, ErrEmptyDocument
	}

	md := extract.Extract(doc.Filename, doc.Text)

	result.BylawNumber = md.Number
	if result.BylawNumber == "" {
		result.BylawNumber = UnknownBylaw
	}

	chunks := svc.chunker.Split(doc.Text)
	result.Chunks = len(chunks)

	if len(chunks) == 0 {
		return result, nil
	}

	records := make([]vector.Record, len(chunks))
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		records[i] = ChunkToRecord(doc, md, ch)
		texts[i] = ch.Text
	}

	// Embed batches sequentially. A provider failure aborts the whole
	// document so the index never holds a partially-embedded bylaw.
	vectors := make([][]float32, 0, len(texts))
	for i, batch := range embedding.Batches(texts, svc.cfg.Ingest.EmbedBatchSize) {
		var vecs [][]float32

		err := svc.retry.Do(ctx, func() error {
			callCtx, cancel := svc.timeout(ctx)
			defer cancel()

			v, err := svc.embedder.Embed(callCtx, batch)
			if err != nil {
				return err
			}

			vecs = v
			return nil
		})

		if err != nil {
			log.Error(err.Error(), zap.Int("batch", i))

			err = fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
			result.Err = err.Error()
			return result, err
		}

		vectors = append(vectors, vecs...)
	}

	for i := range records {
		records[i].Embedding = vectors[i]
	}

	batches, err := svc.writer.write(ctx, doc.Filename, records)
	result.Batches = batches

	if err != nil {
		result.Err = err.Error()
		return result, err
	}

	log.Info("document ingested",
		zap.String("bylaw_number", result.BylawNumber),
		zap.Int("chunks", result.Chunks),
		zap.Int("batches", result.Batches),
	)

	return result, nil
}

func (svc *service) IngestDocuments(ctx context.Context, docs []Document) (*IngestReport, error) {
	report := &IngestReport{
		Documents: len(docs),
		Results:   make([]DocumentResult, len(docs)),
	}

	sem := make(chan struct{}, svc.cfg.Ingest.Concurrency)

	var wg sync.WaitGroup
	for i, doc := range docs {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, doc Document) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := svc.IngestDocument(ctx, doc)
			if err != nil && result.Err == "" {
				result.Err = err.Error()
			}

			report.Results[i] = result
		}(i, doc)
	}

	wg.Wait()

	for _, r := range report.Results {
		if r.Err == "" {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	svc.log.Info("ingestion finished",
		zap.String("action", "ingest_documents"),
		zap.Int("documents", report.Documents),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)

	return report, nil
}

func (svc *service) Search(ctx context.Context, query SearchQuery) (*SearchResponse, error) {
	start := time.Now()

	if err := query.Validate(); err != nil {
		return nil, err
	}

	// The fingerprint excludes caller identity so the cache is shared
	// across callers.
	fingerprint := cache.Fingerprint(query.Query, struct {
		Filters  *SearchFilters `json:"filters"`
		Limit    int            `json:"limit"`
		MinScore float32        `json:"minScore"`
	}{query.Filters, *query.Limit, *query.MinScore})

	if cached, ok := svc.cache.Get(fingerprint); ok {
		results := make([]SearchResult, len(cached))
		copy(results, cached)

		return &SearchResponse{
			Results:   results,
			Count:     len(results),
			FromCache: true,
			Meta: SearchMeta{
				ExecutionTimeMs: time.Since(start).Milliseconds(),
				Filters:         query.Filters,
			},
		}, nil
	}

	embedCtx, cancel := svc.timeout(ctx)
	defer cancel()

	vecs, err := svc.embedder.Embed(embedCtx, []string{query.Query})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	queryCtx, cancel := svc.timeout(ctx)
	defer cancel()

	matches, err := svc.index.Query(queryCtx, vecs[0], *query.Limit, query.filter())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexQueryFailed, err)
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		if m.Score < *query.MinScore {
			continue
		}

		results = append(results, MatchToResult(m, svc.verifier.Annotate(m.Record)))
	}

	// Cache writes happen only on fully successful queries; a canceled
	// query leaves the cache untouched. The entry gets its own copy so a
	// caller mutating the response cannot corrupt it.
	cached := make([]SearchResult, len(results))
	copy(cached, results)
	svc.cache.Put(fingerprint, cached)

	return &SearchResponse{
		Results:   results,
		Count:     len(results),
		FromCache: false,
		Meta: SearchMeta{
			ExecutionTimeMs: time.Since(start).Milliseconds(),
			Filters:         query.Filters,
		},
	}, nil
}

func (svc *service) ListBylaws(ctx context.Context) ([]registry.BylawRecord, error) {
	return svc.registry.Bylaws(), nil
}
