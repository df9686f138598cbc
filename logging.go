package bylawsearch

import (
	"context"

	"go.uber.org/zap"

	"github.com/civicgrid/bylawsearch/registry"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	log = log.With(
		zap.String("service", "bylawsearch"),
	)

	return func(next Service) Service {
		log.Info("service initialized")

		return &loggingMiddleware{
			log:  log,
			next: next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) Close() error {
	log := mw.log.With(
		zap.String("action", "close"),
	)

	err := mw.next.Close()
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("service closed")
	return nil
}

func (mw *loggingMiddleware) IngestDocument(ctx context.Context, doc Document) (DocumentResult, error) {
	log := mw.log.With(
		zap.String("action", "ingest_document"),
		zap.String("filename", doc.Filename),
	)

	result, err := mw.next.IngestDocument(ctx, doc)
	if err != nil {
		log.Error(err.Error())
		return result, err
	}

	log.Info("document ingested",
		zap.String("bylaw_number", result.BylawNumber),
		zap.Int("chunks", result.Chunks),
	)

	return result, nil
}

func (mw *loggingMiddleware) IngestDocuments(ctx context.Context, docs []Document) (*IngestReport, error) {
	log := mw.log.With(
		zap.String("action", "ingest_documents"),
		zap.Int("documents", len(docs)),
	)

	report, err := mw.next.IngestDocuments(ctx, docs)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("documents ingested",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)

	return report, nil
}

func (mw *loggingMiddleware) Search(ctx context.Context, query SearchQuery) (*SearchResponse, error) {
	log := mw.log.With(
		zap.String("action", "search"),
		zap.String("query", query.Query),
	)

	resp, err := mw.next.Search(ctx, query)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("search served",
		zap.Int("count", resp.Count),
		zap.Bool("from_cache", resp.FromCache),
		zap.Int64("execution_time_ms", resp.Meta.ExecutionTimeMs),
	)

	return resp, nil
}

func (mw *loggingMiddleware) ListBylaws(ctx context.Context) ([]registry.BylawRecord, error) {
	log := mw.log.With(
		zap.String("action", "list_bylaws"),
	)

	bylaws, err := mw.next.ListBylaws(ctx)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("bylaws listed", zap.Int("count", len(bylaws)))
	return bylaws, nil
}
