package bylawsearch

import (
	"context"
	"errors"

	"github.com/civicgrid/bylawsearch/registry"
)

// ProxyMiddleware backs the Service interface by a remote EndpointSet, so a
// client process (CLI, chat backend) talks to a bylawsearch instance over
// NATS through the same interface it would use in-process.
func ProxyMiddleware(endpoints *EndpointSet) ServiceMiddleware {
	return func(next Service) Service {
		return &proxyMiddleware{
			endpoints: endpoints,
		}
	}
}

type proxyMiddleware struct {
	endpoints *EndpointSet
}

func (mw *proxyMiddleware) Close() error {
	return errors.New("method not implemented")
}

func (mw *proxyMiddleware) IngestDocument(ctx context.Context, doc Document) (DocumentResult, error) {
	resp, err := mw.endpoints.IngestDocument(ctx, doc)
	if err != nil {
		return DocumentResult{}, err
	}

	result, ok := resp.(DocumentResult)
	if !ok {
		return DocumentResult{}, errors.New("invalid response type")
	}

	return result, nil
}

func (mw *proxyMiddleware) IngestDocuments(ctx context.Context, docs []Document) (*IngestReport, error) {
	report := &IngestReport{
		Documents: len(docs),
		Results:   make([]DocumentResult, len(docs)),
	}

	for i, doc := range docs {
		result, err := mw.IngestDocument(ctx, doc)
		if err != nil && result.Err == "" {
			result.Err = err.Error()
			result.Filename = doc.Filename
		}

		report.Results[i] = result

		if result.Err == "" {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	return report, nil
}

func (mw *proxyMiddleware) Search(ctx context.Context, query SearchQuery) (*SearchResponse, error) {
	resp, err := mw.endpoints.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	response, ok := resp.(*SearchResponse)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return response, nil
}

func (mw *proxyMiddleware) ListBylaws(ctx context.Context) ([]registry.BylawRecord, error) {
	resp, err := mw.endpoints.ListBylaws(ctx, nil)
	if err != nil {
		return nil, err
	}

	bylaws, ok := resp.([]registry.BylawRecord)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return bylaws, nil
}
