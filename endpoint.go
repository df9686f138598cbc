package bylawsearch

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"
)

type EndpointSet struct {
	Search         endpoint.Endpoint
	IngestDocument endpoint.Endpoint
	ListBylaws     endpoint.Endpoint
}

type SearchRequest = SearchQuery

func SearchEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(SearchRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Search(ctx, req)
	}
}

type IngestDocumentRequest = Document

func IngestDocumentEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(IngestDocumentRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		result, err := svc.IngestDocument(ctx, req)
		if err != nil {
			return nil, err
		}

		return result, nil
	}
}

func ListBylawsEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return svc.ListBylaws(ctx)
	}
}
