package nats

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go"

	"github.com/civicgrid/bylawsearch"
	"github.com/civicgrid/bylawsearch/registry"
)

// MakeEndpoints builds client-side endpoints that call a remote bylawsearch
// instance over NATS; pair it with ProxyMiddleware for a Service view.
func MakeEndpoints(nc *nats.Conn, prefix string) *bylawsearch.EndpointSet {
	return &bylawsearch.EndpointSet{
		Search:         SearchEndpoint(nc, prefix+".search"),
		IngestDocument: IngestDocumentEndpoint(nc, prefix+".ingest_document"),
		ListBylaws:     ListBylawsEndpoint(nc, prefix+".list_bylaws"),
	}
}

func SearchEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(bylawsearch.SearchRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		resp, err := nc.Request(topic, data, nats.DefaultTimeout)
		if err != nil {
			return nil, err
		}

		var response bylawsearch.SearchResponse
		if err := json.Unmarshal(resp.Data, &response); err != nil {
			return nil, err
		}

		return &response, nil
	}
}

func IngestDocumentEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(bylawsearch.IngestDocumentRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		resp, err := nc.Request(topic, data, nats.DefaultTimeout)
		if err != nil {
			return nil, err
		}

		var result bylawsearch.DocumentResult
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return nil, err
		}

		return result, nil
	}
}

func ListBylawsEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		resp, err := nc.Request(topic, nil, nats.DefaultTimeout)
		if err != nil {
			return nil, err
		}

		var bylaws []registry.BylawRecord
		if err := json.Unmarshal(resp.Data, &bylaws); err != nil {
			return nil, err
		}

		return bylaws, nil
	}
}
