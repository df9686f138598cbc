package nats

import (
	"github.com/nats-io/nats.go/micro"

	"github.com/civicgrid/bylawsearch"
)

func AddEndpoints(group micro.Group, endpoints bylawsearch.EndpointSet) {
	group.AddEndpoint("search", SearchHandler(endpoints.Search))
	group.AddEndpoint("ingest_document", IngestDocumentHandler(endpoints.IngestDocument))
	group.AddEndpoint("list_bylaws", ListBylawsHandler(endpoints.ListBylaws))
}
