package http

import (
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/civicgrid/bylawsearch"

	mcpE "github.com/civicgrid/bylawsearch/mcp"
)

func AddRouters(r *gin.Engine, endpoints bylawsearch.EndpointSet) {
	// RESTful API routes
	api := r.Group("/api")
	{
		api.POST("/search", SearchHandler(endpoints.Search))
		api.POST("/documents", IngestDocumentHandler(endpoints.IngestDocument))
		api.GET("/bylaws", ListBylawsHandler(endpoints.ListBylaws))
	}
}

func AddStreamableRouters(r *gin.Engine, endpoints map[mcp.MCPMethod]mcpE.MCPEndpoint) {
	mcp := r.Group("/mcp")
	{
		mcp.POST("/", MCPStreamableHandler(endpoints))
	}
}
