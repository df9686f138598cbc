// Package mcp exposes the bylaw search service over the Model Context
// Protocol, so LLM chat frontends can call it as a tool.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/civicgrid/bylawsearch"
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      mcp.RequestId   `json:"id"`
	Method  mcp.MCPMethod   `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func errorResponse(id any, code int, message string) mcp.JSONRPCError {
	return mcp.JSONRPCError{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      mcp.NewRequestId(id),
		Error: struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    any    `json:"data,omitempty"`
		}{
			Code:    code,
			Message: message,
		},
	}
}

type MCPEndpoint func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage

const MCPSERVER_INSTRUCTIONS string = `BylawSearch serves semantic search over municipal bylaw documents:

1. **Semantic Search**: Find bylaw passages using natural language queries
2. **Filtering**: Restrict results by bylaw number, category, or date range
3. **Citation Verification**: Results are checked against a canonical registry of human-verified bylaws

Available operations:
- tools/list: Describe the search tool
- tools/call: Run search_bylaws with a query and optional filters

Each result carries its bylaw number, section, similarity score, verification status, and official URL.`

const SearchToolName = "search_bylaws"

func searchTool() mcp.Tool {
	return mcp.NewTool(SearchToolName,
		mcp.WithDescription("Semantic search over municipal bylaw text. Returns ranked passages with bylaw number, section, similarity score, and citation verification status."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language search query (2-500 characters)"),
		),
		mcp.WithString("bylaw_number",
			mcp.Description("Restrict results to one bylaw number"),
		),
		mcp.WithString("category",
			mcp.Description("Restrict results to a category (zoning, building, traffic, utilities, finance, parks, governance, licensing)"),
		),
		mcp.WithString("date_from",
			mcp.Description("Only bylaws consolidated on or after this ISO date"),
		),
		mcp.WithString("date_to",
			mcp.Description("Only bylaws consolidated on or before this ISO date"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (1-20, default 5)"),
		),
		mcp.WithNumber("min_score",
			mcp.Description("Minimum similarity score (0-1, default 0.5)"),
		),
	)
}

func InitializeEndpoint(svc bylawsearch.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.InitializeParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		protocolVersion := mcp.LATEST_PROTOCOL_VERSION
		if clientVersion := params.ProtocolVersion; clientVersion != "" {
			if slices.Contains(mcp.ValidProtocolVersions, clientVersion) {
				protocolVersion = clientVersion
			}
		}

		result := &mcp.InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: mcp.ServerCapabilities{
				Tools: &struct {
					ListChanged bool `json:"listChanged,omitempty"`
				}{},
			},
			ServerInfo: mcp.Implementation{
				Name:    "bylawsearch",
				Version: "1.0.0",
			},
			Instructions: MCPSERVER_INSTRUCTIONS,
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func PingEndpoint(svc bylawsearch.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  struct{}{}, // empty response
		}
	}
}

func ListToolsEndpoint(svc bylawsearch.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		result := &mcp.ListToolsResult{
			Tools: []mcp.Tool{searchTool()},
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

// isValidationError separates caller mistakes from internal failures, the
// same split the HTTP transport maps to 400 vs 500.
func isValidationError(err error) bool {
	return errors.Is(err, bylawsearch.ErrQueryTooShort) ||
		errors.Is(err, bylawsearch.ErrQueryTooLong) ||
		errors.Is(err, bylawsearch.ErrInvalidLimit) ||
		errors.Is(err, bylawsearch.ErrInvalidMinScore)
}

type searchArguments struct {
	Query       string   `json:"query"`
	BylawNumber string   `json:"bylaw_number,omitempty"`
	Category    string   `json:"category,omitempty"`
	DateFrom    string   `json:"date_from,omitempty"`
	DateTo      string   `json:"date_to,omitempty"`
	Limit       *int     `json:"limit,omitempty"`
	MinScore    *float32 `json:"min_score,omitempty"`
}

func CallToolEndpoint(svc bylawsearch.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.CallToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		if params.Name != SearchToolName {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, "unknown tool: "+params.Name)
		}

		bs, err := json.Marshal(params.Arguments)
		if err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		var args searchArguments
		if err := json.Unmarshal(bs, &args); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		query := bylawsearch.SearchQuery{
			Query:    args.Query,
			Limit:    args.Limit,
			MinScore: args.MinScore,
		}

		if args.BylawNumber != "" || args.Category != "" || args.DateFrom != "" || args.DateTo != "" {
			query.Filters = &bylawsearch.SearchFilters{
				BylawNumber: args.BylawNumber,
				Category:    args.Category,
				DateFrom:    args.DateFrom,
				DateTo:      args.DateTo,
			}
		}

		resp, err := svc.Search(ctx, query)
		if err != nil {
			if isValidationError(err) {
				return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
			}

			return errorResponse(req.ID, mcp.INTERNAL_ERROR, err.Error())
		}

		payload, err := json.Marshal(resp)
		if err != nil {
			return errorResponse(req.ID, mcp.INTERNAL_ERROR, err.Error())
		}

		result := &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(string(payload)),
			},
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}
