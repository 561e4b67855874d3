// Package mcpserver exposes the research tools over the Model Context Protocol.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mikeboe/research-mcp/pkg/research"
	"github.com/mikeboe/research-mcp/pkg/tools"
)

const (
	Name    = "research-mcp"
	Version = "1.0.0"
)

const (
	ToolAnalyzeURLs = "analyze_urls"
	ToolWebSearch   = "web_search"
	ToolResearch    = "research_or_scrape"
)

// New returns an MCP server with the three research tools registered.
func New(ts *tools.Toolset) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: Name, Version: Version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolAnalyzeURLs,
		Description: "Analyze one or more URLs with Gemini URL context. Optionally ground with Google Search.",
		InputSchema: analyzeURLsSchema(),
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args tools.AnalyzeURLsArgs) (*mcp.CallToolResult, any, error) {
		resp, err := ts.AnalyzeURLs(ctx, args)
		return textResult(ToolAnalyzeURLs, resp, err)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolWebSearch,
		Description: "Answer a query with Gemini grounded in Google Search and list the cited sources.",
		InputSchema: webSearchSchema(),
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args tools.WebSearchArgs) (*mcp.CallToolResult, any, error) {
		resp, err := ts.WebSearch(ctx, args)
		return textResult(ToolWebSearch, resp, err)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name: ToolResearch,
		Description: "Scrape the given URLs directly, or research a query iteratively: search, read the new sources, " +
			"check coverage and follow up until the answer is sufficient or the round limit is reached.",
		InputSchema: researchSchema(),
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args tools.ResearchArgs) (*mcp.CallToolResult, any, error) {
		resp, err := ts.ResearchOrScrape(ctx, args)
		return textResult(ToolResearch, resp, err)
	})

	return server
}

// ServeStdio serves the tools on stdin/stdout until ctx is done or the client
// disconnects.
func ServeStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler serves the tools over the streamable HTTP transport.
func HTTPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}

func textResult(tool string, resp tools.ToolResp, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		slog.Error("Tool call failed", "tool", tool, "error", err)
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: resp.Text}},
	}, nil, nil
}

// URL count and round limits are enforced by the toolset, not the schema.
func urlsSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Description: description,
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		},
	}
}

func optionalStrings(props map[string]*jsonschema.Schema) map[string]*jsonschema.Schema {
	props["instruction"] = &jsonschema.Schema{Type: "string", Description: "Optional instruction or task description"}
	props["model"] = &jsonschema.Schema{Type: "string", Description: "Gemini model id (e.g., gemini-2.5-flash)"}
	return props
}

func analyzeURLsSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: optionalStrings(map[string]*jsonschema.Schema{
			"urls": urlsSchema(fmt.Sprintf("One URL string or an array of 1-%d URLs", research.MaxURLs)),
			"use_google_search": {
				Type:        "boolean",
				Description: "Enable grounding with Google Search alongside URL context",
			},
		}),
		Required: []string{"urls"},
	}
}

func webSearchSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: optionalStrings(map[string]*jsonschema.Schema{
			"query": {Type: "string", Description: "The search query"},
		}),
		Required: []string{"query"},
	}
}

func researchSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: optionalStrings(map[string]*jsonschema.Schema{
			"urls":  urlsSchema(fmt.Sprintf("Scrape these URLs (1-%d) directly instead of researching", research.MaxURLs)),
			"query": {Type: "string", Description: "The research question"},
			"max_iterations": {
				Type:        "integer",
				Description: "Research rounds, clamped to 1-5 (default 3)",
			},
		}),
	}
}
