package mcpserver

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/research-mcp/pkg/research"
	"github.com/mikeboe/research-mcp/pkg/tools"
)

type fixedGenerator struct {
	calls int
}

func (g *fixedGenerator) Generate(_ context.Context, req research.GenerateRequest) (*research.Generation, error) {
	g.calls++
	if req.Has(research.CapabilityRetrieval) {
		return &research.Generation{
			Text:      "retrieved",
			Retrieval: []research.URLMetadata{{URL: "https://example.com", Status: "URL_RETRIEVAL_STATUS_SUCCESS"}},
		}, nil
	}
	return &research.Generation{Text: "searched"}, nil
}

func connect(t *testing.T, gen research.Generator) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	ts := tools.NewToolset(research.NewEngine(research.Config{}, gen), time.Minute)
	server := New(ts)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestListTools(t *testing.T) {
	cs := connect(t, &fixedGenerator{})

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{ToolAnalyzeURLs, ToolWebSearch, ToolResearch}, names)
}

func TestAnalyzeURLsAcceptsSingleString(t *testing.T) {
	gen := &fixedGenerator{}
	cs := connect(t, gen)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      ToolAnalyzeURLs,
		Arguments: map[string]any{"urls": "https://example.com"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "retrieved\n\nSources (URL Context):\n- https://example.com [URL_RETRIEVAL_STATUS_SUCCESS]", textOf(t, res))
	assert.Equal(t, 1, gen.calls)
}

func TestResearchOrScrapeWithURLArray(t *testing.T) {
	gen := &fixedGenerator{}
	cs := connect(t, gen)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      ToolResearch,
		Arguments: map[string]any{"urls": []string{"https://example.com"}},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, textOf(t, res), "retrieved")
}

func TestInvalidArgumentsNeverReachGenerator(t *testing.T) {
	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"empty url array", ToolAnalyzeURLs, map[string]any{"urls": []string{}}},
		{"blank query", ToolWebSearch, map[string]any{"query": "   "}},
		{"neither urls nor query", ToolResearch, map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fixedGenerator{}
			cs := connect(t, gen)

			res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: tt.tool, Arguments: tt.args})
			if err == nil {
				require.NotNil(t, res)
				assert.True(t, res.IsError)
			}
			assert.Zero(t, gen.calls)
		})
	}
}

// endlessGenerator always finds a new source and never judges coverage sufficient.
type endlessGenerator struct {
	mu       sync.Mutex
	searches int
}

func (g *endlessGenerator) Generate(_ context.Context, req research.GenerateRequest) (*research.Generation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case req.JSONOutput:
		return &research.Generation{Text: `{"isSufficient": false, "missingPoints": ["more"], "followUpQueries": ["next"]}`}, nil
	case req.Has(research.CapabilityRetrieval):
		return &research.Generation{Text: "page"}, nil
	default:
		g.searches++
		u := fmt.Sprintf("https://example.com/%d", g.searches)
		return &research.Generation{Search: &research.SearchMetadata{Citations: []research.Citation{{URI: u}}}}, nil
	}
}

// errorText returns the failure message whether the SDK reports it as a
// protocol error or as a tool result flagged IsError.
func errorText(t *testing.T, res *mcp.CallToolResult, err error) string {
	t.Helper()
	if err != nil {
		return err.Error()
	}
	require.NotNil(t, res)
	require.True(t, res.IsError)
	return textOf(t, res)
}

func TestTooManyURLsReportsLimit(t *testing.T) {
	urls := make([]string, research.MaxURLs+1)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/%d", i)
	}

	for _, tool := range []string{ToolAnalyzeURLs, ToolResearch} {
		t.Run(tool, func(t *testing.T) {
			gen := &fixedGenerator{}
			cs := connect(t, gen)

			res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
				Name:      tool,
				Arguments: map[string]any{"urls": urls},
			})
			assert.Contains(t, errorText(t, res, err), "Maximum of 20 URLs supported")
			assert.Zero(t, gen.calls)
		})
	}
}

func TestMaxIterationsIsClamped(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		rounds    int
	}{
		{"above range", 9, research.MaxIterations},
		{"zero", 0, research.MinIterations},
		{"negative", -2, research.MinIterations},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &endlessGenerator{}
			cs := connect(t, gen)

			res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
				Name:      ToolResearch,
				Arguments: map[string]any{"query": "q", "max_iterations": tt.requested},
			})
			require.NoError(t, err)
			require.False(t, res.IsError, textOf(t, res))
			assert.Equal(t, tt.rounds, gen.searches)
		})
	}
}
