package clients

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"

	"github.com/mikeboe/research-mcp/pkg/config"
	"github.com/mikeboe/research-mcp/pkg/research"
)

func TestGeminiWithoutKeyFailsWithConfigurationError(t *testing.T) {
	g, err := NewGemini(context.Background(), &config.Config{})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), research.GenerateRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, research.IsConfigurationError(err))
	assert.Equal(t, "GOOGLE_API_KEY is not set", err.Error())
}

func TestGenerateConfigTools(t *testing.T) {
	cfg := generateConfig(research.GenerateRequest{
		Capabilities: []research.Capability{research.CapabilitySearch, research.CapabilityRetrieval},
	})
	require.Len(t, cfg.Tools, 2)
	assert.NotNil(t, cfg.Tools[0].URLContext)
	assert.NotNil(t, cfg.Tools[1].GoogleSearch)
	assert.Empty(t, cfg.ResponseMIMEType)

	cfg = generateConfig(research.GenerateRequest{JSONOutput: true})
	assert.Empty(t, cfg.Tools)
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
}

func TestToGeneration(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "first"},
				{Text: "second"},
			}},
			GroundingMetadata: &genai.GroundingMetadata{
				WebSearchQueries: []string{"climate policy"},
				GroundingChunks: []*genai.GroundingChunk{
					{Web: &genai.GroundingChunkWeb{Title: "A", URI: "https://example.com/a"}},
					{},
				},
			},
			URLContextMetadata: &genai.URLContextMetadata{
				URLMetadata: []*genai.URLMetadata{
					{RetrievedURL: "https://example.com/a", URLRetrievalStatus: genai.URLRetrievalStatusSuccess},
					{RetrievedURL: "https://example.com/b", URLRetrievalStatus: genai.URLRetrievalStatusError},
				},
			},
		}},
	}

	gen := toGeneration(resp)
	assert.Equal(t, "first\nsecond", gen.Text)
	require.NotNil(t, gen.Search)
	assert.Equal(t, []string{"climate policy"}, gen.Search.Queries)
	assert.Equal(t, []research.Citation{{Title: "A", URI: "https://example.com/a"}}, gen.Search.Citations)
	assert.Equal(t, []research.URLMetadata{
		{URL: "https://example.com/a", Status: "URL_RETRIEVAL_STATUS_SUCCESS"},
		{URL: "https://example.com/b", Status: "URL_RETRIEVAL_STATUS_ERROR"},
	}, gen.Retrieval)
	assert.NotEmpty(t, gen.Raw)
}

func TestToGenerationWithoutCandidatesKeepsRaw(t *testing.T) {
	gen := toGeneration(&genai.GenerateContentResponse{})
	assert.Empty(t, gen.Text)
	assert.Nil(t, gen.Search)
	assert.NotEmpty(t, gen.Raw)
}

func TestTranslateError(t *testing.T) {
	err := translateError(genai.APIError{Code: 429, Message: "Resource exhausted", Status: "RESOURCE_EXHAUSTED"})
	var upstream *research.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, 429, upstream.Status)
	assert.Contains(t, upstream.Body, "Resource exhausted")

	plain := translateError(errors.New("dial tcp: timeout"))
	assert.False(t, research.IsUpstreamError(plain))
	assert.Contains(t, plain.Error(), "dial tcp: timeout")
}

type fakeLLM struct {
	reply string
	err   error
	opts  llms.CallOptions
	text  string
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, o := range options {
		o(&f.opts)
	}
	if len(messages) > 0 && len(messages[0].Parts) > 0 {
		if tp, ok := messages[0].Parts[0].(llms.TextContent); ok {
			f.text = tp.Text
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestLangChainReasoningCall(t *testing.T) {
	llm := &fakeLLM{reply: `{"isSufficient": true}`}
	l := &LangChain{LLM: llm}

	gen, err := l.Generate(context.Background(), research.GenerateRequest{Prompt: "judge", Model: "m", JSONOutput: true})
	require.NoError(t, err)
	assert.Equal(t, `{"isSufficient": true}`, gen.Text)
	assert.True(t, llm.opts.JSONMode)
	assert.Equal(t, "m", llm.opts.Model)
	assert.Equal(t, "judge", llm.text)
}

func TestLangChainRejectsCapabilities(t *testing.T) {
	l := &LangChain{LLM: &fakeLLM{}}
	_, err := l.Generate(context.Background(), research.GenerateRequest{
		Capabilities: []research.Capability{research.CapabilitySearch},
	})
	assert.True(t, research.IsConfigurationError(err))
}

func TestLangChainErrorsAreUpstream(t *testing.T) {
	l := &LangChain{LLM: &fakeLLM{err: errors.New("503 unavailable")}}
	_, err := l.Generate(context.Background(), research.GenerateRequest{Prompt: "x"})
	assert.True(t, research.IsUpstreamError(err))

	_, err = (&LangChain{}).Generate(context.Background(), research.GenerateRequest{Prompt: "x"})
	assert.True(t, research.IsConfigurationError(err))
}
