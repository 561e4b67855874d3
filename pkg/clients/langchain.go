package clients

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/mikeboe/research-mcp/pkg/config"
	"github.com/mikeboe/research-mcp/pkg/research"
)

// LangChain is a research.Generator for plain reasoning calls. It backs the
// coverage evaluator when EVALUATOR_BACKEND=langchain and refuses any request
// that needs provider-side search or retrieval.
type LangChain struct {
	LLM    llms.Model
	Logger *slog.Logger
}

func NewLangChain(ctx context.Context, cfg *config.Config) (*LangChain, error) {
	l := &LangChain{Logger: slog.Default()}
	if cfg.GoogleAPIKey == "" {
		return l, nil
	}

	model := cfg.EvaluatorModel
	if model == "" {
		model = cfg.DefaultModel
	}
	if model == "" {
		model = DefaultModel
	}

	// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models
	llm, err := googleai.New(ctx, googleai.WithAPIKey(cfg.GoogleAPIKey), googleai.WithDefaultModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to init LLM: %w", err)
	}
	l.LLM = llm
	return l, nil
}

func (l *LangChain) Generate(ctx context.Context, req research.GenerateRequest) (*research.Generation, error) {
	if l.LLM == nil {
		return nil, &research.ConfigurationError{Reason: "GOOGLE_API_KEY is not set"}
	}
	if len(req.Capabilities) > 0 {
		return nil, &research.ConfigurationError{
			Reason: fmt.Sprintf("langchain backend cannot serve capabilities %v", req.Capabilities),
		}
	}

	var opts []llms.CallOption
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.JSONOutput {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := l.LLM.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt),
	}, opts...)
	if err != nil {
		// langchaingo does not surface the provider status code.
		return nil, &research.UpstreamError{Status: http.StatusBadGateway, Body: err.Error()}
	}
	if len(resp.Choices) == 0 {
		l.Logger.Warn("LLM returned no choices")
		return &research.Generation{}, nil
	}
	return &research.Generation{Text: resp.Choices[0].Content}, nil
}
