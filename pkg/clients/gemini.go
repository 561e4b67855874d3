package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/mikeboe/research-mcp/pkg/config"
	"github.com/mikeboe/research-mcp/pkg/research"
)

// DefaultModel is used when neither the request nor the config names one.
const DefaultModel = "gemini-2.5-flash"

// Gemini is the research.Generator backed by the Gemini API. Search maps to
// the google_search tool and retrieval to url_context.
type Gemini struct {
	client       *genai.Client
	defaultModel string
	Logger       *slog.Logger
}

// NewGemini builds the client from cfg. Without an API key the client is
// still returned; every Generate call then fails with a ConfigurationError.
func NewGemini(ctx context.Context, cfg *config.Config) (*Gemini, error) {
	g := &Gemini{defaultModel: cfg.DefaultModel, Logger: slog.Default()}
	if g.defaultModel == "" {
		g.defaultModel = DefaultModel
	}
	if cfg.GoogleAPIKey == "" {
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GoogleAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *Gemini) Generate(ctx context.Context, req research.GenerateRequest) (*research.Generation, error) {
	if g.client == nil {
		return nil, &research.ConfigurationError{Reason: "GOOGLE_API_KEY is not set"}
	}
	model := req.Model
	if model == "" {
		model = g.defaultModel
	}

	g.Logger.Debug("Calling Gemini", "model", model, "capabilities", req.Capabilities, "json", req.JSONOutput)

	resp, err := g.client.Models.GenerateContent(ctx, model, []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}, generateConfig(req))
	if err != nil {
		return nil, translateError(err)
	}
	return toGeneration(resp), nil
}

func generateConfig(req research.GenerateRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.Has(research.CapabilityRetrieval) {
		cfg.Tools = append(cfg.Tools, &genai.Tool{URLContext: &genai.URLContext{}})
	}
	if req.Has(research.CapabilitySearch) {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	if req.JSONOutput {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

// toGeneration flattens the first candidate and its grounding and url-context
// metadata.
func toGeneration(resp *genai.GenerateContentResponse) *research.Generation {
	out := &research.Generation{}
	if raw, err := json.MarshalIndent(resp, "", "  "); err == nil {
		out.Raw = string(raw)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return out
	}
	cand := resp.Candidates[0]

	if cand.Content != nil {
		var texts []string
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought || part.Text == "" {
				continue
			}
			texts = append(texts, part.Text)
		}
		out.Text = strings.Join(texts, "\n")
	}

	if gm := cand.GroundingMetadata; gm != nil {
		meta := &research.SearchMetadata{Queries: gm.WebSearchQueries}
		for _, chunk := range gm.GroundingChunks {
			if chunk == nil || chunk.Web == nil {
				continue
			}
			meta.Citations = append(meta.Citations, research.Citation{Title: chunk.Web.Title, URI: chunk.Web.URI})
		}
		out.Search = meta
	}

	if um := cand.URLContextMetadata; um != nil {
		for _, m := range um.URLMetadata {
			if m == nil {
				continue
			}
			out.Retrieval = append(out.Retrieval, research.URLMetadata{
				URL:    m.RetrievedURL,
				Status: string(m.URLRetrievalStatus),
			})
		}
	}
	return out
}

// translateError turns a non-success API response into an UpstreamError whose
// body is the decoded error payload.
func translateError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return upstreamFrom(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return upstreamFrom(*apiErrPtr)
	}
	return fmt.Errorf("gemini request failed: %w", err)
}

func upstreamFrom(apiErr genai.APIError) error {
	body, err := json.Marshal(map[string]any{"error": apiErr})
	if err != nil {
		body = []byte(apiErr.Message)
	}
	return &research.UpstreamError{Status: apiErr.Code, Body: string(body)}
}
