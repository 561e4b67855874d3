package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// MaxURLs is the largest URL set a single retrieval request may carry.
const MaxURLs = 20

const defaultRetrievalInstruction = "Analyze these URLs and provide a concise, well-structured summary, key facts, and citations"

// RetrievalInput is the request to RetrievalStage.
type RetrievalInput struct {
	URLs                []string
	Instruction         string
	Model               string
	AllowSearchFallback bool
}

// RetrievalStage fetches and synthesizes the content of a fixed URL set.
type RetrievalStage struct {
	Generator Generator
	Logger    *slog.Logger
}

func NewRetrievalStage(gen Generator, logger *slog.Logger) *RetrievalStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalStage{Generator: gen, Logger: logger}
}

// ValidateURLs checks the 1..MaxURLs constraint and rejects blank entries.
func ValidateURLs(urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, NewValidationError("urls", "'urls' must be provided as a string or a non-empty array")
	}
	if len(urls) > MaxURLs {
		return nil, &ValidationError{Field: "urls", Message: fmt.Sprintf("Maximum of %d URLs supported", MaxURLs)}
	}
	cleaned := make([]string, 0, len(urls))
	for i, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			return nil, NewValidationError("urls", "entry %d is empty", i)
		}
		cleaned = append(cleaned, u)
	}
	return cleaned, nil
}

func (s *RetrievalStage) Retrieve(ctx context.Context, in RetrievalInput) (*RetrievalOutcome, error) {
	urls, err := ValidateURLs(in.URLs)
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Starting retrieval phase", "urls", len(urls), "search_fallback", in.AllowSearchFallback)

	capabilities := []Capability{CapabilityRetrieval}
	if in.AllowSearchFallback {
		capabilities = append(capabilities, CapabilitySearch)
	}

	gen, err := s.Generator.Generate(ctx, GenerateRequest{
		Model:        in.Model,
		Prompt:       buildRetrievalPrompt(urls, in.Instruction, in.AllowSearchFallback),
		Capabilities: capabilities,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	outcome := &RetrievalOutcome{
		Text:    gen.Text,
		Raw:     gen.Raw,
		Sources: make([]RetrievedSource, 0, len(gen.Retrieval)),
	}
	// Every attempted URL is recorded, whatever its retrieval status.
	for _, m := range gen.Retrieval {
		outcome.Sources = append(outcome.Sources, RetrievedSource{URL: m.URL, Status: m.Status})
	}

	s.Logger.Info("Retrieval complete", "requested", len(urls), "attempted", len(outcome.Sources), "text_len", len(outcome.Text))
	return outcome, nil
}

func buildRetrievalPrompt(urls []string, instruction string, allowSearch bool) string {
	var sb strings.Builder
	if instruction != "" {
		sb.WriteString(instruction)
		sb.WriteString("\n\nAnalyze these URLs:\n")
	} else {
		sb.WriteString(defaultRetrievalInstruction)
		sb.WriteString(":\n")
	}
	sb.WriteString(strings.Join(urls, "\n"))
	sb.WriteString("\n\nOnly retrieve the URLs listed above; do not fetch any other page.")
	if allowSearch {
		sb.WriteString(" If a URL cannot be retrieved you may use Google Search to fill the gap.")
	}
	return sb.String()
}
