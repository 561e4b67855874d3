package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// SearchInput is the request to SearchStage.
type SearchInput struct {
	Query       string
	Instruction string
	Model       string
}

// SearchStage grounds a query in live web search and collects cited URLs.
type SearchStage struct {
	Generator Generator
	Logger    *slog.Logger
}

func NewSearchStage(gen Generator, logger *slog.Logger) *SearchStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchStage{Generator: gen, Logger: logger}
}

func (s *SearchStage) Search(ctx context.Context, in SearchInput) (*SearchOutcome, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, NewValidationError("query", "must not be empty")
	}

	s.Logger.Info("Starting search phase", "query", query)

	gen, err := s.Generator.Generate(ctx, GenerateRequest{
		Model:        in.Model,
		Prompt:       buildSearchPrompt(query, in.Instruction),
		Capabilities: []Capability{CapabilitySearch},
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	outcome := &SearchOutcome{Text: gen.Text}
	if gen.Search != nil {
		outcome.Queries = gen.Search.Queries
		outcome.Citations = gen.Search.Citations
		raw := make([]string, 0, len(gen.Search.Citations))
		for _, c := range gen.Search.Citations {
			raw = append(raw, c.URI)
		}
		outcome.URLs = UniqueURLs(raw)
	}
	if outcome.URLs == nil {
		outcome.URLs = []string{}
	}

	s.Logger.Info("Search complete", "query", query, "urls", len(outcome.URLs), "queries", len(outcome.Queries))
	return outcome, nil
}

func buildSearchPrompt(query, instruction string) string {
	var sb strings.Builder
	if instruction != "" {
		sb.WriteString(instruction)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Use Google Search to answer the following query with up-to-date information. ")
	sb.WriteString("Ground every claim in the search results, retrieve the content of any URL you cite, ")
	sb.WriteString("and cite your sources.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(query)
	return sb.String()
}
