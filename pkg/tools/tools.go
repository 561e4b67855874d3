package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mikeboe/research-mcp/pkg/research"
)

// URLList accepts either a single URL string or an array of URL strings.
type URLList []string

func (l *URLList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = URLList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.New("'urls' must be provided as a string or an array of strings")
	}
	*l = many
	return nil
}

type AnalyzeURLsArgs struct {
	URLs            URLList `json:"urls" description:"One URL string or an array of URLs (max 20)"`
	Instruction     string  `json:"instruction,omitempty" description:"Optional instruction or task description"`
	Model           string  `json:"model,omitempty" description:"Gemini model id (e.g., gemini-2.5-flash)"`
	UseGoogleSearch bool    `json:"use_google_search,omitempty" description:"Enable grounding with Google Search alongside URL context"`
}

type WebSearchArgs struct {
	Query       string `json:"query" description:"The search query"`
	Instruction string `json:"instruction,omitempty" description:"Optional instruction for the answer"`
	Model       string `json:"model,omitempty" description:"Gemini model id"`
}

type ResearchArgs struct {
	URLs          URLList `json:"urls,omitempty" description:"Scrape these URLs directly instead of researching"`
	Query         string  `json:"query,omitempty" description:"The research question"`
	Instruction   string  `json:"instruction,omitempty" description:"Optional instruction for retrieval"`
	Model         string  `json:"model,omitempty" description:"Gemini model id"`
	MaxIterations *int    `json:"max_iterations,omitempty" description:"Research rounds, clamped to 1-5"`
}

// ToolResp is the text returned by every tool.
type ToolResp struct {
	Text string `json:"text"`
}

// Toolset implements analyze_urls, web_search and research_or_scrape on top
// of the research engine. Every input is validated before any stage runs.
type Toolset struct {
	Engine  *research.Engine
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewToolset(engine *research.Engine, timeout time.Duration) *Toolset {
	return &Toolset{Engine: engine, Timeout: timeout, Logger: slog.Default()}
}

func (t *Toolset) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.Timeout)
}

func (t *Toolset) AnalyzeURLs(ctx context.Context, args AnalyzeURLsArgs) (ToolResp, error) {
	urls, err := research.ValidateURLs(args.URLs)
	if err != nil {
		return ToolResp{}, err
	}
	t.Logger.Info("Analyze URLs", "urls", len(urls), "use_google_search", args.UseGoogleSearch)

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	out, err := t.Engine.Retrieval.Retrieve(ctx, research.RetrievalInput{
		URLs:                urls,
		Instruction:         args.Instruction,
		Model:               args.Model,
		AllowSearchFallback: args.UseGoogleSearch,
	})
	if err != nil {
		return ToolResp{}, err
	}
	return ToolResp{Text: research.FormatRetrieval(out)}, nil
}

func (t *Toolset) WebSearch(ctx context.Context, args WebSearchArgs) (ToolResp, error) {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return ToolResp{}, research.NewValidationError("query", "'query' must be a non-empty string")
	}
	t.Logger.Info("Web search", "query", query)

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	out, err := t.Engine.Search.Search(ctx, research.SearchInput{
		Query:       query,
		Instruction: args.Instruction,
		Model:       args.Model,
	})
	if err != nil {
		return ToolResp{}, err
	}
	return ToolResp{Text: research.FormatSearch(out)}, nil
}

// ResearchOrScrape scrapes the given URLs in one retrieval call without search,
// or runs the full research loop when only a query is given.
func (t *Toolset) ResearchOrScrape(ctx context.Context, args ResearchArgs) (ToolResp, error) {
	if len(args.URLs) > 0 {
		return t.AnalyzeURLs(ctx, AnalyzeURLsArgs{
			URLs:        args.URLs,
			Instruction: args.Instruction,
			Model:       args.Model,
		})
	}

	report, err := t.Research(ctx, args)
	if err != nil {
		return ToolResp{}, err
	}
	return ToolResp{Text: report.String()}, nil
}

// Research validates args and runs the research loop.
func (t *Toolset) Research(ctx context.Context, args ResearchArgs) (*research.Report, error) {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return nil, research.NewValidationError("query", "either 'urls' or 'query' must be provided")
	}

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	return t.Engine.Run(ctx, research.RunInput{
		Query:         query,
		Instruction:   args.Instruction,
		Model:         args.Model,
		MaxIterations: args.MaxIterations,
	})
}
