package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const (
	MinIterations        = 1
	MaxIterations        = 5
	DefaultMaxIterations = 3

	// MaxRetrievalBatch caps the URLs handed to one retrieval call inside the
	// loop, however many new URLs a search round found.
	MaxRetrievalBatch = 10
)

// Config holds runtime configuration for the research loop.
type Config struct {
	// DefaultMaxIterations applies when a run does not ask for a bound.
	DefaultMaxIterations int
	// EvaluatorModel overrides the model used for coverage evaluation.
	EvaluatorModel string
}

// RunInput is the request to Engine.Run.
type RunInput struct {
	Query       string
	Instruction string
	Model       string
	// MaxIterations is nil when the caller did not ask for a bound.
	MaxIterations *int
}

// RunObserver is notified once per finished Run.
type RunObserver interface {
	ObserveRun(report *Report, err error)
}

// Engine runs the search → retrieve → evaluate loop.
type Engine struct {
	Config    Config
	Search    *SearchStage
	Retrieval *RetrievalStage
	Evaluator *CoverageEvaluator
	Logger    *slog.Logger
	Observer  RunObserver
}

// NewEngine wires all three stages to gen. Callers may replace Evaluator to
// judge coverage with a different backend.
func NewEngine(cfg Config, gen Generator) *Engine {
	logger := slog.Default()
	return &Engine{
		Config:    cfg,
		Search:    NewSearchStage(gen, logger),
		Retrieval: NewRetrievalStage(gen, logger),
		Evaluator: NewCoverageEvaluator(gen, logger),
		Logger:    logger,
	}
}

// SetLogger points the engine and its stages at logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	e.Logger = logger
	e.Search.Logger = logger
	e.Retrieval.Logger = logger
	e.Evaluator.Logger = logger
}

// ClampIterations resolves the effective iteration bound. A nil request
// selects def (or DefaultMaxIterations when def is unset); every value is
// clamped to [MinIterations, MaxIterations].
func ClampIterations(requested *int, def int) int {
	n := def
	if n == 0 {
		n = DefaultMaxIterations
	}
	if requested != nil {
		n = *requested
	}
	if n < MinIterations {
		return MinIterations
	}
	if n > MaxIterations {
		return MaxIterations
	}
	return n
}

// Iterations returns a pointer to n for RunInput.MaxIterations.
func Iterations(n int) *int { return &n }

func (e *Engine) Run(ctx context.Context, in RunInput) (report *Report, err error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, NewValidationError("query", "must not be empty")
	}
	if e.Observer != nil {
		defer func() { e.Observer.ObserveRun(report, err) }()
	}

	maxIterations := ClampIterations(in.MaxIterations, e.Config.DefaultMaxIterations)
	instruction := in.Instruction
	if strings.TrimSpace(instruction) == "" {
		instruction = defaultLoopInstruction(query)
	}
	evalModel := e.Config.EvaluatorModel
	if evalModel == "" {
		evalModel = in.Model
	}

	state := newResearchState(query)
	rounds := 0
	var stop StopReason

	e.Logger.Info("Starting research loop", "query", query, "max_iterations", maxIterations)

	for stop == "" {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("research aborted after %d rounds: %w", rounds, err)
		}
		rounds++
		e.Logger.Info("Starting iteration", "iteration", state.Iteration+1, "max", maxIterations, "query", state.WorkingQuery)

		// 1. Search
		found, err := e.Search.Search(ctx, SearchInput{Query: state.WorkingQuery, Model: in.Model})
		if err != nil {
			return nil, err
		}
		newURLs := state.admit(found.URLs)
		if len(newURLs) == 0 {
			e.Logger.Info("No new sources found, stopping", "seen", len(state.SeenURLs))
			stop = StopNoNewSources
			break
		}

		// 2. Retrieve
		batch := newURLs
		if len(batch) > MaxRetrievalBatch {
			e.Logger.Info("Capping retrieval batch", "found", len(batch), "cap", MaxRetrievalBatch)
			batch = batch[:MaxRetrievalBatch]
		}
		retrieved, err := e.Retrieval.Retrieve(ctx, RetrievalInput{
			URLs:        batch,
			Instruction: instruction,
			Model:       in.Model,
		})
		if err != nil {
			return nil, err
		}
		state.appendSummary(retrieved.Text)
		state.AllSources = append(state.AllSources, retrieved.URLs()...)

		// 3. Evaluate
		judgment, err := e.Evaluator.Evaluate(ctx, EvaluationInput{
			Query:          query,
			CurrentSummary: state.CombinedSummary,
			Model:          evalModel,
		})
		if err != nil {
			return nil, err
		}

		var verdict CoverageVerdict
		switch j := judgment.(type) {
		case Parsed:
			verdict = j.Value
		case Malformed:
			e.Logger.Warn("Continuing without evaluator guidance", "reason", j.Reason)
			verdict = j.Verdict()
		}

		if verdict.IsSufficient {
			e.Logger.Info("Research complete!", "rounds", rounds)
			stop = StopSufficient
			break
		}
		if next := firstQuery(verdict.FollowUpQueries); next != "" {
			e.Logger.Info("Adjusting focus", "follow_up", next, "missing", len(verdict.MissingPoints))
			state.WorkingQuery = next
		}
		state.Iteration++
		if state.Iteration >= maxIterations {
			e.Logger.Info("Iteration budget exhausted", "iterations", state.Iteration)
			stop = StopMaxIterations
		}
	}

	report = &Report{
		Query:      query,
		Summary:    state.CombinedSummary,
		Sources:    dedupe(state.AllSources),
		Rounds:     rounds,
		StopReason: stop,
	}
	e.Logger.Info("Research loop finished", "rounds", rounds, "stop_reason", stop, "sources", len(report.Sources))
	return report, nil
}

// --- State transitions ---

// admit returns the URLs not seen before, in order, and marks them seen.
func (s *ResearchState) admit(urls []string) []string {
	fresh := make([]string, 0, len(urls))
	for _, u := range urls {
		if s.SeenURLs[u] {
			continue
		}
		s.SeenURLs[u] = true
		fresh = append(fresh, u)
	}
	return fresh
}

// appendSummary appends text unchanged; whitespace-only text adds nothing.
func (s *ResearchState) appendSummary(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if s.CombinedSummary != "" {
		s.CombinedSummary += "\n\n"
	}
	s.CombinedSummary += text
}

func firstQuery(queries []string) string {
	for _, q := range queries {
		if q = strings.TrimSpace(q); q != "" {
			return q
		}
	}
	return ""
}

func defaultLoopInstruction(query string) string {
	return fmt.Sprintf("Extract the information from these pages that helps answer the research question %q. "+
		"Provide a concise, well-structured summary of the relevant facts and cite the URL each fact comes from.", query)
}
