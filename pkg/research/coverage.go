package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// EvaluationInput is the request to CoverageEvaluator.
type EvaluationInput struct {
	Query          string
	CurrentSummary string
	Model          string
}

// Judgment is the decoded evaluator response: either Parsed or Malformed.
type Judgment interface {
	Verdict() CoverageVerdict
}

// Parsed is a judgment that passed schema validation.
type Parsed struct {
	Value CoverageVerdict
}

func (p Parsed) Verdict() CoverageVerdict { return p.Value }

// Malformed is a judgment that could not be decoded. It stands in for an
// insufficient verdict with no direction.
type Malformed struct {
	Raw    string
	Reason string
}

func (Malformed) Verdict() CoverageVerdict {
	return CoverageVerdict{IsSufficient: false, MissingPoints: []string{}, FollowUpQueries: []string{}}
}

// CoverageSchema describes the only response shape the evaluator accepts.
func CoverageSchema() *jsonschema.Schema {
	stringList := func(desc string) *jsonschema.Schema {
		return &jsonschema.Schema{
			Type:        "array",
			Description: desc,
			Items:       &jsonschema.Schema{Type: "string"},
		}
	}
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"isSufficient": {
				Type:        "boolean",
				Description: "true when the summary fully answers the query",
			},
			"missingPoints":   stringList("aspects of the query the summary does not cover"),
			"followUpQueries": stringList("web search queries that would fill the gaps, best first"),
		},
		Required: []string{"isSufficient", "missingPoints", "followUpQueries"},
	}
}

var resolveCoverageSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	return CoverageSchema().Resolve(&jsonschema.ResolveOptions{})
})

// CoverageEvaluator judges whether an accumulated summary answers a query.
type CoverageEvaluator struct {
	Generator Generator
	Logger    *slog.Logger
}

func NewCoverageEvaluator(gen Generator, logger *slog.Logger) *CoverageEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CoverageEvaluator{Generator: gen, Logger: logger}
}

// Evaluate issues a capability-free reasoning call. Transport errors are
// returned; an undecodable answer is reported as Malformed, never as an error.
func (e *CoverageEvaluator) Evaluate(ctx context.Context, in EvaluationInput) (Judgment, error) {
	e.Logger.Info("Starting evaluation phase", "query", in.Query, "summary_len", len(in.CurrentSummary))

	gen, err := e.Generator.Generate(ctx, GenerateRequest{
		Model:      in.Model,
		Prompt:     buildEvaluationPrompt(in.Query, in.CurrentSummary),
		JSONOutput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	judgment := DecodeJudgment(gen.Text)
	if m, ok := judgment.(Malformed); ok {
		e.Logger.Warn("Evaluator returned malformed judgment", "reason", m.Reason)
	}
	return judgment, nil
}

// DecodeJudgment validates text against CoverageSchema and decodes it.
func DecodeJudgment(text string) Judgment {
	verdict, err := decodeVerdict(text)
	if err != nil {
		return Malformed{Raw: text, Reason: err.Error()}
	}
	return Parsed{Value: verdict}
}

func decodeVerdict(text string) (CoverageVerdict, error) {
	body := stripCodeFence(text)
	if body == "" {
		return CoverageVerdict{}, errors.New("empty response")
	}

	var instance any
	if err := json.Unmarshal([]byte(body), &instance); err != nil {
		return CoverageVerdict{}, fmt.Errorf("json parse error: %w", err)
	}
	if _, ok := instance.(map[string]any); !ok {
		return CoverageVerdict{}, errors.New("response is not a JSON object")
	}

	resolved, err := resolveCoverageSchema()
	if err != nil {
		return CoverageVerdict{}, fmt.Errorf("resolve schema: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return CoverageVerdict{}, fmt.Errorf("schema validation failed: %w", err)
	}

	var verdict CoverageVerdict
	if err := json.Unmarshal([]byte(body), &verdict); err != nil {
		return CoverageVerdict{}, fmt.Errorf("decode verdict: %w", err)
	}
	return verdict, nil
}

// stripCodeFence unwraps a response that is entirely a ``` or ```json block.
func stripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return t
	}
	t = strings.TrimSuffix(t[3:], "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 && !strings.ContainsAny(t[:nl], "{[") {
		t = t[nl+1:]
	}
	return strings.TrimSpace(t)
}

func buildEvaluationPrompt(query, summary string) string {
	schema, _ := json.Marshal(CoverageSchema())
	if strings.TrimSpace(summary) == "" {
		summary = "(nothing gathered yet)"
	}
	return fmt.Sprintf(`You are a research reviewer.
Decide whether the summary below answers the research query completely.
If it does not, list what is missing and propose follow-up web search queries that would fill the gaps.

Return the JSON object directly without any formatting or additional text. It must match this schema:
%s

Research query: %s

Summary:
%s`, schema, query, summary)
}
