package research

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// scriptedGenerator replays canned responses per stage, in call order.
type scriptedGenerator struct {
	mu          sync.Mutex
	searches    []*Generation
	retrievals  []*Generation
	evaluations []string
	err         map[string]error

	requests []GenerateRequest
}

func kindOf(req GenerateRequest) string {
	switch {
	case req.JSONOutput:
		return "evaluate"
	case req.Has(CapabilityRetrieval):
		return "retrieve"
	case req.Has(CapabilitySearch):
		return "search"
	}
	return "unknown"
}

func (g *scriptedGenerator) Generate(_ context.Context, req GenerateRequest) (*Generation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)

	kind := kindOf(req)
	if err, ok := g.err[kind]; ok {
		return nil, err
	}
	switch kind {
	case "search":
		if len(g.searches) == 0 {
			return nil, errors.New("no scripted search response")
		}
		next := g.searches[0]
		g.searches = g.searches[1:]
		return next, nil
	case "retrieve":
		if len(g.retrievals) == 0 {
			return nil, errors.New("no scripted retrieval response")
		}
		next := g.retrievals[0]
		g.retrievals = g.retrievals[1:]
		return next, nil
	case "evaluate":
		if len(g.evaluations) == 0 {
			return nil, errors.New("no scripted evaluation response")
		}
		next := g.evaluations[0]
		g.evaluations = g.evaluations[1:]
		return &Generation{Text: next}, nil
	}
	return nil, fmt.Errorf("unexpected request kind %q", kind)
}

func (g *scriptedGenerator) requestsOf(kind string) []GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []GenerateRequest
	for _, r := range g.requests {
		if kindOf(r) == kind {
			out = append(out, r)
		}
	}
	return out
}

func searchResult(text string, urls ...string) *Generation {
	meta := &SearchMetadata{Queries: []string{text}}
	for _, u := range urls {
		meta.Citations = append(meta.Citations, Citation{Title: u, URI: u})
	}
	return &Generation{Text: text, Search: meta}
}

func retrievalResult(text string, urls ...string) *Generation {
	gen := &Generation{Text: text}
	for _, u := range urls {
		gen.Retrieval = append(gen.Retrieval, URLMetadata{URL: u, Status: "URL_RETRIEVAL_STATUS_SUCCESS"})
	}
	return gen
}

func verdictJSON(sufficient bool, followUps ...string) string {
	if followUps == nil {
		followUps = []string{}
	}
	q := "["
	for i, f := range followUps {
		if i > 0 {
			q += ","
		}
		q += fmt.Sprintf("%q", f)
	}
	q += "]"
	return fmt.Sprintf(`{"isSufficient": %t, "missingPoints": [], "followUpQueries": %s}`, sufficient, q)
}
