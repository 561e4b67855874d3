package research

import "context"

// Capability is a provider-side tool attached to a generation request.
type Capability string

const (
	CapabilitySearch    Capability = "search"
	CapabilityRetrieval Capability = "retrieval"
)

// GenerateRequest is a single prompt sent to the generation service.
type GenerateRequest struct {
	Model        string
	Prompt       string
	Capabilities []Capability
	// JSONOutput asks the provider for a bare JSON response.
	JSONOutput bool
}

// Has reports whether the request enables the given capability.
func (r GenerateRequest) Has(c Capability) bool {
	for _, have := range r.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Citation is a source the provider cited while grounding in search.
type Citation struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// SearchMetadata is the grounding record attached to a search-enabled response.
type SearchMetadata struct {
	Queries   []string   `json:"queries"`
	Citations []Citation `json:"citations"`
}

// URLMetadata records one URL the provider attempted to fetch.
type URLMetadata struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

// Generation is the raw output of one generation call.
type Generation struct {
	Text      string
	Search    *SearchMetadata
	Retrieval []URLMetadata
	// Raw is the provider payload serialized as JSON, used when Text is empty.
	Raw string
}

// Generator sends prompts to the generation service.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Generation, error)
}

// SearchOutcome is produced fresh by every SearchStage call.
type SearchOutcome struct {
	Text      string
	URLs      []string
	Queries   []string
	Citations []Citation
}

// RetrievedSource is a URL the provider reports it attempted, with its status.
type RetrievedSource struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

// RetrievalOutcome is produced fresh by every RetrievalStage call.
type RetrievalOutcome struct {
	Text    string
	Sources []RetrievedSource
	Raw     string
}

// URLs returns every source URL the provider reports as attempted, in
// provider order, whatever its retrieval status. URLs are normalized when
// they parse and kept verbatim otherwise.
func (o *RetrievalOutcome) URLs() []string {
	urls := make([]string, 0, len(o.Sources))
	for _, s := range o.Sources {
		if s.URL == "" {
			continue
		}
		if u, ok := NormalizeURL(s.URL); ok {
			urls = append(urls, u)
			continue
		}
		urls = append(urls, s.URL)
	}
	return urls
}

// CoverageVerdict is the judgment on whether a summary answers the query.
type CoverageVerdict struct {
	IsSufficient    bool     `json:"isSufficient"`
	MissingPoints   []string `json:"missingPoints"`
	FollowUpQueries []string `json:"followUpQueries"`
}

// ResearchState tracks one Engine.Run invocation. It is created at loop start
// and discarded when the loop returns.
type ResearchState struct {
	WorkingQuery    string
	SeenURLs        map[string]bool
	CombinedSummary string
	AllSources      []string
	Iteration       int
}

func newResearchState(query string) *ResearchState {
	return &ResearchState{
		WorkingQuery: query,
		SeenURLs:     make(map[string]bool),
		AllSources:   []string{},
	}
}

// StopReason explains why the loop reached DONE.
type StopReason string

const (
	StopSufficient    StopReason = "sufficient"
	StopNoNewSources  StopReason = "no_new_sources"
	StopMaxIterations StopReason = "max_iterations"
)

// Report is the outcome of a research loop.
type Report struct {
	Query      string     `json:"query"`
	Summary    string     `json:"summary"`
	Sources    []string   `json:"sources"`
	Rounds     int        `json:"rounds"`
	StopReason StopReason `json:"stop_reason"`
}

// String renders the summary followed by the sources trailer.
func (r *Report) String() string {
	return FormatReport(r.Summary, r.Sources)
}
