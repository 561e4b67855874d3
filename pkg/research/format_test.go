package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatReport(t *testing.T) {
	assert.Equal(t, "T1\n\nSources:\n- a\n- b", FormatReport("T1", []string{"a", "b", "a"}))
	assert.Equal(t, "Sources:\n- a", FormatReport("", []string{"a"}))
	assert.Equal(t, "Sources:\n(none)", FormatReport("  ", nil))
}

func TestFormatRetrieval(t *testing.T) {
	out := FormatRetrieval(&RetrievalOutcome{
		Text: "summary",
		Sources: []RetrievedSource{
			{URL: "https://example.com", Status: "URL_RETRIEVAL_STATUS_SUCCESS"},
			{URL: "", Status: ""},
		},
	})
	assert.Equal(t, "summary\n\nSources (URL Context):\n- https://example.com [URL_RETRIEVAL_STATUS_SUCCESS]\n- (unknown) []", out)

	assert.Equal(t, "plain", FormatRetrieval(&RetrievalOutcome{Text: "plain"}))
	assert.Equal(t, `{"candidates":[]}`, FormatRetrieval(&RetrievalOutcome{Raw: `{"candidates":[]}`}))
}

func TestFormatSearch(t *testing.T) {
	out := FormatSearch(&SearchOutcome{
		Text:    "answer",
		Queries: []string{"q1"},
		Citations: []Citation{
			{Title: "Site", URI: "https://a.example"},
			{Title: "Site dup", URI: "https://a.example"},
			{URI: "https://b.example"},
		},
	})
	assert.Equal(t, "answer\n\nSearch Queries:\n- q1\n\nSources (Google Search):\n- Site: https://a.example\n- https://b.example", out)
	assert.Equal(t, "bare", FormatSearch(&SearchOutcome{Text: "bare"}))
}
