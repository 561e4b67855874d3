package research

import (
	"fmt"
	"strings"
)

// FormatReport appends a deduplicated "Sources:" trailer to summary. When the
// summary is empty only the trailer is returned.
func FormatReport(summary string, sources []string) string {
	var sb strings.Builder
	summary = strings.TrimSpace(summary)
	if summary != "" {
		sb.WriteString(summary)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Sources:")
	unique := dedupe(sources)
	if len(unique) == 0 {
		sb.WriteString("\n(none)")
	}
	for _, s := range unique {
		sb.WriteString("\n- ")
		sb.WriteString(s)
	}
	return sb.String()
}

// FormatRetrieval renders a retrieval outcome the way analyze_urls returns it.
// Without any text the raw provider payload is returned instead.
func FormatRetrieval(o *RetrievalOutcome) string {
	if o.Text == "" {
		return o.Raw
	}
	if len(o.Sources) == 0 {
		return o.Text
	}
	var sb strings.Builder
	sb.WriteString(o.Text)
	sb.WriteString("\n\nSources (URL Context):")
	for _, s := range o.Sources {
		u := s.URL
		if u == "" {
			u = "(unknown)"
		}
		sb.WriteString(fmt.Sprintf("\n- %s [%s]", u, s.Status))
	}
	return sb.String()
}

// FormatSearch renders a search outcome the way web_search returns it.
func FormatSearch(o *SearchOutcome) string {
	var sb strings.Builder
	sb.WriteString(o.Text)
	if len(o.Queries) > 0 {
		sb.WriteString("\n\nSearch Queries:")
		for _, q := range o.Queries {
			sb.WriteString("\n- ")
			sb.WriteString(q)
		}
	}
	if len(o.Citations) > 0 {
		sb.WriteString("\n\nSources (Google Search):")
		seen := make(map[string]bool)
		for _, c := range o.Citations {
			if c.URI == "" || seen[c.URI] {
				continue
			}
			seen[c.URI] = true
			if c.Title != "" {
				sb.WriteString(fmt.Sprintf("\n- %s: %s", c.Title, c.URI))
			} else {
				sb.WriteString(fmt.Sprintf("\n- %s", c.URI))
			}
		}
	}
	return sb.String()
}
