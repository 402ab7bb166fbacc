package api

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var narrativePolicy = bluemonday.UGCPolicy()

// sanitizeNarrative strips unsafe tags and attributes from LLM output before
// it is persisted or served.
func sanitizeNarrative(text string) string {
	return strings.TrimSpace(narrativePolicy.Sanitize(text))
}

// narrativeExcerpt reduces a narrative to a short plain-text preview for
// list views, dropping any markup.
func narrativeExcerpt(narrative string, maxLen int) string {
	text := narrative
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(narrative)); err == nil {
		text = doc.Text()
	}
	text = strings.Join(strings.Fields(text), " ")

	if len(text) <= maxLen {
		return text
	}
	if maxLen > 3 {
		return text[:maxLen-3] + "..."
	}
	return text[:maxLen]
}
