package api

import (
	"strings"
	"testing"
)

func TestSanitizeNarrative(t *testing.T) {
	in := `<p>Strong rental market.</p><script>alert("x")</script>`
	out := sanitizeNarrative(in)

	if strings.Contains(out, "script") || strings.Contains(out, "alert") {
		t.Errorf("script content survived sanitization: %q", out)
	}
	if !strings.Contains(out, "Strong rental market.") {
		t.Errorf("benign content lost: %q", out)
	}
}

func TestNarrativeExcerpt(t *testing.T) {
	in := "<h1>Overview</h1>\n<p>The   property  shows\nstrong fundamentals.</p>"
	if got := narrativeExcerpt(in, 280); got != "Overview The property shows strong fundamentals." {
		t.Errorf("unexpected excerpt: %q", got)
	}

	long := strings.Repeat("word ", 100)
	got := narrativeExcerpt(long, 40)
	if len(got) != 40 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncation wrong: %q (len %d)", got, len(got))
	}
}
