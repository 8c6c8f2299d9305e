package ai

import (
	"testing"

	"shorts-pipeline/internal/models"
)

func TestParseHighlightsClipsArray(t *testing.T) {
	raw := []byte(`{"clips": [{"start": 5, "end": 20, "reason": "strong opener"}, {"start": 40.5, "end": 62, "reason": "confrontation"}]}`)
	got := parseHighlights(raw)
	if len(got) != 2 {
		t.Fatalf("expected 2 highlights, got %d", len(got))
	}
	if got[0] != (models.Highlight{Start: 5, End: 20, Reason: "strong opener"}) {
		t.Fatalf("unexpected first highlight: %+v", got[0])
	}
}

func TestParseHighlightsSuggestionsKey(t *testing.T) {
	raw := []byte(`{"suggestions": [{"start": 1, "end": 30, "reason": "hook"}]}`)
	if got := parseHighlights(raw); len(got) != 1 || got[0].Reason != "hook" {
		t.Fatalf("suggestions key not accepted: %+v", got)
	}
}

func TestParseHighlightsSingleObject(t *testing.T) {
	raw := []byte(`{"clips": {"start": 3, "end": 18, "reason": "only one"}}`)
	got := parseHighlights(raw)
	if len(got) != 1 || got[0].Start != 3 || got[0].End != 18 {
		t.Fatalf("single object not accepted: %+v", got)
	}
}

func TestParseHighlightsDropsNonNumeric(t *testing.T) {
	raw := []byte(`{"clips": [{"start": "00:05", "end": 20, "reason": "bad"}, {"start": 5, "end": 20, "reason": "good"}]}`)
	got := parseHighlights(raw)
	if len(got) != 1 || got[0].Reason != "good" {
		t.Fatalf("expected only the numeric candidate: %+v", got)
	}
}

func TestParseHighlightsUnusable(t *testing.T) {
	for _, raw := range []string{`{}`, `not json`, `{"other": []}`, `{"clips": "nope"}`} {
		if got := parseHighlights([]byte(raw)); len(got) != 0 {
			t.Errorf("expected empty result for %q, got %+v", raw, got)
		}
	}
}

func TestFormatTranscript(t *testing.T) {
	segments := []models.Segment{
		{Start: 0.8, End: 5, Text: "hello"},
		{Start: 12.2, End: 20, Text: "world"},
	}
	got := formatTranscript(segments)
	want := "[0s] hello\n[12s] world"
	if got != want {
		t.Fatalf("formatTranscript = %q, want %q", got, want)
	}
}
