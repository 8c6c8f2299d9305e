package media

import (
	"strings"
	"testing"

	"shorts-pipeline/internal/models"
)

func TestBuildSRTFiltersAndRebases(t *testing.T) {
	segments := []models.Segment{
		{Start: 0, End: 10, Text: "first"},
		{Start: 10, End: 25, Text: "second"},
		{Start: 25, End: 40, Text: "third"},
	}

	srt := BuildSRT(segments, 5, 20)

	// Only the first two segments overlap [5, 20).
	if strings.Contains(srt, "third") {
		t.Fatalf("segment outside clip included:\n%s", srt)
	}
	entries := strings.Split(strings.TrimSpace(srt), "\n\n")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d:\n%s", len(entries), srt)
	}

	// First segment [0,10] rebased to [0,5], clamped at clip start.
	if !strings.HasPrefix(entries[0], "1\n00:00:00,000 --> 00:00:05,000\nfirst") {
		t.Fatalf("unexpected first entry:\n%s", entries[0])
	}
	// Second segment [10,25] rebased to [5,15], clamped at clip end.
	if !strings.HasPrefix(entries[1], "2\n00:00:05,000 --> 00:00:15,000\nsecond") {
		t.Fatalf("unexpected second entry:\n%s", entries[1])
	}
}

func TestBuildSRTNumberingRestartsPerClip(t *testing.T) {
	segments := []models.Segment{
		{Start: 0, End: 5, Text: "skipped"},
		{Start: 30, End: 35, Text: "kept"},
	}
	srt := BuildSRT(segments, 28, 40)
	if !strings.HasPrefix(srt, "1\n") {
		t.Fatalf("numbering should restart at 1:\n%s", srt)
	}
}

func TestBuildSRTBoundaryExclusive(t *testing.T) {
	segments := []models.Segment{
		{Start: 0, End: 5, Text: "ends at clip start"},
		{Start: 20, End: 25, Text: "starts at clip end"},
	}
	if srt := BuildSRT(segments, 5, 20); srt != "" {
		t.Fatalf("segments touching the boundary must be excluded:\n%s", srt)
	}
}

func TestBuildSRTEmpty(t *testing.T) {
	if srt := BuildSRT(nil, 0, 10); srt != "" {
		t.Fatalf("expected empty srt, got %q", srt)
	}
}

func TestSRTTime(t *testing.T) {
	cases := []struct {
		sec  float64
		want string
	}{
		{0, "00:00:00,000"},
		{5.25, "00:00:05,250"},
		{65, "00:01:05,000"},
		{3725.5, "01:02:05,500"},
	}
	for _, c := range cases {
		if got := srtTime(c.sec); got != c.want {
			t.Errorf("srtTime(%v) = %q, want %q", c.sec, got, c.want)
		}
	}
}
