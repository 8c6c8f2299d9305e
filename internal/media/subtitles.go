package media

import (
	"fmt"
	"strings"

	"shorts-pipeline/internal/models"
)

// BuildSRT renders an SRT subtitle track for the clip [clipStart, clipEnd).
// Only segments overlapping the clip are kept; their timestamps are rebased
// to the clip start and clamped to its boundaries. Numbering restarts at 1
// for every clip.
func BuildSRT(segments []models.Segment, clipStart, clipEnd float64) string {
	var b strings.Builder
	n := 0
	for _, s := range segments {
		if s.End <= clipStart || s.Start >= clipEnd {
			continue
		}
		n++
		start := s.Start - clipStart
		if start < 0 {
			start = 0
		}
		end := s.End - clipStart
		if max := clipEnd - clipStart; end > max {
			end = max
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", n, srtTime(start), srtTime(end), strings.TrimSpace(s.Text))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func srtTime(sec float64) string {
	h := int(sec) / 3600
	m := (int(sec) % 3600) / 60
	s := int(sec) % 60
	ms := int((sec - float64(int(sec))) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
