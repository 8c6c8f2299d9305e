package ai

import (
	"encoding/json"

	"shorts-pipeline/internal/models"
)

// parseHighlights reads the scoring model's JSON defensively. The model is
// asked for {"clips": [{start, end, reason}]} but in practice also returns
// "suggestions" as the list key, a single object instead of an array, or
// candidates with string timestamps. Anything without numeric start/end is
// dropped; an unusable response parses to an empty list, not an error.
func parseHighlights(raw []byte) []models.Highlight {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil
	}

	list, ok := envelope["clips"]
	if !ok {
		list, ok = envelope["suggestions"]
	}
	if !ok {
		return nil
	}

	var items []map[string]any
	if err := json.Unmarshal(list, &items); err != nil {
		// A single candidate may arrive as a bare object.
		var single map[string]any
		if err := json.Unmarshal(list, &single); err != nil {
			return nil
		}
		items = []map[string]any{single}
	}

	var out []models.Highlight
	for _, item := range items {
		start, okStart := asFloat(item["start"])
		end, okEnd := asFloat(item["end"])
		if !okStart || !okEnd {
			continue
		}
		reason, _ := item["reason"].(string)
		out = append(out, models.Highlight{Start: start, End: end, Reason: reason})
	}
	return out
}

func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}
