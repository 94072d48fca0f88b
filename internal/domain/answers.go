package domain

import (
	"encoding/json"
	"strconv"
)

// NormalizeAnswers converts a raw answer payload (questionID -> selected
// option index as whatever the wire delivered) into a clean map. Malformed
// or negative selections are dropped per entry; the rest of the set is kept.
// Returned second is the list of question IDs that were skipped.
func NormalizeAnswers(raw map[string]any) (map[string]int, []string) {
	answers := make(map[string]int, len(raw))
	var skipped []string
	for questionID, value := range raw {
		idx, ok := toOptionIndex(value)
		if !ok {
			skipped = append(skipped, questionID)
			continue
		}
		answers[questionID] = idx
	}
	return answers, skipped
}

// toOptionIndex accepts the value shapes JSON decoding produces: numbers
// (float64), json.Number, numeric strings, and native ints from in-process
// callers. Fractional or negative values are rejected.
func toOptionIndex(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		if v < 0 {
			return 0, false
		}
		return v, true
	case float64:
		if v < 0 || v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil || n < 0 {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// MergeAnswers overlays incoming onto existing, last write wins per
// question. Existing entries for questions absent from incoming survive.
func MergeAnswers(existing, incoming map[string]int) map[string]int {
	merged := make(map[string]int, len(existing)+len(incoming))
	for questionID, idx := range existing {
		merged[questionID] = idx
	}
	for questionID, idx := range incoming {
		merged[questionID] = idx
	}
	return merged
}
