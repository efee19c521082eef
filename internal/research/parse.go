package research

import (
	"encoding/json"
	"strings"

	"github.com/researchly/marketscout/internal/helpers"
	"github.com/researchly/marketscout/models"
)

// parseJSONResponse extracts and unmarshals the first JSON value in a raw
// generation response.
func parseJSONResponse(raw string, v interface{}) error {
	extracted, err := helpers.ExtractJSON(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(extracted), v)
}

var swotKeys = []string{"strengths", "weaknesses", "opportunities", "threats"}

// extractSWOT tolerates the shapes generation providers actually produce:
// direct quadrant keys, case variations, and quadrants nested one or two
// levels under wrapper keys.
func extractSWOT(data map[string]interface{}) models.SWOTAnalysis {
	if found, ok := findSWOTKeys(data); ok {
		return found
	}
	for _, val := range data {
		inner, ok := val.(map[string]interface{})
		if !ok {
			continue
		}
		if found, ok := findSWOTKeys(inner); ok {
			return found
		}
		for _, val2 := range inner {
			if inner2, ok := val2.(map[string]interface{}); ok {
				if found, ok := findSWOTKeys(inner2); ok {
					return found
				}
			}
		}
	}
	return models.SWOTAnalysis{}
}

// findSWOTKeys matches the quadrants case-insensitively and accepts the dict
// when at least two are present.
func findSWOTKeys(data map[string]interface{}) (models.SWOTAnalysis, bool) {
	lower := make(map[string][]string, len(data))
	for key, val := range data {
		items, ok := toStringSlice(val)
		if !ok {
			continue
		}
		lower[strings.ToLower(key)] = items
	}
	matched := 0
	for _, key := range swotKeys {
		if _, ok := lower[key]; ok {
			matched++
		}
	}
	if matched < 2 {
		return models.SWOTAnalysis{}, false
	}
	return models.SWOTAnalysis{
		Strengths:     lower["strengths"],
		Weaknesses:    lower["weaknesses"],
		Opportunities: lower["opportunities"],
		Threats:       lower["threats"],
	}, true
}

func toStringSlice(v interface{}) ([]string, bool) {
	raw, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// normalizeRelevance clamps a trend relevance to the known levels.
func normalizeRelevance(r string) string {
	switch strings.ToLower(strings.TrimSpace(r)) {
	case "high":
		return "high"
	case "low":
		return "low"
	default:
		return "medium"
	}
}
