package classify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Raw response elements. Pointers distinguish "absent" from zero values
// during required-field validation; everything else about the element is
// untrusted until normalization.

type rawSentimentElement struct {
	ID           *string  `json:"id"`
	Sentiment    *string  `json:"sentiment"`
	Subjectivity *float64 `json:"subjectivity"`
	Confidence   *float64 `json:"confidence"`
}

type rawHostilityElement struct {
	ID             *string  `json:"id"`
	MentionsGroup  *bool    `json:"mentions_group"`
	HostilityLevel *string  `json:"hostility_level"`
	Labels         []string `json:"labels"`
	Confidence     *float64 `json:"confidence"`
	Rationale      *string  `json:"rationale"`
}

func (e *rawSentimentElement) valid() bool {
	return e.ID != nil && *e.ID != "" && e.Sentiment != nil && e.Subjectivity != nil && e.Confidence != nil
}

func (e *rawHostilityElement) valid() bool {
	return e.ID != nil && *e.ID != "" && e.MentionsGroup != nil && e.HostilityLevel != nil &&
		e.Labels != nil && e.Confidence != nil && e.Rationale != nil
}

// stripFences removes a markdown code fence if the model wrapped its
// JSON in one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// decodeArray unmarshals the response body into a slice of raw
// elements. Anything that is not a JSON array is a batch-level error.
func decodeArray[T any](data string) ([]T, error) {
	cleaned := stripFences(data)
	var out []T
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("response is not a JSON array: %w", err)
	}
	return out, nil
}
