package vision

import (
	"encoding/json"
	"fmt"
	"strings"
)

type rawResponse struct {
	FormAssessment *string `json:"form_assessment"`
	Rating         string  `json:"rating"`
	Habits         *struct {
		Good             *[]string `json:"good"`
		NeedsImprovement *[]string `json:"needs_improvement"`
	} `json:"habits_identified"`
	Recommendations        *[]string       `json:"recommendations"`
	ProfessionalComparison json.RawMessage `json:"professional_comparison"`
}

// StripCodeFences removes a surrounding markdown code fence, if any.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseResponse normalizes raw provider text into Feedback. Unknown fields are
// ignored; a missing required field yields ErrProviderSchema.
func ParseResponse(raw string) (Feedback, error) {
	text := StripCodeFences(raw)
	if text == "" {
		return Feedback{}, fmt.Errorf("%w: empty response", ErrProviderSchema)
	}

	var r rawResponse
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return Feedback{}, fmt.Errorf("%w: %w", ErrProviderSchema, err)
	}

	switch {
	case r.FormAssessment == nil || strings.TrimSpace(*r.FormAssessment) == "":
		return Feedback{}, fmt.Errorf("%w: form_assessment missing", ErrProviderSchema)
	case r.Habits == nil || r.Habits.Good == nil:
		return Feedback{}, fmt.Errorf("%w: habits_identified.good missing", ErrProviderSchema)
	case r.Habits.NeedsImprovement == nil:
		return Feedback{}, fmt.Errorf("%w: habits_identified.needs_improvement missing", ErrProviderSchema)
	case r.Recommendations == nil:
		return Feedback{}, fmt.Errorf("%w: recommendations missing", ErrProviderSchema)
	}

	return Feedback{
		FormAssessment:         strings.TrimSpace(*r.FormAssessment),
		Rating:                 normalizeRating(r.Rating),
		GoodHabits:             clean(*r.Habits.Good),
		ImprovementHabits:      clean(*r.Habits.NeedsImprovement),
		Recommendations:        clean(*r.Recommendations),
		ProfessionalComparison: comparison(r.ProfessionalComparison),
	}, nil
}

// normalizeRating maps "Needs Improvement" and similar spellings onto a
// Rating; anything unrecognized is dropped.
func normalizeRating(s string) Rating {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	switch r := Rating(s); r {
	case Excellent, Good, Fair, NeedsImprovement:
		return r
	}
	return ""
}

func clean(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

// comparison accepts a plain string or an object with a summary-like field.
func comparison(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	for _, k := range []string{"summary", "comparison", "description", "player"} {
		if v, ok := obj[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
