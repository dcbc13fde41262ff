package vision

import (
	"encoding/json"
	"fmt"

	"github.com/okian/shotlab/internal/domain/angles"
	"github.com/okian/shotlab/internal/domain/phase"
	"github.com/okian/shotlab/internal/domain/profile"
)

// SystemInstruction is shared by every provider.
const SystemInstruction = `You are an experienced basketball shooting coach reviewing a single still image of a player's jump shot.
You receive measured joint angles, the detected shooting phase, and an optional player profile as JSON.
Measured angles are more reliable than your own visual estimate; use the image for context the angles cannot capture
(balance, alignment of the guide hand, follow-through, footwork).
Respond with exactly one JSON object matching output_schema. No markdown, no prose outside the JSON.`

type promptAngle struct {
	Name     angles.Name   `json:"name"`
	Value    *float64      `json:"value"`
	IdealMin float64       `json:"ideal_min"`
	IdealMax float64       `json:"ideal_max"`
	Tier     angles.Tier   `json:"tier,omitempty"`
	Status   angles.Status `json:"status"`
}

type promptDocument struct {
	Task         string               `json:"task"`
	Phase        phase.Phase          `json:"shooting_phase"`
	Angles       []promptAngle        `json:"angles"`
	Profile      *profile.UserProfile `json:"player_profile,omitempty"`
	OutputSchema map[string]any       `json:"output_schema"`
}

// OutputSchema describes the JSON object providers must return.
func OutputSchema() map[string]any {
	strList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return map[string]any{
		"type":     "object",
		"required": []string{"form_assessment", "habits_identified", "recommendations"},
		"properties": map[string]any{
			"form_assessment": map[string]any{"type": "string"},
			"rating": map[string]any{
				"type": "string",
				"enum": []string{string(Excellent), string(Good), string(Fair), string(NeedsImprovement)},
			},
			"habits_identified": map[string]any{
				"type":     "object",
				"required": []string{"good", "needs_improvement"},
				"properties": map[string]any{
					"good":              strList,
					"needs_improvement": strList,
				},
			},
			"recommendations":         strList,
			"professional_comparison": map[string]any{"type": "string"},
		},
	}
}

// BuildPrompt renders the system instruction and JSON context document.
// The image is passed through unchanged.
func BuildPrompt(req Request) (ProviderRequest, error) {
	doc := promptDocument{
		Task:         "Assess this basketball shot and return coaching feedback.",
		Phase:        req.Phase,
		Angles:       make([]promptAngle, 0, len(req.Angles)),
		Profile:      req.Profile,
		OutputSchema: OutputSchema(),
	}
	if doc.Phase == "" {
		doc.Phase = phase.Unknown
	}
	for _, m := range req.Angles {
		doc.Angles = append(doc.Angles, promptAngle{
			Name:     m.Name,
			Value:    m.Value,
			IdealMin: m.IdealMin,
			IdealMax: m.IdealMax,
			Tier:     m.Tier,
			Status:   m.Status,
		})
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return ProviderRequest{}, fmt.Errorf("build prompt: %w", err)
	}
	return ProviderRequest{
		System: SystemInstruction,
		Prompt: string(b),
		Image:  req.Image,
		MIME:   req.MIME,
	}, nil
}
