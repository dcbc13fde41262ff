// Package vision orchestrates coaching feedback from vision-language
// providers: one primary, one fallback, strategy-agnostic.
package vision

import (
	"context"
	"strings"

	"github.com/okian/shotlab/internal/domain/angles"
	"github.com/okian/shotlab/internal/domain/phase"
	"github.com/okian/shotlab/internal/domain/profile"
)

// Provider is a vision-language backend. Analyze returns the model's raw text,
// expected to be a JSON document; the orchestrator normalizes it.
type Provider interface {
	Name() string
	Model() string
	Analyze(ctx context.Context, req ProviderRequest) (string, error)
}

// ProviderRequest is the identical payload sent to either provider.
type ProviderRequest struct {
	System string
	Prompt string
	Image  []byte
	MIME   string
}

// Role tells which slot produced a result.
type Role string

const (
	RolePrimary  Role = "primary"
	RoleFallback Role = "fallback"
)

// Preference selects which providers are eligible.
type Preference string

const (
	PreferAuto     Preference = "auto"
	PreferPrimary  Preference = "primary"
	PreferFallback Preference = "fallback"
)

// ParsePreference accepts auto, primary or fallback (case-insensitive); empty means auto.
func ParsePreference(s string) (Preference, error) {
	switch p := Preference(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PreferAuto:
		return PreferAuto, nil
	case PreferPrimary, PreferFallback:
		return p, nil
	default:
		return "", ErrUnknownPreference
	}
}

// Rating is the provider's coarse grade of the shot.
type Rating string

const (
	Excellent        Rating = "excellent"
	Good             Rating = "good"
	Fair             Rating = "fair"
	NeedsImprovement Rating = "needs_improvement"
)

// Request is one image to be assessed.
type Request struct {
	Image      []byte
	MIME       string
	Angles     []angles.Measurement
	Phase      phase.Phase
	Profile    *profile.UserProfile
	Preference Preference
}

// Feedback is the normalized provider answer.
type Feedback struct {
	FormAssessment         string   `json:"form_assessment"`
	Rating                 Rating   `json:"rating,omitempty"`
	GoodHabits             []string `json:"good_habits"`
	ImprovementHabits      []string `json:"improvement_habits"`
	Recommendations        []string `json:"recommendations"`
	ProfessionalComparison string   `json:"professional_comparison,omitempty"`
}

// Result is the feedback branded with the provider that produced it.
type Result struct {
	Provider     Role   `json:"provider"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
	Feedback
	FallbackUsed     bool   `json:"fallback_used"`
	PrimaryError     string `json:"primary_error,omitempty"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	r.GoodHabits = append([]string(nil), r.GoodHabits...)
	r.ImprovementHabits = append([]string(nil), r.ImprovementHabits...)
	r.Recommendations = append([]string(nil), r.Recommendations...)
	return r
}
