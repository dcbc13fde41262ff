// Package profile holds the shooter's self-reported body and experience data.
package profile

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/shotlab/internal/domain/pose"
)

// Accepted physical ranges, in inches.
const (
	MinHeightInches   = 48
	MaxHeightInches   = 96
	MinWingspanInches = 48
	MaxWingspanInches = 108
)

// ExperienceLevel is the player's self-reported level.
type ExperienceLevel string

const (
	Beginner     ExperienceLevel = "beginner"
	Intermediate ExperienceLevel = "intermediate"
	Advanced     ExperienceLevel = "advanced"
	Professional ExperienceLevel = "professional"
)

// BodyType is a coarse build category.
type BodyType string

const (
	Lean     BodyType = "lean"
	Athletic BodyType = "athletic"
	Muscular BodyType = "muscular"
	Heavy    BodyType = "heavy"
)

// UserProfile describes the player being analyzed. Zero wingspan means unknown.
type UserProfile struct {
	HeightInches    float64         `json:"height_inches"`
	WingspanInches  float64         `json:"wingspan_inches,omitempty"`
	ExperienceLevel ExperienceLevel `json:"experience_level,omitempty"`
	BodyType        BodyType        `json:"body_type,omitempty"`
	ShootingHand    pose.Side       `json:"shooting_hand,omitempty"`
}

// Validate normalizes enum casing in place and checks ranges.
func (p *UserProfile) Validate() error {
	if p == nil {
		return nil
	}
	if math.IsNaN(p.HeightInches) || p.HeightInches < MinHeightInches || p.HeightInches > MaxHeightInches {
		return fmt.Errorf("%w: height_inches %v outside [%d,%d]", ErrInvalidUserProfile, p.HeightInches, MinHeightInches, MaxHeightInches)
	}
	if p.WingspanInches != 0 && (math.IsNaN(p.WingspanInches) || p.WingspanInches < MinWingspanInches || p.WingspanInches > MaxWingspanInches) {
		return fmt.Errorf("%w: wingspan_inches %v outside [%d,%d]", ErrInvalidUserProfile, p.WingspanInches, MinWingspanInches, MaxWingspanInches)
	}

	p.ExperienceLevel = ExperienceLevel(strings.ToLower(strings.TrimSpace(string(p.ExperienceLevel))))
	switch p.ExperienceLevel {
	case "", Beginner, Intermediate, Advanced, Professional:
	default:
		return fmt.Errorf("%w: experience_level %q", ErrInvalidUserProfile, p.ExperienceLevel)
	}

	p.BodyType = BodyType(strings.ToLower(strings.TrimSpace(string(p.BodyType))))
	switch p.BodyType {
	case "", Lean, Athletic, Muscular, Heavy:
	default:
		return fmt.Errorf("%w: body_type %q", ErrInvalidUserProfile, p.BodyType)
	}

	p.ShootingHand = pose.Side(strings.ToLower(strings.TrimSpace(string(p.ShootingHand))))
	switch p.ShootingHand {
	case "", pose.Right, pose.Left:
	default:
		return fmt.Errorf("%w: shooting_hand %q", ErrInvalidUserProfile, p.ShootingHand)
	}
	return nil
}

// Side returns the shooting side, or fallback when the profile is nil or silent.
func (p *UserProfile) Side(fallback pose.Side) pose.Side {
	if p == nil || p.ShootingHand == "" {
		return fallback
	}
	return p.ShootingHand
}

// WingspanRatio returns wingspan divided by height when both are known.
func (p *UserProfile) WingspanRatio() (float64, bool) {
	if p == nil || p.WingspanInches <= 0 || p.HeightInches <= 0 {
		return 0, false
	}
	return p.WingspanInches / p.HeightInches, true
}
