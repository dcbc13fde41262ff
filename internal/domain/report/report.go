// Package report assembles the immutable per-image analysis report.
package report

import (
	"encoding/json"
	"time"

	"github.com/okian/shotlab/internal/domain/angles"
	"github.com/okian/shotlab/internal/domain/phase"
	"github.com/okian/shotlab/internal/domain/pose"
	"github.com/okian/shotlab/internal/domain/similarity"
	"github.com/okian/shotlab/internal/domain/vision"
)

// Report is the final analysis of one image. It is created by Builder and
// never changes afterwards; accessors return copies.
type Report struct {
	imageID        string
	keypoints      []pose.Keypoint
	angles         []angles.Measurement
	phase          phase.Phase
	vision         *vision.Result
	visionError    string
	matches        []similarity.Match
	overallScore   float64
	mechanicsScore float64
	createdAt      time.Time
}

func (r Report) ImageID() string         { return r.imageID }
func (r Report) Phase() phase.Phase      { return r.phase }
func (r Report) VisionError() string     { return r.visionError }
func (r Report) OverallScore() float64   { return r.overallScore }
func (r Report) MechanicsScore() float64 { return r.mechanicsScore }
func (r Report) CreatedAt() time.Time    { return r.createdAt }

func (r Report) Keypoints() []pose.Keypoint {
	return append([]pose.Keypoint(nil), r.keypoints...)
}

func (r Report) Angles() []angles.Measurement {
	out := make([]angles.Measurement, len(r.angles))
	for i, m := range r.angles {
		out[i] = m.Clone()
	}
	return out
}

// Vision returns a copy of the feedback, or nil when no provider answered.
func (r Report) Vision() *vision.Result {
	if r.vision == nil {
		return nil
	}
	v := r.vision.Clone()
	return &v
}

func (r Report) SimilarityMatches() []similarity.Match {
	out := make([]similarity.Match, len(r.matches))
	for i, m := range r.matches {
		out[i] = m.Clone()
	}
	return out
}

type reportJSON struct {
	ImageID           string               `json:"image_id"`
	Keypoints         []pose.Keypoint      `json:"keypoints"`
	Angles            []angles.Measurement `json:"angles"`
	Phase             phase.Phase          `json:"phase"`
	Vision            *vision.Result       `json:"vision"`
	VisionError       string               `json:"vision_error,omitempty"`
	SimilarityMatches []similarity.Match   `json:"similarity_matches"`
	OverallScore      float64              `json:"overall_score"`
	MechanicsScore    float64              `json:"mechanics_score"`
	CreatedAt         time.Time            `json:"created_at"`
}

// MarshalJSON renders every field; Vision is null when no provider answered.
func (r Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(reportJSON{
		ImageID:           r.imageID,
		Keypoints:         nonNil(r.keypoints),
		Angles:            nonNil(r.angles),
		Phase:             r.phase,
		Vision:            r.vision,
		VisionError:       r.visionError,
		SimilarityMatches: nonNil(r.matches),
		OverallScore:      r.overallScore,
		MechanicsScore:    r.mechanicsScore,
		CreatedAt:         r.createdAt,
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
