// Package phase classifies a single frame into a shooting phase by nearest
// archetype over a small biomechanical feature vector.
package phase

import (
	"math"

	"github.com/okian/shotlab/internal/domain/angles"
	"github.com/okian/shotlab/internal/domain/pose"
)

// Phase is a step of the shooting motion.
type Phase string

const (
	PreShot       Phase = "pre-shot"
	Dip           Phase = "dip"
	Rise          Phase = "rise"
	Release       Phase = "release"
	FollowThrough Phase = "follow-through"
	Unknown       Phase = "unknown"
)

// Sequence returns the canonical phase order.
func Sequence() []Phase {
	return []Phase{PreShot, Dip, Rise, Release, FollowThrough}
}

// Feature names reported in Result.Features.
const (
	FeatureWristHeight = "wrist_height"
	FeatureElbow       = "elbow"
	FeatureKnee        = "knee"
	FeatureWrist       = "wrist"
)

// Archetype is the typical feature vector of one phase. WristHeight is the
// wrist's height above the shoulder in torso lengths.
type Archetype struct {
	WristHeight float64
	Elbow       float64
	Knee        float64
	Wrist       float64
}

// DefaultArchetypes returns the built-in archetype table.
func DefaultArchetypes() map[Phase]Archetype {
	return map[Phase]Archetype{
		PreShot:       {WristHeight: -0.6, Elbow: 100, Knee: 165, Wrist: 160},
		Dip:           {WristHeight: -0.5, Elbow: 80, Knee: 120, Wrist: 150},
		Rise:          {WristHeight: 0.2, Elbow: 90, Knee: 150, Wrist: 135},
		Release:       {WristHeight: 0.9, Elbow: 170, Knee: 170, Wrist: 165},
		FollowThrough: {WristHeight: 0.7, Elbow: 170, Knee: 178, Wrist: 110},
	}
}

// Feature scales used to normalize each dimension before distances are summed.
const (
	heightScale = 0.5
	angleScale  = 45.0
)

// Result is the classification outcome.
type Result struct {
	Phase     Phase             `json:"phase"`
	Distances map[Phase]float64 `json:"distances,omitempty"`
	Features  []string          `json:"features,omitempty"`
	Missing   []pose.Joint      `json:"missing,omitempty"`
}

// Classifier is a pure nearest-archetype classifier.
type Classifier struct {
	floor      float64
	archetypes map[Phase]Archetype
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithConfidenceFloor sets the minimum keypoint confidence.
func WithConfidenceFloor(floor float64) Option {
	return func(c *Classifier) {
		if floor >= 0 && floor <= 1 {
			c.floor = floor
		}
	}
}

// WithArchetype replaces the archetype of one phase.
func WithArchetype(p Phase, a Archetype) Option {
	return func(c *Classifier) {
		if _, known := c.archetypes[p]; known {
			c.archetypes[p] = a
		}
	}
}

// NewClassifier creates a Classifier with the default archetypes.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{floor: angles.DefaultConfidenceFloor, archetypes: DefaultArchetypes()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type features struct {
	height                  float64
	elbow, knee, wrist      float64
	hasElbow, hasKnee, hasW bool
}

// Classify picks the phase whose archetype is nearest to the frame. Frames
// missing the wrist, elbow, shoulder, hip or knee of the shooting side are
// Unknown. Follow-through is only a candidate when the wrist angle is known.
// Equal distances resolve to the later phase.
func (c *Classifier) Classify(set pose.Set, side pose.Side, ms []angles.Measurement) Result {
	required := []pose.Part{pose.Wrist, pose.Elbow, pose.Shoulder, pose.Hip, pose.Knee}
	pts := make(map[pose.Part]pose.Keypoint, len(required))
	var missing []pose.Joint
	for _, p := range required {
		kp, ok := set.Confident(pose.For(side, p), c.floor)
		if !ok {
			missing = append(missing, pose.For(side, p))
			continue
		}
		pts[p] = kp
	}
	if len(missing) > 0 {
		return Result{Phase: Unknown, Missing: missing}
	}

	torso := math.Hypot(pts[pose.Hip].X-pts[pose.Shoulder].X, pts[pose.Hip].Y-pts[pose.Shoulder].Y)
	if torso < 1e-9 {
		return Result{Phase: Unknown}
	}

	f := features{height: (pts[pose.Shoulder].Y - pts[pose.Wrist].Y) / torso}
	f.elbow, f.hasElbow = angles.ValueOf(ms, angles.Elbow)
	f.knee, f.hasKnee = angles.ValueOf(ms, angles.Knee)
	f.wrist, f.hasW = angles.ValueOf(ms, angles.Wrist)

	used := []string{FeatureWristHeight}
	if f.hasElbow {
		used = append(used, FeatureElbow)
	}
	if f.hasKnee {
		used = append(used, FeatureKnee)
	}
	if f.hasW {
		used = append(used, FeatureWrist)
	}

	res := Result{Phase: Unknown, Distances: make(map[Phase]float64, len(c.archetypes)), Features: used}
	best := math.Inf(1)
	for _, p := range Sequence() {
		// Follow-through differs from release by the wrist snap alone.
		if p == FollowThrough && !f.hasW {
			continue
		}
		d := c.distance(f, c.archetypes[p])
		res.Distances[p] = d
		if d <= best {
			best = d
			res.Phase = p
		}
	}
	return res
}

func (c *Classifier) distance(f features, a Archetype) float64 {
	sq := func(x float64) float64 { return x * x }
	d := sq((f.height - a.WristHeight) / heightScale)
	if f.hasElbow {
		d += sq((f.elbow - a.Elbow) / angleScale)
	}
	if f.hasKnee {
		d += sq((f.knee - a.Knee) / angleScale)
	}
	if f.hasW {
		d += sq((f.wrist - a.Wrist) / angleScale)
	}
	return d
}
