package report

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/okian/shotlab/internal/domain/angles"
	"github.com/okian/shotlab/internal/domain/phase"
	"github.com/okian/shotlab/internal/domain/pose"
	"github.com/okian/shotlab/internal/domain/similarity"
	"github.com/okian/shotlab/internal/domain/vision"
)

// Overall score weights; renormalized over the terms that are available. The
// phase term always counts, so a report without a classified phase scores
// zero on it, image-only reports included.
const (
	angleTermWeight  = 0.50
	phaseTermWeight  = 0.15
	visionTermWeight = 0.35
)

// Tier credit used by the mechanics score.
var tierCredit = map[angles.Tier]float64{ //nolint:gochecknoglobals // read-only lookup
	angles.Optimal: 100,
	angles.Minor:   70,
	angles.Major:   30,
}

// Rating band midpoints used by the vision term.
var ratingScore = map[vision.Rating]float64{ //nolint:gochecknoglobals // read-only lookup
	vision.Excellent:        95,
	vision.Good:             82,
	vision.Fair:             62,
	vision.NeedsImprovement: 40,
}

// Input gathers the pipeline outputs for one image.
type Input struct {
	ImageID   string
	Keypoints []pose.Keypoint
	Angles    []angles.Measurement
	Phase     phase.Phase
	Vision    *vision.Result
	VisionErr error
	Matches   []similarity.Match
}

// Builder assembles reports. It performs no I/O.
type Builder struct {
	now    func() time.Time
	newID  func() string
	ranges map[angles.Name]angles.Range
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock sets the CreatedAt source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithIDGenerator sets the source of image IDs for unnamed images.
func WithIDGenerator(fn func() string) Option {
	return func(b *Builder) {
		if fn != nil {
			b.newID = fn
		}
	}
}

// WithIdealRanges sets the ranges used when placeholder angles are filled in.
func WithIdealRanges(r map[angles.Name]angles.Range) Option {
	return func(b *Builder) {
		if len(r) > 0 {
			b.ranges = r
		}
	}
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		ranges: angles.DefaultRanges(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build validates in and computes the scores.
func (b *Builder) Build(in Input) (Report, error) {
	seen := make(map[angles.Name]struct{}, len(in.Angles))
	ms := make([]angles.Measurement, 0, len(in.Angles))
	for _, m := range in.Angles {
		if _, dup := seen[m.Name]; dup {
			return Report{}, fmt.Errorf("%w: duplicate angle %q", ErrInvalidInput, m.Name)
		}
		seen[m.Name] = struct{}{}
		if m.Status == angles.Available && m.Value == nil {
			return Report{}, fmt.Errorf("%w: angle %q available without a value", ErrInvalidInput, m.Name)
		}
		ms = append(ms, m.Clone())
	}
	if len(in.Keypoints) > 0 && len(ms) == 0 {
		ms = angles.UnavailableAll(b.ranges, angles.ErrKeypointUnavailable)
	}

	matches := make([]similarity.Match, len(in.Matches))
	for i, m := range in.Matches {
		matches[i] = m.Clone()
	}
	similarity.Sort(matches)
	if len(matches) > similarity.MaxMatches {
		matches = matches[:similarity.MaxMatches]
	}

	ph := in.Phase
	if ph == "" {
		ph = phase.Unknown
	}

	r := Report{
		imageID:   in.ImageID,
		keypoints: append([]pose.Keypoint(nil), in.Keypoints...),
		angles:    ms,
		phase:     ph,
		matches:   matches,
		createdAt: b.now(),
	}
	if r.imageID == "" {
		r.imageID = b.newID()
	}
	if in.Vision != nil {
		v := in.Vision.Clone()
		r.vision = &v
	} else if in.VisionErr != nil {
		r.visionError = in.VisionErr.Error()
	}

	r.mechanicsScore = mechanics(ms)
	r.overallScore = overall(ms, ph, r.vision)
	return r, nil
}

func mechanics(ms []angles.Measurement) float64 {
	var sum float64
	var n int
	for _, m := range ms {
		if !m.Available() {
			continue
		}
		sum += tierCredit[m.Tier]
		n++
	}
	if n == 0 {
		return 0
	}
	return round1(sum / float64(n))
}

func overall(ms []angles.Measurement, ph phase.Phase, v *vision.Result) float64 {
	var num, den float64

	var optimal, available int
	for _, m := range ms {
		if !m.Available() {
			continue
		}
		available++
		if m.Tier == angles.Optimal {
			optimal++
		}
	}
	if available > 0 {
		num += angleTermWeight * 100 * float64(optimal) / float64(available)
		den += angleTermWeight
	}

	if ph != phase.Unknown {
		num += phaseTermWeight * 100
	}
	den += phaseTermWeight

	if v != nil {
		if s, ok := ratingScore[v.Rating]; ok {
			num += visionTermWeight * s
			den += visionTermWeight
		}
	}

	if den == 0 {
		return 0
	}
	return round1(num / den)
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }
