// Package angles computes the six shooting-form joint angles from a keypoint
// set and grades each against its ideal range.
package angles

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/shotlab/internal/domain/pose"
)

// Name identifies one of the measured angles.
type Name string

const (
	Elbow             Name = "elbow"
	Knee              Name = "knee"
	Wrist             Name = "wrist"
	ShoulderAlignment Name = "shoulder_alignment"
	Release           Name = "release"
	Hip               Name = "hip"
)

// Names returns the measured angles in report order.
func Names() []Name {
	return []Name{Elbow, Knee, Wrist, ShoulderAlignment, Release, Hip}
}

// Tier grades an available measurement.
type Tier string

const (
	Optimal Tier = "optimal"
	Minor   Tier = "minor"
	Major   Tier = "major"
)

// Status tells whether a measurement carries a value.
type Status string

const (
	Available   Status = "available"
	Unavailable Status = "unavailable"
)

// Range is an inclusive ideal interval in degrees.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DefaultRanges returns the built-in ideal ranges.
func DefaultRanges() map[Name]Range {
	return map[Name]Range{
		Elbow:             {Min: 85, Max: 95},
		Knee:              {Min: 110, Max: 130},
		Wrist:             {Min: 150, Max: 170},
		ShoulderAlignment: {Min: 80, Max: 100},
		Release:           {Min: 48, Max: 58},
		Hip:               {Min: 160, Max: 175},
	}
}

// Measurement is the result for one named angle. Unavailable measurements
// carry a nil Value, no Tier, and list the joints that were missing.
type Measurement struct {
	Name      Name         `json:"name"`
	Value     *float64     `json:"value"`
	IdealMin  float64      `json:"ideal_min"`
	IdealMax  float64      `json:"ideal_max"`
	Deviation float64      `json:"deviation"`
	Tier      Tier         `json:"tier,omitempty"`
	Status    Status       `json:"status"`
	Missing   []pose.Joint `json:"missing,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Err       error        `json:"-"`
}

// Available reports whether m carries a value.
func (m Measurement) Available() bool { return m.Status == Available && m.Value != nil }

// Clone returns a deep copy of m.
func (m Measurement) Clone() Measurement {
	if m.Value != nil {
		v := *m.Value
		m.Value = &v
	}
	if m.Missing != nil {
		m.Missing = append([]pose.Joint(nil), m.Missing...)
	}
	return m
}

// Grade returns the tier of value against r and its distance to the nearest bound.
func Grade(value float64, r Range) (Tier, float64) {
	switch {
	case value >= r.Min && value <= r.Max:
		return Optimal, 0
	case value >= 0.9*r.Min && value <= 1.1*r.Max:
		return Minor, distance(value, r)
	default:
		return Major, distance(value, r)
	}
}

func distance(value float64, r Range) float64 {
	if value < r.Min {
		return r.Min - value
	}
	return value - r.Max
}

// ComputeAngle returns the interior angle at vertex, in degrees within [0,180].
// Coincident points yield ErrDegenerate.
func ComputeAngle(a, vertex, c pose.Keypoint) (float64, error) {
	ax, ay := a.X-vertex.X, a.Y-vertex.Y
	cx, cy := c.X-vertex.X, c.Y-vertex.Y
	na := math.Hypot(ax, ay)
	nc := math.Hypot(cx, cy)
	if na < epsilon || nc < epsilon {
		return 0, ErrDegenerate
	}
	cos := (ax*cx + ay*cy) / (na * nc)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi, nil
}

const epsilon = 1e-9

// Lookup finds the measurement called name.
func Lookup(ms []Measurement, name Name) (Measurement, bool) {
	for _, m := range ms {
		if m.Name == name {
			return m, true
		}
	}
	return Measurement{}, false
}

// ValueOf returns the value of name when it is available.
func ValueOf(ms []Measurement, name Name) (float64, bool) {
	m, ok := Lookup(ms, name)
	if !ok || !m.Available() {
		return 0, false
	}
	return *m.Value, true
}

// UnavailableAll returns the six measurements marked unavailable, used when no
// angle could be attempted at all.
func UnavailableAll(ranges map[Name]Range, reason error) []Measurement {
	if ranges == nil {
		ranges = DefaultRanges()
	}
	out := make([]Measurement, 0, len(Names()))
	for _, n := range Names() {
		r := ranges[n]
		out = append(out, Measurement{
			Name:     n,
			IdealMin: r.Min,
			IdealMax: r.Max,
			Status:   Unavailable,
			Reason:   reason.Error(),
			Err:      reason,
		})
	}
	return out
}

// errUnavailable wraps ErrKeypointUnavailable with the missing joints.
func errUnavailable(missing []pose.Joint) error {
	return fmt.Errorf("%w: %v", ErrKeypointUnavailable, missing)
}

// IsUnavailable reports whether err came from a missing keypoint.
func IsUnavailable(err error) bool { return errors.Is(err, ErrKeypointUnavailable) }
