package angles

import (
	"github.com/okian/shotlab/internal/domain/pose"
)

// DefaultConfidenceFloor is the minimum keypoint confidence treated as present.
const DefaultConfidenceFloor = 0.3

// Engine computes the six named angles. It holds only configuration and is
// safe for concurrent use.
type Engine struct {
	floor  float64
	ranges map[Name]Range
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfidenceFloor sets the minimum keypoint confidence.
func WithConfidenceFloor(floor float64) Option {
	return func(e *Engine) {
		if floor >= 0 && floor <= 1 {
			e.floor = floor
		}
	}
}

// WithIdealRange overrides the ideal range of one angle.
func WithIdealRange(name Name, r Range) Option {
	return func(e *Engine) {
		if _, known := e.ranges[name]; known && r.Min <= r.Max {
			e.ranges[name] = r
		}
	}
}

// NewEngine creates an Engine with default ranges and floor.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{floor: DefaultConfidenceFloor, ranges: DefaultRanges()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ranges returns a copy of the ideal ranges in use.
func (e *Engine) Ranges() map[Name]Range {
	out := make(map[Name]Range, len(e.ranges))
	for k, v := range e.ranges {
		out[k] = v
	}
	return out
}

// ConfidenceFloor returns the configured floor.
func (e *Engine) ConfidenceFloor() float64 { return e.floor }

// ComputeAll attempts all six angles for the shooting side, in Names() order.
func (e *Engine) ComputeAll(set pose.Set, side pose.Side) []Measurement {
	out := make([]Measurement, 0, len(Names()))
	for _, n := range Names() {
		out = append(out, e.compute(set, side, n))
	}
	return out
}

func (e *Engine) compute(set pose.Set, side pose.Side, name Name) Measurement {
	r := e.ranges[name]
	m := Measurement{Name: name, IdealMin: r.Min, IdealMax: r.Max, Status: Unavailable}

	joints := triple(side, name)
	pts := make(map[pose.Joint]pose.Keypoint, len(joints))
	var missing []pose.Joint
	for _, j := range joints {
		kp, ok := set.Confident(j, e.floor)
		if !ok {
			missing = append(missing, j)
			continue
		}
		pts[j] = kp
	}
	if len(missing) > 0 {
		m.Missing = missing
		m.Err = errUnavailable(missing)
		m.Reason = m.Err.Error()
		return m
	}

	var (
		value float64
		err   error
	)
	if name == Release {
		value, err = elevation(pts[joints[0]], pts[joints[1]])
	} else {
		value, err = ComputeAngle(pts[joints[0]], pts[joints[1]], pts[joints[2]])
	}
	if err != nil {
		m.Err = err
		m.Reason = err.Error()
		return m
	}

	m.Value = &value
	m.Status = Available
	m.Tier, m.Deviation = Grade(value, r)
	return m
}

// elevation is the forearm angle above horizontal, measured at the elbow
// against a horizontal reference on the wrist's side. Negative when the wrist
// sits below the elbow. Image y grows downwards.
func elevation(elbow, wrist pose.Keypoint) (float64, error) {
	dir := 1.0
	if wrist.X < elbow.X {
		dir = -1
	}
	ref := pose.Keypoint{X: elbow.X + dir, Y: elbow.Y}
	deg, err := ComputeAngle(ref, elbow, wrist)
	if err != nil {
		return 0, err
	}
	if wrist.Y > elbow.Y {
		deg = -deg
	}
	return deg, nil
}

// triple lists the required joints for name; the vertex is in the middle,
// except for release which needs only elbow then wrist.
func triple(side pose.Side, name Name) []pose.Joint {
	j := func(p pose.Part) pose.Joint { return pose.For(side, p) }
	switch name {
	case Elbow:
		return []pose.Joint{j(pose.Shoulder), j(pose.Elbow), j(pose.Wrist)}
	case Knee:
		return []pose.Joint{j(pose.Hip), j(pose.Knee), j(pose.Ankle)}
	case Wrist:
		return []pose.Joint{j(pose.Elbow), j(pose.Wrist), j(pose.Index)}
	case ShoulderAlignment:
		return []pose.Joint{j(pose.Hip), j(pose.Shoulder), j(pose.Elbow)}
	case Release:
		return []pose.Joint{j(pose.Elbow), j(pose.Wrist)}
	case Hip:
		return []pose.Joint{j(pose.Shoulder), j(pose.Hip), j(pose.Knee)}
	}
	return nil
}
