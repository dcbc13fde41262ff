// Package pose models body keypoints and maps provider landmark names onto
// the canonical joints used by the analysis pipeline.
package pose

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Joint is a canonical landmark name, e.g. "right_elbow".
type Joint string

// Side is the shooting side of the body.
type Side string

const (
	Right Side = "right"
	Left  Side = "left"
)

// Part is a side-less body part.
type Part string

const (
	Shoulder Part = "shoulder"
	Elbow    Part = "elbow"
	Wrist    Part = "wrist"
	Index    Part = "index"
	Hip      Part = "hip"
	Knee     Part = "knee"
	Ankle    Part = "ankle"
)

// Nose is the only side-less canonical joint.
const Nose Joint = "nose"

// For returns the joint of part on the given side.
func For(side Side, part Part) Joint {
	if side != Left {
		side = Right
	}
	return Joint(string(side) + "_" + string(part))
}

// Keypoint is one detected landmark in normalized image coordinates.
type Keypoint struct {
	Name       Joint   `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Validate checks that coordinates and confidence are finite and inside [0,1].
func (k Keypoint) Validate() error {
	for _, v := range []float64{k.X, k.Y, k.Confidence} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: %s (x=%v y=%v confidence=%v)", ErrInvalidKeypoint, k.Name, k.X, k.Y, k.Confidence)
		}
	}
	return nil
}

// Set is an immutable lookup of keypoints by canonical joint.
type Set struct {
	points map[Joint]Keypoint
}

// NewSet canonicalizes names, drops unknown landmarks, and keeps the most
// confident reading when a joint appears twice. Any invalid known landmark
// fails the whole set.
func NewSet(kps []Keypoint) (Set, error) {
	s, dropped := build(kps)
	if len(dropped) > 0 {
		return Set{}, dropped[0].Validate()
	}
	return s, nil
}

// NewLenientSet is NewSet for untrusted detector output: invalid landmarks,
// such as off-frame points, are left out and returned instead of failing.
func NewLenientSet(kps []Keypoint) (Set, []Keypoint) {
	return build(kps)
}

func build(kps []Keypoint) (Set, []Keypoint) {
	points := make(map[Joint]Keypoint, len(kps))
	var dropped []Keypoint
	for _, kp := range kps {
		j, ok := Canonicalize(string(kp.Name))
		if !ok {
			continue
		}
		kp.Name = j
		if err := kp.Validate(); err != nil {
			dropped = append(dropped, kp)
			continue
		}
		if prev, dup := points[j]; dup && prev.Confidence >= kp.Confidence {
			continue
		}
		points[j] = kp
	}
	return Set{points: points}, dropped
}

// Get returns the keypoint for j.
func (s Set) Get(j Joint) (Keypoint, bool) {
	kp, ok := s.points[j]
	return kp, ok
}

// Confident returns the keypoint for j when its confidence reaches floor.
func (s Set) Confident(j Joint, floor float64) (Keypoint, bool) {
	kp, ok := s.points[j]
	if !ok || kp.Confidence < floor {
		return Keypoint{}, false
	}
	return kp, true
}

// Len reports the number of canonical keypoints.
func (s Set) Len() int { return len(s.points) }

// Keypoints returns a copy of the set ordered by joint name.
func (s Set) Keypoints() []Keypoint {
	out := make([]Keypoint, 0, len(s.points))
	for _, kp := range s.points {
		out = append(out, kp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var parts = map[string]Part{ //nolint:gochecknoglobals // read-only lookup
	"shoulder":     Shoulder,
	"elbow":        Elbow,
	"wrist":        Wrist,
	"index":        Index,
	"index_finger": Index,
	"hip":          Hip,
	"knee":         Knee,
	"ankle":        Ankle,
}

// OpenPose BODY_25 abbreviations, lowercased.
var openPose = map[string]Part{ //nolint:gochecknoglobals // read-only lookup
	"shoulder": Shoulder,
	"elbow":    Elbow,
	"wrist":    Wrist,
	"hip":      Hip,
	"knee":     Knee,
	"ankle":    Ankle,
}

// Canonicalize maps MediaPipe (LEFT_SHOULDER), COCO (left_shoulder),
// OpenPose (LShoulder) and hyphen or space separated variants onto a Joint.
func Canonicalize(name string) (Joint, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer("-", "_", " ", "_").Replace(n)
	if n == "" {
		return "", false
	}
	if n == string(Nose) {
		return Nose, true
	}

	for _, side := range []Side{Left, Right} {
		prefix := string(side) + "_"
		if rest, ok := strings.CutPrefix(n, prefix); ok {
			if p, known := parts[rest]; known {
				return For(side, p), true
			}
			return "", false
		}
	}

	// OpenPose: single-letter side followed directly by the part.
	if len(n) > 1 {
		var side Side
		switch n[0] {
		case 'l':
			side = Left
		case 'r':
			side = Right
		}
		if side != "" {
			if p, known := openPose[n[1:]]; known {
				return For(side, p), true
			}
		}
	}
	return "", false
}
