package angles

import "errors"

var (
	// ErrKeypointUnavailable marks a measurement whose joints were missing or
	// below the confidence floor.
	ErrKeypointUnavailable = errors.New("keypoint unavailable")

	// ErrDegenerate marks coincident points where no angle is defined.
	ErrDegenerate = errors.New("degenerate geometry")
)
