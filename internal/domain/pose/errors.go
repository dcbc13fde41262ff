package pose

import "errors"

// ErrInvalidKeypoint reports coordinates or confidence outside [0,1].
var ErrInvalidKeypoint = errors.New("invalid keypoint")
