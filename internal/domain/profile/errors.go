package profile

import "errors"

// ErrInvalidUserProfile is returned for out-of-range or unknown profile values.
var ErrInvalidUserProfile = errors.New("invalid user profile")
