package shooters

import "errors"

// ErrInvalidTable is returned for unparsable or inconsistent shooter data.
var ErrInvalidTable = errors.New("invalid shooter table")
