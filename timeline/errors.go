package timeline

import "errors"

// ErrInvalidRange marks a caller-supplied window that cannot be
// resolved: inverted boundaries or a day count past MaxWindowDays.
// Handlers map it to a 400.
var ErrInvalidRange = errors.New("invalid range")
