package pinscheme

import "errors"

// ErrInvalidPin is returned for a number outside the translation table.
var ErrInvalidPin = errors.New("pinscheme: pin not in table")
