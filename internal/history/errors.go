package history

import "errors"

// ErrInvalidTransition is returned for transitions that cannot be stored.
var ErrInvalidTransition = errors.New("history: invalid transition")
