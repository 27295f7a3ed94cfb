package supervisor

import "errors"

// ErrAlreadyStarted — Start уже вызывался.
var ErrAlreadyStarted = errors.New("supervisor already started")
