package viewer

import "errors"

// ErrServerClosed — Run уже вызывался для этого сервера.
var ErrServerClosed = errors.New("viewer server closed")
