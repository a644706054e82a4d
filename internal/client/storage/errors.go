package storage

import "errors"

// ErrAuthNotFound is returned when no session is stored for the server.
var ErrAuthNotFound = errors.New("not logged in")
