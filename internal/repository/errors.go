package repository

import "errors"

// ErrNotFound is returned by every backend when a lookup matches nothing.
var ErrNotFound = errors.New("record not found")
