package storage

import "errors"

// ErrNotFound is the sentinel matched by errors.Is for any missing record.
var ErrNotFound = errors.New("not found")

// NotFoundError reports a missing record of a specific kind.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return e.Kind + " not found"
	}

	return e.Kind + " not found: " + e.ID
}

func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
