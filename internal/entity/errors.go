package entity

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means a compare-and-set lost against another writer.
	ErrConflict          = errors.New("status changed concurrently")
	ErrIllegalTransition = errors.New("illegal status transition")
)
