package model

import "errors"

var (
	// ErrNotFound is returned by stores when no record matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned by stores when a uniqueness constraint (email) is violated.
	ErrDuplicate = errors.New("duplicate record")
)
