package domain

import "errors"

// Store errors shared by the repository implementations.
var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyApplied = errors.New("flag already applied")
)
