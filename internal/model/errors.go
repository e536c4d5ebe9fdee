package model

import "errors"

// Error kinds. Go uses sentinel errors (predefined error values) instead of
// exception types; concrete errors wrap one of these with %w and callers check
// with errors.Is.
var (
	ErrNetwork           = errors.New("network error")
	ErrParse             = errors.New("unexpected response")
	ErrGeneration        = errors.New("generation failed")
	ErrFilesystem        = errors.New("filesystem error")
	ErrNoResults         = errors.New("no usable results")
	ErrMissingCredential = errors.New("missing credential")
)
