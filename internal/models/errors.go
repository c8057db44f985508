package models

import "errors"

// Error kinds shared by the store, the services and the HTTP layer.
// Callers wrap them with context and match with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("concurrent modification")
	ErrUpstream   = errors.New("upstream service failure")
)
