package domain

import "errors"

// Sentinel errors shared by every layer. Match them with errors.Is.
var (
	// ErrNotFound covers both missing cards and cards owned by someone else.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks rejected input: bad ratings, malformed payloads.
	ErrValidation = errors.New("validation failed")
	// ErrInvariant marks scheduling state that cannot occur unless the
	// scheduler or the stored data is broken.
	ErrInvariant = errors.New("invariant violation")
	// ErrConflict is returned when a card changed between read and write,
	// or when a resource that must be unique already exists.
	ErrConflict = errors.New("conflict")
)
