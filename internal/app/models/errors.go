package models

import "errors"

// Domain specific errors shared across the discovery core.
var (
	ErrNotFound   = errors.New("requested item not found")
	ErrConflict   = errors.New("item already exists or conflict")
	ErrBadRequest = errors.New("bad request")
	ErrValidation = errors.New("validation failed")
)
