package core

import "errors"

var (
	ErrEntityNotFound = errors.New("entity not found")
	ErrInvalidRequest = errors.New("invalid request")
)
