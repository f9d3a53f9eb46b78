package model

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrEmptyMessage = errors.New("empty message")
	ErrRateLimited  = errors.New("rate limit exceeded")
)
