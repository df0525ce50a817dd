package ratelimiter

import "errors"

var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrInvalidTokenCount = errors.New("invalid token count")
	ErrAlreadyStarted    = errors.New("cleanup already started")
	ErrNotStarted        = errors.New("cleanup not started")
	ErrCleanupDisabled   = errors.New("cleanup interval must be positive")
)
