package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidTier        = errors.New("invalid api tier")
	ErrInvalidRateLimit   = errors.New("api rate limit must be positive")
	ErrWeakPassword       = errors.New("password too short")
)
