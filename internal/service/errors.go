package service

import "errors"

// Shared business errors; handlers map these onto HTTP status codes or
// socket error messages.
var (
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrProjectNotFound    = errors.New("project not found")
	ErrNoHistory          = errors.New("no rollback history")
)
