package server

import "github.com/pkg/errors"

// Server-specific errors
var (
	ErrServerClosed         = errors.New("server is closed")
	ErrServerNotRunning     = errors.New("server is not running")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrInvalidTopic         = errors.New("invalid topic")
	ErrListenerFailed       = errors.New("failed to create listener")
)
