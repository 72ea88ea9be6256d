package sensors

import "errors"

// Sensor framework errors
var (
	ErrNotInitialized = errors.New("sensor not initialized")
	ErrInvalidConfig  = errors.New("invalid sensor configuration")
	ErrUnknownType    = errors.New("unknown sensor type")
	ErrDuplicateType  = errors.New("sensor type already registered")
	ErrDuplicateID    = errors.New("sensor already managed")
)
