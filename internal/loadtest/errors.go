package loadtest

import "errors"

// Sentinel errors for load test runs.
var (
	ErrInvalidConfig = errors.New("invalid load test config")
	ErrUnhealthy     = errors.New("service unhealthy")
	ErrMismatch      = errors.New("result mismatch")
)
