package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrQueueFull = errors.New("batch queue full")
	ErrClosed    = errors.New("batch queue closed")
)
