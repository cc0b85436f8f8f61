package training

import "errors"

// Sentinel errors for training.
var (
	ErrInvalidConfig = errors.New("invalid training config")
	ErrDegenerate    = errors.New("dataset cannot be split")
)
