package model

import "errors"

// ErrInvalidModel marks a structurally unusable artifact.
var ErrInvalidModel = errors.New("invalid model")
