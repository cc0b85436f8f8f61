// Package types contains the error taxonomy shared across the application.
package types

import (
	"errors"
	"fmt"
	"strconv"
)

// Kind classifies a prediction failure.
type Kind string

// Error kinds. Artifact kinds are deployment errors; the rest are caller errors.
const (
	KindMissingArtifact  Kind = "MissingArtifact"
	KindCorruptArtifact  Kind = "CorruptArtifact"
	KindMissingInput     Kind = "MissingInput"
	KindInvalidJSON      Kind = "InvalidJSON"
	KindInvalidFieldType Kind = "InvalidFieldType"
	KindRangeViolation   Kind = "RangeViolation"
	KindBackpressure     Kind = "Backpressure"
)

// Sentinel errors, one per kind. *Error matches them through errors.Is.
var (
	ErrMissingArtifact  = errors.New("missing model artifact")
	ErrCorruptArtifact  = errors.New("corrupt model artifact")
	ErrMissingInput     = errors.New("no input data provided")
	ErrInvalidJSON      = errors.New("invalid JSON format")
	ErrInvalidFieldType = errors.New("invalid field type")
	ErrRangeViolation   = errors.New("range violation")
	ErrBackpressure     = errors.New("backpressure")
)

var sentinels = map[Kind]error{
	KindMissingArtifact:  ErrMissingArtifact,
	KindCorruptArtifact:  ErrCorruptArtifact,
	KindMissingInput:     ErrMissingInput,
	KindInvalidJSON:      ErrInvalidJSON,
	KindInvalidFieldType: ErrInvalidFieldType,
	KindRangeViolation:   ErrRangeViolation,
	KindBackpressure:     ErrBackpressure,
}

var titles = map[Kind]string{
	KindMissingArtifact:  "Missing model artifact",
	KindCorruptArtifact:  "Corrupt model artifact",
	KindMissingInput:     "No input data provided",
	KindInvalidJSON:      "Invalid JSON format",
	KindInvalidFieldType: "Invalid field type",
	KindRangeViolation:   "Range violation",
	KindBackpressure:     "Backpressure",
}

// Error carries the kind plus enough detail for a caller to fix the request.
type Error struct {
	Kind  Kind
	Field string
	Value float64
	Min   float64
	Max   float64
	Unit  string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	title := titles[e.Kind]
	if title == "" {
		title = string(e.Kind)
	}
	detail := e.detail()
	if detail == "" {
		return title
	}
	return title + ": " + detail
}

func (e *Error) detail() string {
	switch {
	case e.Kind == KindRangeViolation && e.Msg == "":
		d := fmt.Sprintf("%s must be between %s and %s", e.Field, fmtFloat(e.Min), fmtFloat(e.Max))
		if e.Unit != "" {
			d += " " + e.Unit
		}
		return d + " (got " + fmtFloat(e.Value) + ")"
	case e.Kind == KindInvalidJSON && e.Err != nil:
		return e.Err.Error()
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return ""
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf extracts the Kind from err. The second result is false when err is not an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsArtifactError reports whether err is a load-time artifact failure.
func IsArtifactError(err error) bool {
	return errors.Is(err, ErrMissingArtifact) || errors.Is(err, ErrCorruptArtifact)
}

// MissingArtifact reports a required artifact file that does not exist.
func MissingArtifact(msg string) *Error {
	return &Error{Kind: KindMissingArtifact, Msg: msg}
}

// CorruptArtifact reports an artifact that exists but cannot be used.
func CorruptArtifact(msg string, err error) *Error {
	return &Error{Kind: KindCorruptArtifact, Msg: msg, Err: err}
}

// MissingInput reports an absent request payload.
func MissingInput() *Error {
	return &Error{Kind: KindMissingInput}
}

// InvalidJSON wraps a decoder error.
func InvalidJSON(err error) *Error {
	return &Error{Kind: KindInvalidJSON, Err: err}
}

// InvalidFieldType reports a value that cannot be coerced to a number.
func InvalidFieldType(field string, v any) *Error {
	var msg string
	switch val := v.(type) {
	case nil:
		msg = field + " must be numeric, got null"
	case string:
		msg = fmt.Sprintf("%s must be numeric, got string %q", field, val)
	default:
		msg = fmt.Sprintf("%s must be numeric, got %T", field, v)
	}
	return &Error{Kind: KindInvalidFieldType, Field: field, Msg: msg}
}

// RangeViolation reports a value outside its inclusive bounds.
func RangeViolation(field string, value, minV, maxV float64, unit string) *Error {
	return &Error{Kind: KindRangeViolation, Field: field, Value: value, Min: minV, Max: maxV, Unit: unit}
}

// Unscorable reports an in-range value whose scaled form overflows the
// model arithmetic. field may be empty when no single feature is to blame.
func Unscorable(field string, value float64) *Error {
	if field == "" {
		return &Error{Kind: KindRangeViolation, Msg: "input cannot be scored by the loaded model"}
	}
	return &Error{Kind: KindRangeViolation, Field: field, Value: value,
		Msg: fmt.Sprintf("%s value %s is too large to score", field, fmtFloat(value))}
}

// Backpressure reports a full work queue.
func Backpressure(msg string) *Error {
	return &Error{Kind: KindBackpressure, Msg: msg}
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
