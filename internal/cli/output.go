package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/okian/diarisk/internal/domain/types"
)

// Exit codes for CLI commands.
const (
	ExitSuccess       = 0 // Successful execution
	ExitFailure       = 1 // Bad input, failed records, bad flags
	ExitArtifactError = 2 // Model artifact missing or unusable
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitArtifactError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// exitCodeFor maps a prediction error to its exit code.
func exitCodeFor(err error) int {
	if types.IsArtifactError(err) {
		return ExitArtifactError
	}
	return ExitFailure
}

// writeResult writes v as indented JSON followed by a newline. Nothing is
// written when v cannot be encoded.
func writeResult(w io.Writer, v any) error {
	return encodeTo(w, v, "  ")
}

// writeLine writes v as compact JSON on one line.
func writeLine(w io.Writer, v any) error {
	return encodeTo(w, v, "")
}

func encodeTo(w io.Writer, v any, indent string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// writeErrorLine writes {"error": "<message>"} on one line.
func writeErrorLine(w io.Writer, err error) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if encErr := enc.Encode(err.Error()); encErr != nil {
		return encErr
	}
	_, werr := fmt.Fprintf(w, "{\"error\": %s}\n", bytes.TrimRight(buf.Bytes(), "\n"))
	return werr
}

// fail reports err on w and returns the ExitError for it.
func fail(w io.Writer, err error) error {
	if werr := writeErrorLine(w, err); werr != nil {
		return WrapExitError(ExitFailure, "write output", werr)
	}
	return WrapExitError(exitCodeFor(err), "prediction failed", err)
}
