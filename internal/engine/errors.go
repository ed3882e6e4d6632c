package engine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrModeUnavailable  = errors.New("mode not available")
	ErrEngineFailure    = errors.New("engine failure")
	ErrToolNotInstalled = errors.New("external tool not installed")
	ErrToolFailed       = errors.New("external tool failed")
	ErrToolTimeout      = errors.New("external tool timed out")
)

// UnavailableError rejects a request whose mode has no usable backend.
type UnavailableError struct {
	Mode   ID
	Advice string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("mode %q not available", e.Mode)
}

func (e *UnavailableError) Unwrap() error {
	return ErrModeUnavailable
}

// ToolError carries the diagnostics of a failed external tool run.
type ToolError struct {
	Tool     ID
	ExitCode int
	Output   string
	Err      error
}

func (e *ToolError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("%s: %v (exit code %d)", e.Tool, e.Err, e.ExitCode)
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Failure wraps err as an engine hard failure of engine id.
func Failure(id ID, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrEngineFailure, id, err)
}
