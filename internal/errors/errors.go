package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/petminder/internal/constants"
	"github.com/julianstephens/petminder/internal/logger"
)

// Sentinels for the engine's error classes. Match with errors.Is.
var (
	ErrNotFound   = stderrors.New("not found")
	ErrValidation = stderrors.New("validation failed")
	ErrSync       = stderrors.New("remote synchronization failed")
	ErrInvariant  = stderrors.New("invariant violated")
)

// NotFound reports a lookup failure for the given entity kind and id.
func NotFound(kind string, id any) error {
	return fmt.Errorf("%s %v: %w", kind, id, ErrNotFound)
}

// ValidationError is a rejected edit. The reminder it targeted is left untouched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, reason string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(reason, args...)}
}

// SyncError wraps a failed remote call.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() []error { return []error{ErrSync, e.Err} }

// Sync wraps err as a SyncError for op. A nil err stays nil.
func Sync(op string, err error) error {
	if err == nil {
		return nil
	}
	return &SyncError{Op: op, Err: err}
}

// DevMode reports whether invariant violations should panic.
var DevMode = os.Getenv(constants.EnvDevInvariantChecks) != ""

// Invariant records a programmer error. It panics in dev mode; otherwise it
// logs and returns an error wrapping ErrInvariant so the caller can no-op.
func Invariant(format string, args ...any) error {
	err := fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
	if DevMode {
		panic(err)
	}
	logger.Error("Invariant violation", "error", err)
	return err
}

// Is, As, New and Join re-export the standard helpers so callers need one import.
func Is(err, target error) bool     { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }
func New(text string) error         { return stderrors.New(text) }
func Join(errs ...error) error      { return stderrors.Join(errs...) }

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}
