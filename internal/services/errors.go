package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDecode         = errors.New("decode error")
	ErrRemote         = errors.New("remote service error")
	ErrMissingProject = errors.New("missing project")
	ErrConfiguration  = errors.New("configuration error")
	ErrTimeout        = errors.New("timeout")
	ErrTransient      = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Recoverable reports whether the viewer should offer a retry for err.
// Decode, remote and timeout failures are retryable; configuration errors and
// a project that stayed missing after recreation are terminal.
func Recoverable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrMissingProject):
		return false
	default:
		return true
	}
}

// Kind returns a short classification label used in logs and CLI output.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrMissingProject):
		return "missing_project"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrRemote):
		return "remote"
	default:
		return "transient"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
