package lifecycle

import (
	"fmt"

	"recomo/internal/services"
)

// MissingProjectError reports a project that was still missing after it had
// been recreated once.
type MissingProjectError struct {
	SourceKey string
	ProjectID string
}

func (e *MissingProjectError) Error() string {
	return fmt.Sprintf("project %q for %q is missing and recreation did not help", e.ProjectID, e.SourceKey)
}

func (e *MissingProjectError) Is(target error) bool { return target == services.ErrMissingProject }

// ConfigurationError reports a request that cannot be satisfied without
// different input, such as a template with neither project id nor video.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

func (e *ConfigurationError) Is(target error) bool { return target == services.ErrConfiguration }
