package environment

import "errors"

var (
	// ErrMissingProject is returned when an operation is called without a project name.
	ErrMissingProject = errors.New("project name is required")
	// ErrMalformedConfig is returned when an environments document is not valid JSON.
	ErrMalformedConfig = errors.New("malformed environments document")
	// ErrMissingEnvironmentID is returned when an environment entry has no id.
	ErrMissingEnvironmentID = errors.New("environment entry is missing an id")
)
