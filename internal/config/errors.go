package config

import "errors"

// Errors returned by configuration operations.
var (
	// ErrInvalidPluginID indicates a plugin identifier unsafe to use as a
	// JSON path segment.
	ErrInvalidPluginID = errors.New("invalid plugin id")

	// ErrInvalidDocument indicates the config file is not valid JSON.
	ErrInvalidDocument = errors.New("config file is not valid JSON")
)
