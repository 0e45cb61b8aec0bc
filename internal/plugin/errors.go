package plugin

import "errors"

// Plugin system errors.
var (
	// ErrPluginNotFound is returned when a plugin cannot be located.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrNoDescribe is returned when a plugin does not define describe().
	ErrNoDescribe = errors.New("plugin does not define describe()")

	// ErrNotLoaded is returned when operating on a plugin that is not loaded.
	ErrNotLoaded = errors.New("plugin is not loaded")

	// ErrDependencyNotLoaded is returned when a required plugin is not loaded.
	ErrDependencyNotLoaded = errors.New("required plugin is not loaded")
)
