// Package plugin implements MGit's plugin loading and lifecycle system.
//
// Plugins are Lua units discovered in two search roots: a bundled system
// directory and a user directory (the user directory takes precedence when
// identifiers collide). Each plugin declares its metadata from a single
// describe() function, and optionally implements initialize, cleanup, enable,
// disable, events, and hooks.
//
// The Manager orchestrates discovery, inter-plugin dependency checks,
// external package installation, instantiation, initialization, and the
// registration of event listeners and hook transforms. Loading is
// all-or-nothing: a plugin that fails any stage of the pipeline leaves no
// trace in the registry, the category index, or the dispatch tables.
//
// Event dispatch and hook application never propagate plugin failures to the
// caller. A listener that fails is logged and skipped; a hook that fails is
// treated as an identity transform and the fold continues with the previous
// value.
package plugin
