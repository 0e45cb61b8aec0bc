// Package lua provides the sandboxed Lua runtime that backs MGit plugins.
//
// Each plugin runs in its own State, a wrapper around gopher-lua that opens
// only the safe standard libraries and guards every execution with panic
// recovery. Bridge handles value conversion between Go and Lua, including
// nested tables with array/map detection and circular reference breaking.
//
// gopher-lua's LState is not goroutine-safe. State serializes all access
// through an internal mutex; callers must still avoid re-entrant calls from
// within Lua callbacks.
package lua
