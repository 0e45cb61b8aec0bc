package plugin

// State represents the lifecycle state of a plugin.
type State int

// Plugin states. Discovered through Initialized are transient stages of the
// load pipeline; only Initialized, Enabled, and Disabled are observable in
// the registry.
const (
	// StateDiscovered - candidate found on disk, code not executed.
	StateDiscovered State = iota

	// StateInstantiated - plugin code executed, descriptor validated.
	StateInstantiated

	// StateDependencyChecked - inter-plugin and package dependencies satisfied.
	StateDependencyChecked

	// StateInitialized - initialize() returned without error.
	StateInitialized

	// StateEnabled - plugin is enabled.
	StateEnabled

	// StateDisabled - plugin is loaded but disabled.
	StateDisabled

	// StateUnloaded - plugin has been torn down and removed.
	StateUnloaded
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateInstantiated:
		return "instantiated"
	case StateDependencyChecked:
		return "dependency-checked"
	case StateInitialized:
		return "initialized"
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	case StateUnloaded:
		return "unloaded"
	default:
		return "unknown"
	}
}

// IsLoaded reports whether the state corresponds to a registry-resident plugin.
func (s State) IsLoaded() bool {
	return s == StateInitialized || s == StateEnabled || s == StateDisabled
}
