package plugin

// Settings is the persistence contract the plugin system consumes but does
// not implement. Enabled state and per-plugin settings must be durable
// across restarts and queryable without a live plugin instance, so a
// disabled plugin can stay unloaded entirely on the next startup.
type Settings interface {
	// IsPluginEnabled reports the persisted enabled flag. Plugins with no
	// recorded state default to enabled.
	IsPluginEnabled(id string) bool

	// SetPluginEnabled persists the enabled flag.
	SetPluginEnabled(id string, enabled bool) error

	// PluginSetting returns a stored setting value.
	PluginSetting(id, key string) (any, bool)

	// SetPluginSetting persists a setting value.
	SetPluginSetting(id, key string, value any) error

	// PluginSettings returns all stored settings for a plugin, or nil.
	PluginSettings(id string) map[string]any
}
