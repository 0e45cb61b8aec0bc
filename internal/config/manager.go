package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

// maxRecent caps the recent-repositories list.
const maxRecent = 10

var pluginIDPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// Manager holds the configuration document and writes it back on every
// mutation. Safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	path   string
	data   string
	logger *zap.Logger
}

// DefaultPath returns ~/.mgit/config.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".mgit", "config.json")
	}
	return filepath.Join(home, ".mgit", "config.json")
}

// Load reads the configuration file at path, creating an empty document if
// the file does not exist.
func Load(path string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	data := "{}"
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if !gjson.ValidBytes(raw) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, path)
		}
		data = string(raw)
	case os.IsNotExist(err):
		logger.Debug("config file missing, starting empty", zap.String("path", path))
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	return &Manager{path: path, data: data, logger: logger}, nil
}

// Path returns the configuration file location.
func (m *Manager) Path() string { return m.path }

// Theme returns the configured theme name, defaulting to "light".
func (m *Manager) Theme() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v := gjson.Get(m.data, "theme"); v.Exists() {
		return v.String()
	}
	return "light"
}

// SetTheme persists the theme name.
func (m *Manager) SetTheme(name string) error {
	return m.set("theme", name)
}

// RecentRepositories returns the recent repository paths, most recent first.
func (m *Manager) RecentRepositories() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, v := range gjson.Get(m.data, "recent_repositories").Array() {
		out = append(out, v.String())
	}
	return out
}

// AddRecentRepository moves path to the front of the recent list, dropping
// duplicates and trimming to the cap.
func (m *Manager) AddRecentRepository(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	recent := []string{path}
	for _, v := range gjson.Get(m.data, "recent_repositories").Array() {
		if v.String() == path {
			continue
		}
		recent = append(recent, v.String())
		if len(recent) == maxRecent {
			break
		}
	}

	data, err := sjson.Set(m.data, "recent_repositories", recent)
	if err != nil {
		return fmt.Errorf("set recent repositories: %w", err)
	}
	return m.persist(data)
}

// IsPluginEnabled reports the persisted enabled flag for a plugin. A plugin
// with no entry is enabled.
func (m *Manager) IsPluginEnabled(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := gjson.Get(m.data, "plugins."+id+".enabled")
	if !v.Exists() {
		return true
	}
	return v.Bool()
}

// SetPluginEnabled persists a plugin's enabled flag.
func (m *Manager) SetPluginEnabled(id string, enabled bool) error {
	if err := checkPluginID(id); err != nil {
		return err
	}
	return m.set("plugins."+id+".enabled", enabled)
}

// PluginSetting returns one stored setting for a plugin. The second return
// is false when no value is stored.
func (m *Manager) PluginSetting(id, key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := gjson.Get(m.data, "plugins."+id+".settings."+key)
	if !v.Exists() {
		return nil, false
	}
	return v.Value(), true
}

// SetPluginSetting stores one setting for a plugin.
func (m *Manager) SetPluginSetting(id, key string, value any) error {
	if err := checkPluginID(id); err != nil {
		return err
	}
	return m.set("plugins."+id+".settings."+key, value)
}

// PluginSettings returns every stored setting for a plugin. Never nil.
func (m *Manager) PluginSettings(id string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any)
	gjson.Get(m.data, "plugins."+id+".settings").ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = value.Value()
		return true
	})
	return out
}

func (m *Manager) set(path string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := sjson.Set(m.data, path, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return m.persist(data)
}

// persist writes the document through a temp file rename so a crash never
// leaves a truncated config. Caller holds m.mu.
func (m *Manager) persist(data string) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(gjson.Get(data, "@pretty").String()), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	m.data = data
	return nil
}

func checkPluginID(id string) error {
	if !pluginIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidPluginID, id)
	}
	return nil
}
