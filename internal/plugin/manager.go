package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Installer resolves third-party package requirements declared by plugins.
// Ensure is called once per plugin load with that plugin's requirement list;
// FlushManifest is called once after a bulk load pass to persist whatever
// was installed during the session.
type Installer interface {
	Ensure(ctx context.Context, requirements []string) error
	FlushManifest() error
}

// ManagerConfig carries the collaborators a Manager needs. Loader and
// Settings are required; Installer and Logger may be nil.
type ManagerConfig struct {
	Loader    *Loader
	Installer Installer
	Settings  Settings
	Logger    *zap.Logger

	// App is the opaque application handle passed to each plugin's
	// initialize(app). Keys are host-defined (version, data_dir, ...).
	App map[string]any
}

// Manager owns the full plugin registry: loading, lifecycle, and event and
// hook dispatch. All registry mutation happens under mu; plugin code never
// runs while mu is held for writing.
type Manager struct {
	mu sync.RWMutex

	loader    *Loader
	installer Installer
	settings  Settings
	logger    *zap.Logger
	appHandle map[string]any

	plugins    map[string]*Host
	loadOrder  []string
	byCategory map[string][]string

	listeners map[string][]listenerReg
	hooks     map[string][]hookReg
}

// NewManager creates an empty manager. No plugins are discovered or loaded
// until LoadAllPlugins or LoadPlugin is called.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		loader:     cfg.Loader,
		installer:  cfg.Installer,
		settings:   cfg.Settings,
		logger:     logger,
		appHandle:  cfg.App,
		plugins:    make(map[string]*Host),
		byCategory: make(map[string][]string),
		listeners:  make(map[string][]listenerReg),
		hooks:      make(map[string][]hookReg),
	}
}

// LoadPlugin discovers, instantiates, and initializes a single plugin.
// Returns true when the plugin ends up loaded, false otherwise. Loading an
// already-loaded plugin is a no-op success. A failure at any step leaves the
// registry exactly as it was: nothing is registered until the plugin has
// fully initialized.
func (m *Manager) LoadPlugin(ctx context.Context, id string) bool {
	m.mu.RLock()
	_, loaded := m.plugins[id]
	m.mu.RUnlock()
	if loaded {
		return true
	}

	cand, ok := m.loader.Find(id)
	if !ok {
		m.logger.Warn("plugin not found",
			zap.String("plugin", id), zap.Error(ErrPluginNotFound))
		return false
	}
	return m.load(ctx, cand)
}

func (m *Manager) load(ctx context.Context, cand Candidate) bool {
	log := m.logger.With(zap.String("plugin", cand.ID))

	host := NewHost(cand, HostEnv{
		Logger:   m.logger,
		Settings: m.settings,
		Emit: func(event string, payload map[string]any) {
			// Plugin code emits while its own host mutex is held;
			// deliver asynchronously so a plugin listening to its
			// own event cannot deadlock.
			go m.TriggerEvent(event, payload)
		},
	})

	if err := host.Load(); err != nil {
		log.Error("plugin load failed", zap.Error(err))
		return false
	}
	desc := host.Descriptor()

	if err := m.checkRequires(desc); err != nil {
		log.Error("plugin dependency check failed", zap.Error(err))
		host.Close()
		return false
	}

	if len(desc.Packages) > 0 && m.installer != nil {
		if err := m.installer.Ensure(ctx, desc.Packages); err != nil {
			log.Error("plugin package install failed", zap.Error(err))
			host.Close()
			return false
		}
	}
	host.setState(StateDependencyChecked)

	listeners, err := host.EventListeners()
	if err != nil {
		log.Error("plugin event declaration failed", zap.Error(err))
		host.Close()
		return false
	}
	hooks, err := host.Hooks()
	if err != nil {
		log.Error("plugin hook declaration failed", zap.Error(err))
		host.Close()
		return false
	}

	if err := host.Initialize(m.appHandle); err != nil {
		log.Error("plugin initialize failed", zap.Error(err))
		m.cleanupFailed(host)
		return false
	}

	m.mu.Lock()
	if _, dup := m.plugins[cand.ID]; dup {
		// Lost a race with a concurrent load of the same id.
		m.mu.Unlock()
		host.Close()
		return true
	}
	m.plugins[cand.ID] = host
	m.loadOrder = append(m.loadOrder, cand.ID)
	m.byCategory[desc.Category] = append(m.byCategory[desc.Category], cand.ID)
	m.registerListeners(cand.ID, listeners)
	m.registerHooks(cand.ID, hooks)
	m.mu.Unlock()

	log.Info("plugin loaded",
		zap.String("version", desc.Version),
		zap.String("category", desc.Category))

	m.TriggerEvent(EventPluginLoaded, map[string]any{
		"plugin":  cand.ID,
		"version": desc.Version,
	})
	return true
}

// checkRequires verifies every plugin named in requires is already loaded.
// There is no transitive resolution: load order is the user's problem, and
// LoadAllPlugins' sorted discovery makes it predictable.
func (m *Manager) checkRequires(desc *Descriptor) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, dep := range desc.Requires {
		if _, ok := m.plugins[dep]; !ok {
			return fmt.Errorf("plugin %q requires %q: %w", desc.ID, dep, ErrDependencyNotLoaded)
		}
	}
	return nil
}

// cleanupFailed tears down a host whose initialize failed. cleanup() gets a
// chance to run so partially-initialized plugins can release what they took.
func (m *Manager) cleanupFailed(host *Host) {
	if err := host.Cleanup(); err != nil {
		m.logger.Warn("plugin cleanup after failed initialize",
			zap.String("plugin", host.ID()), zap.Error(err))
	}
	host.Close()
}

// LoadAllPlugins discovers every plugin and loads each one in lexicographic
// id order. Plugins persisted as disabled are skipped entirely; individual
// failures are logged and do not stop the pass. Returns the number of
// plugins loaded by this call.
func (m *Manager) LoadAllPlugins(ctx context.Context) int {
	loaded := 0
	for _, cand := range m.loader.Discover() {
		if !m.settings.IsPluginEnabled(cand.ID) {
			m.logger.Debug("plugin disabled, skipping", zap.String("plugin", cand.ID))
			continue
		}
		if m.IsLoaded(cand.ID) {
			continue
		}
		if m.load(ctx, cand) {
			loaded++
		}
	}
	m.flushManifest()
	return loaded
}

// Refresh re-scans the plugin directories and loads any enabled plugin that
// appeared since the last pass. Already-loaded plugins are untouched.
func (m *Manager) Refresh(ctx context.Context) int {
	loaded := 0
	for _, cand := range m.loader.Discover() {
		if m.IsLoaded(cand.ID) || !m.settings.IsPluginEnabled(cand.ID) {
			continue
		}
		if m.load(ctx, cand) {
			loaded++
		}
	}
	if loaded > 0 {
		m.flushManifest()
	}
	return loaded
}

func (m *Manager) flushManifest() {
	if m.installer == nil {
		return
	}
	if err := m.installer.FlushManifest(); err != nil {
		m.logger.Warn("package manifest flush failed", zap.Error(err))
	}
}

// UnloadPlugin removes a plugin from the registry: its listeners and hooks
// are dropped, cleanup() runs, and its Lua state is released. Returns false
// if the plugin was not loaded. Other plugins that required it are not
// unloaded; they keep running without their dependency.
func (m *Manager) UnloadPlugin(id string) bool {
	m.mu.Lock()
	host, ok := m.plugins[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.plugins, id)
	m.loadOrder = removeString(m.loadOrder, id)
	cat := host.Descriptor().Category
	m.byCategory[cat] = removeString(m.byCategory[cat], id)
	if len(m.byCategory[cat]) == 0 {
		delete(m.byCategory, cat)
	}
	m.removeListeners(id)
	m.removeHooks(id)
	m.mu.Unlock()

	if err := host.Cleanup(); err != nil {
		m.logger.Warn("plugin cleanup failed", zap.String("plugin", id), zap.Error(err))
	}
	host.Close()

	m.logger.Info("plugin unloaded", zap.String("plugin", id))
	return true
}

// UnloadAll unloads every plugin in reverse load order.
func (m *Manager) UnloadAll() {
	m.mu.RLock()
	order := make([]string, len(m.loadOrder))
	copy(order, m.loadOrder)
	m.mu.RUnlock()

	for i := len(order) - 1; i >= 0; i-- {
		m.UnloadPlugin(order[i])
	}
}

// ReloadPlugin unloads and immediately reloads a plugin, picking up changed
// source from disk. A plugin that was not loaded is simply loaded.
func (m *Manager) ReloadPlugin(ctx context.Context, id string) bool {
	m.UnloadPlugin(id)
	return m.LoadPlugin(ctx, id)
}

// EnablePlugin persists the enabled flag and, if the plugin is loaded,
// calls its enable() function. Enabling a plugin that is not loaded only
// flips the flag; the next load pass will pick it up.
func (m *Manager) EnablePlugin(id string) error {
	if err := m.settings.SetPluginEnabled(id, true); err != nil {
		return fmt.Errorf("enable %q: %w", id, err)
	}
	m.mu.RLock()
	host, ok := m.plugins[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := host.Enable(); err != nil {
		return fmt.Errorf("enable %q: %w", id, err)
	}
	return nil
}

// DisablePlugin persists the disabled flag and, if the plugin is loaded,
// calls its disable() function. The plugin stays loaded and registered;
// disabling only signals it to go quiet.
func (m *Manager) DisablePlugin(id string) error {
	if err := m.settings.SetPluginEnabled(id, false); err != nil {
		return fmt.Errorf("disable %q: %w", id, err)
	}
	m.mu.RLock()
	host, ok := m.plugins[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := host.Disable(); err != nil {
		return fmt.Errorf("disable %q: %w", id, err)
	}
	return nil
}

// IsLoaded reports whether a plugin is currently in the registry.
func (m *Manager) IsLoaded(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.plugins[id]
	return ok
}

// Get returns a loaded plugin's host.
func (m *Manager) Get(id string) (*Host, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	host, ok := m.plugins[id]
	return host, ok
}

// List returns descriptors for every loaded plugin, sorted by id.
func (m *Manager) List() []*Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Descriptor, 0, len(m.plugins))
	for _, host := range m.plugins {
		out = append(out, host.Descriptor())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PluginsByCategory returns loaded plugin ids grouped by category.
func (m *Manager) PluginsByCategory() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]string, len(m.byCategory))
	for cat, ids := range m.byCategory {
		cp := make([]string, len(ids))
		copy(cp, ids)
		sort.Strings(cp)
		out[cat] = cp
	}
	return out
}

// Count returns the number of loaded plugins.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.plugins)
}

func removeString(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
