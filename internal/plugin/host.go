package plugin

import (
	"fmt"
	"path/filepath"
	"sync"

	glua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/mgit-app/mgit/internal/plugin/lua"
)

// ListenerFunc is an event callback harvested from a plugin.
type ListenerFunc func(payload map[string]any) error

// HookFunc is a hook transform harvested from a plugin. It receives the
// current value and the call payload and returns the transformed value.
type HookFunc func(value any, payload map[string]any) (any, error)

// HostEnv carries the host-side services a plugin may use at runtime.
type HostEnv struct {
	Logger   *zap.Logger
	Settings Settings

	// Emit lets plugin code publish events of its own. May be nil.
	Emit func(event string, payload map[string]any)
}

// Host owns a single plugin instance: its Lua state, descriptor, and
// lifecycle. All Lua access is serialized through the host's mutex.
type Host struct {
	mu sync.Mutex

	id     string
	dir    string
	main   string
	desc   *Descriptor
	state  State
	vm     *lua.State
	bridge *lua.Bridge
	env    HostEnv
}

// NewHost creates a host for a discovered candidate. No code runs until Load.
func NewHost(c Candidate, env HostEnv) *Host {
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	return &Host{
		id:    c.ID,
		dir:   c.Dir,
		main:  c.Main,
		state: StateDiscovered,
		env:   env,
	}
}

// ID returns the plugin identifier.
func (h *Host) ID() string { return h.id }

// Descriptor returns the plugin's descriptor. Nil before Load succeeds.
func (h *Host) Descriptor() *Descriptor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.desc
}

// State returns the current lifecycle state.
func (h *Host) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Host) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// Load executes the plugin's entry point and builds its descriptor from
// describe(). On failure the Lua state is released and the host is unusable.
func (h *Host) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	vm := lua.NewState()
	h.vm = vm
	h.bridge = lua.NewBridge(vm)
	h.installAPI()

	mainPath := filepath.Join(h.dir, h.main)
	if err := vm.DoFile(mainPath); err != nil {
		h.closeLocked()
		return fmt.Errorf("plugin %q: %w", h.id, err)
	}

	if !vm.HasGlobal("describe") {
		h.closeLocked()
		return fmt.Errorf("plugin %q: %w", h.id, ErrNoDescribe)
	}

	results, err := vm.Call("describe")
	if err != nil {
		h.closeLocked()
		return fmt.Errorf("plugin %q: describe(): %w", h.id, err)
	}
	if len(results) == 0 {
		h.closeLocked()
		return fmt.Errorf("plugin %q: describe() returned nothing", h.id)
	}
	tbl, ok := h.bridge.ToGo(results[0]).(map[string]any)
	if !ok {
		h.closeLocked()
		return fmt.Errorf("plugin %q: describe() must return a table", h.id)
	}

	desc, err := DescriptorFromTable(h.id, tbl)
	if err != nil {
		h.closeLocked()
		return err
	}
	desc.Dir = h.dir
	desc.Main = h.main

	h.desc = desc
	h.state = StateInstantiated
	return nil
}

// Initialize calls the plugin's initialize(app) function with the opaque
// host-application handle. A missing initialize is a no-op success.
func (h *Host) Initialize(app map[string]any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.vm == nil {
		return ErrNotLoaded
	}
	if h.vm.HasGlobal("initialize") {
		if _, err := h.vm.Call("initialize", h.bridge.ToLua(app)); err != nil {
			return fmt.Errorf("plugin %q: initialize: %w", h.id, err)
		}
	}
	h.state = StateInitialized
	return nil
}

// Enable calls the plugin's optional enable() function.
func (h *Host) Enable() error {
	if err := h.callOptional("enable"); err != nil {
		return err
	}
	h.setState(StateEnabled)
	return nil
}

// Disable calls the plugin's optional disable() function.
func (h *Host) Disable() error {
	if err := h.callOptional("disable"); err != nil {
		return err
	}
	h.setState(StateDisabled)
	return nil
}

// Cleanup calls the plugin's optional cleanup() function. Errors are
// returned for logging but teardown must proceed regardless.
func (h *Host) Cleanup() error {
	return h.callOptional("cleanup")
}

// Close releases the Lua state.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeLocked()
	h.state = StateUnloaded
}

// EventListeners harvests the plugin's events() table into Go callbacks.
// Returns an empty map when events() is absent.
func (h *Host) EventListeners() (map[string]ListenerFunc, error) {
	fns, err := h.harvest("events")
	if err != nil {
		return nil, err
	}
	out := make(map[string]ListenerFunc, len(fns))
	for name, fn := range fns {
		out[name] = h.listener(fn)
	}
	return out, nil
}

// Hooks harvests the plugin's hooks() table into Go transforms.
func (h *Host) Hooks() (map[string]HookFunc, error) {
	fns, err := h.harvest("hooks")
	if err != nil {
		return nil, err
	}
	out := make(map[string]HookFunc, len(fns))
	for name, fn := range fns {
		out[name] = h.hook(fn)
	}
	return out, nil
}

func (h *Host) listener(fn *glua.LFunction) ListenerFunc {
	return func(payload map[string]any) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.vm == nil {
			return ErrNotLoaded
		}
		_, err := h.bridge.CallFunc(fn, payload)
		return err
	}
}

func (h *Host) hook(fn *glua.LFunction) HookFunc {
	return func(value any, payload map[string]any) (any, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.vm == nil {
			return value, ErrNotLoaded
		}
		results, err := h.bridge.CallFunc(fn, value, payload)
		if err != nil {
			return value, err
		}
		if len(results) == 0 {
			return value, nil
		}
		return results[0], nil
	}
}

// harvest calls the named declaration function and collects its
// name → function table.
func (h *Host) harvest(declFn string) (map[string]*glua.LFunction, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.vm == nil {
		return nil, ErrNotLoaded
	}
	if !h.vm.HasGlobal(declFn) {
		return map[string]*glua.LFunction{}, nil
	}

	results, err := h.vm.Call(declFn)
	if err != nil {
		return nil, fmt.Errorf("plugin %q: %s(): %w", h.id, declFn, err)
	}
	out := make(map[string]*glua.LFunction)
	if len(results) == 0 {
		return out, nil
	}
	tbl, ok := results[0].(*glua.LTable)
	if !ok {
		return nil, fmt.Errorf("plugin %q: %s() must return a table", h.id, declFn)
	}
	tbl.ForEach(func(k, v glua.LValue) {
		name, kOK := k.(glua.LString)
		fn, vOK := v.(*glua.LFunction)
		if kOK && vOK {
			out[string(name)] = fn
		}
	})
	return out, nil
}

func (h *Host) callOptional(fn string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.vm == nil {
		return ErrNotLoaded
	}
	if !h.vm.HasGlobal(fn) {
		return nil
	}
	if _, err := h.vm.Call(fn); err != nil {
		return fmt.Errorf("plugin %q: %s: %w", h.id, fn, err)
	}
	return nil
}

func (h *Host) closeLocked() {
	if h.vm != nil {
		h.vm.Close()
		h.vm = nil
		h.bridge = nil
	}
}

// installAPI injects the mgit module into the plugin's Lua state. Settings
// access delegates to the external store; the plugin owns no persistence.
// Called with h.mu held during Load.
func (h *Host) installAPI() {
	logger := h.env.Logger.Named(h.id)

	h.vm.RegisterModule("mgit", map[string]glua.LGFunction{
		"log": func(l *glua.LState) int {
			logger.Info(l.CheckString(1))
			return 0
		},
		"warn": func(l *glua.LState) int {
			logger.Warn(l.CheckString(1))
			return 0
		},
		"get_setting": func(l *glua.LState) int {
			key := l.CheckString(1)
			if h.env.Settings != nil {
				if v, ok := h.env.Settings.PluginSetting(h.id, key); ok {
					l.Push(h.bridge.ToLua(v))
					return 1
				}
			}
			if h.desc != nil {
				if def, ok := h.desc.SettingDefault(key); ok {
					l.Push(h.bridge.ToLua(def))
					return 1
				}
			}
			l.Push(l.Get(2)) // caller-provided default, or nil
			return 1
		},
		"set_setting": func(l *glua.LState) int {
			if h.env.Settings == nil {
				return 0
			}
			key := l.CheckString(1)
			value := h.bridge.ToGo(l.Get(2))
			if err := h.env.Settings.SetPluginSetting(h.id, key, value); err != nil {
				logger.Warn("failed to persist setting",
					zap.String("key", key), zap.Error(err))
			}
			return 0
		},
		"emit": func(l *glua.LState) int {
			if h.env.Emit == nil {
				return 0
			}
			name := l.CheckString(1)
			payload, _ := h.bridge.ToGo(l.Get(2)).(map[string]any)
			h.env.Emit(name, payload)
			return 0
		},
	})
}
