package plugin

import "go.uber.org/zap"

// Host-published lifecycle events. Event names are free-form strings; any
// plugin may invent its own and any other plugin may listen for it. These
// constants cover the events the application itself publishes, with the
// payload keys each carries.
const (
	// EventAppInitialized fires once after startup completes.
	// Payload: "version" (string).
	EventAppInitialized = "app.initialized"

	// EventDocumentOpened fires when a document is opened.
	// Payload: "path" (string).
	EventDocumentOpened = "document.opened"

	// EventDocumentSaved fires when a document is written to disk.
	// Payload: "path" (string).
	EventDocumentSaved = "document.saved"

	// EventRepositoryOpened fires when a Git repository is opened.
	// Payload: "path" (string), "branch" (string).
	EventRepositoryOpened = "repository.opened"

	// EventPluginLoaded fires after a plugin finishes loading.
	// Payload: "plugin" (string), "version" (string).
	EventPluginLoaded = "plugin.loaded"
)

// listenerReg ties a registered listener to its owning plugin.
type listenerReg struct {
	owner string
	fn    ListenerFunc
}

// TriggerEvent fans an event out to every registered listener in
// registration order (which is plugin load order). Each invocation is
// independently guarded: a failing or panicking listener is logged and does
// not affect sibling listeners or the caller.
func (m *Manager) TriggerEvent(name string, payload map[string]any) {
	m.mu.RLock()
	regs := make([]listenerReg, len(m.listeners[name]))
	copy(regs, m.listeners[name])
	m.mu.RUnlock()

	for _, reg := range regs {
		m.safeListen(name, reg, payload)
	}
}

func (m *Manager) safeListen(name string, reg listenerReg, payload map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("event listener panicked",
				zap.String("event", name),
				zap.String("plugin", reg.owner),
				zap.Any("panic", r))
		}
	}()
	if err := reg.fn(payload); err != nil {
		m.logger.Warn("event listener failed",
			zap.String("event", name),
			zap.String("plugin", reg.owner),
			zap.Error(err))
	}
}

// registerListeners adds a plugin's listeners to the table. A plugin+event
// pair is registered at most once. Caller holds m.mu.
func (m *Manager) registerListeners(owner string, listeners map[string]ListenerFunc) {
	for name, fn := range listeners {
		if m.hasListener(owner, name) {
			continue
		}
		m.listeners[name] = append(m.listeners[name], listenerReg{owner: owner, fn: fn})
	}
}

func (m *Manager) hasListener(owner, event string) bool {
	for _, reg := range m.listeners[event] {
		if reg.owner == owner {
			return true
		}
	}
	return false
}

// removeListeners drops every registration owned by a plugin. Caller holds m.mu.
func (m *Manager) removeListeners(owner string) {
	for name, regs := range m.listeners {
		kept := regs[:0]
		for _, reg := range regs {
			if reg.owner != owner {
				kept = append(kept, reg)
			}
		}
		if len(kept) == 0 {
			delete(m.listeners, name)
		} else {
			m.listeners[name] = kept
		}
	}
}
