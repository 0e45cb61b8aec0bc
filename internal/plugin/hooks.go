package plugin

import "go.uber.org/zap"

// Hook names the application applies. Like events, hook names are open:
// plugins may define and apply their own chains through mgit.emit-style
// conventions; the application itself threads document content through these.
const (
	// HookDocumentRender transforms document content before preview
	// rendering. Value: content (string). Payload: "path" (string).
	HookDocumentRender = "document.render"

	// HookCommitMessage transforms a commit message before it is used.
	// Value: message (string). Payload: "path" (string).
	HookCommitMessage = "commit.message"
)

// hookReg ties a registered hook transform to its owning plugin.
type hookReg struct {
	owner string
	fn    HookFunc
}

// ApplyHook threads value through every registered transform for name, in
// registration order. Each transform receives the previous transform's
// result. A failing or panicking transform is logged and treated as a no-op:
// the fold continues with the previous value unchanged.
func (m *Manager) ApplyHook(name string, value any, payload map[string]any) any {
	m.mu.RLock()
	regs := make([]hookReg, len(m.hooks[name]))
	copy(regs, m.hooks[name])
	m.mu.RUnlock()

	result := value
	for _, reg := range regs {
		result = m.safeApply(name, reg, result, payload)
	}
	return result
}

func (m *Manager) safeApply(name string, reg hookReg, value any, payload map[string]any) (result any) {
	result = value
	defer func() {
		if r := recover(); r != nil {
			result = value
			m.logger.Error("hook panicked",
				zap.String("hook", name),
				zap.String("plugin", reg.owner),
				zap.Any("panic", r))
		}
	}()

	out, err := reg.fn(value, payload)
	if err != nil {
		m.logger.Warn("hook failed",
			zap.String("hook", name),
			zap.String("plugin", reg.owner),
			zap.Error(err))
		return value
	}
	return out
}

// registerHooks adds a plugin's hook transforms. A plugin+hook pair is
// registered at most once. Caller holds m.mu.
func (m *Manager) registerHooks(owner string, hooks map[string]HookFunc) {
	for name, fn := range hooks {
		if m.hasHook(owner, name) {
			continue
		}
		m.hooks[name] = append(m.hooks[name], hookReg{owner: owner, fn: fn})
	}
}

func (m *Manager) hasHook(owner, hook string) bool {
	for _, reg := range m.hooks[hook] {
		if reg.owner == owner {
			return true
		}
	}
	return false
}

// removeHooks drops every hook owned by a plugin. Caller holds m.mu.
func (m *Manager) removeHooks(owner string) {
	for name, regs := range m.hooks {
		kept := regs[:0]
		for _, reg := range regs {
			if reg.owner != owner {
				kept = append(kept, reg)
			}
		}
		if len(kept) == 0 {
			delete(m.hooks, name)
		} else {
			m.hooks[name] = kept
		}
	}
}
