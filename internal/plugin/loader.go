package plugin

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Candidate describes one discovered plugin location. Discovery never
// executes plugin code; a Candidate is purely a filesystem observation.
type Candidate struct {
	// ID is the identifier derived from the file or directory name.
	ID string

	// Dir is the directory containing the plugin.
	Dir string

	// Main is the entry-point file name relative to Dir.
	Main string

	// UserPath is true when the candidate came from the user directory.
	UserPath bool
}

// Loader discovers plugins in the configured search roots.
//
// Roots are scanned user directory first, so a user-path plugin shadows a
// system-path plugin with the same identifier. Shadowing is detected
// explicitly and logged rather than silently resolved by iteration order.
type Loader struct {
	systemDir string
	userDir   string
	logger    *zap.Logger
}

// NewLoader creates a Loader over the given search roots.
func NewLoader(systemDir, userDir string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{systemDir: systemDir, userDir: userDir, logger: logger}
}

// DefaultUserDir returns the per-user plugin directory (~/.mgit/plugins).
func DefaultUserDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".mgit", "plugins")
}

// Discover lists all plugin candidates, sorted lexicographically by
// identifier. Missing or unreadable roots contribute zero candidates and are
// never fatal. Identifiers with a leading underscore are skipped.
func (l *Loader) Discover() []Candidate {
	byID := make(map[string]Candidate)

	// User directory first: it wins identifier collisions.
	for _, c := range l.scan(l.userDir, true) {
		byID[c.ID] = c
	}
	for _, c := range l.scan(l.systemDir, false) {
		if prev, exists := byID[c.ID]; exists {
			l.logger.Warn("user plugin shadows system plugin",
				zap.String("plugin", c.ID),
				zap.String("user_path", prev.Dir),
				zap.String("system_path", c.Dir))
			continue
		}
		byID[c.ID] = c
	}

	out := make([]Candidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Find locates a single candidate by identifier.
func (l *Loader) Find(id string) (Candidate, bool) {
	for _, c := range l.Discover() {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}

func (l *Loader) scan(root string, userPath bool) []Candidate {
	if root == "" {
		return nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("failed to read plugin directory",
				zap.String("dir", root), zap.Error(err))
		}
		return nil
	}

	var out []Candidate
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
			continue
		}

		if entry.IsDir() {
			// Directory plugin: must contain init.lua.
			if _, err := os.Stat(filepath.Join(root, name, "init.lua")); err != nil {
				continue
			}
			out = append(out, Candidate{
				ID:       name,
				Dir:      filepath.Join(root, name),
				Main:     "init.lua",
				UserPath: userPath,
			})
			continue
		}

		// Single-file plugin: name.lua.
		if filepath.Ext(name) == ".lua" {
			out = append(out, Candidate{
				ID:       strings.TrimSuffix(name, ".lua"),
				Dir:      root,
				Main:     name,
				UserPath: userPath,
			})
		}
	}
	return out
}
