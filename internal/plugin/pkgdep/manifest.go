package pkgdep

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	manifestHeader = "# --- mgit managed plugins ---"
	manifestFooter = "# --- end mgit managed plugins ---"
)

// mergeManifest rewrites the managed section of the manifest file with the
// union of its current contents and names. Lines outside the marker pair
// are the user's and are preserved verbatim. A missing file or missing
// section is created.
func mergeManifest(path string, names []string) error {
	var before, after []string
	managed := make(map[string]struct{})

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	section := 0 // 0 before markers, 1 inside, 2 after
	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case section == 0 && strings.TrimSpace(line) == manifestHeader:
			section = 1
		case section == 1 && strings.TrimSpace(line) == manifestFooter:
			section = 2
		case section == 0:
			before = append(before, line)
		case section == 1:
			if name := strings.TrimSpace(line); name != "" {
				managed[name] = struct{}{}
			}
		default:
			after = append(after, line)
		}
	}

	for _, name := range names {
		managed[name] = struct{}{}
	}
	merged := make([]string, 0, len(managed))
	for name := range managed {
		merged = append(merged, name)
	}
	sort.Strings(merged)

	// Drop trailing blank split artifacts so we control the final newline.
	for len(before) > 0 && before[len(before)-1] == "" {
		before = before[:len(before)-1]
	}
	for len(after) > 0 && after[len(after)-1] == "" {
		after = after[:len(after)-1]
	}

	var b strings.Builder
	for _, line := range before {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(manifestHeader)
	b.WriteString("\n")
	for _, name := range merged {
		b.WriteString(name)
		b.WriteString("\n")
	}
	b.WriteString(manifestFooter)
	b.WriteString("\n")
	for _, line := range after {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
