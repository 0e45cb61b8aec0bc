package plugin

import (
	"errors"
	"fmt"
	"regexp"
)

// Descriptor holds a plugin's declared metadata, built from the table
// returned by its describe() function. One validation point replaces
// attribute-by-attribute reflection: a plugin either produces a valid
// Descriptor or does not load.
type Descriptor struct {
	// ID is the unique identifier derived from the plugin's file or
	// directory name. Immutable once loaded.
	ID string

	// Display metadata, all optional with defaults.
	Name        string
	Version     string
	Author      string
	Description string

	// Category is a free-form grouping tag used for menu organization.
	Category string

	// Requires lists identifiers of plugins that must already be loaded.
	Requires []string

	// Packages lists external package requirements ("pkg", "pkg>=1.0").
	Packages []string

	// Settings maps setting keys to their schema.
	Settings map[string]SettingSpec

	// Enabled mirrors the persisted enabled flag. Independent of load state.
	Enabled bool

	// Dir and Main locate the plugin on disk.
	Dir  string
	Main string
}

// SettingSpec describes a single plugin setting.
type SettingSpec struct {
	Type        string
	Default     any
	Min         *float64
	Max         *float64
	Options     []string
	Description string
}

// Descriptor validation errors.
var (
	ErrInvalidID          = errors.New("descriptor: id must be lowercase alphanumeric with hyphens")
	ErrInvalidVersion     = errors.New("descriptor: version must be valid semver")
	ErrInvalidSettingType = errors.New("descriptor: invalid setting type")
)

var idPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?$`)

var validSettingTypes = map[string]bool{
	"string": true,
	"int":    true,
	"float":  true,
	"bool":   true,
	"choice": true,
}

// Defaults applied when describe() omits a field.
const (
	DefaultVersion  = "0.1.0"
	DefaultAuthor   = "Unknown"
	DefaultCategory = "general"
)

// DescriptorFromTable builds a Descriptor for the plugin id from the Go
// rendering of its describe() table. Missing fields receive defaults; the
// result is validated before being returned.
func DescriptorFromTable(id string, tbl map[string]any) (*Descriptor, error) {
	d := &Descriptor{
		ID:       id,
		Name:     id,
		Version:  DefaultVersion,
		Author:   DefaultAuthor,
		Category: DefaultCategory,
		Enabled:  true,
	}

	if v, ok := tbl["name"].(string); ok && v != "" {
		d.Name = v
	}
	if v, ok := tbl["version"].(string); ok && v != "" {
		d.Version = v
	}
	if v, ok := tbl["author"].(string); ok && v != "" {
		d.Author = v
	}
	if v, ok := tbl["description"].(string); ok {
		d.Description = v
	}
	if v, ok := tbl["category"].(string); ok && v != "" {
		d.Category = v
	}

	var err error
	if d.Requires, err = stringList(tbl["requires"]); err != nil {
		return nil, fmt.Errorf("descriptor %q: requires: %w", id, err)
	}
	if d.Packages, err = stringList(tbl["packages"]); err != nil {
		return nil, fmt.Errorf("descriptor %q: packages: %w", id, err)
	}

	if raw, ok := tbl["settings"].(map[string]any); ok {
		d.Settings = make(map[string]SettingSpec, len(raw))
		for key, specRaw := range raw {
			spec, err := settingSpec(specRaw)
			if err != nil {
				return nil, fmt.Errorf("descriptor %q: setting %q: %w", id, key, err)
			}
			d.Settings[key] = spec
		}
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks the descriptor's invariants.
func (d *Descriptor) Validate() error {
	if !idPattern.MatchString(d.ID) {
		return fmt.Errorf("%w: %s", ErrInvalidID, d.ID)
	}
	if !semverPattern.MatchString(d.Version) {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, d.Version)
	}
	for key, spec := range d.Settings {
		if spec.Type != "" && !validSettingTypes[spec.Type] {
			return fmt.Errorf("%w: %s.%s has type %q", ErrInvalidSettingType, d.ID, key, spec.Type)
		}
	}
	return nil
}

// SettingDefault returns the declared default for a setting key.
func (d *Descriptor) SettingDefault(key string) (any, bool) {
	if spec, ok := d.Settings[key]; ok && spec.Default != nil {
		return spec.Default, true
	}
	return nil, false
}

// String returns "Name vVersion" for display.
func (d *Descriptor) String() string {
	return fmt.Sprintf("%s v%s", d.Name, d.Version)
}

func stringList(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, errors.New("expected a list of strings")
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", e)
		}
		out = append(out, s)
	}
	return out, nil
}

func settingSpec(v any) (SettingSpec, error) {
	tbl, ok := v.(map[string]any)
	if !ok {
		return SettingSpec{}, errors.New("expected a table")
	}

	var spec SettingSpec
	if t, ok := tbl["type"].(string); ok {
		spec.Type = t
	}
	spec.Default = tbl["default"]
	if desc, ok := tbl["description"].(string); ok {
		spec.Description = desc
	}
	if n, ok := toFloat(tbl["min"]); ok {
		spec.Min = &n
	}
	if n, ok := toFloat(tbl["max"]); ok {
		spec.Max = &n
	}
	if opts, err := stringList(tbl["options"]); err == nil {
		spec.Options = opts
	}
	return spec, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
