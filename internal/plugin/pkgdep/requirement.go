// Package pkgdep installs third-party Lua packages declared by plugins.
//
// Plugins declare requirements in pip-style strings ("lpeg", "lpeg>=1.0",
// "lpeg==1.0.2"). The installer probes each requirement against the local
// rock tree, asks for consent where policy demands it, installs the missing
// ones through luarocks, and records what it installed so the session can be
// merged into a manifest file alongside entries the user maintains by hand.
package pkgdep

import (
	"fmt"
	"regexp"
	"strings"
)

// Requirement is one parsed package requirement.
type Requirement struct {
	// Name is the bare package name ("lpeg").
	Name string
	// Constraint is the comparison operator, empty when unversioned.
	Constraint string
	// Version is the version the constraint compares against.
	Version string
}

var reqPattern = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(?:(==|>=|<=|>|<|~=)\s*([0-9][0-9A-Za-z.-]*))?$`)

// ParseRequirement splits a requirement string into name, constraint, and
// version. An unversioned requirement has empty Constraint and Version.
func ParseRequirement(s string) (Requirement, error) {
	m := reqPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Requirement{}, fmt.Errorf("invalid package requirement %q", s)
	}
	return Requirement{Name: m[1], Constraint: m[2], Version: m[3]}, nil
}

// String renders the requirement back into its canonical form.
func (r Requirement) String() string {
	if r.Constraint == "" {
		return r.Name
	}
	return r.Name + r.Constraint + r.Version
}

// installArgs returns the luarocks install arguments for this requirement.
// Only exact pins pass a version; range constraints install latest and rely
// on the probe to reject stale trees.
func (r Requirement) installArgs() []string {
	if r.Constraint == "==" {
		return []string{"install", r.Name, r.Version}
	}
	return []string{"install", r.Name}
}
