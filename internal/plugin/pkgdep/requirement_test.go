package pkgdep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequirement(t *testing.T) {
	tests := []struct {
		in         string
		name       string
		constraint string
		version    string
	}{
		{"lpeg", "lpeg", "", ""},
		{"lpeg>=1.0", "lpeg", ">=", "1.0"},
		{"lpeg == 1.0.2", "lpeg", "==", "1.0.2"},
		{"lua-cjson~=2.1", "lua-cjson", "~=", "2.1"},
		{"  penlight  ", "penlight", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			req, err := ParseRequirement(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.name, req.Name)
			assert.Equal(t, tt.constraint, req.Constraint)
			assert.Equal(t, tt.version, req.Version)
		})
	}
}

func TestParseRequirementInvalid(t *testing.T) {
	for _, in := range []string{"", ">=1.0", "pkg>", "pkg==", "pk g", "pkg>=one"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseRequirement(in)
			assert.Error(t, err)
		})
	}
}

func TestRequirementString(t *testing.T) {
	assert.Equal(t, "lpeg", Requirement{Name: "lpeg"}.String())
	assert.Equal(t, "lpeg>=1.0", Requirement{Name: "lpeg", Constraint: ">=", Version: "1.0"}.String())
}

func TestRequirementInstallArgs(t *testing.T) {
	pinned, err := ParseRequirement("lpeg==1.0.2")
	require.NoError(t, err)
	assert.Equal(t, []string{"install", "lpeg", "1.0.2"}, pinned.installArgs())

	ranged, err := ParseRequirement("lpeg>=1.0")
	require.NoError(t, err)
	assert.Equal(t, []string{"install", "lpeg"}, ranged.installArgs())
}
