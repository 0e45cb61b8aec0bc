package lua

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	glua "github.com/yuin/gopher-lua"
)

func TestStateDoString(t *testing.T) {
	s := NewState()
	defer s.Close()

	if err := s.DoString(`x = 40 + 2`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if got := s.Raw().GetGlobal("x"); got != glua.LNumber(42) {
		t.Errorf("x = %v, want 42", got)
	}
}

func TestStateDoStringSyntaxError(t *testing.T) {
	s := NewState()
	defer s.Close()

	if err := s.DoString(`function broken(`); err == nil {
		t.Error("DoString() = nil for invalid source")
	}
}

func TestStateDoFile(t *testing.T) {
	s := NewState()
	defer s.Close()

	path := filepath.Join(t.TempDir(), "script.lua")
	if err := os.WriteFile(path, []byte(`loaded = true`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.DoFile(path); err != nil {
		t.Fatalf("DoFile() error = %v", err)
	}
	if got := s.Raw().GetGlobal("loaded"); got != glua.LTrue {
		t.Errorf("loaded = %v, want true", got)
	}
}

func TestStateHasGlobal(t *testing.T) {
	s := NewState()
	defer s.Close()

	if err := s.DoString(`
		function present() end
		not_a_function = 7
	`); err != nil {
		t.Fatal(err)
	}

	if !s.HasGlobal("present") {
		t.Error("HasGlobal(present) = false")
	}
	if s.HasGlobal("not_a_function") {
		t.Error("HasGlobal() = true for a non-function global")
	}
	if s.HasGlobal("absent") {
		t.Error("HasGlobal(absent) = true")
	}
}

func TestStateCall(t *testing.T) {
	s := NewState()
	defer s.Close()

	if err := s.DoString(`function double(n) return n * 2 end`); err != nil {
		t.Fatal(err)
	}
	results, err := s.Call("double", glua.LNumber(21))
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(results) != 1 || results[0] != glua.LNumber(42) {
		t.Errorf("Call() = %v, want [42]", results)
	}
}

func TestStateCallRuntimeError(t *testing.T) {
	s := NewState()
	defer s.Close()

	if err := s.DoString(`function bad() error("on purpose") end`); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Call("bad"); err == nil {
		t.Error("Call() = nil for a function that raises")
	}
}

func TestStateCallNotFunction(t *testing.T) {
	s := NewState()
	defer s.Close()

	if err := s.DoString(`thing = "value"`); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Call("thing"); !errors.Is(err, ErrNotFunction) {
		t.Errorf("Call() error = %v, want ErrNotFunction", err)
	}
}

func TestStateClosed(t *testing.T) {
	s := NewState()
	s.Close()

	if !s.IsClosed() {
		t.Error("IsClosed() = false after Close")
	}
	if err := s.DoString(`x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString() error = %v, want ErrStateClosed", err)
	}
	if _, err := s.Call("anything"); !errors.Is(err, ErrStateClosed) {
		t.Errorf("Call() error = %v, want ErrStateClosed", err)
	}
}

func TestStateRegisterModule(t *testing.T) {
	s := NewState()
	defer s.Close()

	var captured string
	s.RegisterModule("host", map[string]glua.LGFunction{
		"record": func(l *glua.LState) int {
			captured = l.CheckString(1)
			return 0
		},
	})

	if err := s.DoString(`host.record("hello")`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if captured != "hello" {
		t.Errorf("captured = %q, want %q", captured, "hello")
	}
}

func TestStateSandbox(t *testing.T) {
	s := NewState()
	defer s.Close()

	// os and io are not opened; plugin code cannot reach the system.
	if err := s.DoString(`if os ~= nil then error("os is open") end`); err != nil {
		t.Errorf("os library leaked into sandbox: %v", err)
	}
	if err := s.DoString(`if io ~= nil then error("io is open") end`); err != nil {
		t.Errorf("io library leaked into sandbox: %v", err)
	}
}
