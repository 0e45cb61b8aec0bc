package lua

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// State wraps a gopher-lua LState for plugin execution.
//
// Only the safe standard libraries are opened: base, table, string, and math.
// io, os, debug, and package stay closed so a plugin cannot touch the
// filesystem or spawn processes; anything a plugin legitimately needs is
// injected by the host through RegisterModule.
type State struct {
	mu     sync.Mutex
	l      *lua.LState
	closed bool
}

// NewState creates a sandboxed Lua state.
func NewState() *State {
	l := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(l)
	lua.OpenTable(l)
	lua.OpenString(l)
	lua.OpenMath(l)

	return &State{l: l}
}

// DoFile executes a Lua file. The call blocks until completion or error.
func (s *State) DoFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return s.recovered(func() error { return s.l.DoFile(path) })
}

// DoString executes Lua source code.
func (s *State) DoString(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return s.recovered(func() error { return s.l.DoString(code) })
}

// HasGlobal reports whether the named global exists and is a function.
func (s *State) HasGlobal(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	return s.l.GetGlobal(name).Type() == lua.LTFunction
}

// Call invokes a global Lua function and returns its results.
// A panic inside the Lua VM is converted to an error.
func (s *State) Call(fn string, args ...lua.LValue) ([]lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	fnVal := s.l.GetGlobal(fn)
	if fnVal == lua.LNil {
		return nil, fmt.Errorf("function %q not found", fn)
	}
	if fnVal.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%q: %w (got %s)", fn, ErrNotFunction, fnVal.Type())
	}

	top := s.l.GetTop()
	s.l.Push(fnVal)
	for _, arg := range args {
		s.l.Push(arg)
	}

	var callErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				callErr = fmt.Errorf("lua panic: %v", r)
			}
		}()
		callErr = s.l.PCall(len(args), lua.MultRet, nil)
	}()
	if callErr != nil {
		return nil, callErr
	}

	nret := s.l.GetTop() - top
	if nret <= 0 {
		return []lua.LValue{}, nil
	}
	results := make([]lua.LValue, nret)
	for i := 0; i < nret; i++ {
		results[i] = s.l.Get(top + i + 1)
	}
	s.l.Pop(nret)
	return results, nil
}

// RegisterModule installs a named table of Go functions as a Lua global.
func (s *State) RegisterModule(name string, funcs map[string]lua.LGFunction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	mod := s.l.SetFuncs(s.l.NewTable(), funcs)
	s.l.SetGlobal(name, mod)
}

// SetGlobal sets a global variable.
func (s *State) SetGlobal(name string, value lua.LValue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.l.SetGlobal(name, value)
}

// Raw returns the underlying LState. Direct access bypasses the mutex;
// callers must not retain it across goroutines.
func (s *State) Raw() *lua.LState {
	return s.l
}

// IsClosed reports whether Close has been called.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state. Subsequent calls return ErrStateClosed.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.l.Close()
	s.closed = true
}

func (s *State) recovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}
