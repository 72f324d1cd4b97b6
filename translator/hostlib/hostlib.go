// Package hostlib models the design note that a production build of this
// layer would resolve its LLVM bitcode-reader and platform linker entry
// points dynamically rather than linking them statically, the way
// Ebitengine's Metal driver dynamically links CoreGraphics/Metal via
// purego instead of cgo. Only the lazy-resolution shape is implemented
// here; the real dynamic library paths are out of scope, so every
// production caller goes through a Provider that does the actual
// purego.Dlopen/Dlsym work, and tests exercise the table against a fake
// Provider.
package hostlib

import (
	"fmt"
	"sync"
)

// Symbol is a resolved dynamic library entry point.
type Symbol uintptr

// Provider opens a dynamic library and resolves symbols within it. The
// production implementation wraps purego.Dlopen/purego.Dlsym; tests
// substitute a fake.
type Provider interface {
	Dlopen(path string) (uintptr, error)
	Dlsym(handle uintptr, name string) (Symbol, error)
}

// Table lazily resolves and caches symbols from one dynamic library,
// opening it on first use.
type Table struct {
	provider Provider
	path     string

	mu      sync.Mutex
	handle  uintptr
	opened  bool
	symbols map[string]Symbol
}

// NewTable returns a Table that will open path through provider on first
// symbol lookup.
func NewTable(provider Provider, path string) *Table {
	return &Table{
		provider: provider,
		path:     path,
		symbols:  make(map[string]Symbol),
	}
}

// Lookup resolves name, opening the table's library the first time any
// symbol is requested and caching every resolution after that.
func (t *Table) Lookup(name string) (Symbol, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if sym, ok := t.symbols[name]; ok {
		return sym, nil
	}

	if !t.opened {
		handle, err := t.provider.Dlopen(t.path)
		if err != nil {
			return 0, fmt.Errorf("hostlib: dlopen %q: %w", t.path, err)
		}
		t.handle = handle
		t.opened = true
	}

	sym, err := t.provider.Dlsym(t.handle, name)
	if err != nil {
		return 0, fmt.Errorf("hostlib: dlsym %q in %q: %w", name, t.path, err)
	}
	t.symbols[name] = sym
	return sym, nil
}
