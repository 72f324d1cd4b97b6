package hostlib

import "github.com/ebitengine/purego"

// PuregoProvider resolves symbols through purego's Dlopen/Dlsym, the same
// mechanism Ebitengine uses to reach CoreGraphics/Metal without cgo.
type PuregoProvider struct{}

func (PuregoProvider) Dlopen(path string) (uintptr, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
	if err != nil {
		return 0, err
	}
	return handle, nil
}

func (PuregoProvider) Dlsym(handle uintptr, name string) (Symbol, error) {
	sym, err := purego.Dlsym(handle, name)
	if err != nil {
		return 0, err
	}
	return Symbol(sym), nil
}
