package hostlib_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwood-gpu/metalvk/translator/hostlib"
)

type fakeProvider struct {
	opens   int
	handles map[string]uintptr
	symbols map[uintptr]map[string]hostlib.Symbol
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		handles: map[string]uintptr{"libfake.so": 0x1},
		symbols: map[uintptr]map[string]hostlib.Symbol{
			0x1: {"fakeSymbol": 0xbeef},
		},
	}
}

func (f *fakeProvider) Dlopen(path string) (uintptr, error) {
	f.opens++
	h, ok := f.handles[path]
	if !ok {
		return 0, fmt.Errorf("no such library: %s", path)
	}
	return h, nil
}

func (f *fakeProvider) Dlsym(handle uintptr, name string) (hostlib.Symbol, error) {
	table, ok := f.symbols[handle]
	if !ok {
		return 0, fmt.Errorf("unknown handle")
	}
	sym, ok := table[name]
	if !ok {
		return 0, fmt.Errorf("unresolved symbol: %s", name)
	}
	return sym, nil
}

func TestTableLookupResolvesAndCaches(t *testing.T) {
	provider := newFakeProvider()
	table := hostlib.NewTable(provider, "libfake.so")

	sym, err := table.Lookup("fakeSymbol")
	require.NoError(t, err)
	assert.Equal(t, hostlib.Symbol(0xbeef), sym)

	_, err = table.Lookup("fakeSymbol")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.opens, "library should only be opened once across repeated lookups")
}

func TestTableLookupUnresolvedSymbol(t *testing.T) {
	provider := newFakeProvider()
	table := hostlib.NewTable(provider, "libfake.so")

	_, err := table.Lookup("missingSymbol")
	assert.Error(t, err)
}

func TestTableLookupMissingLibrary(t *testing.T) {
	provider := newFakeProvider()
	table := hostlib.NewTable(provider, "libdoesnotexist.so")

	_, err := table.Lookup("anything")
	assert.Error(t, err)
}
