package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwood-gpu/metalvk/translator/air"
	"github.com/driftwood-gpu/metalvk/translator/spirv"
)

// fakeModule is a hand-built air.BitcodeModule, bypassing the real
// bitstream reader so instruction-lowering can be exercised directly.
type fakeModule struct {
	blocks []air.BasicBlock
}

func (m *fakeModule) EntryBlocks() []air.BasicBlock { return m.blocks }

func valueOperand(n int) air.Operand {
	return air.Operand{Kind: air.OperandResult, Value: int64(n)}
}

// bufferArgs returns a two-buffer argument list ("a" external index 0,
// "b" external index 1), the AIR value numbers a load/store would
// reference them by.
func bufferArgs() []air.Argument {
	return []air.Argument{
		{Name: "a", Kind: air.ResourceBuffer, ExternalIndex: 0},
		{Name: "b", Kind: air.ResourceBuffer, ExternalIndex: 1},
	}
}

func TestLowerSingleReturnBlock(t *testing.T) {
	fn := &air.Function{
		Name: "noop",
		Module: &fakeModule{blocks: []air.BasicBlock{
			{Label: "entry", Instructions: []air.Instruction{
				{Opcode: "ret", ResultID: 0},
			}},
		}},
	}

	result, err := Lower(spirv.NewBuilder(), fn)
	require.NoError(t, err)
	assert.NotZero(t, result.FunctionID)
	assert.NotEmpty(t, result.Words)
}

func TestLowerBinopEmitsFloatAdd(t *testing.T) {
	args := bufferArgs()
	// value numbers: 0="a", 1="b", then instruction results start at 2.
	fn := &air.Function{
		Name:      "add_two_loads",
		Arguments: args,
		Module: &fakeModule{blocks: []air.BasicBlock{
			{Label: "entry", Instructions: []air.Instruction{
				{Opcode: "load", Operands: []air.Operand{valueOperand(0)}, ResultID: 0},
				{Opcode: "load", Operands: []air.Operand{valueOperand(1)}, ResultID: 1},
				{Opcode: "binop", Operands: []air.Operand{valueOperand(2), valueOperand(3), valueOperand(binopFAdd)}, ResultID: 2},
				{Opcode: "ret", ResultID: 3},
			}},
		}},
	}

	b := spirv.NewBuilder()
	result, err := Lower(b, fn)
	require.NoError(t, err)

	b.AppendFunctionWords(result.Words)
	words := b.Finalize()
	foundAdd := false
	for _, w := range words {
		if w == encode(opFAdd, 5) {
			foundAdd = true
		}
	}
	assert.True(t, foundAdd, "expected an OpFAdd in the finalized module")
	assert.NotEmpty(t, result.Words)
}

func TestLowerStoreRoundTrip(t *testing.T) {
	args := bufferArgs()
	fn := &air.Function{
		Name:      "copy",
		Arguments: args,
		Module: &fakeModule{blocks: []air.BasicBlock{
			{Label: "entry", Instructions: []air.Instruction{
				{Opcode: "load", Operands: []air.Operand{valueOperand(0)}, ResultID: 0},
				{Opcode: "store", Operands: []air.Operand{valueOperand(1), valueOperand(2)}, ResultID: 1},
				{Opcode: "ret", ResultID: 2},
			}},
		}},
	}

	_, err := Lower(spirv.NewBuilder(), fn)
	require.NoError(t, err)
}

func TestLowerGEPThenLoad(t *testing.T) {
	args := bufferArgs()
	fn := &air.Function{
		Name:      "gep_load",
		Arguments: args,
		Module: &fakeModule{blocks: []air.BasicBlock{
			{Label: "entry", Instructions: []air.Instruction{
				{Opcode: "gep", Operands: []air.Operand{valueOperand(0)}, ResultID: 0},
				{Opcode: "load", Operands: []air.Operand{valueOperand(2)}, ResultID: 1},
				{Opcode: "ret", ResultID: 2},
			}},
		}},
	}

	_, err := Lower(spirv.NewBuilder(), fn)
	require.NoError(t, err)
}

func TestLowerCallEmitsUndef(t *testing.T) {
	fn := &air.Function{
		Name: "calls_helper",
		Module: &fakeModule{blocks: []air.BasicBlock{
			{Label: "entry", Instructions: []air.Instruction{
				{Opcode: "call", Operands: nil, ResultID: 0},
				{Opcode: "ret", ResultID: 1},
			}},
		}},
	}

	result, err := Lower(spirv.NewBuilder(), fn)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Words)
}

func TestLowerRejectsUnknownOpcode(t *testing.T) {
	fn := &air.Function{
		Name: "bad",
		Module: &fakeModule{blocks: []air.BasicBlock{
			{Label: "entry", Instructions: []air.Instruction{
				{Opcode: "frobnicate", ResultID: 0},
			}},
		}},
	}

	_, err := Lower(spirv.NewBuilder(), fn)
	assert.Error(t, err)
}

func TestLowerBinopRejectsDanglingOperand(t *testing.T) {
	fn := &air.Function{
		Name: "dangling",
		Module: &fakeModule{blocks: []air.BasicBlock{
			{Label: "entry", Instructions: []air.Instruction{
				{Opcode: "binop", Operands: []air.Operand{valueOperand(99), valueOperand(98), valueOperand(binopFAdd)}, ResultID: 0},
			}},
		}},
	}

	_, err := Lower(spirv.NewBuilder(), fn)
	assert.Error(t, err)
}

func TestLowerRejectsEmptyFunction(t *testing.T) {
	fn := &air.Function{Name: "empty", Module: &fakeModule{}}
	_, err := Lower(spirv.NewBuilder(), fn)
	assert.Error(t, err)
}

func TestLowerRejectsNilModule(t *testing.T) {
	fn := &air.Function{Name: "nomodule"}
	_, err := Lower(spirv.NewBuilder(), fn)
	assert.Error(t, err)
}

func TestLowerTypesAreSharedAcrossFunctions(t *testing.T) {
	b := spirv.NewBuilder()
	args := bufferArgs()

	fn1 := &air.Function{
		Name: "f1", Arguments: args,
		Module: &fakeModule{blocks: []air.BasicBlock{
			{Instructions: []air.Instruction{{Opcode: "ret", ResultID: 0}}},
		}},
	}
	fn2 := &air.Function{
		Name: "f2", Arguments: args,
		Module: &fakeModule{blocks: []air.BasicBlock{
			{Instructions: []air.Instruction{{Opcode: "ret", ResultID: 0}}},
		}},
	}

	_, err := Lower(b, fn1)
	require.NoError(t, err)
	_, err = Lower(b, fn2)
	require.NoError(t, err)

	words := b.Finalize()
	floatTypeCount := 0
	for _, w := range words {
		if w == encode(22, 3) { // OpTypeFloat wordcount 3
			floatTypeCount++
		}
	}
	assert.Equal(t, 1, floatTypeCount, "OpTypeFloat should be declared once across both functions")
}
