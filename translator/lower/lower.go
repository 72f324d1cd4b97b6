// Package lower walks an AIR function's LLVM IR and AIR metadata and emits
// the equivalent SPIR-V function body. Basic blocks are emitted in program
// order as separate labelled blocks; no branches and no structured
// control-flow constructs are emitted.
package lower

import (
	"fmt"

	"github.com/driftwood-gpu/metalvk/translator/air"
	"github.com/driftwood-gpu/metalvk/translator/spirv"
)

// Result is one lowered function: its SPIR-V function <id>, the interface
// variable <id>s for an entry point, and the encoded function-body words.
type Result struct {
	FunctionID   spirv.ID
	InterfaceIDs []spirv.ID
	Words        []uint32
}

// Core instruction opcodes used directly in the function-body stream,
// since the builder's type/constant interning machinery only applies to
// the types/constants/globals section.
const (
	opFunction     = 54
	opFunctionCall = 57
	opFunctionEnd  = 56
	opLabel        = 248
	opAccessChain  = 65
	opLoad         = 61
	opStore        = 62
	opUndef        = 1
	opReturn       = 253
	opReturnValue  = 254

	opFAdd = 129
	opFSub = 131
	opFMul = 133
	opFDiv = 136
)

// SPIR-V type/global opcodes, used via spirv.Builder.InternType so they
// land in the types/constants/globals section, de-duplicated.
const (
	typeFloat        = 22
	typeRuntimeArray = 29
	typeStruct       = 30
	typePointer      = 32

	storageClassUniformConstant = 0
	storageClassStorageBuffer   = 12

	opDecorate       = 71
	opMemberDecorate = 72

	decorationBlock         = 2
	decorationArrayStride   = 6
	decorationOffset        = 35
	decorationBinding       = 33
	decorationDescriptorSet = 34
)

// LLVM FUNC_CODE_INST_BINOP sub-opcode values (Instruction::BinaryOps
// ordering: the integer and floating-point form of each operator are
// adjacent enumerators with the int form first).
const (
	binopAdd = iota
	binopFAdd
	binopSub
	binopFSub
	binopMul
	binopFMul
)

// argSlot is what a function argument lowers to: a pointer to its backing
// resource variable.
type argSlot struct {
	pointer spirv.ID
}

// ssaSlot is a value produced by a previously lowered instruction.
type ssaSlot struct {
	id        spirv.ID
	isPointer bool
}

// lowerState carries the per-function context lowerInstruction needs:
// the value-numbering table (arguments first, then instruction results,
// per this module's AIR operand-numbering convention) and the shared
// scalar float type.
type lowerState struct {
	b         *spirv.Builder
	fn        *air.Function
	floatType spirv.ID
	args      []argSlot
	values    map[int]ssaSlot
}

// Lower walks fn's basic blocks and emits a SPIR-V function body. Each
// block becomes an OpLabel followed by its lowered instructions, and a
// block that does not end in a return gets an OpReturn appended. No
// OpBranch or merge instruction is emitted, so only the single-block case
// is instruction-accurate: with more than one block, control leaves the
// function at the end of the first block and the later blocks are
// unreachable.
func Lower(b *spirv.Builder, fn *air.Function) (*Result, error) {
	if fn.Module == nil {
		return nil, fmt.Errorf("lower: function %q has no bitcode module", fn.Name)
	}
	blocks := fn.Module.EntryBlocks()
	if len(blocks) == 0 {
		return nil, fmt.Errorf("lower: function %q has no basic blocks", fn.Name)
	}

	st := &lowerState{
		b:         b,
		fn:        fn,
		floatType: b.InternType(typeFloat, false, []uint32{32}),
		values:    make(map[int]ssaSlot),
	}
	st.args = make([]argSlot, len(fn.Arguments))
	for i, arg := range fn.Arguments {
		st.args[i] = declareArgument(b, st.floatType, arg)
	}

	voidType := b.InternType(19, false, nil) // OpTypeVoid
	fnType := b.InternType(33, false, []uint32{uint32(voidType)}) // OpTypeFunction

	functionID := b.AllocID()
	var words []uint32
	words = append(words, encode(opFunction, 5), uint32(voidType), uint32(functionID), 0, uint32(fnType))

	for i, block := range blocks {
		labelID := b.AllocID()
		words = append(words, encode(opLabel, 2), uint32(labelID))

		for _, inst := range block.Instructions {
			encoded, err := st.lowerInstruction(inst)
			if err != nil {
				return nil, fmt.Errorf("lower: function %q block %d: %w", fn.Name, i, err)
			}
			words = append(words, encoded...)
		}

		if !blockHasTerminator(block) {
			words = append(words, encode(opReturn, 1))
		}
	}

	words = append(words, encode(opFunctionEnd, 1))

	interfaceIDs := make([]spirv.ID, len(st.args))
	for i, arg := range st.args {
		interfaceIDs[i] = arg.pointer
	}
	return &Result{FunctionID: functionID, InterfaceIDs: interfaceIDs, Words: words}, nil
}

// declareArgument materializes a function argument as a module-scope
// resource variable: a single-float StorageBuffer block for buffer and
// vertex-input arguments, or a bare UniformConstant handle for textures
// and samplers (whose contents this pass never touches directly).
func declareArgument(b *spirv.Builder, floatType spirv.ID, arg air.Argument) argSlot {
	switch arg.Kind {
	case air.ResourceBuffer, air.ResourceVertexInput:
		arrType := b.InternType(typeRuntimeArray, false, []uint32{uint32(floatType)})
		b.AddDecoration([]uint32{encode(opDecorate, 4), uint32(arrType), decorationArrayStride, 4})

		structType := b.InternType(typeStruct, false, []uint32{uint32(arrType)})
		b.AddDecoration([]uint32{encode(opDecorate, 3), uint32(structType), decorationBlock})
		b.AddDecoration([]uint32{encode(opMemberDecorate, 5), uint32(structType), 0, decorationOffset, 0})

		ptrType := b.InternType(typePointer, false, []uint32{storageClassStorageBuffer, uint32(structType)})
		varID := b.EmitGlobalVariable(ptrType, storageClassStorageBuffer)
		b.AddDecoration([]uint32{encode(opDecorate, 4), uint32(varID), decorationDescriptorSet, 0})
		b.AddDecoration([]uint32{encode(opDecorate, 4), uint32(varID), decorationBinding, arg.ExternalIndex})
		return argSlot{pointer: varID}

	case air.ResourceTexture:
		imageType := b.InternType(25, false, []uint32{uint32(floatType), 1, 0, 0, 0, 1, 0}) // OpTypeImage, Dim2D, sampled
		ptrType := b.InternType(typePointer, false, []uint32{storageClassUniformConstant, uint32(imageType)})
		varID := b.EmitGlobalVariable(ptrType, storageClassUniformConstant)
		b.AddDecoration([]uint32{encode(opDecorate, 4), uint32(varID), decorationDescriptorSet, 0})
		b.AddDecoration([]uint32{encode(opDecorate, 4), uint32(varID), decorationBinding, arg.ExternalIndex})
		return argSlot{pointer: varID}

	default: // ResourceSampler
		samplerType := b.InternType(26, false, nil) // OpTypeSampler
		ptrType := b.InternType(typePointer, false, []uint32{storageClassUniformConstant, uint32(samplerType)})
		varID := b.EmitGlobalVariable(ptrType, storageClassUniformConstant)
		b.AddDecoration([]uint32{encode(opDecorate, 4), uint32(varID), decorationDescriptorSet, 0})
		b.AddDecoration([]uint32{encode(opDecorate, 4), uint32(varID), decorationBinding, arg.ExternalIndex})
		return argSlot{pointer: varID}
	}
}

func blockHasTerminator(block air.BasicBlock) bool {
	if len(block.Instructions) == 0 {
		return false
	}
	last := block.Instructions[len(block.Instructions)-1]
	return last.Opcode == "ret"
}

// valueNumber is this module's operand-numbering convention: value
// numbers below the argument count refer to arguments; numbers at or
// above it refer to the instruction whose ResultID equals the remainder.
func (st *lowerState) valueNumber(v int64) int {
	return int(v)
}

func (st *lowerState) resolvePointer(operandValue int64) (spirv.ID, error) {
	n := st.valueNumber(operandValue)
	if n >= 0 && n < len(st.args) {
		return st.args[n].pointer, nil
	}
	resultID := n - len(st.args)
	slot, ok := st.values[resultID]
	if !ok || !slot.isPointer {
		return 0, fmt.Errorf("operand %d does not resolve to a pointer", operandValue)
	}
	return slot.id, nil
}

func (st *lowerState) resolveScalar(operandValue int64) (spirv.ID, error) {
	n := st.valueNumber(operandValue)
	if n >= 0 && n < len(st.args) {
		return 0, fmt.Errorf("operand %d is a resource argument, not a scalar value", operandValue)
	}
	resultID := n - len(st.args)
	slot, ok := st.values[resultID]
	if !ok || slot.isPointer {
		return 0, fmt.Errorf("operand %d does not resolve to a scalar value", operandValue)
	}
	return slot.id, nil
}

// lowerInstruction emits the SPIR-V words for one AIR/LLVM instruction.
// Every binding this pass resolves is a single-element float buffer (see
// declareArgument), so all arithmetic here is float arithmetic; per-
// invocation indexing (thread_position_in_grid and friends) is out of
// scope for this pass and every memory access lands on element zero.
func (st *lowerState) lowerInstruction(inst air.Instruction) ([]uint32, error) {
	switch inst.Opcode {
	case "ret":
		return []uint32{encode(opReturn, 1)}, nil

	case "binop":
		return st.lowerBinop(inst)

	case "load":
		return st.lowerLoad(inst)

	case "store":
		return st.lowerStore(inst)

	case "gep":
		return st.lowerGEP(inst)

	case "call":
		return st.lowerCall(inst)

	default:
		return nil, fmt.Errorf("unrecognized instruction opcode: %s", inst.Opcode)
	}
}

func (st *lowerState) lowerBinop(inst air.Instruction) ([]uint32, error) {
	if len(inst.Operands) < 3 {
		return nil, fmt.Errorf("binop: expected lhs, rhs and sub-opcode operands, got %d", len(inst.Operands))
	}
	lhs, err := st.resolveScalar(inst.Operands[0].Value)
	if err != nil {
		return nil, fmt.Errorf("binop lhs: %w", err)
	}
	rhs, err := st.resolveScalar(inst.Operands[1].Value)
	if err != nil {
		return nil, fmt.Errorf("binop rhs: %w", err)
	}

	var opcode uint16
	switch inst.Operands[2].Value {
	case binopAdd, binopFAdd:
		opcode = opFAdd
	case binopSub, binopFSub:
		opcode = opFSub
	case binopMul, binopFMul:
		opcode = opFMul
	default:
		opcode = opFDiv
	}

	resultID := st.b.AllocID()
	st.values[inst.ResultID] = ssaSlot{id: resultID}
	return []uint32{encode(opcode, 5), uint32(st.floatType), uint32(resultID), uint32(lhs), uint32(rhs)}, nil
}

func (st *lowerState) lowerLoad(inst air.Instruction) ([]uint32, error) {
	if len(inst.Operands) < 1 {
		return nil, fmt.Errorf("load: missing pointer operand")
	}
	base, err := st.resolvePointer(inst.Operands[0].Value)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	elemPtrType := st.b.InternType(typePointer, false, []uint32{storageClassStorageBuffer, uint32(st.floatType)})
	zero := st.b.InternType(21, false, []uint32{32, 1})         // OpTypeInt i32
	zeroConst := st.b.InternType(43, true, []uint32{uint32(zero), 0}) // OpConstant 0

	chainID := st.b.AllocID()
	words := []uint32{
		encode(opAccessChain, 5), uint32(elemPtrType), uint32(chainID), uint32(base), uint32(zeroConst),
	}

	resultID := st.b.AllocID()
	words = append(words, encode(opLoad, 4), uint32(st.floatType), uint32(resultID), uint32(chainID))
	st.values[inst.ResultID] = ssaSlot{id: resultID}
	return words, nil
}

func (st *lowerState) lowerStore(inst air.Instruction) ([]uint32, error) {
	if len(inst.Operands) < 2 {
		return nil, fmt.Errorf("store: expected pointer and value operands")
	}
	base, err := st.resolvePointer(inst.Operands[0].Value)
	if err != nil {
		return nil, fmt.Errorf("store pointer: %w", err)
	}
	value, err := st.resolveScalar(inst.Operands[1].Value)
	if err != nil {
		return nil, fmt.Errorf("store value: %w", err)
	}

	elemPtrType := st.b.InternType(typePointer, false, []uint32{storageClassStorageBuffer, uint32(st.floatType)})
	zero := st.b.InternType(21, false, []uint32{32, 1})
	zeroConst := st.b.InternType(43, true, []uint32{uint32(zero), 0})

	chainID := st.b.AllocID()
	words := []uint32{
		encode(opAccessChain, 5), uint32(elemPtrType), uint32(chainID), uint32(base), uint32(zeroConst),
	}
	words = append(words, encode(opStore, 3), uint32(chainID), uint32(value))
	return words, nil
}

// lowerGEP emits an access chain to element zero of the pointer's backing
// buffer and records the result as a pointer value for a following load
// or store; a general multi-index chain needs integer value tracking this
// pass's float-only value model doesn't carry.
func (st *lowerState) lowerGEP(inst air.Instruction) ([]uint32, error) {
	if len(inst.Operands) < 1 {
		return nil, fmt.Errorf("gep: missing base pointer operand")
	}
	base, err := st.resolvePointer(inst.Operands[0].Value)
	if err != nil {
		return nil, fmt.Errorf("gep: %w", err)
	}

	elemPtrType := st.b.InternType(typePointer, false, []uint32{storageClassStorageBuffer, uint32(st.floatType)})
	zero := st.b.InternType(21, false, []uint32{32, 1})
	zeroConst := st.b.InternType(43, true, []uint32{uint32(zero), 0})

	chainID := st.b.AllocID()
	st.values[inst.ResultID] = ssaSlot{id: chainID, isPointer: true}
	return []uint32{
		encode(opAccessChain, 5), uint32(elemPtrType), uint32(chainID), uint32(base), uint32(zeroConst),
	}, nil
}

// lowerCall has no callee symbol table to resolve against in this AIR
// model (operand value numbers only ever name arguments or local
// results), so an inter-procedural call lowers to an undefined scalar
// rather than fabricating a call target.
func (st *lowerState) lowerCall(inst air.Instruction) ([]uint32, error) {
	resultID := st.b.AllocID()
	st.values[inst.ResultID] = ssaSlot{id: resultID}
	return []uint32{encode(opUndef, 3), uint32(st.floatType), uint32(resultID)}, nil
}

func encode(opcode uint16, wordCount uint16) uint32 {
	return uint32(wordCount)<<16 | uint32(opcode)
}
