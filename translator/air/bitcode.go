// Package air models the AIR (Apple Intermediate Representation) layer:
// LLVM IR extracted from a Metal library's bitcode slices, plus the
// per-function metadata (stage inputs/outputs, resource bindings) that AIR
// records alongside it.
//
// The real LLVM bitcode reader is an external collaborator this module
// does not own; BitcodeModule is the seam at which it would plug in. The
// bundled bitstreamReader below is a from-scratch minimal implementation
// of the public LLVM bitstream container format, sufficient to walk block
// and record structure without linking an external LLVM library.
package air

// Type mirrors the container's per-function TYPE tag.
type Type uint8

const (
	TypeVertex Type = iota
	TypeFragment
	TypeKernel
	TypeUnqualified
	TypeVisible
	TypeExtern
	TypeIntersection
)

// ResourceKind classifies an argument the function reads resources
// through, derived from AIR metadata rather than the IR body.
type ResourceKind int

const (
	ResourceBuffer ResourceKind = iota
	ResourceTexture
	ResourceSampler
	ResourceVertexInput
)

// TextureAccess mirrors the declared access qualifier on a texture
// argument.
type TextureAccess int

const (
	AccessSample TextureAccess = iota
	AccessRead
	AccessWrite
	AccessReadWrite
)

// Argument is one entry in a Function's AIR-derived argument list.
type Argument struct {
	Name          string
	Kind          ResourceKind
	ExternalIndex uint32
	InternalIndex uint32
	TextureAccess TextureAccess
	EmbeddedSampler *SamplerLiteral
}

// SamplerLiteral is a sampler constructed from compile-time-constant state
// baked into the shader source (an "embedded" sampler in Metal's terms).
type SamplerLiteral struct {
	MinFilter, MagFilter int
	MipFilter            int
	AddressU, AddressV, AddressW int
	CompareFunction      int
	CompareEnabled       bool
}

// Function is one AIR function: its kind, argument list, and the LLVM IR
// module backing its instruction stream.
type Function struct {
	Name      string
	Type      Type
	Arguments []Argument
	Module    BitcodeModule
}

// BitcodeModule is the minimal surface this module needs from an LLVM IR
// module: enough to drive the lowering pass's instruction walk and CFG
// reconstruction. A real implementation backs this with a linked LLVM
// library's C API; ModuleFromBitstream below backs it with the bundled
// bitstream reader, sufficient for well-formed modules using the small
// instruction subset AIR shader kernels actually emit.
type BitcodeModule interface {
	// EntryBlocks returns the basic blocks of the module's single
	// function in program order.
	EntryBlocks() []BasicBlock
}

// BasicBlock is a straight-line instruction sequence ending in a terminator.
type BasicBlock struct {
	Label        string
	Instructions []Instruction
}

// Instruction is one decoded LLVM instruction relevant to shader lowering.
// Opcode names follow LLVM's own instruction mnemonics.
type Instruction struct {
	Opcode   string
	Operands []Operand
	ResultID int
}

// Operand references either a prior instruction's result, a function
// argument, or an immediate constant.
type Operand struct {
	Kind  OperandKind
	Value int64
	Float float64
}

type OperandKind int

const (
	OperandResult OperandKind = iota
	OperandArgument
	OperandConstInt
	OperandConstFloat
)

// ModuleFromBitstream parses bitcode with the bundled bitstream reader and
// reconstructs a minimal BitcodeModule. It supports the restricted
// instruction subset a structurized shader kernel (straight-line ALU work
// terminated by a return) produces; control flow beyond that is rejected
// rather than silently mis-lowered.
func ModuleFromBitstream(bitcode []byte) (BitcodeModule, error) {
	reader, err := newBitstreamReader(bitcode)
	if err != nil {
		return nil, err
	}
	blocks, err := reader.readFunctionBlocks()
	if err != nil {
		return nil, err
	}
	return &decodedModule{blocks: blocks}, nil
}

type decodedModule struct {
	blocks []BasicBlock
}

func (m *decodedModule) EntryBlocks() []BasicBlock { return m.blocks }
