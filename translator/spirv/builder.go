// Package spirv is a low-level SPIR-V binary module builder: it declares
// types (de-duplicated), constants, variables, decorations, and function
// bodies, and finalizes a complete binary module.
package spirv

import "fmt"

const (
	magicNumber   = 0x07230203
	versionSpirv  = 0x00010500 // 1.5
	generatorMagic = 0
)

// ID is a SPIR-V result-<id>.
type ID uint32

// AddressingModel and MemoryModel values this builder always emits.
const (
	addressingPhysicalStorageBuffer64 = 5348
	memoryModelGLSL450                 = 1
)

// ExecutionModel mirrors SPIR-V's OpEntryPoint execution model operand.
type ExecutionModel uint32

const (
	ExecutionModelVertex   ExecutionModel = 0
	ExecutionModelFragment ExecutionModel = 4
	ExecutionModelGLCompute ExecutionModel = 5
)

// Capability mirrors the subset of SPIR-V capabilities this module ever
// declares.
type Capability uint32

const (
	CapabilityShader                       Capability = 1
	CapabilityPhysicalStorageBufferAddresses Capability = 5347
)

// Builder accumulates a SPIR-V module's sections and finalizes them into a
// single binary word stream. Sections are kept separate during
// construction because SPIR-V requires a fixed section order (capabilities,
// extensions, ext-inst imports, memory model, entry points, execution
// modes, debug info, annotations, types/constants/globals, then function
// bodies) that does not match emission order.
type Builder struct {
	nextID ID

	capabilities []Capability
	entryPoints  []entryPoint
	decorations  []word

	typesAndConstants []word
	typeCache         map[string]ID

	functions []word
}

type word = uint32

type entryPoint struct {
	model ExecutionModel
	id    ID
	name  string
	interfaceIDs []ID
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		nextID:    1,
		typeCache: make(map[string]ID),
	}
}

// AllocID reserves and returns a fresh result-<id>.
func (b *Builder) AllocID() ID {
	id := b.nextID
	b.nextID++
	return id
}

// RequireCapability declares cap once, deduplicating repeated requests.
func (b *Builder) RequireCapability(cap Capability) {
	for _, c := range b.capabilities {
		if c == cap {
			return
		}
	}
	b.capabilities = append(b.capabilities, cap)
}

// AddEntryPoint records a function as a module entry point with the given
// execution model, user-visible name, and interface variable list.
func (b *Builder) AddEntryPoint(model ExecutionModel, fn ID, name string, iface []ID) {
	b.entryPoints = append(b.entryPoints, entryPoint{model: model, id: fn, name: name, interfaceIDs: iface})
}

// typeKey returns a de-duplication key for a structurally identical type
// or constant declaration, matching SPIR-V's rule that identical type/
// constant declarations must share one <id>.
func typeKey(opcode uint16, operands ...word) string {
	key := fmt.Sprintf("%d", opcode)
	for _, o := range operands {
		key += fmt.Sprintf(":%d", o)
	}
	return key
}

// InternType returns the existing ID for a type or constant instruction
// with this opcode+operand signature, emitting it once into the types/
// constants/globals section if not already present. hasResultType
// distinguishes plain type declarations (OpTypeX: just a result id) from
// constant-like instructions (OpConstant, OpVariable: a result-type
// operand precedes the result id); when true, operands[0] is that result
// type and the remaining operands follow it.
func (b *Builder) InternType(opcode uint16, hasResultType bool, operands []word) ID {
	key := typeKey(opcode, operands...)
	if id, ok := b.typeCache[key]; ok {
		return id
	}
	id := b.AllocID()
	b.emitGlobalInstruction(opcode, id, hasResultType, operands)
	b.typeCache[key] = id
	return id
}

// EmitGlobalVariable declares a fresh OpVariable in the types/constants/
// globals section. Unlike InternType it never de-duplicates: two resource
// bindings of identical pointer type and storage class are still two
// distinct variables.
func (b *Builder) EmitGlobalVariable(pointerType ID, storageClass word) ID {
	const opVariable = 59
	id := b.AllocID()
	b.emitGlobalInstruction(opVariable, id, true, []word{word(pointerType), storageClass})
	return id
}

// AddDecoration appends an already-encoded OpDecorate/OpMemberDecorate (or
// similar) instruction to the module's annotation section.
func (b *Builder) AddDecoration(words []word) {
	b.decorations = append(b.decorations, words...)
}

func (b *Builder) emitGlobalInstruction(opcode uint16, id ID, hasResultType bool, operands []word) {
	wordCount := uint16(2 + len(operands))
	b.typesAndConstants = append(b.typesAndConstants, encodeOpcode(opcode, wordCount))
	if hasResultType {
		b.typesAndConstants = append(b.typesAndConstants, operands[0], word(id))
		b.typesAndConstants = append(b.typesAndConstants, operands[1:]...)
	} else {
		b.typesAndConstants = append(b.typesAndConstants, word(id))
		b.typesAndConstants = append(b.typesAndConstants, operands...)
	}
}

func encodeOpcode(opcode uint16, wordCount uint16) word {
	return word(wordCount)<<16 | word(opcode)
}

// AppendFunctionWords appends already-encoded function-body words
// (produced by the lowering pass) to the module's function section.
func (b *Builder) AppendFunctionWords(words []word) {
	b.functions = append(b.functions, words...)
}

// Finalize assembles every section into the final binary module per
// SPIR-V's fixed logical layout, returning the complete word stream.
func (b *Builder) Finalize() []uint32 {
	var out []word
	out = append(out, magicNumber, versionSpirv, generatorMagic, uint32(b.nextID), 0)

	for _, c := range b.capabilities {
		out = append(out, encodeOpcode(17, 2), word(c)) // OpCapability
	}

	out = append(out, encodeOpcode(14, 3), addressingPhysicalStorageBuffer64, memoryModelGLSL450) // OpMemoryModel

	for _, ep := range b.entryPoints {
		literal := encodeString(ep.name)
		wordCount := uint16(3 + len(literal) + len(ep.interfaceIDs))
		out = append(out, encodeOpcode(15, wordCount), word(ep.model), word(ep.id))
		out = append(out, literal...)
		for _, iface := range ep.interfaceIDs {
			out = append(out, word(iface))
		}
	}

	out = append(out, b.decorations...)
	out = append(out, b.typesAndConstants...)
	out = append(out, b.functions...)

	return out
}

// encodeString packs a NUL-terminated UTF-8 string into SPIR-V's
// little-endian 4-byte literal word sequence.
func encodeString(s string) []word {
	bytes := append([]byte(s), 0)
	for len(bytes)%4 != 0 {
		bytes = append(bytes, 0)
	}
	words := make([]word, len(bytes)/4)
	for i := range words {
		words[i] = word(bytes[i*4]) | word(bytes[i*4+1])<<8 | word(bytes[i*4+2])<<16 | word(bytes[i*4+3])<<24
	}
	return words
}
