package spirv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternTypeDeduplicatesIdenticalDeclarations(t *testing.T) {
	b := NewBuilder()

	floatA := b.InternType(22, false, []uint32{32})
	floatB := b.InternType(22, false, []uint32{32})
	assert.Equal(t, floatA, floatB)

	intType := b.InternType(21, false, []uint32{32, 1})
	assert.NotEqual(t, floatA, intType)
}

func TestInternTypeWithResultTypeOrdersWordsCorrectly(t *testing.T) {
	b := NewBuilder()

	floatType := b.InternType(22, false, []uint32{32})
	// OpConstant: <result type> <result id> <literal>.
	constID := b.InternType(43, true, []uint32{uint32(floatType), 0x3F800000})

	words := b.Finalize()
	found := false
	for i := 0; i+3 < len(words); i++ {
		if words[i] == encodeOpcode(43, 4) {
			require.Equal(t, uint32(floatType), words[i+1])
			require.Equal(t, uint32(constID), words[i+2])
			require.Equal(t, uint32(0x3F800000), words[i+3])
			found = true
		}
	}
	assert.True(t, found, "OpConstant not found in finalized module")
}

func TestEmitGlobalVariableNeverDeduplicates(t *testing.T) {
	b := NewBuilder()

	ptrType := b.InternType(32, false, []uint32{12, uint32(b.InternType(22, false, []uint32{32}))})
	varA := b.EmitGlobalVariable(ptrType, 12)
	varB := b.EmitGlobalVariable(ptrType, 12)
	assert.NotEqual(t, varA, varB)
}

func TestFinalizeOrdersTypesBeforeFunctions(t *testing.T) {
	b := NewBuilder()
	b.RequireCapability(CapabilityShader)

	floatType := b.InternType(22, false, []uint32{32})
	fnID := b.AllocID()
	b.AppendFunctionWords([]uint32{encodeOpcode(54, 5), uint32(floatType), uint32(fnID), 0, 0})
	b.AddEntryPoint(ExecutionModelVertex, fnID, "main", nil)

	words := b.Finalize()

	typeWordIdx := indexOfWord(words, encodeOpcode(22, 3))
	fnWordIdx := indexOfWord(words, encodeOpcode(54, 5))
	require.GreaterOrEqual(t, typeWordIdx, 0)
	require.GreaterOrEqual(t, fnWordIdx, 0)
	assert.Less(t, typeWordIdx, fnWordIdx)
}

func TestFinalizeStartsWithMagicAndVersion(t *testing.T) {
	b := NewBuilder()
	words := b.Finalize()
	require.GreaterOrEqual(t, len(words), 5)
	assert.Equal(t, uint32(magicNumber), words[0])
	assert.Equal(t, uint32(versionSpirv), words[1])
}

func indexOfWord(words []uint32, target uint32) int {
	for i, w := range words {
		if w == target {
			return i
		}
	}
	return -1
}
