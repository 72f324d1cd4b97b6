package container

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildLibrary assembles a minimal well-formed MTLB container with one
// function, one bitcode blob, and a two-argument reflection list (a plain
// buffer binding and a sampler binding with an embedded sampler literal).
// Every offset field is kept relative to a zero base, which the format
// permits.
func buildLibrary(t *testing.T, bitcode []byte) []byte {
	t.Helper()
	le := binary.LittleEndian

	var args bytes.Buffer
	writeU32 := func(v uint32) { var b [4]byte; le.PutUint32(b[:], v); args.Write(b[:]) }
	writeU16 := func(v uint16) { var b [2]byte; le.PutUint16(b[:], v); args.Write(b[:]) }
	writeI32 := func(v int32) { writeU32(uint32(v)) }

	writeU32(2) // argument count

	// arg 0: plain buffer
	name := "out"
	writeU16(uint16(len(name)))
	args.WriteString(name)
	args.WriteByte(byte(ArgumentBuffer))
	writeU32(0) // external index
	writeU32(0) // internal index
	args.WriteByte(byte(AccessSample))
	args.WriteByte(0) // no embedded sampler

	// arg 1: sampler with an embedded literal
	name = "samp"
	writeU16(uint16(len(name)))
	args.WriteString(name)
	args.WriteByte(byte(ArgumentSampler))
	writeU32(1)
	writeU32(1)
	args.WriteByte(byte(AccessSample))
	args.WriteByte(1) // has embedded sampler
	writeI32(1)        // MinFilter
	writeI32(1)        // MagFilter
	writeI32(0)        // MipFilter
	writeI32(0)        // AddressU
	writeI32(0)        // AddressV
	writeI32(0)        // AddressW
	writeI32(0)        // CompareFunction
	args.WriteByte(0)  // CompareEnabled

	pubMetaBytes := args.Bytes()

	var entry bytes.Buffer
	writeTag := func(tag string) { entry.WriteString(tag) }
	writeTag("NAME")
	entry.WriteString("add")
	entry.WriteByte(0)
	writeTag("MDSZ")
	var sizeBuf [8]byte
	le.PutUint64(sizeBuf[:], uint64(len(bitcode)))
	entry.Write(sizeBuf[:])
	writeTag("TYPE")
	entry.WriteByte(byte(FunctionKernel))
	writeTag("OFFT")
	var offtBuf [24]byte
	le.PutUint64(offtBuf[0:8], 0)  // public metadata offset (relative to pubMetaBase)
	le.PutUint64(offtBuf[8:16], 0) // private metadata offset
	le.PutUint64(offtBuf[16:24], 0) // bitcode offset (relative to bcBase)
	entry.Write(offtBuf[:])
	writeTag("ENDT")

	entryBody := entry.Bytes()
	groupSize := uint32(4 + len(entryBody))

	var funcList bytes.Buffer
	var countBuf [4]byte
	le.PutUint32(countBuf[:], 1)
	funcList.Write(countBuf[:])
	var groupBuf [4]byte
	le.PutUint32(groupBuf[:], groupSize)
	funcList.Write(groupBuf[:])
	funcList.Write(entryBody)

	const headerSize = 88
	funcListOffset := uint64(headerSize)
	pubMetaOffset := funcListOffset + uint64(funcList.Len())
	bcOffset := pubMetaOffset + uint64(len(pubMetaBytes))

	var out bytes.Buffer
	out.Write(make([]byte, headerSize))
	out.Write(funcList.Bytes())
	out.Write(pubMetaBytes)
	out.Write(bitcode)

	data := out.Bytes()
	copy(data[0:4], magic[:])
	le.PutUint64(data[16:24], uint64(len(data)))          // fileSize
	le.PutUint64(data[24:32], funcListOffset)             // funcListOffset
	le.PutUint64(data[32:40], uint64(funcList.Len()))     // funcListSize
	le.PutUint64(data[40:48], pubMetaOffset)              // pubMetaOffset
	le.PutUint64(data[48:56], uint64(len(pubMetaBytes)))  // pubMetaSize
	le.PutUint64(data[72:80], bcOffset)                   // bcOffset
	le.PutUint64(data[80:88], uint64(len(bitcode)))       // bcSize

	require.Len(t, data, len(data))
	return data
}

func TestParseRoundTripsFunctionAndArguments(t *testing.T) {
	bitcode := []byte("fake-bitcode-bytes")
	data := buildLibrary(t, bitcode)

	lib, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, lib.Functions, 1)

	fn := lib.Functions[0]
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, FunctionKernel, fn.Type)
	assert.Equal(t, bitcode, fn.Bitcode)

	require.Len(t, fn.Arguments, 2)
	assert.Equal(t, "out", fn.Arguments[0].Name)
	assert.Equal(t, ArgumentBuffer, fn.Arguments[0].Kind)
	assert.Nil(t, fn.Arguments[0].EmbeddedSampler)

	assert.Equal(t, "samp", fn.Arguments[1].Name)
	assert.Equal(t, ArgumentSampler, fn.Arguments[1].Kind)
	assert.Equal(t, uint32(1), fn.Arguments[1].ExternalIndex)
	require.NotNil(t, fn.Arguments[1].EmbeddedSampler)
	assert.Equal(t, 1, fn.Arguments[1].EmbeddedSampler.MinFilter)
}

func TestParseRejectsBadMagic(t *testing.T) {
	data := make([]byte, 88)
	copy(data, "XXXX")
	_, err := Parse(data)
	assert.Error(t, err)
}

func TestParseRejectsTruncatedHeader(t *testing.T) {
	_, err := Parse([]byte("short"))
	assert.Error(t, err)
}
