// Package container reads the MTLB binary container a Metal library file
// is packaged in, extracting per-function bitcode slices and metadata
// without interpreting the bitcode itself.
package container

import (
	"encoding/binary"
	"fmt"
)

// FunctionType mirrors the TYPE tag's function-kind byte.
type FunctionType uint8

const (
	FunctionVertex FunctionType = iota
	FunctionFragment
	FunctionKernel
	FunctionUnqualified
	FunctionVisible
	FunctionExtern
	FunctionIntersection
)

// ArgumentKind mirrors the public-metadata ARGT record's resource-kind
// byte: what sort of binding a function argument occupies.
type ArgumentKind uint8

const (
	ArgumentBuffer ArgumentKind = iota
	ArgumentTexture
	ArgumentSampler
	ArgumentVertexInput
)

// TextureAccess mirrors a texture argument's declared access qualifier.
type TextureAccess uint8

const (
	AccessSample TextureAccess = iota
	AccessRead
	AccessWrite
	AccessReadWrite
)

// SamplerLiteral is a sampler descriptor baked into the shader source as a
// constexpr sampler, recorded alongside the argument that embeds it.
type SamplerLiteral struct {
	MinFilter, MagFilter int
	MipFilter            int
	AddressU, AddressV, AddressW int
	CompareFunction      int
	CompareEnabled       bool
}

// Argument is one reflected function parameter: its resource kind and
// binding indices, decoded from the function's public metadata region.
type Argument struct {
	Name            string
	Kind            ArgumentKind
	ExternalIndex   uint32
	InternalIndex   uint32
	Access          TextureAccess
	EmbeddedSampler *SamplerLiteral
}

// Function is one entry parsed from the container's function list.
type Function struct {
	Name      string
	Type      FunctionType
	Bitcode   []byte
	Arguments []Argument

	PublicMetadataOffset  uint64
	PrivateMetadataOffset uint64
}

// Library is the parsed result of a whole MTLB container.
type Library struct {
	PlatformID uint16
	FileMajor  uint16
	FileMinor  uint16
	LibType    uint8
	TargetOS   uint8
	OSMajor    uint16
	OSMinor    uint16

	Functions []Function
}

const headerSize = 88

var magic = [4]byte{'M', 'T', 'L', 'B'}

// Parse decodes a full MTLB container per the library's fixed 88-byte
// header, function list, and tag-length-value function entries.
func Parse(data []byte) (*Library, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("container: truncated header (%d bytes)", len(data))
	}
	if data[0] != magic[0] || data[1] != magic[1] || data[2] != magic[2] || data[3] != magic[3] {
		return nil, fmt.Errorf("container: bad magic %q", data[0:4])
	}

	le := binary.LittleEndian
	h := struct {
		platformID, fileMajor, fileMinor       uint16
		libType, targetOS                      uint8
		osMajor, osMinor                       uint16
		fileSize                               uint64
		funcListOffset, funcListSize           uint64
		pubMetaOffset, pubMetaSize             uint64
		privMetaOffset, privMetaSize           uint64
		bcOffset, bcSize                       uint64
	}{}

	h.platformID = le.Uint16(data[4:6])
	h.fileMajor = le.Uint16(data[6:8])
	h.fileMinor = le.Uint16(data[8:10])
	h.libType = data[10]
	h.targetOS = data[11]
	h.osMajor = le.Uint16(data[12:14])
	h.osMinor = le.Uint16(data[14:16])
	h.fileSize = le.Uint64(data[16:24])
	h.funcListOffset = le.Uint64(data[24:32])
	h.funcListSize = le.Uint64(data[32:40])
	h.pubMetaOffset = le.Uint64(data[40:48])
	h.pubMetaSize = le.Uint64(data[48:56])
	h.privMetaOffset = le.Uint64(data[56:64])
	h.privMetaSize = le.Uint64(data[64:72])
	h.bcOffset = le.Uint64(data[72:80])
	h.bcSize = le.Uint64(data[80:88])

	if h.funcListOffset+4 > uint64(len(data)) {
		return nil, fmt.Errorf("container: function list offset out of range")
	}

	cursor := h.funcListOffset
	count := le.Uint32(data[cursor : cursor+4])
	cursor += 4

	lib := &Library{
		PlatformID: h.platformID,
		FileMajor:  h.fileMajor,
		FileMinor:  h.fileMinor,
		LibType:    h.libType,
		TargetOS:   h.targetOS,
		OSMajor:    h.osMajor,
		OSMinor:    h.osMinor,
	}

	for i := uint32(0); i < count; i++ {
		if cursor+4 > uint64(len(data)) {
			return nil, fmt.Errorf("container: truncated function entry %d", i)
		}
		groupSize := le.Uint32(data[cursor : cursor+4])
		entryStart := cursor
		entryEnd := entryStart + uint64(groupSize)
		if entryEnd > uint64(len(data)) {
			return nil, fmt.Errorf("container: function entry %d exceeds container", i)
		}

		fn, err := parseFunctionEntry(data[entryStart+4:entryEnd], h.bcOffset, h.pubMetaOffset, h.pubMetaSize, data)
		if err != nil {
			return nil, fmt.Errorf("container: function entry %d: %w", i, err)
		}
		lib.Functions = append(lib.Functions, fn)

		cursor = entryEnd
	}

	return lib, nil
}

func parseFunctionEntry(tlv []byte, bcBase, pubMetaBase, pubMetaSize uint64, whole []byte) (Function, error) {
	le := binary.LittleEndian
	var fn Function
	var bitcodeSize uint64
	pos := 0

	for pos < len(tlv) {
		if pos+4 > len(tlv) {
			return Function{}, fmt.Errorf("truncated tag")
		}
		tag := string(tlv[pos : pos+4])
		pos += 4
		if tag == "ENDT" {
			return fn, nil
		}

		switch tag {
		case "NAME":
			end := pos
			for end < len(tlv) && tlv[end] != 0 {
				end++
			}
			fn.Name = string(tlv[pos:end])
			pos = end + 1
		case "MDSZ":
			if pos+8 > len(tlv) {
				return Function{}, fmt.Errorf("truncated MDSZ")
			}
			bitcodeSize = le.Uint64(tlv[pos : pos+8])
			pos += 8
		case "TYPE":
			if pos+1 > len(tlv) {
				return Function{}, fmt.Errorf("truncated TYPE")
			}
			fn.Type = FunctionType(tlv[pos])
			pos++
		case "OFFT":
			if pos+24 > len(tlv) {
				return Function{}, fmt.Errorf("truncated OFFT")
			}
			fn.PublicMetadataOffset = le.Uint64(tlv[pos : pos+8])
			fn.PrivateMetadataOffset = le.Uint64(tlv[pos+8 : pos+16])
			bcOffset := le.Uint64(tlv[pos+16 : pos+24])
			pos += 24

			absolute := bcBase + bcOffset
			end := absolute + bitcodeSize
			if end > uint64(len(whole)) {
				return Function{}, fmt.Errorf("bitcode range out of range")
			}
			fn.Bitcode = whole[absolute:end]

			if pubMetaSize > 0 {
				args, err := parseArguments(whole, pubMetaBase+fn.PublicMetadataOffset)
				if err != nil {
					return Function{}, fmt.Errorf("argument metadata: %w", err)
				}
				fn.Arguments = args
			}
		default:
			return Function{}, fmt.Errorf("unrecognized tag %q", tag)
		}
	}
	return Function{}, fmt.Errorf("function entry missing ENDT terminator")
}

// parseArguments decodes a function's argument-reflection list from the
// public metadata region: a uint32 count followed by that many
// length-prefixed records (name, kind, binding indices, texture access,
// and an optional embedded sampler literal).
func parseArguments(whole []byte, offset uint64) ([]Argument, error) {
	le := binary.LittleEndian
	if offset+4 > uint64(len(whole)) {
		return nil, fmt.Errorf("metadata offset out of range")
	}
	cursor := offset
	count := le.Uint32(whole[cursor : cursor+4])
	cursor += 4

	args := make([]Argument, 0, count)
	for i := uint32(0); i < count; i++ {
		if cursor+2 > uint64(len(whole)) {
			return nil, fmt.Errorf("truncated argument %d name length", i)
		}
		nameLen := uint64(le.Uint16(whole[cursor : cursor+2]))
		cursor += 2
		if cursor+nameLen > uint64(len(whole)) {
			return nil, fmt.Errorf("truncated argument %d name", i)
		}
		name := string(whole[cursor : cursor+nameLen])
		cursor += nameLen

		if cursor+11 > uint64(len(whole)) {
			return nil, fmt.Errorf("truncated argument %d fields", i)
		}
		kind := ArgumentKind(whole[cursor])
		cursor++
		externalIndex := le.Uint32(whole[cursor : cursor+4])
		cursor += 4
		internalIndex := le.Uint32(whole[cursor : cursor+4])
		cursor += 4
		access := TextureAccess(whole[cursor])
		cursor++
		hasSampler := whole[cursor] != 0
		cursor++

		arg := Argument{
			Name:          name,
			Kind:          kind,
			ExternalIndex: externalIndex,
			InternalIndex: internalIndex,
			Access:        access,
		}
		if hasSampler {
			const samplerLiteralSize = 29
			if cursor+samplerLiteralSize > uint64(len(whole)) {
				return nil, fmt.Errorf("truncated argument %d embedded sampler", i)
			}
			arg.EmbeddedSampler = &SamplerLiteral{
				MinFilter:       int(int32(le.Uint32(whole[cursor : cursor+4]))),
				MagFilter:       int(int32(le.Uint32(whole[cursor+4 : cursor+8]))),
				MipFilter:       int(int32(le.Uint32(whole[cursor+8 : cursor+12]))),
				AddressU:        int(int32(le.Uint32(whole[cursor+12 : cursor+16]))),
				AddressV:        int(int32(le.Uint32(whole[cursor+16 : cursor+20]))),
				AddressW:        int(int32(le.Uint32(whole[cursor+20 : cursor+24]))),
				CompareFunction: int(int32(le.Uint32(whole[cursor+24 : cursor+28]))),
				CompareEnabled:  whole[cursor+28] != 0,
			}
			cursor += samplerLiteralSize
		}
		args = append(args, arg)
	}
	return args, nil
}
