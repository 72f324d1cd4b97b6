package air

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModuleFromBitstreamRejectsBadMagic(t *testing.T) {
	_, err := ModuleFromBitstream([]byte{0x00, 0x00, 0x00, 0x00})
	assert.Error(t, err)
}

func TestModuleFromBitstreamRejectsTruncatedInput(t *testing.T) {
	_, err := ModuleFromBitstream([]byte{'B', 'C'})
	assert.Error(t, err)
}

func TestModuleFromBitstreamRejectsTruncatedWrapperHeader(t *testing.T) {
	wrapper := []byte{0xDE, 0xC0, 0x17, 0x0B, 0, 0, 0, 0, 20, 0, 0, 0}
	_, err := ModuleFromBitstream(wrapper)
	assert.Error(t, err)
}

func TestModuleFromBitstreamRejectsOutOfRangeWrapperOffsets(t *testing.T) {
	wrapper := make([]byte, 20)
	copy(wrapper, []byte{0xDE, 0xC0, 0x17, 0x0B})
	// offset/size fields at [8:16) claim a range past the buffer.
	wrapper[8] = 0xFF
	wrapper[9] = 0xFF
	wrapper[12] = 0xFF
	wrapper[13] = 0xFF
	_, err := ModuleFromBitstream(wrapper)
	assert.Error(t, err)
}

func TestModuleFromBitstreamRejectsEmptyModule(t *testing.T) {
	// Valid magic, but no content after it: no FUNCTION_BLOCK to find.
	_, err := ModuleFromBitstream([]byte{'B', 'C', 0xC0, 0xDE})
	assert.Error(t, err)
}
