package sigma

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed, 64-byte-aligned header size (spec §6).
const HeaderSize = 128

// Header is the fixed prologue of a Σ* image: magic, version, the content
// hash of the full image, and the four section offsets, plus the total
// image length used to bounds-check every offset on load.
type Header struct {
	Magic          uint64
	Version        uint64
	Hash           [32]byte
	OffsetTasks    uint64
	OffsetGuards   uint64
	OffsetPatterns uint64
	OffsetMetadata uint64
	TotalLen       uint64
}

func (h *Header) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.Magic)
	binary.LittleEndian.PutUint64(buf[8:16], h.Version)
	copy(buf[16:48], h.Hash[:])
	binary.LittleEndian.PutUint64(buf[48:56], h.OffsetTasks)
	binary.LittleEndian.PutUint64(buf[56:64], h.OffsetGuards)
	binary.LittleEndian.PutUint64(buf[64:72], h.OffsetPatterns)
	binary.LittleEndian.PutUint64(buf[72:80], h.OffsetMetadata)
	binary.LittleEndian.PutUint64(buf[80:88], h.TotalLen)
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("sigma: truncated header (%d bytes)", len(buf))
	}
	var h Header
	h.Magic = binary.LittleEndian.Uint64(buf[0:8])
	h.Version = binary.LittleEndian.Uint64(buf[8:16])
	copy(h.Hash[:], buf[16:48])
	h.OffsetTasks = binary.LittleEndian.Uint64(buf[48:56])
	h.OffsetGuards = binary.LittleEndian.Uint64(buf[56:64])
	h.OffsetPatterns = binary.LittleEndian.Uint64(buf[64:72])
	h.OffsetMetadata = binary.LittleEndian.Uint64(buf[72:80])
	h.TotalLen = binary.LittleEndian.Uint64(buf[80:88])
	return h, nil
}
