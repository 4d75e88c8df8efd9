package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"metagen/internal/meta"
)

// The flat container is a minimal image for descriptions that were never
// linked into a real binary. Header fields are always little-endian:
//
//	0  magic "MTGN"
//	4  version  uint16
//	6  ptr size uint8
//	7  long size uint8
//	8  order    uint8 (0 little, 1 big)
//	9  reserved [7]
//	16 base VA  uint64
//	24 metadata offset uint64, relative to the image bytes
//	32 metadata size   uint64
//	40 image bytes, loaded at base VA
const (
	flatMagic      = "MTGN"
	flatVersion    = 1
	flatHeaderSize = 40
)

// WriteFlat writes b as a flat container.
func WriteFlat(w io.Writer, b *meta.Blob) error {
	if err := b.Wire.Validate(); err != nil {
		return err
	}
	hdr := make([]byte, flatHeaderSize)
	copy(hdr, flatMagic)
	le := binary.LittleEndian
	le.PutUint16(hdr[4:], flatVersion)
	hdr[6] = byte(b.Wire.PtrSize)
	hdr[7] = byte(b.Wire.LongSize)
	if b.Wire.Order == binary.BigEndian {
		hdr[8] = 1
	}
	le.PutUint64(hdr[16:], b.Base)
	le.PutUint64(hdr[24:], 0)
	le.PutUint64(hdr[32:], uint64(b.MetaSize))

	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(b.Data); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

func loadFlat(all []byte) (*Image, error) {
	if len(all) < flatHeaderSize {
		return nil, fmt.Errorf("flat container: short header (%d bytes)", len(all))
	}
	le := binary.LittleEndian
	if v := le.Uint16(all[4:]); v != flatVersion {
		return nil, fmt.Errorf("flat container: unsupported version %d", v)
	}

	w := meta.Wire{PtrSize: int(all[6]), LongSize: int(all[7])}
	switch all[8] {
	case 0:
		w.Order = binary.LittleEndian
	case 1:
		w.Order = binary.BigEndian
	default:
		return nil, fmt.Errorf("flat container: bad byte order %d", all[8])
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("flat container: %w", err)
	}

	base := le.Uint64(all[16:])
	off, size := le.Uint64(all[24:]), le.Uint64(all[32:])
	body := uint64(len(all) - flatHeaderSize)
	if off > body || size > body-off {
		return nil, fmt.Errorf("flat container: metadata [%d, +%d) outside %d image bytes", off, size, body)
	}

	start := flatHeaderSize + off
	return &Image{
		Format: FormatFlat,
		wire:   w,
		Loads:  []Seg{{Vaddr: base, Off: flatHeaderSize, Filesz: body}},
		Meta:   Section{Name: DefaultSection, VA: base + off, Off: start, Size: size},
		sec:    bytes.Clone(all[start : start+size]),
	}, nil
}
