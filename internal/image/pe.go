package image

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"
	"log/slog"

	"metagen/internal/meta"
)

// loadPE maps sections at their preferred base. Absolute pointers in a PE
// image are already biased to ImageBase, so no relocation pass is needed.
func loadPE(path string, all []byte, section string) (*Image, error) {
	f, err := pe.NewFile(bytes.NewReader(all))
	if err != nil {
		return nil, fmt.Errorf("open pe: %w", err)
	}
	defer f.Close()

	// Windows is LLP64: long stays 4 bytes on 64-bit targets.
	w := meta.Wire{LongSize: 4, Order: binary.LittleEndian}
	var base uint64
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		w.PtrSize, base = 4, uint64(oh.ImageBase)
	case *pe.OptionalHeader64:
		w.PtrSize, base = 8, oh.ImageBase
	default:
		return nil, fmt.Errorf("%s: pe file has no optional header", path)
	}

	im := &Image{Format: FormatPE, wire: w}
	for _, s := range f.Sections {
		im.Loads = append(im.Loads, Seg{
			Vaddr:  base + uint64(s.VirtualAddress),
			Off:    uint64(s.Offset),
			Filesz: uint64(rawSize(s)),
		})
	}

	s := f.Section(section)
	if s == nil {
		return nil, fmt.Errorf("%s: %w: %q", path, ErrNoSection, section)
	}
	data, err := s.Data()
	if err != nil {
		return nil, fmt.Errorf("read section %s: %w", section, err)
	}
	data = data[:min(len(data), int(rawSize(s)))]
	im.Meta = Section{Name: s.Name, VA: base + uint64(s.VirtualAddress), Off: uint64(s.Offset), Size: uint64(len(data))}
	im.sec = bytes.Clone(data)

	slog.Debug("loaded pe image", "path", path, "machine", fmt.Sprintf("0x%x", f.Machine),
		"section", section, "va", fmt.Sprintf("0x%x", im.Meta.VA), "size", im.Meta.Size)
	return im, nil
}

// rawSize is the part of a section backed by file bytes. The raw size is
// rounded up to the file alignment, the virtual size is not.
func rawSize(s *pe.Section) uint32 {
	if s.VirtualSize != 0 && s.VirtualSize < s.Size {
		return s.VirtualSize
	}
	return s.Size
}
