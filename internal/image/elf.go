package image

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"log/slog"

	"metagen/internal/meta"
)

func loadELF(path string, all []byte, section string) (*Image, error) {
	f, err := elf.NewFile(bytes.NewReader(all))
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}
	defer f.Close()

	w := meta.Wire{Order: f.ByteOrder}
	switch f.Class {
	case elf.ELFCLASS32:
		w.PtrSize, w.LongSize = 4, 4
	case elf.ELFCLASS64:
		w.PtrSize, w.LongSize = 8, 8
	default:
		return nil, fmt.Errorf("%s: unsupported elf class %v", path, f.Class)
	}

	im := &Image{Format: FormatELF, wire: w}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		im.Loads = append(im.Loads, Seg{Vaddr: p.Vaddr, Off: p.Off, Filesz: p.Filesz})
	}

	s := f.Section(section)
	if s == nil || s.Type == elf.SHT_NOBITS {
		return nil, fmt.Errorf("%s: %w: %q", path, ErrNoSection, section)
	}
	data, err := s.Data()
	if err != nil {
		return nil, fmt.Errorf("read section %s: %w", section, err)
	}
	im.Meta = Section{Name: s.Name, VA: s.Addr, Off: s.Offset, Size: s.Size}
	im.sec = bytes.Clone(data)

	n, err := applyRelocations(f, im.sec, s.Addr, w)
	if err != nil {
		return nil, err
	}
	slog.Debug("loaded elf image", "path", path, "machine", f.Machine, "section", section,
		"va", fmt.Sprintf("0x%x", s.Addr), "size", s.Size, "relocated", n)
	return im, nil
}

// reloc is one decoded relocation entry.
type reloc struct {
	off    uint64
	typ    uint32
	addend int64
}

// applyRelocations writes the link-time value of every relative relocation
// that lands in sec. A position-independent build leaves those pointers for
// the dynamic loader; resolving them against a zero load bias gives the
// addresses the string pointers refer to in the file.
func applyRelocations(f *elf.File, sec []byte, va uint64, w meta.Wire) (int, error) {
	n := 0
	for _, rs := range f.Sections {
		// REL entries keep the addend in place, which is already the
		// zero-bias value, so only RELA sections need writing.
		if rs.Type != elf.SHT_RELA {
			continue
		}
		data, err := rs.Data()
		if err != nil {
			return n, fmt.Errorf("read %s: %w", rs.Name, err)
		}
		for _, r := range parseRela(data, f.Class, f.ByteOrder) {
			if !relative(f.Machine, r.typ) || r.off < va || r.off+uint64(w.PtrSize) > va+uint64(len(sec)) {
				continue
			}
			putPtr(w, sec[r.off-va:], uint64(r.addend))
			n++
		}
	}
	return n, nil
}

func parseRela(data []byte, class elf.Class, order binary.ByteOrder) []reloc {
	var out []reloc
	switch class {
	case elf.ELFCLASS64:
		for p := 0; p+24 <= len(data); p += 24 {
			info := order.Uint64(data[p+8:])
			out = append(out, reloc{
				off:    order.Uint64(data[p:]),
				typ:    uint32(info),
				addend: int64(order.Uint64(data[p+16:])),
			})
		}
	case elf.ELFCLASS32:
		for p := 0; p+12 <= len(data); p += 12 {
			info := order.Uint32(data[p+4:])
			out = append(out, reloc{
				off:    uint64(order.Uint32(data[p:])),
				typ:    info & 0xff,
				addend: int64(int32(order.Uint32(data[p+8:]))),
			})
		}
	}
	return out
}

func relative(m elf.Machine, typ uint32) bool {
	switch m {
	case elf.EM_X86_64:
		return elf.R_X86_64(typ) == elf.R_X86_64_RELATIVE
	case elf.EM_AARCH64:
		return elf.R_AARCH64(typ) == elf.R_AARCH64_RELATIVE
	case elf.EM_386:
		return elf.R_386(typ) == elf.R_386_RELATIVE
	case elf.EM_ARM:
		return elf.R_ARM(typ) == elf.R_ARM_RELATIVE
	}
	return false
}

func putPtr(w meta.Wire, b []byte, v uint64) {
	if w.PtrSize == 8 {
		w.Order.PutUint64(b, v)
		return
	}
	w.Order.PutUint32(b, uint32(v))
}
