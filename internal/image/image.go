// Package image opens the binaries that carry a metadata section and maps
// virtual addresses back to file bytes so record string pointers can be read.
package image

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"syscall"

	"metagen/internal/meta"
)

// DefaultSection is the section the declaration macros place records in.
const DefaultSection = "metadata"

// Format identifies the container an image was loaded from.
type Format string

const (
	FormatELF  Format = "elf"
	FormatPE   Format = "pe"
	FormatFlat Format = "flat"
)

var (
	ErrUnknownFormat = errors.New("image: unrecognized file format")
	ErrNoSection     = errors.New("image: metadata section not found")
)

type Image struct {
	Path   string
	Format Format
	All    []byte
	Loads  []Seg
	Meta   Section

	wire  meta.Wire
	sec   []byte // metadata bytes, relocations applied
	unmap func() error
}

// Seg maps a run of virtual addresses onto file bytes.
type Seg struct {
	Vaddr, Off, Filesz uint64
}

type Section struct {
	Name          string
	VA, Off, Size uint64
}

// Open loads path, picking the loader from the file's magic bytes. section
// names the metadata section for ELF and PE images; flat containers record
// their own.
func Open(path, section string) (*Image, error) {
	if section == "" {
		section = DefaultSection
	}
	all, unmap, err := mapFile(path)
	if err != nil {
		return nil, err
	}

	var im *Image
	switch {
	case bytes.HasPrefix(all, []byte("\x7fELF")):
		im, err = loadELF(path, all, section)
	case bytes.HasPrefix(all, []byte("MZ")):
		im, err = loadPE(path, all, section)
	case bytes.HasPrefix(all, []byte(flatMagic)):
		im, err = loadFlat(all)
	default:
		err = fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	if err != nil {
		unmap()
		return nil, err
	}
	im.Path = path
	im.All = all
	im.unmap = unmap
	return im, nil
}

func mapFile(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("stat file: %w", err)
	}
	if fi.Size() == 0 {
		return nil, nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}

	all, err := syscall.Mmap(int(f.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap file: %w", err)
	}
	return all, func() error { return syscall.Munmap(all) }, nil
}

// Close unmaps the file.
func (im *Image) Close() error {
	if im.unmap == nil {
		return nil
	}
	err := im.unmap()
	im.unmap, im.All = nil, nil
	return err
}

// Wire returns the record layout matching the image's target.
func (im *Image) Wire() meta.Wire { return im.wire }

// MetadataSection returns the metadata bytes ready for decoding.
func (im *Image) MetadataSection() []byte { return im.sec }

// VA2Off translates a virtual address into a file offset
// using the load segments. It returns false if VA is unmapped.
func (im *Image) VA2Off(va uint64) (uint64, bool) {
	for _, l := range im.Loads {
		if va >= l.Vaddr && va < l.Vaddr+l.Filesz {
			return l.Off + (va - l.Vaddr), true
		}
	}
	return 0, false
}

// ReadCString reads the NUL-terminated string at va. The string must end
// inside the segment it starts in.
func (im *Image) ReadCString(va uint64) (string, bool) {
	for _, l := range im.Loads {
		if va < l.Vaddr || va >= l.Vaddr+l.Filesz {
			continue
		}
		start := l.Off + (va - l.Vaddr)
		end := min(l.Off+l.Filesz, uint64(len(im.All)))
		if start >= end {
			return "", false
		}
		rest := im.All[start:end]
		n := bytes.IndexByte(rest, 0)
		if n < 0 {
			return "", false
		}
		return string(rest[:n]), true
	}
	return "", false
}
