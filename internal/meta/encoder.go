package meta

import "bytes"

// Blob is an in-memory image holding a metadata section followed by the
// strings its records point at, loaded at Base.
type Blob struct {
	Wire     Wire
	Base     uint64
	Data     []byte
	MetaSize int // the section occupies Data[:MetaSize]
}

// Section returns the metadata section bytes.
func (b *Blob) Section() []byte { return b.Data[:b.MetaSize] }

// ReadCString implements StringReader.
func (b *Blob) ReadCString(va uint64) (string, bool) {
	if va < b.Base || va-b.Base >= uint64(len(b.Data)) {
		return "", false
	}
	rest := b.Data[va-b.Base:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return "", false
	}
	return string(rest[:end]), true
}

type fixup struct {
	at  int // pointer position in the section
	str int // offset in the string pool
}

// Builder lays records out exactly as the declaration macros do. It backs the
// pack command and test fixtures.
type Builder struct {
	wire     Wire
	base     uint64
	sec      []byte
	pool     []byte
	interned map[string]int
	fixups   []fixup
}

// NewBuilder returns a builder for an image loaded at base.
func NewBuilder(w Wire, base uint64) *Builder {
	return &Builder{wire: w, base: base, interned: make(map[string]int)}
}

func (b *Builder) grow(n int) []byte {
	start := len(b.sec)
	b.sec = append(b.sec, make([]byte, n)...)
	return b.sec[start:]
}

// str leaves a NULL pointer for empty strings.
func (b *Builder) str(at int, s string) {
	if s == "" {
		return
	}
	off, ok := b.interned[s]
	if !ok {
		off = len(b.pool)
		b.pool = append(b.pool, s...)
		b.pool = append(b.pool, 0)
		b.interned[s] = off
	}
	b.fixups = append(b.fixups, fixup{at: at, str: off})
}

func (b *Builder) tag(p []byte, t ItemType) { b.wire.Order.PutUint32(p, uint32(t)) }

// Function appends a function record.
func (b *Builder) Function(addr uint64, name, ret, args, regs string, stackBytes int32) *Builder {
	w := b.wire
	start := len(b.sec)
	p := b.grow(w.FunctionSize())
	b.tag(p, ItemFunction)
	w.putLong(p[tagSize:], addr)
	at := start + tagSize + w.LongSize
	for i, s := range []string{name, ret, args, regs} {
		b.str(at+i*w.PtrSize, s)
	}
	w.Order.PutUint32(p[tagSize+w.LongSize+4*w.PtrSize:], uint32(stackBytes))
	return b
}

// Data appends a data record.
func (b *Builder) Data(addr uint64, name, typ string) *Builder {
	w := b.wire
	start := len(b.sec)
	p := b.grow(w.DataSize())
	b.tag(p, ItemData)
	w.putLong(p[tagSize:], addr)
	at := start + tagSize + w.LongSize
	b.str(at, name)
	b.str(at+w.PtrSize, typ)
	return b
}

// Struct appends a struct record terminated by the end-of-list sentinel.
func (b *Builder) Struct(name string, size int32, fields ...FieldSpec) *Builder {
	w := b.wire
	start := len(b.sec)
	p := b.grow(w.StructSize(len(fields)))
	b.tag(p, ItemStruct)
	b.str(start+tagSize, name)
	w.Order.PutUint32(p[tagSize+w.PtrSize:], uint32(size))

	all := make([]FieldSpec, 0, len(fields)+1)
	all = append(append(all, fields...), FieldSpec{Offset: -1, Size: -1})

	off := w.StructHeaderSize()
	for _, f := range all {
		for i, s := range []string{f.Name, f.Type, f.Decl} {
			b.str(start+off+i*w.PtrSize, s)
		}
		w.Order.PutUint32(p[off+3*w.PtrSize:], uint32(f.Offset))
		w.Order.PutUint32(p[off+3*w.PtrSize+int32Size:], uint32(f.Size))
		off += w.FieldSize()
	}
	return b
}

// Add appends any decoded record.
func (b *Builder) Add(rec Record) *Builder {
	switch r := rec.(type) {
	case *FunctionRef:
		return b.Function(r.Addr, r.Name, r.Ret, r.Args, r.Regs, r.StackBytes)
	case *DataRef:
		return b.Data(r.Addr, r.Name, r.Type)
	case *StructLayout:
		return b.Struct(r.Name, r.Size, r.Fields...)
	}
	return b
}

// Raw appends bytes verbatim to the section.
func (b *Builder) Raw(p []byte) *Builder {
	b.sec = append(b.sec, p...)
	return b
}

// Build resolves string pointers and returns the image.
func (b *Builder) Build() *Blob {
	data := make([]byte, 0, len(b.sec)+len(b.pool))
	data = append(data, b.sec...)
	data = append(data, b.pool...)
	poolVA := b.base + uint64(len(b.sec))
	for _, f := range b.fixups {
		b.wire.putPtr(data[f.at:], poolVA+uint64(f.str))
	}
	return &Blob{Wire: b.wire, Base: b.base, Data: data, MetaSize: len(b.sec)}
}
