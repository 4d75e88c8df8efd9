package meta

import (
	"errors"
	"io"
	"iter"
	"log/slog"
)

// StringReader resolves a string pointer stored in a record. Implementations
// return false when the address is not mapped by the image.
type StringReader interface {
	ReadCString(va uint64) (string, bool)
}

// Decoder walks a metadata section one record at a time. It is not
// restartable: once Next has returned an error or io.EOF it keeps doing so.
type Decoder struct {
	buf    []byte
	wire   Wire
	strs   StringReader
	pos    int
	strict bool
	err    error
	log    *slog.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// Strict makes an unrecognized discriminant a decode error instead of the
// end of the stream.
func Strict(strict bool) Option {
	return func(d *Decoder) { d.strict = strict }
}

// WithLogger sets the logger used for trace output.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.log = l
		}
	}
}

// NewDecoder returns a decoder over section, resolving strings through strs.
func NewDecoder(section []byte, w Wire, strs StringReader, opts ...Option) (*Decoder, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	d := &Decoder{
		buf:  section,
		wire: w,
		strs: strs,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Position returns the offset of the next record.
func (d *Decoder) Position() int { return d.pos }

// Next decodes the record at the cursor and returns it with its stride.
// It returns io.EOF when the buffer is exhausted, when the remaining bytes are
// zero padding, or (unless strict) at an unrecognized discriminant.
func (d *Decoder) Next() (Record, int, error) {
	if d.err != nil {
		return nil, 0, d.err
	}
	rec, stride, err := d.next()
	if err != nil {
		d.err = err
		return nil, 0, err
	}
	d.pos += stride
	return rec, stride, nil
}

func (d *Decoder) next() (Record, int, error) {
	rest := d.buf[d.pos:]
	if len(rest) == 0 || allZero(rest) {
		return nil, 0, io.EOF
	}
	if len(rest) < tagSize {
		return nil, 0, decodeError(d.pos, 0, "discriminant", ErrTruncated)
	}

	tag := ItemType(d.wire.int32(rest))
	var (
		rec    Record
		stride int
		err    error
	)
	switch tag {
	case ItemFunction:
		rec, stride, err = d.decodeFunction()
	case ItemData:
		rec, stride, err = d.decodeData()
	case ItemStruct:
		rec, stride, err = d.decodeStruct()
	default:
		if d.strict {
			return nil, 0, decodeError(d.pos, tag, "", ErrUnknownTag)
		}
		d.log.Debug("unknown discriminant ends stream", "offset", d.pos, "tag", int32(tag))
		return nil, 0, io.EOF
	}
	if err != nil {
		return nil, 0, err
	}
	if stride <= 0 {
		return nil, 0, decodeError(d.pos, tag, "non-positive stride", nil)
	}
	return rec, stride, nil
}

// All yields every record until the end of the stream. A decode failure is
// yielded once with a nil record and stops the iteration.
func (d *Decoder) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, _, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// DecodeAll drains the decoder.
func (d *Decoder) DecodeAll() ([]Record, error) {
	var recs []Record
	for rec, err := range d.All() {
		if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (d *Decoder) span(tag ItemType, n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, decodeError(d.pos, tag, "", ErrTruncated)
	}
	return d.buf[d.pos : d.pos+n], nil
}

// cstr reads the string pointed to by the pointer at b. A NULL pointer is an
// absent string.
func (d *Decoder) cstr(tag ItemType, what string, b []byte) (string, error) {
	va := d.wire.ptr(b)
	if va == 0 {
		return "", nil
	}
	s, ok := d.strs.ReadCString(va)
	if !ok {
		return "", decodeError(d.pos, tag, what, ErrBadString)
	}
	return s, nil
}

func (d *Decoder) cstrs(tag ItemType, b []byte, names ...string) ([]string, error) {
	out := make([]string, len(names))
	for i, what := range names {
		s, err := d.cstr(tag, what, b[i*d.wire.PtrSize:])
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func (d *Decoder) decodeFunction() (Record, int, error) {
	w := d.wire
	n := w.FunctionSize()
	b, err := d.span(ItemFunction, n)
	if err != nil {
		return nil, 0, err
	}
	p := tagSize
	addr := w.long(b[p:])
	p += w.LongSize
	s, err := d.cstrs(ItemFunction, b[p:], "name", "return type", "argument types", "registers")
	if err != nil {
		return nil, 0, err
	}
	p += 4 * w.PtrSize
	if s[0] == "" {
		return nil, 0, decodeError(d.pos, ItemFunction, "", ErrMissingName)
	}
	return &FunctionRef{
		Offset:     d.pos,
		Addr:       addr,
		Name:       s[0],
		Ret:        s[1],
		Args:       s[2],
		Regs:       s[3],
		StackBytes: w.int32(b[p:]),
	}, n, nil
}

func (d *Decoder) decodeData() (Record, int, error) {
	w := d.wire
	n := w.DataSize()
	b, err := d.span(ItemData, n)
	if err != nil {
		return nil, 0, err
	}
	p := tagSize
	addr := w.long(b[p:])
	p += w.LongSize
	s, err := d.cstrs(ItemData, b[p:], "name", "type")
	if err != nil {
		return nil, 0, err
	}
	if s[0] == "" {
		return nil, 0, decodeError(d.pos, ItemData, "", ErrMissingName)
	}
	return &DataRef{Offset: d.pos, Addr: addr, Name: s[0], Type: s[1]}, n, nil
}

func (d *Decoder) decodeStruct() (Record, int, error) {
	w := d.wire
	hdr, err := d.span(ItemStruct, w.StructHeaderSize())
	if err != nil {
		return nil, 0, err
	}
	name, err := d.cstr(ItemStruct, "name", hdr[tagSize:])
	if err != nil {
		return nil, 0, err
	}
	if name == "" {
		return nil, 0, decodeError(d.pos, ItemStruct, "", ErrMissingName)
	}
	st := &StructLayout{
		Offset: d.pos,
		Name:   name,
		Size:   w.int32(hdr[tagSize+w.PtrSize:]),
	}

	// The field array has no count; it runs until the (-1, -1) sentinel.
	for i := 0; ; i++ {
		b, err := d.span(ItemStruct, w.StructSize(i))
		if err != nil {
			return nil, 0, decodeError(d.pos, ItemStruct, st.Name+": field list has no end marker", ErrTruncated)
		}
		f := b[w.StructHeaderSize()+i*w.FieldSize():]
		p := 3 * w.PtrSize
		offset, size := w.int32(f[p:]), w.int32(f[p+int32Size:])
		if offset == -1 && size == -1 {
			return st, len(b), nil
		}
		s, err := d.cstrs(ItemStruct, f, "field name", "field type", "field declaration")
		if err != nil {
			return nil, 0, err
		}
		st.Fields = append(st.Fields, FieldSpec{
			Name:   s[0],
			Type:   s[1],
			Decl:   s[2],
			Offset: offset,
			Size:   size,
		})
	}
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
