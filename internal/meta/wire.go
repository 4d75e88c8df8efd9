package meta

import (
	"encoding/binary"
	"fmt"
)

// Wire describes how the packed records were laid out by the compiler that
// built the metadata image.
type Wire struct {
	PtrSize  int // 4 or 8
	LongSize int // size of `unsigned long`: 4 on LLP64 and ILP32, 8 on LP64
	Order    binary.ByteOrder
}

var (
	// Wire32 matches a 32-bit Windows or Linux build.
	Wire32 = Wire{PtrSize: 4, LongSize: 4, Order: binary.LittleEndian}
	// WireLP64 matches a 64-bit Linux build.
	WireLP64 = Wire{PtrSize: 8, LongSize: 8, Order: binary.LittleEndian}
	// WireLLP64 matches a 64-bit Windows build.
	WireLLP64 = Wire{PtrSize: 8, LongSize: 4, Order: binary.LittleEndian}
)

const (
	tagSize   = 4
	int32Size = 4
)

// Validate reports whether the sizes are ones a C compiler would produce.
func (w Wire) Validate() error {
	if w.PtrSize != 4 && w.PtrSize != 8 {
		return fmt.Errorf("meta: unsupported pointer size %d", w.PtrSize)
	}
	if w.LongSize != 4 && w.LongSize != 8 {
		return fmt.Errorf("meta: unsupported long size %d", w.LongSize)
	}
	if w.Order == nil {
		return fmt.Errorf("meta: byte order not set")
	}
	return nil
}

// FunctionSize is the stride of a function record.
func (w Wire) FunctionSize() int { return tagSize + w.LongSize + 4*w.PtrSize + int32Size }

// DataSize is the stride of a data record.
func (w Wire) DataSize() int { return tagSize + w.LongSize + 2*w.PtrSize }

// StructHeaderSize is the size of a struct record before its field array.
func (w Wire) StructHeaderSize() int { return tagSize + w.PtrSize + int32Size }

// FieldSize is the size of one field entry, sentinel included.
func (w Wire) FieldSize() int { return 3*w.PtrSize + 2*int32Size }

// StructSize is the stride of a struct record with n real fields.
func (w Wire) StructSize(n int) int { return w.StructHeaderSize() + (n+1)*w.FieldSize() }

func (w Wire) ptr(b []byte) uint64 {
	if w.PtrSize == 4 {
		return uint64(w.Order.Uint32(b))
	}
	return w.Order.Uint64(b)
}

func (w Wire) long(b []byte) uint64 {
	if w.LongSize == 4 {
		return uint64(w.Order.Uint32(b))
	}
	return w.Order.Uint64(b)
}

func (w Wire) int32(b []byte) int32 { return int32(w.Order.Uint32(b)) }

func (w Wire) putPtr(b []byte, v uint64) {
	if w.PtrSize == 4 {
		w.Order.PutUint32(b, uint32(v))
		return
	}
	w.Order.PutUint64(b, v)
}

func (w Wire) putLong(b []byte, v uint64) {
	if w.LongSize == 4 {
		w.Order.PutUint32(b, uint32(v))
		return
	}
	w.Order.PutUint64(b, v)
}
