// Package meta decodes the metadata section emitted by the declaration macros:
// a packed run of tagged records describing external functions, data symbols
// and struct layouts.
package meta

import "fmt"

// ItemType is the discriminant stored as the first element of every record.
type ItemType int32

const (
	ItemFunction ItemType = 1
	ItemData     ItemType = 2
	ItemStruct   ItemType = 3
)

func (t ItemType) String() string {
	switch t {
	case ItemFunction:
		return "function"
	case ItemData:
		return "data"
	case ItemStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// NotStdcall is the stack-byte sentinel for functions that are not stdcall.
const NotStdcall = -1

// Record is one decoded unit of the metadata stream.
type Record interface {
	Kind() ItemType
	// Pos is the byte offset of the record within the metadata section.
	Pos() int
	isRecord()
}

// FunctionRef describes a function living at a fixed address in the target.
type FunctionRef struct {
	Offset     int
	Addr       uint64
	Name       string
	Ret        string
	Args       string // already comma-joined
	Regs       string // register usage for thunks, usually empty
	StackBytes int32  // NotStdcall unless stdcall
}

func (*FunctionRef) Kind() ItemType { return ItemFunction }
func (r *FunctionRef) Pos() int     { return r.Offset }
func (*FunctionRef) isRecord()      {}

// Stdcall reports whether the function carries a stack-byte count.
func (r *FunctionRef) Stdcall() bool { return r.StackBytes >= 0 }

// DataRef describes a global variable in the target.
type DataRef struct {
	Offset int
	Addr   uint64
	Name   string
	Type   string
}

func (*DataRef) Kind() ItemType { return ItemData }
func (r *DataRef) Pos() int     { return r.Offset }
func (*DataRef) isRecord()      {}

// FieldSpec is one struct member as authored. Size 0 means the size is not
// statically known and must come from the struct registry.
type FieldSpec struct {
	Name   string
	Type   string
	Decl   string
	Offset int32
	Size   int32
}

// Named reports whether the field carries a name or a full declaration.
func (f FieldSpec) Named() bool { return f.Name != "" || f.Decl != "" }

// IsEnd reports whether f is the (-1, -1) marker that ends a field list.
func (f FieldSpec) IsEnd() bool { return f.Offset == -1 && f.Size == -1 }

func (f FieldSpec) String() string {
	if f.Decl != "" {
		return f.Decl
	}
	if f.Name == "" {
		return f.Type
	}
	return fmt.Sprintf("%s %s", f.Type, f.Name)
}

// StructLayout is a struct description. Size 0 means "compute it".
// Fields never include the end-of-list sentinel.
type StructLayout struct {
	Offset int
	Name   string
	Size   int32
	Fields []FieldSpec
}

func (*StructLayout) Kind() ItemType { return ItemStruct }
func (r *StructLayout) Pos() int     { return r.Offset }
func (*StructLayout) isRecord()      {}
