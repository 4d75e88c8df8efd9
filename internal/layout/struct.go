// Package layout reconciles authored struct descriptions into byte-exact
// layouts: fields in offset order, explicit padding and a validated size.
package layout

import "fmt"

// PadType is the element type of synthesized padding arrays.
const PadType = "uint8_t"

// Field is one member of a resolved struct.
type Field struct {
	Name     string
	Type     string
	Decl     string
	Offset   int
	Size     int
	Padding  bool
	Flexible bool // trailing flexible array member, occupies no bytes
}

// End is the offset just past the field.
func (f Field) End() int { return f.Offset + f.Size }

// Label names the field for diagnostics.
func (f Field) Label() string {
	switch {
	case f.Name != "":
		return f.Name
	case f.Decl != "":
		return f.Decl
	default:
		return fmt.Sprintf("<%s at 0x%x>", f.Type, f.Offset)
	}
}

// Ident returns the member identifier used in the generated header.
func (f Field) Ident() string {
	if f.Name != "" {
		return f.Name
	}
	return fmt.Sprintf("__field_%x", f.Offset)
}

// Declaration renders the member as C, without the trailing semicolon.
func (f Field) Declaration() string {
	switch {
	case f.Padding:
		return fmt.Sprintf("%s %s[%d]", PadType, f.Name, f.Size)
	case f.Decl != "":
		return f.Decl
	default:
		return f.Type + " " + f.Ident()
	}
}

// Struct is a struct after sorting, padding insertion and size validation.
type Struct struct {
	Name     string
	Declared int // authored size, 0 when it was left to be computed
	Size     int
	Fields   []Field
}

// Padding returns the total number of synthesized padding bytes.
func (s *Struct) Padding() int {
	n := 0
	for _, f := range s.Fields {
		if f.Padding {
			n += f.Size
		}
	}
	return n
}

// Verify checks that the fields tile [0, Size) exactly.
func (s *Struct) Verify() error {
	at := 0
	for _, f := range s.Fields {
		if f.Offset != at {
			return fmt.Errorf("%s.%s: starts at %d, previous field ends at %d", s.Name, f.Label(), f.Offset, at)
		}
		at = f.End()
	}
	if at != s.Size {
		return fmt.Errorf("%s: fields cover %d bytes, size is %d", s.Name, at, s.Size)
	}
	return nil
}
