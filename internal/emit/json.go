// Package emit renders resolved metadata as a JSON item array, a C header
// and a markdown report.
package emit

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"metagen/internal/layout"
	"metagen/internal/meta"
)

// FunctionItem is the JSON form of a function reference.
type FunctionItem struct {
	ItemType   string `json:"item_type" jsonschema:"enum=function"`
	Addr       string `json:"addr" jsonschema:"pattern=^0x[0-9a-f]+$"`
	Ret        string `json:"ret"`
	Args       string `json:"args"`
	Name       string `json:"name"`
	Regs       string `json:"regs,omitempty"`
	StackBytes *int32 `json:"stack_bytes,omitempty" jsonschema:"minimum=0"`
}

// DataItem is the JSON form of a data reference.
type DataItem struct {
	ItemType string `json:"item_type" jsonschema:"enum=data"`
	Addr     string `json:"addr" jsonschema:"pattern=^0x[0-9a-f]+$"`
	Type     string `json:"type"`
	Name     string `json:"name"`
}

// StructItem is the JSON form of a resolved struct.
type StructItem struct {
	ItemType string      `json:"item_type" jsonschema:"enum=struct"`
	Name     string      `json:"name"`
	Size     int         `json:"size"`
	Fields   []FieldItem `json:"fields"`
}

type FieldItem struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Decl     string `json:"decl,omitempty"`
	Offset   int    `json:"offset"`
	Size     int    `json:"size"`
	Padding  bool   `json:"padding,omitempty"`
	Flexible bool   `json:"flexible,omitempty"`
}

func hex(v uint64) string { return fmt.Sprintf("0x%x", v) }

// NewFunctionItem converts a function reference.
func NewFunctionItem(f *meta.FunctionRef) FunctionItem {
	it := FunctionItem{
		ItemType: meta.ItemFunction.String(),
		Addr:     hex(f.Addr),
		Ret:      f.Ret,
		Args:     f.Args,
		Name:     f.Name,
		Regs:     f.Regs,
	}
	if f.Stdcall() {
		n := f.StackBytes
		it.StackBytes = &n
	}
	return it
}

// NewDataItem converts a data reference.
func NewDataItem(d *meta.DataRef) DataItem {
	return DataItem{
		ItemType: meta.ItemData.String(),
		Addr:     hex(d.Addr),
		Type:     d.Type,
		Name:     d.Name,
	}
}

// NewStructItem converts a resolved struct.
func NewStructItem(s *layout.Struct) StructItem {
	it := StructItem{
		ItemType: meta.ItemStruct.String(),
		Name:     s.Name,
		Size:     s.Size,
		Fields:   make([]FieldItem, 0, len(s.Fields)),
	}
	for _, f := range s.Fields {
		it.Fields = append(it.Fields, FieldItem{
			Name:     f.Ident(),
			Type:     f.Type,
			Decl:     f.Decl,
			Offset:   f.Offset,
			Size:     f.Size,
			Padding:  f.Padding,
			Flexible: f.Flexible,
		})
	}
	return it
}

// JSONWriter streams items as one JSON array. The opening bracket is written
// with the first item, or by Close if there were none.
type JSONWriter struct {
	w      io.Writer
	n      int
	opened bool
	err    error
}

func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{w: w}
}

func (j *JSONWriter) write(p []byte) {
	if j.err != nil {
		return
	}
	_, j.err = j.w.Write(p)
}

func (j *JSONWriter) item(v any) error {
	if j.err != nil {
		return j.err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json item: %w", err)
	}
	switch {
	case !j.opened:
		j.write([]byte("["))
		j.opened = true
	case j.n > 0:
		j.write([]byte(","))
	}
	j.write(b)
	j.n++
	return j.err
}

func (j *JSONWriter) Function(f *meta.FunctionRef) error { return j.item(NewFunctionItem(f)) }
func (j *JSONWriter) Data(d *meta.DataRef) error         { return j.item(NewDataItem(d)) }
func (j *JSONWriter) Struct(s *layout.Struct) error      { return j.item(NewStructItem(s)) }

// Len returns the number of items written.
func (j *JSONWriter) Len() int { return j.n }

// Close terminates the array. It does not close the underlying writer.
func (j *JSONWriter) Close() error {
	if !j.opened {
		j.write([]byte("["))
		j.opened = true
	}
	j.write([]byte("]\n"))
	return j.err
}
