package cmd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"metagen/internal/image"
	"metagen/internal/meta"
)

// PackDescription is the YAML input of the pack command: the records a
// build of the declaration macros would produce, in declaration order.
type PackDescription struct {
	Wire      string     `yaml:"wire" json:"wire,omitempty" jsonschema:"enum=ilp32,enum=lp64,enum=llp64,default=lp64"`
	BigEndian bool       `yaml:"big_endian" json:"big_endian,omitempty"`
	Base      uint64     `yaml:"base" json:"base,omitempty" jsonschema:"description=Virtual address the image is loaded at"`
	Items     []PackItem `yaml:"items" json:"items"`
}

// PackItem holds exactly one record.
type PackItem struct {
	Function *PackFunction `yaml:"function,omitempty" json:"function,omitempty"`
	Data     *PackData     `yaml:"data,omitempty" json:"data,omitempty"`
	Struct   *PackStruct   `yaml:"struct,omitempty" json:"struct,omitempty"`
}

type PackFunction struct {
	Addr       uint64 `yaml:"addr" json:"addr"`
	Name       string `yaml:"name" json:"name"`
	Ret        string `yaml:"ret" json:"ret"`
	Args       string `yaml:"args" json:"args"`
	Regs       string `yaml:"regs" json:"regs,omitempty"`
	StackBytes *int32 `yaml:"stack_bytes" json:"stack_bytes,omitempty" jsonschema:"description=Set for stdcall functions"`
}

type PackData struct {
	Addr uint64 `yaml:"addr" json:"addr"`
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

type PackStruct struct {
	Name   string      `yaml:"name" json:"name"`
	Size   int32       `yaml:"size" json:"size,omitempty" jsonschema:"description=Declared size; 0 lets the layout decide"`
	Fields []PackField `yaml:"fields" json:"fields"`
}

type PackField struct {
	Name   string `yaml:"name" json:"name,omitempty"`
	Type   string `yaml:"type" json:"type"`
	Decl   string `yaml:"decl" json:"decl,omitempty"`
	Offset int32  `yaml:"offset" json:"offset"`
	Size   int32  `yaml:"size" json:"size,omitempty" jsonschema:"description=0 resolves the size from the named struct type"`
}

// ParsePackDescription decodes a YAML description, rejecting unknown keys.
func ParsePackDescription(b []byte) (*PackDescription, error) {
	desc := &PackDescription{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(desc); err != nil {
		return nil, fmt.Errorf("parse description: %w", err)
	}
	return desc, nil
}

func (d *PackDescription) wire() (meta.Wire, error) {
	var w meta.Wire
	switch d.Wire {
	case "", "lp64":
		w = meta.WireLP64
	case "llp64":
		w = meta.WireLLP64
	case "ilp32":
		w = meta.Wire32
	default:
		return w, fmt.Errorf("unknown wire %q (want ilp32, lp64 or llp64)", d.Wire)
	}
	if d.BigEndian {
		w.Order = binary.BigEndian
	}
	return w, nil
}

// Build lays the description out as a metadata image.
func (d *PackDescription) Build() (*meta.Blob, error) {
	w, err := d.wire()
	if err != nil {
		return nil, err
	}
	b := meta.NewBuilder(w, d.Base)
	for i, it := range d.Items {
		n := 0
		if f := it.Function; f != nil {
			n++
			stack := int32(meta.NotStdcall)
			if f.StackBytes != nil {
				stack = *f.StackBytes
			}
			b.Function(f.Addr, f.Name, f.Ret, f.Args, f.Regs, stack)
		}
		if v := it.Data; v != nil {
			n++
			b.Data(v.Addr, v.Name, v.Type)
		}
		if s := it.Struct; s != nil {
			n++
			fields := make([]meta.FieldSpec, 0, len(s.Fields))
			for _, f := range s.Fields {
				fields = append(fields, meta.FieldSpec{
					Name: f.Name, Type: f.Type, Decl: f.Decl, Offset: f.Offset, Size: f.Size,
				})
			}
			b.Struct(s.Name, s.Size, fields...)
		}
		if n != 1 {
			return nil, fmt.Errorf("item %d: want exactly one of function, data or struct, got %d", i, n)
		}
	}
	return b.Build(), nil
}

var packCmd = &cobra.Command{
	Use:   "pack <description.yaml> <output>",
	Short: "Build a flat metadata container from a YAML description",
	Long: `Pack lays out records exactly as the declaration macros would and writes
them to a flat container that every other command accepts as an image.`,
	Example: `
metagen pack layouts.yaml layouts.mtgn
metagen -t layouts.mtgn
  `,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		desc, err := ParsePackDescription(src)
		if err != nil {
			return err
		}
		blob, err := desc.Build()
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := image.WriteFlat(&buf, blob); err != nil {
			return err
		}
		if err := os.WriteFile(args[1], buf.Bytes(), 0o644); err != nil {
			return err
		}
		slog.Info("Packed metadata", "items", len(desc.Items), "metadata", blob.MetaSize, "bytes", buf.Len(), "out", args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(packCmd)
}
