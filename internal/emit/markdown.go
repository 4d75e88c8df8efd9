package emit

import (
	"fmt"
	"strings"

	"github.com/ianlancetaylor/demangle"

	"metagen/internal/layout"
	"metagen/internal/meta"
)

// DisplayName demangles C++ symbol names and leaves anything else untouched.
func DisplayName(name string) string {
	return demangle.Filter(name, demangle.NoParams)
}

// Markdown collects records and renders them as an audit report.
type Markdown struct {
	Title string
	funcs []*meta.FunctionRef
	data  []*meta.DataRef
	types []*layout.Struct
}

func NewMarkdown(title string) *Markdown {
	return &Markdown{Title: title}
}

func (m *Markdown) Function(f *meta.FunctionRef) error {
	m.funcs = append(m.funcs, f)
	return nil
}

func (m *Markdown) Data(d *meta.DataRef) error {
	m.data = append(m.data, d)
	return nil
}

func (m *Markdown) Struct(s *layout.Struct) error {
	m.types = append(m.types, s)
	return nil
}

// String renders the whole report.
func (m *Markdown) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", m.Title)
	fmt.Fprintf(&b, "%d structs, %d functions, %d data symbols.\n\n", len(m.types), len(m.funcs), len(m.data))

	if len(m.types) > 0 {
		b.WriteString("## Structs\n\n")
		for _, s := range m.types {
			writeStruct(&b, s, "###")
		}
	}

	if len(m.funcs) > 0 {
		b.WriteString("## Functions\n\n")
		b.WriteString("| Address | Name | Signature | Convention |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, f := range m.funcs {
			fmt.Fprintf(&b, "| `0x%x` | %s | %s | %s |\n",
				f.Addr, cell(DisplayName(f.Name)), code(Signature(f)), cell(Convention(f)))
		}
		b.WriteString("\n")
	}

	if len(m.data) > 0 {
		b.WriteString("## Data\n\n")
		b.WriteString("| Address | Name | Type |\n")
		b.WriteString("|---|---|---|\n")
		for _, d := range m.data {
			fmt.Fprintf(&b, "| `0x%x` | %s | %s |\n", d.Addr, cell(DisplayName(d.Name)), code(d.Type))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// StructMarkdown renders a single struct table.
func StructMarkdown(s *layout.Struct) string {
	var b strings.Builder
	writeStruct(&b, s, "#")
	return b.String()
}

func writeStruct(b *strings.Builder, s *layout.Struct, heading string) {
	fmt.Fprintf(b, "%s %s\n\n", heading, s.Name)
	fmt.Fprintf(b, "Size **%d** (0x%x)", s.Size, s.Size)
	if s.Declared == 0 {
		b.WriteString(", computed")
	}
	if pad := s.Padding(); pad > 0 {
		fmt.Fprintf(b, ", %d padding bytes", pad)
	}
	b.WriteString(".\n\n")

	b.WriteString("| Offset | End | Size | Declaration | Kind |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, f := range s.Fields {
		fmt.Fprintf(b, "| `0x%x` | `0x%x` | %d | %s | %s |\n",
			f.Offset, f.End(), f.Size, code(f.Declaration()), kind(f))
	}
	b.WriteString("\n")
}

func kind(f layout.Field) string {
	switch {
	case f.Padding:
		return "padding"
	case f.Flexible:
		return "flexible"
	default:
		return "field"
	}
}

// Signature renders a function as a C prototype.
func Signature(f *meta.FunctionRef) string {
	return fmt.Sprintf("%s %s(%s)", f.Ret, f.Name, f.Args)
}

// Convention describes how the function is called.
func Convention(f *meta.FunctionRef) string {
	var parts []string
	if f.Stdcall() {
		parts = append(parts, fmt.Sprintf("stdcall, %d stack bytes", f.StackBytes))
	} else {
		parts = append(parts, "cdecl")
	}
	if f.Regs != "" {
		parts = append(parts, "regs "+f.Regs)
	}
	return strings.Join(parts, "; ")
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func code(s string) string {
	if s == "" {
		return ""
	}
	return "`" + cell(s) + "`"
}
