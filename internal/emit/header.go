package emit

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"metagen/internal/layout"
	"metagen/internal/meta"
)

const preamble = `#include <stddef.h>
#include <stdint.h>
#ifdef __GNUC__
#define PACK __attribute__((__packed__))
#define TFUNC extern
#define TDATA extern
#endif
#ifdef _MSC_VER
#define TFUNC __declspec(dllexport)
#define TDATA __declspec(dllimport)
#define PACK
#endif
#define FLEXIBLE_ARRAY 1
`

// HeaderWriter renders structs as packed C typedefs guarded by static
// asserts. With MSVC set it also declares functions and data for MSVC
// builds; otherwise those records are ignored.
type HeaderWriter struct {
	bw    *bufio.Writer
	msvc  bool
	begun bool
}

// HeaderOption configures a HeaderWriter.
type HeaderOption func(*HeaderWriter)

// WithMSVCDecls emits TFUNC/TDATA declarations for functions and data.
func WithMSVCDecls(on bool) HeaderOption {
	return func(h *HeaderWriter) { h.msvc = on }
}

func NewHeaderWriter(w io.Writer, opts ...HeaderOption) *HeaderWriter {
	h := &HeaderWriter{bw: bufio.NewWriter(w)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HeaderWriter) begin() {
	if !h.begun {
		h.bw.WriteString(preamble)
		h.begun = true
	}
}

func (h *HeaderWriter) Function(f *meta.FunctionRef) error {
	if !h.msvc {
		return nil
	}
	h.begin()
	fmt.Fprintf(h.bw, "#ifdef _MSC_VER\nTFUNC %s %s(%s);\n#endif\n", f.Ret, f.Name, f.Args)
	return nil
}

func (h *HeaderWriter) Data(d *meta.DataRef) error {
	if !h.msvc {
		return nil
	}
	h.begin()
	h.bw.WriteString("#ifdef _MSC_VER\n")
	// array types carry the name inside the declarator
	if strings.Contains(d.Type, "[") {
		fmt.Fprintf(h.bw, "TDATA %s;\n", d.Type)
	} else {
		fmt.Fprintf(h.bw, "TDATA %s %s;\n", d.Type, d.Name)
	}
	h.bw.WriteString("#endif\n")
	return nil
}

func (h *HeaderWriter) Struct(s *layout.Struct) error {
	h.begin()
	h.bw.WriteString("#ifdef _MSC_VER\n#pragma pack(push, 1)\n#endif\n")
	fmt.Fprintf(h.bw, "typedef struct PACK %s {\n", s.Name)
	for _, f := range s.Fields {
		fmt.Fprintf(h.bw, "  %s; ///< offset=0x%x\n", f.Declaration(), f.Offset)
	}
	fmt.Fprintf(h.bw, "} %s;\n", s.Name)
	h.bw.WriteString("#ifdef _MSC_VER\n#pragma pack(pop)\n#endif\n")

	if s.Size > 0 {
		fmt.Fprintf(h.bw, "\nstatic_assert(sizeof(%s) == %d);\n", s.Name, s.Size)
	}
	for _, f := range s.Fields {
		if f.Size < 1 || f.Padding {
			continue
		}
		// a bare declaration hides the member name
		if f.Name == "" && f.Decl != "" {
			continue
		}
		fmt.Fprintf(h.bw, "static_assert(offsetof(%s, %s) == %d);\n", s.Name, f.Ident(), f.Offset)
	}
	return nil
}

// Close flushes buffered output. It does not close the underlying writer.
func (h *HeaderWriter) Close() error {
	return h.bw.Flush()
}
