// Package pipeline drives a metadata section through decoding, struct
// registration, layout resolution and emission.
package pipeline

import (
	"fmt"
	"log/slog"

	"metagen/internal/layout"
	"metagen/internal/meta"
)

// Options selects which record kinds reach the sink.
type Options struct {
	Code   bool // function references
	Data   bool // data references
	Types  bool // resolved struct layouts
	Strict bool // an unknown discriminant fails instead of ending the stream
	Logger *slog.Logger
}

// Sink receives records in stream order.
type Sink interface {
	Function(*meta.FunctionRef) error
	Data(*meta.DataRef) error
	Struct(*layout.Struct) error
}

// Source is anything that can hand over a metadata section, such as a
// loaded image.
type Source interface {
	meta.StringReader
	Wire() meta.Wire
	MetadataSection() []byte
}

// Result is everything a run produced.
type Result struct {
	Records  []meta.Record
	Structs  []*layout.Struct // resolved, in stream order
	Registry *layout.Registry
	Diags    []layout.Diag
}

// Struct returns the resolved struct called name.
func (r *Result) Struct(name string) (*layout.Struct, bool) {
	return r.Registry.Get(name)
}

// Functions returns the decoded function references in stream order.
func (r *Result) Functions() []*meta.FunctionRef {
	var out []*meta.FunctionRef
	for _, rec := range r.Records {
		if f, ok := rec.(*meta.FunctionRef); ok {
			out = append(out, f)
		}
	}
	return out
}

// DataRefs returns the decoded data references in stream order.
func (r *Result) DataRefs() []*meta.DataRef {
	var out []*meta.DataRef
	for _, rec := range r.Records {
		if d, ok := rec.(*meta.DataRef); ok {
			out = append(out, d)
		}
	}
	return out
}

// Shadowed reports whether a later record redeclares rec's name.
func (r *Result) Shadowed(rec *meta.StructLayout) bool {
	return shadowed(r.Registry, rec)
}

// RunSource runs the pipeline over src.
func RunSource(src Source, opts Options, sink Sink) (*Result, error) {
	return Run(src.MetadataSection(), src.Wire(), src, opts, sink)
}

// Run decodes section in full and registers every struct, resolves and
// verifies every struct, and only then walks the records in stream order
// passing enabled kinds to sink. Structs are resolved whether or not Types
// is set, so a bad layout always fails the run, and a run that fails
// layout never reaches sink.
func Run(section []byte, w meta.Wire, strs meta.StringReader, opts Options, sink Sink) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if sink == nil {
		sink = Discard
	}

	dec, err := meta.NewDecoder(section, w, strs, meta.Strict(opts.Strict), meta.WithLogger(log))
	if err != nil {
		return nil, err
	}
	recs, err := dec.DecodeAll()
	if err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	reg := layout.NewRegistry()
	for _, rec := range recs {
		st, ok := rec.(*meta.StructLayout)
		if !ok {
			continue
		}
		if reg.Register(st) {
			log.Warn("struct declared twice, later declaration wins", "struct", st.Name, "offset", st.Offset)
		}
	}
	log.Debug("decoded metadata", "records", len(recs), "structs", reg.Names(), "bytes", dec.Position())

	res := &Result{Records: recs, Registry: reg}
	rs := layout.NewResolver(reg, log)
	for _, rec := range recs {
		r, ok := rec.(*meta.StructLayout)
		if !ok || shadowed(reg, r) {
			continue
		}
		st, err := rs.ResolveNamed(r.Name)
		if err != nil {
			return res, fmt.Errorf("resolve struct at offset 0x%x: %w", r.Offset, err)
		}
		if err := st.Verify(); err != nil {
			return res, err
		}
		res.Structs = append(res.Structs, st)
	}
	res.Diags = rs.Diags()

	for _, rec := range recs {
		switch r := rec.(type) {
		case *meta.FunctionRef:
			if opts.Code {
				if err := sink.Function(r); err != nil {
					return res, err
				}
			}
		case *meta.DataRef:
			if opts.Data {
				if err := sink.Data(r); err != nil {
					return res, err
				}
			}
		case *meta.StructLayout:
			if !opts.Types || shadowed(reg, r) {
				continue
			}
			st, _ := reg.Get(r.Name)
			if err := sink.Struct(st); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// shadowed reports whether a later record redeclares r's name.
func shadowed(reg *layout.Registry, r *meta.StructLayout) bool {
	spec, _ := reg.Layout(r.Name)
	return spec != r
}

type discard struct{}

func (discard) Function(*meta.FunctionRef) error { return nil }
func (discard) Data(*meta.DataRef) error         { return nil }
func (discard) Struct(*layout.Struct) error      { return nil }

// Discard is a Sink that drops everything.
var Discard Sink = discard{}
