package layout

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"metagen/internal/meta"
)

// Diag records a non-fatal decision the resolver made, such as dropping a
// filler entry.
type Diag struct {
	Struct string
	Field  string
	Msg    string
}

func (d Diag) String() string {
	return fmt.Sprintf("%s.%s: %s", d.Struct, d.Field, d.Msg)
}

// Resolver turns registered struct descriptions into final layouts. Results
// are memoized in the registry, so each struct is laid out once no matter how
// many fields refer to it.
type Resolver struct {
	reg   *Registry
	log   *slog.Logger
	stack []string
	diags []Diag
}

// NewResolver returns a resolver backed by reg.
func NewResolver(reg *Registry, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{reg: reg, log: log}
}

// Diags returns the diagnostics collected so far.
func (rs *Resolver) Diags() []Diag { return rs.diags }

// Resolve lays out the struct name with the given declared size and raw
// fields. If name is not registered yet it is registered first. If it is,
// declared and raw are ignored and the registered struct is resolved, or its
// memoized result returned; use Registry.Register to replace a struct.
func (rs *Resolver) Resolve(name string, declared int32, raw []meta.FieldSpec) (*Struct, error) {
	if !rs.reg.Has(name) {
		rs.reg.Register(&meta.StructLayout{Name: name, Size: declared, Fields: raw})
	}
	return rs.ResolveNamed(name)
}

// ResolveNamed lays out a registered struct.
func (rs *Resolver) ResolveNamed(name string) (*Struct, error) {
	e, ok := rs.reg.entries[name]
	if !ok {
		return nil, &UnknownTypeError{Struct: name, Type: name}
	}
	return rs.resolve(e)
}

// ResolveSize returns the final size of a registered struct.
func (rs *Resolver) ResolveSize(name string) (int, error) {
	st, err := rs.ResolveNamed(name)
	if err != nil {
		return 0, err
	}
	return st.Size, nil
}

func (rs *Resolver) resolve(e *entry) (*Struct, error) {
	name := e.spec.Name
	switch e.state {
	case resolved:
		return e.st, nil
	case resolving:
		i := slices.Index(rs.stack, name)
		path := append(slices.Clone(rs.stack[i:]), name)
		return nil, &CyclicTypeError{Path: path}
	}

	e.state = resolving
	rs.stack = append(rs.stack, name)
	defer func() { rs.stack = rs.stack[:len(rs.stack)-1] }()

	st, err := rs.lay(e.spec)
	if err != nil {
		e.state = pending
		return nil, err
	}
	e.st, e.state = st, resolved
	return st, nil
}

// lay runs the layout passes for one struct: order, size, pad, validate.
func (rs *Resolver) lay(spec *meta.StructLayout) (*Struct, error) {
	fields := rs.canonical(spec)

	kept, err := rs.sizeFields(spec.Name, fields)
	if err != nil {
		return nil, err
	}

	st := &Struct{Name: spec.Name, Declared: int(spec.Size)}
	pads := 0
	pad := func(at, n int) {
		st.Fields = append(st.Fields, Field{
			Name:    fmt.Sprintf("__padding%d", pads),
			Type:    PadType,
			Offset:  at,
			Size:    n,
			Padding: true,
		})
		pads++
	}

	cum := 0
	switch {
	case len(kept) == 0:
		// a lone filler byte keeps empty structs valid C
		pad(0, 1)
		cum = 1
	case kept[0].Offset > 0:
		pad(0, kept[0].Offset)
		cum = kept[0].Offset
	}

	for i, f := range kept {
		if cum != f.Offset {
			return nil, &OffsetMismatchError{Struct: spec.Name, Field: f.Label(), Expected: f.Offset, Actual: cum}
		}
		st.Fields = append(st.Fields, f)
		cum += f.Size
		rs.log.Debug("field", "struct", spec.Name, "start", f.Offset, "end", f.End(), "type", f.Type, "name", f.Name, "size", f.Size)

		if i+1 < len(kept) {
			if gap := kept[i+1].Offset - f.End(); gap > 0 {
				pad(cum, gap)
				cum += gap
			}
		}
	}

	if st.Declared > 0 && cum < st.Declared {
		pad(cum, st.Declared-cum)
		cum = st.Declared
	}

	switch {
	case st.Declared == 0:
		st.Size = cum
	case st.Declared < cum:
		return nil, &SizeTooSmallError{Struct: spec.Name, Declared: st.Declared, Required: cum}
	default:
		st.Size = st.Declared
	}
	return st, nil
}

// canonical drops end markers and sorts fields by offset. Fields sharing an
// offset are aliases; the one declared last wins.
func (rs *Resolver) canonical(spec *meta.StructLayout) []meta.FieldSpec {
	fields := slices.DeleteFunc(slices.Clone(spec.Fields), meta.FieldSpec.IsEnd)
	slices.SortStableFunc(fields, func(a, b meta.FieldSpec) int {
		return cmp.Compare(a.Offset, b.Offset)
	})

	out := fields[:0]
	for _, f := range fields {
		if n := len(out); n > 0 && out[n-1].Offset == f.Offset {
			rs.note(spec.Name, out[n-1].String(), fmt.Sprintf("aliased by %s at offset %d, dropped", f, f.Offset))
			out[n-1] = f
			continue
		}
		out = append(out, f)
	}
	return out
}

// sizeFields gives every field a byte size, dropping filler entries.
func (rs *Resolver) sizeFields(owner string, fields []meta.FieldSpec) ([]Field, error) {
	n := len(fields)
	kept := make([]Field, 0, n)
	for i, f := range fields {
		fld := Field{
			Name:   f.Name,
			Type:   f.Type,
			Decl:   f.Decl,
			Offset: int(f.Offset),
			Size:   int(f.Size),
		}
		if f.Size >= 1 {
			kept = append(kept, fld)
			continue
		}
		fld.Size = 0

		flexible := i == n-1 && f.Name != "" && f.Decl != ""
		switch {
		case n == 1 && (rs.reg.Has(f.Type) || !flexible):
			// a lone member of unknown size is an embedded struct
			size, err := rs.nestedSize(owner, fld)
			if err != nil {
				return nil, err
			}
			if size == 0 {
				return nil, &AmbiguousUnsizedFieldError{Struct: owner, Field: fld.Label()}
			}
			fld.Size = size
		case flexible:
			fld.Flexible = true
		case !f.Named():
			rs.note(owner, fld.Label(), "unnamed zero-size entry dropped")
			continue
		default:
			size, err := rs.nestedSize(owner, fld)
			if err != nil {
				return nil, err
			}
			if size == 0 {
				rs.note(owner, fld.Label(), "skipping 0-sized field")
				continue
			}
			fld.Size = size
		}
		kept = append(kept, fld)
	}
	return kept, nil
}

func (rs *Resolver) nestedSize(owner string, f Field) (int, error) {
	e, ok := rs.reg.entries[f.Type]
	if !ok {
		return 0, &UnknownTypeError{Struct: owner, Field: f.Label(), Type: f.Type}
	}
	st, err := rs.resolve(e)
	if err != nil {
		return 0, err
	}
	return st.Size, nil
}

func (rs *Resolver) note(st, field, msg string) {
	d := Diag{Struct: st, Field: field, Msg: msg}
	rs.diags = append(rs.diags, d)
	rs.log.Debug(msg, "struct", st, "field", field)
}
