package meta

import (
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

const testBase = 0x10000000

func TestDecodeAllRecordKinds(t *testing.T) {
	wires := []struct {
		name string
		wire Wire
	}{
		{"ilp32", Wire32},
		{"lp64", WireLP64},
		{"llp64", WireLLP64},
		{"big-endian", Wire{PtrSize: 4, LongSize: 4, Order: binary.BigEndian}},
	}

	for _, tt := range wires {
		t.Run(tt.name, func(t *testing.T) {
			blob := NewBuilder(tt.wire, testBase).
				Function(0x401000, "CreateThing", "int", "int a, char *b", "", NotStdcall).
				Data(0x500000, "g_counter", "int").
				Struct("Thing", 16,
					FieldSpec{Name: "a", Type: "int", Offset: 0, Size: 4},
					FieldSpec{Name: "tail", Type: "char", Decl: "char tail[]", Offset: 8, Size: 0},
				).
				Function(0x402000, "WndProc", "long", "void *h", "eax,ecx", 16).
				Build()

			dec, err := NewDecoder(blob.Section(), tt.wire, blob)
			if err != nil {
				t.Fatalf("NewDecoder: %v", err)
			}
			recs, err := dec.DecodeAll()
			if err != nil {
				t.Fatalf("DecodeAll: %v", err)
			}
			if len(recs) != 4 {
				t.Fatalf("got %d records, want 4", len(recs))
			}

			fn, ok := recs[0].(*FunctionRef)
			if !ok {
				t.Fatalf("record 0 is %T", recs[0])
			}
			if fn.Addr != 0x401000 || fn.Name != "CreateThing" || fn.Ret != "int" ||
				fn.Args != "int a, char *b" || fn.Regs != "" || fn.StackBytes != NotStdcall {
				t.Errorf("function = %+v", fn)
			}
			if fn.Stdcall() {
				t.Error("CreateThing reported as stdcall")
			}

			data, ok := recs[1].(*DataRef)
			if !ok || data.Name != "g_counter" || data.Type != "int" || data.Addr != 0x500000 {
				t.Errorf("data = %+v", recs[1])
			}
			if data.Pos() != tt.wire.FunctionSize() {
				t.Errorf("data offset = %d, want %d", data.Pos(), tt.wire.FunctionSize())
			}

			st, ok := recs[2].(*StructLayout)
			if !ok {
				t.Fatalf("record 2 is %T", recs[2])
			}
			if st.Name != "Thing" || st.Size != 16 || len(st.Fields) != 2 {
				t.Fatalf("struct = %+v", st)
			}
			if st.Fields[1].Decl != "char tail[]" || st.Fields[1].Size != 0 {
				t.Errorf("flexible field = %+v", st.Fields[1])
			}

			stdcall := recs[3].(*FunctionRef)
			if stdcall.StackBytes != 16 || stdcall.Regs != "eax,ecx" {
				t.Errorf("stdcall = %+v", stdcall)
			}
		})
	}
}

func TestDecoderStride(t *testing.T) {
	blob := NewBuilder(Wire32, testBase).
		Struct("A", 0,
			FieldSpec{Name: "x", Type: "int", Size: 4},
			FieldSpec{Name: "y", Type: "int", Offset: 4, Size: 4},
			FieldSpec{Name: "z", Type: "int", Offset: 8, Size: 4},
		).
		Data(1, "d", "int").
		Build()

	dec, err := NewDecoder(blob.Section(), Wire32, blob)
	if err != nil {
		t.Fatal(err)
	}

	_, stride, err := dec.Next()
	if err != nil {
		t.Fatal(err)
	}
	// header (4+4+4) + 4 field entries (3 real + sentinel) of 20 bytes
	if want := 12 + 4*20; stride != want {
		t.Errorf("struct stride = %d, want %d", stride, want)
	}
	if dec.Position() != stride {
		t.Errorf("position = %d, want %d", dec.Position(), stride)
	}

	_, stride, err = dec.Next()
	if err != nil {
		t.Fatal(err)
	}
	if stride != 16 {
		t.Errorf("data stride = %d, want 16", stride)
	}

	if _, _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
	if _, _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("decoder restarted after EOF: %v", err)
	}
}

func TestDecoderEndOfStream(t *testing.T) {
	unknown := make([]byte, 4)
	binary.LittleEndian.PutUint32(unknown, 0x7f)

	tests := []struct {
		name    string
		tail    []byte
		strict  bool
		wantErr error
	}{
		{"exhausted", nil, false, nil},
		{"zero padding", []byte{0, 0, 0, 0, 0, 0, 0}, true, nil},
		{"short zero padding", []byte{0, 0}, false, nil},
		{"unknown discriminant", append(unknown, 0xde, 0xad), false, nil},
		{"unknown discriminant strict", unknown, true, ErrUnknownTag},
		{"short garbage", []byte{0x11, 0x22}, false, ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := NewBuilder(Wire32, testBase).
				Data(0x1000, "a", "int").
				Raw(tt.tail).
				Build()

			dec, err := NewDecoder(blob.Section(), Wire32, blob, Strict(tt.strict))
			if err != nil {
				t.Fatal(err)
			}
			recs, err := dec.DecodeAll()
			if len(recs) != 1 {
				t.Errorf("got %d records, want 1", len(recs))
			}
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrStreamDecode) {
				t.Errorf("error %v does not wrap ErrStreamDecode", err)
			}
		})
	}
}

func TestDecoderFailures(t *testing.T) {
	t.Run("function without name", func(t *testing.T) {
		blob := NewBuilder(Wire32, testBase).Function(0x1000, "", "void", "", "", -1).Build()
		dec, _ := NewDecoder(blob.Section(), Wire32, blob)
		_, _, err := dec.Next()
		var de *StreamDecodeError
		if !errors.As(err, &de) {
			t.Fatalf("error = %v, want StreamDecodeError", err)
		}
		if de.Offset != 0 || de.Tag != ItemFunction || !errors.Is(err, ErrMissingName) {
			t.Errorf("decode error = %+v", de)
		}
	})

	t.Run("truncated struct", func(t *testing.T) {
		blob := NewBuilder(Wire32, testBase).
			Data(0x1000, "a", "int").
			Struct("S", 4, FieldSpec{Name: "x", Type: "int", Size: 4}).
			Build()
		// drop the sentinel
		section := blob.Section()[:blob.MetaSize-Wire32.FieldSize()]
		dec, _ := NewDecoder(section, Wire32, blob)
		recs, err := dec.DecodeAll()
		if len(recs) != 1 {
			t.Errorf("got %d records before failure, want 1", len(recs))
		}
		var de *StreamDecodeError
		if !errors.As(err, &de) || !errors.Is(err, ErrTruncated) {
			t.Fatalf("error = %v, want truncated StreamDecodeError", err)
		}
		if de.Offset != Wire32.DataSize() {
			t.Errorf("offset = %d, want %d", de.Offset, Wire32.DataSize())
		}
	})

	t.Run("dangling string pointer", func(t *testing.T) {
		blob := NewBuilder(Wire32, testBase).Data(0x1000, "a", "int").Build()
		Wire32.putPtr(blob.Data[8:], 0xdeadbeef)
		dec, _ := NewDecoder(blob.Section(), Wire32, blob)
		if _, _, err := dec.Next(); !errors.Is(err, ErrBadString) {
			t.Errorf("error = %v, want ErrBadString", err)
		}
	})

	t.Run("bad wire", func(t *testing.T) {
		if _, err := NewDecoder(nil, Wire{PtrSize: 2, LongSize: 4}, nil); err == nil {
			t.Error("expected error for 2-byte pointers")
		}
	})
}

func TestItemTypeString(t *testing.T) {
	if ItemFunction.String() != "function" || ItemData.String() != "data" ||
		ItemStruct.String() != "struct" || ItemType(9).String() != "unknown" {
		t.Error("unexpected item type names")
	}
}
