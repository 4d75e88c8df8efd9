package cmd

import (
	"encoding/binary"
	"strings"
	"testing"

	"metagen/internal/meta"
)

func TestPackDescriptionBuild(t *testing.T) {
	desc, err := ParsePackDescription([]byte(playerYAML))
	if err != nil {
		t.Fatal(err)
	}
	blob, err := desc.Build()
	if err != nil {
		t.Fatal(err)
	}
	if blob.Wire != meta.Wire32 || blob.Base != 0x400000 {
		t.Errorf("blob wire %+v base 0x%x", blob.Wire, blob.Base)
	}

	dec, err := meta.NewDecoder(blob.Section(), blob.Wire, blob)
	if err != nil {
		t.Fatal(err)
	}
	recs, err := dec.DecodeAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 5 {
		t.Fatalf("got %d records", len(recs))
	}
	if f := recs[0].(*meta.FunctionRef); f.StackBytes != meta.NotStdcall {
		t.Errorf("stack bytes defaulted to %d", f.StackBytes)
	}
	if f := recs[1].(*meta.FunctionRef); f.StackBytes != 16 {
		t.Errorf("stdcall stack bytes = %d", f.StackBytes)
	}
	if st := recs[2].(*meta.StructLayout); st.Size != 0x20 || st.Fields[1].Type != "Vec3" || st.Fields[1].Size != 0 {
		t.Errorf("struct = %+v", st)
	}
}

func TestPackDescriptionErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown key", "items:\n  - function: {addr: 1, name: f, bogus: 1}\n", "bogus"},
		{"empty item", "items:\n  - {}\n", "exactly one"},
		{"two kinds", "items:\n  - data: {addr: 1, name: d, type: int}\n    function: {addr: 2, name: f}\n", "got 2"},
		{"bad wire", "wire: pdp11\nitems: []\n", "unknown wire"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := ParsePackDescription([]byte(tt.src))
			if err == nil {
				_, err = desc.Build()
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestPackBigEndian(t *testing.T) {
	desc, err := ParsePackDescription([]byte("wire: lp64\nbig_endian: true\nitems:\n  - data: {addr: 0x10, name: d, type: int}\n"))
	if err != nil {
		t.Fatal(err)
	}
	blob, err := desc.Build()
	if err != nil {
		t.Fatal(err)
	}
	if blob.Wire.Order != binary.BigEndian {
		t.Error("byte order not big-endian")
	}
	if got := binary.BigEndian.Uint32(blob.Section()); got != uint32(meta.ItemData) {
		t.Errorf("tag = %d", got)
	}
}
