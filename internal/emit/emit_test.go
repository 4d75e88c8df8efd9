package emit

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"metagen/internal/layout"
	"metagen/internal/meta"
	"metagen/internal/pipeline"
)

func run(t *testing.T, opts pipeline.Options, sinks ...pipeline.Sink) {
	t.Helper()
	blob := meta.NewBuilder(meta.Wire32, 0x400000).
		Function(0x401000, "Game_Tick", "void", "int frame", "", meta.NotStdcall).
		Function(0x401200, "WndProc", "LRESULT", "HWND, UINT, WPARAM, LPARAM", "eax", 16).
		Data(0x500000, "g_names", "char g_names[4][16]").
		Data(0x500040, "g_count", "int").
		Struct("Player", 12,
			meta.FieldSpec{Name: "hp", Type: "int", Offset: 0, Size: 4},
			meta.FieldSpec{Name: "level", Type: "uint8_t", Offset: 4, Size: 1},
			meta.FieldSpec{Name: "name", Type: "char", Decl: "char name[FLEXIBLE_ARRAY]", Offset: 8},
		).
		Build()
	if _, err := pipeline.Run(blob.Section(), blob.Wire, blob, opts, Tee(sinks...)); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

var all = pipeline.Options{Code: true, Data: true, Types: true}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	jw := NewJSONWriter(&buf)
	run(t, all, jw)
	if err := jw.Close(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "[{") || !strings.HasSuffix(buf.String(), "}]\n") {
		t.Errorf("not a bracketed array:\n%s", buf.String())
	}

	var items []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &items); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(items) != 5 || jw.Len() != 5 {
		t.Fatalf("got %d items", len(items))
	}

	tick := items[0]
	if tick["item_type"] != "function" || tick["addr"] != "0x401000" || tick["args"] != "int frame" {
		t.Errorf("function item = %v", tick)
	}
	if _, ok := tick["stack_bytes"]; ok {
		t.Error("stack_bytes present for a non-stdcall function")
	}
	if _, ok := tick["regs"]; ok {
		t.Error("regs present while empty")
	}
	if wp := items[1]; wp["stack_bytes"] != float64(16) || wp["regs"] != "eax" {
		t.Errorf("stdcall item = %v", wp)
	}
	if d := items[3]; d["item_type"] != "data" || d["type"] != "int" || d["name"] != "g_count" {
		t.Errorf("data item = %v", d)
	}

	st := items[4]
	if st["item_type"] != "struct" || st["name"] != "Player" || st["size"] != float64(12) {
		t.Errorf("struct item = %v", st)
	}
	fields := st["fields"].([]any)
	if len(fields) != 5 {
		t.Fatalf("fields = %v", fields)
	}
	if pad := fields[2].(map[string]any); pad["padding"] != true || pad["size"] != float64(3) {
		t.Errorf("padding field = %v", pad)
	}
}

func TestJSONWriterEmpty(t *testing.T) {
	var buf bytes.Buffer
	jw := NewJSONWriter(&buf)
	run(t, pipeline.Options{}, jw)
	if err := jw.Close(); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "[]\n" {
		t.Errorf("empty output = %q", buf.String())
	}
}

func TestHeaderWriter(t *testing.T) {
	tests := []struct {
		name    string
		msvc    bool
		want    []string
		wantNot []string
	}{
		{
			name: "types",
			want: []string{
				"#define FLEXIBLE_ARRAY 1\n",
				"#pragma pack(push, 1)\n#endif\ntypedef struct PACK Player {\n",
				"  int hp; ///< offset=0x0\n",
				"  uint8_t level; ///< offset=0x4\n",
				"  uint8_t __padding0[3]; ///< offset=0x5\n",
				"  char name[FLEXIBLE_ARRAY]; ///< offset=0x8\n",
				"  uint8_t __padding1[4]; ///< offset=0x8\n",
				"} Player;\n",
				"static_assert(sizeof(Player) == 12);\n",
				"static_assert(offsetof(Player, hp) == 0);\n",
				"static_assert(offsetof(Player, level) == 4);\n",
			},
			wantNot: []string{"TFUNC void", "TDATA", "offsetof(Player, name)", "offsetof(Player, __padding0)"},
		},
		{
			name: "msvc declarations",
			msvc: true,
			want: []string{
				"#ifdef _MSC_VER\nTFUNC void Game_Tick(int frame);\n#endif\n",
				"#ifdef _MSC_VER\nTDATA char g_names[4][16];\n#endif\n",
				"#ifdef _MSC_VER\nTDATA int g_count;\n#endif\n",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			hw := NewHeaderWriter(&buf, WithMSVCDecls(tt.msvc))
			run(t, all, hw)
			if err := hw.Close(); err != nil {
				t.Fatal(err)
			}
			out := buf.String()
			if strings.Count(out, "#include <stddef.h>") != 1 {
				t.Errorf("preamble written %d times", strings.Count(out, "#include <stddef.h>"))
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("header missing %q\n%s", w, out)
				}
			}
			for _, w := range tt.wantNot {
				if strings.Contains(out, w) {
					t.Errorf("header contains %q", w)
				}
			}
		})
	}
}

func TestMarkdown(t *testing.T) {
	md := NewMarkdown("Layout report")
	run(t, all, md)
	out := md.String()
	for _, w := range []string{
		"# Layout report\n",
		"1 structs, 2 functions, 2 data symbols.",
		"### Player\n",
		"Size **12** (0xc), 7 padding bytes.",
		"| `0x5` | `0x8` | 3 | `uint8_t __padding0[3]` | padding |",
		"| `0x8` | `0x8` | 0 | `char name[FLEXIBLE_ARRAY]` | flexible |",
		"| `0x401200` | WndProc | `LRESULT WndProc(HWND, UINT, WPARAM, LPARAM)` | stdcall, 16 stack bytes; regs eax |",
		"| `0x500040` | g_count | `int` |",
	} {
		if !strings.Contains(out, w) {
			t.Errorf("report missing %q\n%s", w, out)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"_ZN4Game4TickEv", "Game::Tick"},
		{"Game_Tick", "Game_Tick"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.in); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStructMarkdown(t *testing.T) {
	s := &layout.Struct{Name: "Empty", Size: 1, Fields: []layout.Field{
		{Name: "__padding0", Type: layout.PadType, Size: 1, Padding: true},
	}}
	out := StructMarkdown(s)
	if !strings.HasPrefix(out, "# Empty\n") || !strings.Contains(out, "computed, 1 padding bytes") {
		t.Errorf("StructMarkdown = %q", out)
	}
}
