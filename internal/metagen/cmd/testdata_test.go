package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"metagen/internal/image"
)

const playerYAML = `
wire: ilp32
base: 0x400000
items:
  - function:
      addr: 0x401000
      name: Player_Spawn
      ret: Player *
      args: int team
  - function:
      addr: 0x401200
      name: WndProc
      ret: LRESULT
      args: HWND, UINT, WPARAM, LPARAM
      stack_bytes: 16
  - struct:
      name: Player
      size: 0x20
      fields:
        - {name: id, type: int, offset: 0, size: 4}
        - {name: pos, type: Vec3, offset: 4}
        - {name: flags, type: int, offset: 0x18, size: 4}
  - data:
      addr: 0x500000
      name: g_local
      type: Player *
  - struct:
      name: Vec3
      fields:
        - {name: x, type: float, offset: 0, size: 4}
        - {name: y, type: float, offset: 4, size: 4}
        - {name: z, type: float, offset: 8, size: 4}
`

// packFixture packs a YAML description into a flat container in a temp dir.
func packFixture(t *testing.T, src string) string {
	t.Helper()
	desc, err := ParsePackDescription([]byte(src))
	if err != nil {
		t.Fatalf("ParsePackDescription: %v", err)
	}
	blob, err := desc.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var buf bytes.Buffer
	if err := image.WriteFlat(&buf, blob); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "fixture.mtgn")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
