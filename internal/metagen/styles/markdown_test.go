package styles

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	md := "# Player\n\n| Offset | Size |\n|---|---|\n| `0x0` | 4 |\n"
	for _, color := range []bool{false, true} {
		out, err := Render(md, 80, color)
		if err != nil {
			t.Fatalf("Render(color=%v): %v", color, err)
		}
		if !strings.Contains(out, "Player") || !strings.Contains(out, "0x0") {
			t.Errorf("Render(color=%v) lost content:\n%s", color, out)
		}
	}
}
