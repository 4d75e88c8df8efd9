package colorize

import (
	"strings"
	"testing"
)

const header = "typedef struct PACK Player {\n  int hp; ///< offset=0x0\n} Player;\n"

func TestHeader(t *testing.T) {
	t.Setenv("METAGEN_NO_COLOR", "")
	t.Setenv("NO_COLOR", "")
	out, err := Header(header)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "\x1b[") {
		t.Error("no escape sequences in highlighted output")
	}
	if stripANSI(out) != header {
		t.Errorf("highlighting changed the text:\n%q", stripANSI(out))
	}
}

func TestHeaderDisabled(t *testing.T) {
	t.Setenv("METAGEN_NO_COLOR", "1")
	out, err := Header(header)
	if err != nil || out != header {
		t.Errorf("Header with colours off = %q, %v", out, err)
	}
}

func stripANSI(s string) string {
	var result strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			result.WriteRune(r)
		}
	}
	return result.String()
}
