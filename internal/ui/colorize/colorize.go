// Package colorize highlights generated C headers for terminal output.
package colorize

import (
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// HeaderDark keeps offsets in comments readable next to the declarations.
var HeaderDark = styles.Register(chroma.MustNewStyle("header-dark", chroma.StyleEntries{
	chroma.Background:         "#d4d4d4 bg:#1e1e1e",
	chroma.Comment:            "#6a9955",
	chroma.CommentPreproc:     "#c586c0",
	chroma.CommentPreprocFile: "#ce9178",
	chroma.Keyword:            "#569cd6",
	chroma.KeywordType:        "#4ec9b0",
	chroma.Name:               "#9cdcfe",
	chroma.NameFunction:       "#dcdcaa",
	chroma.LiteralNumber:      "#b5cea8",
	chroma.LiteralString:      "#ce9178",
	chroma.Operator:           "#d4d4d4",
	chroma.Punctuation:        "#d4d4d4",
}))

// Enabled reports whether highlighting is allowed by the environment.
func Enabled() bool {
	return os.Getenv("METAGEN_NO_COLOR") == "" && os.Getenv("NO_COLOR") == ""
}

// getCLexer returns the C lexer with fallbacks
func getCLexer() chroma.Lexer {
	for _, name := range []string{"c", "C", "cpp"} {
		if lexer := lexers.Get(name); lexer != nil {
			return chroma.Coalesce(lexer)
		}
	}
	return nil
}

func getStyle() *chroma.Style {
	for _, name := range []string{"header-dark", "vs", "monokai"} {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// getTerminalFormatter returns an appropriate terminal formatter
func getTerminalFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Header highlights C source. On any failure, or with colours disabled, the
// input comes back unchanged.
func Header(code string) (string, error) {
	if !Enabled() {
		return code, nil
	}
	lexer := getCLexer()
	if lexer == nil {
		return code, nil
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}
	var buf strings.Builder
	if err := getTerminalFormatter().Format(&buf, getStyle(), iterator); err != nil {
		return code, err
	}
	return buf.String(), nil
}
