// Package styles holds the glamour theme used for layout reports.
package styles

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/x/exp/charmtone"
)

func boolPtr(b bool) *bool       { return &b }
func stringPtr(s string) *string { return &s }
func uintPtr(u uint) *uint       { return &u }

// Report colours. Offsets and sizes sit in inline code, so Code carries the
// accent; padding rows are plain text.
var (
	reportText    = charmtone.Smoke.Hex()
	reportHeading = charmtone.Malibu.Hex()
	reportTitle   = charmtone.Zest.Hex()
	reportTitleBg = charmtone.Charple.Hex()
	reportCode    = charmtone.Guac.Hex()
	reportMuted   = charmtone.Squid.Hex()
)

// GetMarkdownRenderer returns a renderer for reports. With color off it
// falls back to glamour's plain "notty" style.
func GetMarkdownRenderer(width int, color bool) (*glamour.TermRenderer, error) {
	style := glamour.WithStyles(ReportStyle())
	if !color {
		style = glamour.WithStandardStyle("notty")
	}
	return glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
}

// Render is a convenience wrapper around GetMarkdownRenderer.
func Render(md string, width int, color bool) (string, error) {
	r, err := GetMarkdownRenderer(width, color)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}

// ReportStyle is the report theme.
func ReportStyle() ansi.StyleConfig {
	return ansi.StyleConfig{
		Document: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color: stringPtr(reportText),
			},
			Margin: uintPtr(1),
		},
		Heading: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				BlockSuffix: "\n",
				Color:       stringPtr(reportHeading),
				Bold:        boolPtr(true),
			},
		},
		H1: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Prefix:          " ",
				Suffix:          " ",
				Color:           stringPtr(reportTitle),
				BackgroundColor: stringPtr(reportTitleBg),
				Bold:            boolPtr(true),
			},
		},
		H2: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Prefix: "## ",
			},
		},
		H3: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Prefix: "▸ ",
				Color:  stringPtr(reportCode),
			},
		},
		Strong: ansi.StylePrimitive{
			Bold: boolPtr(true),
		},
		Emph: ansi.StylePrimitive{
			Italic: boolPtr(true),
		},
		HorizontalRule: ansi.StylePrimitive{
			Color:  stringPtr(reportMuted),
			Format: "\n--------\n",
		},
		Item: ansi.StylePrimitive{
			BlockPrefix: "• ",
		},
		Enumeration: ansi.StylePrimitive{
			BlockPrefix: ". ",
		},
		Code: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color: stringPtr(reportCode),
			},
		},
		CodeBlock: ansi.StyleCodeBlock{
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{
					Color: stringPtr(reportMuted),
				},
				Margin: uintPtr(2),
			},
		},
		Table: ansi.StyleTable{
			CenterSeparator: stringPtr("┼"),
			ColumnSeparator: stringPtr("│"),
			RowSeparator:    stringPtr("─"),
		},
	}
}
