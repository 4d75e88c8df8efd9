package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/x/term"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"metagen/internal/emit"
	"metagen/internal/image"
	"metagen/internal/layout"
	"metagen/internal/metagen/styles"
	"metagen/internal/pipeline"
	"metagen/internal/ui/colorize"
)

// Report is the machine-readable form of the layout report.
type Report struct {
	Image     string              `json:"image"`
	Format    image.Format        `json:"format"`
	PtrSize   int                 `json:"ptr_size"`
	LongSize  int                 `json:"long_size"`
	Structs   []emit.StructItem   `json:"structs"`
	Functions []emit.FunctionItem `json:"functions"`
	Data      []emit.DataItem     `json:"data"`
	Notes     []string            `json:"notes,omitempty"`
}

// loaded is an image run through the pipeline with every kind enabled.
type loaded struct {
	path  string
	image *image.Image
	res   *pipeline.Result
	md    *emit.Markdown
}

func load(cmd *cobra.Command, path string) (*loaded, error) {
	section, _ := cmd.Flags().GetString("section")
	strict, _ := cmd.Flags().GetBool("strict")

	im, err := image.Open(path, section)
	if err != nil {
		return nil, err
	}
	defer im.Close()

	md := emit.NewMarkdown(fmt.Sprintf("Layout report: %s", filepath.Base(path)))
	opts := pipeline.Options{Code: true, Data: true, Types: true, Strict: strict}
	res, err := pipeline.RunSource(im, opts, md)
	if err != nil {
		return nil, err
	}
	return &loaded{path: path, image: im, res: res, md: md}, nil
}

func (l *loaded) report() *Report {
	w := l.image.Wire()
	r := &Report{
		Image:     l.path,
		Format:    l.image.Format,
		PtrSize:   w.PtrSize,
		LongSize:  w.LongSize,
		Structs:   []emit.StructItem{},
		Functions: []emit.FunctionItem{},
		Data:      []emit.DataItem{},
	}
	for _, s := range l.res.Structs {
		r.Structs = append(r.Structs, emit.NewStructItem(s))
	}
	for _, f := range l.res.Functions() {
		r.Functions = append(r.Functions, emit.NewFunctionItem(f))
	}
	for _, d := range l.res.DataRefs() {
		r.Data = append(r.Data, emit.NewDataItem(d))
	}
	for _, d := range l.res.Diags {
		r.Notes = append(r.Notes, d.String())
	}
	return r
}

func notes(diags []layout.Diag) string {
	if len(diags) == 0 {
		return ""
	}
	s := "## Notes\n\n"
	for _, d := range diags {
		s += fmt.Sprintf("- `%s.%s`: %s\n", d.Struct, d.Field, d.Msg)
	}
	return s + "\n"
}

var reportCmd = &cobra.Command{
	Use:   "report [image]",
	Short: "Print a human-auditable layout report",
	Long: `Report resolves every struct in the image and prints a table per struct
with offsets, sizes and inserted padding, followed by functions and data.`,
	Example: `
# Rendered report
metagen report build/metadata.exe

# Plain markdown, for review tools
metagen report --raw build/metadata.exe > layout.md
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := load(cmd, args[0])
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetBool("raw")
		asJSON, _ := cmd.Flags().GetBool("json")
		width, _ := cmd.Flags().GetInt("width")
		return writeReport(cmd.OutOrStdout(), l, raw, asJSON, width)
	},
}

func writeReport(w io.Writer, l *loaded, raw, asJSON bool, width int) error {
	if asJSON {
		b, err := json.MarshalIndent(l.report(), "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}

	md := l.md.String() + notes(l.res.Diags)
	if raw {
		_, err := io.WriteString(w, md)
		return err
	}

	color := colorize.Enabled()
	if f, ok := w.(*os.File); !ok || !term.IsTerminal(f.Fd()) {
		color = false
	}
	out, err := styles.Render(md, width, color)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

func init() {
	reportCmd.Flags().Bool("raw", false, "Print markdown without rendering")
	reportCmd.Flags().BoolP("json", "j", false, "Print the report as JSON")
	reportCmd.Flags().Int("width", 100, "Word wrap width of the rendered report")
	rootCmd.AddCommand(reportCmd)
}
