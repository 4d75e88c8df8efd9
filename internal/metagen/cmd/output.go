package cmd

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/x/term"

	"metagen/internal/ui/colorize"
)

// output is a destination for generated text.
type output struct {
	io.Writer
	path  string
	close func() error
}

func (o output) Close() error {
	if o.close == nil {
		return nil
	}
	return o.close()
}

// openOutput creates path. An empty path, or one that cannot be created,
// means stdout; the latter with a warning.
func openOutput(path string, stdout io.Writer) output {
	if path == "" {
		return output{Writer: stdout}
	}
	f, err := os.Create(path)
	if err != nil {
		slog.Warn("Failed to open file for writing, using stdout", "path", path, "error", err)
		return output{Writer: stdout}
	}
	return output{Writer: f, path: path, close: f.Close}
}

// discard closes and removes a file destination. Stdout is left alone.
func (o output) discard() error {
	if o.close == nil {
		return nil
	}
	return errors.Join(o.close(), os.Remove(o.path))
}

// deferred holds output back until Close, so two generators sharing stdout
// do not interleave. A header bound for a terminal is highlighted on the
// way out.
type deferred struct {
	buf       bytes.Buffer
	dst       io.Writer
	highlight bool
}

func newDeferred(dst io.Writer) *deferred {
	d := &deferred{dst: dst}
	if f, ok := dst.(*os.File); ok && term.IsTerminal(f.Fd()) {
		d.highlight = colorize.Enabled()
	}
	return d
}

func (d *deferred) Write(p []byte) (int, error) { return d.buf.Write(p) }

func (d *deferred) Close() error {
	text := d.buf.String()
	if d.highlight {
		if colored, err := colorize.Header(text); err == nil {
			text = colored
		}
	}
	_, err := io.WriteString(d.dst, text)
	return err
}
