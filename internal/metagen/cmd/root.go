package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"metagen/internal/emit"
	"metagen/internal/image"
	"metagen/internal/metagen/log"
	"metagen/internal/pipeline"
)

// GenerateOptions are the generator flags after config merging.
type GenerateOptions struct {
	Section string
	OutJSON string
	OutHdr  string
	MSVC    bool
	pipeline.Options
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default $XDG_CONFIG_HOME/metagen/config.yaml)")
	rootCmd.PersistentFlags().String("section", image.DefaultSection, "Name of the metadata section")
	rootCmd.PersistentFlags().Bool("strict", false, "Treat an unknown record discriminant as an error")
	rootCmd.PersistentFlags().Bool("debug", false, "Debug logging")

	rootCmd.Flags().BoolP("code", "c", false, "Emit function references")
	rootCmd.Flags().BoolP("data", "d", false, "Emit data references")
	rootCmd.Flags().BoolP("types", "t", false, "Emit resolved struct layouts")
	rootCmd.Flags().String("out-json", "", "Write the JSON item array to this file instead of stdout")
	rootCmd.Flags().String("out-hdr", "", "Write the C header to this file instead of stdout")
	rootCmd.Flags().Bool("msvc", false, "Declare functions and data for MSVC builds")
}

var rootCmd = &cobra.Command{
	Use:   "metagen [image]",
	Short: "Validate struct layouts and symbol metadata, generate headers",
	Long: `Metagen reads the metadata section of a binary built from layout and
symbol declarations, checks every struct against its declared offsets and
size, and writes a JSON item array plus a packed C header.

The image may be an ELF or PE file with a metadata section, or a flat
container produced by "metagen pack".`,
	Example: `
# Emit everything to stdout
metagen -c -d -t build/metadata.exe

# Header and JSON to files
metagen -t --out-hdr decl_generated.h --out-json items.json build/metadata.elf
  `,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadAndApplyConfig(cmd); err != nil {
			return err
		}
		debug, _ := cmd.Flags().GetBool("debug")
		log.Setup(debug)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := GenerateOptions{}
		flags := cmd.Flags()
		opts.Section, _ = flags.GetString("section")
		opts.OutJSON, _ = flags.GetString("out-json")
		opts.OutHdr, _ = flags.GetString("out-hdr")
		opts.MSVC, _ = flags.GetBool("msvc")
		opts.Code, _ = flags.GetBool("code")
		opts.Data, _ = flags.GetBool("data")
		opts.Types, _ = flags.GetBool("types")
		opts.Strict, _ = flags.GetBool("strict")
		return Generate(args[0], opts, cmd.OutOrStdout())
	},
}

// Generate runs the generator over the image at path. Outputs without a
// file go to stdout: the JSON array first, then the header.
func Generate(path string, opts GenerateOptions, stdout io.Writer) error {
	im, err := image.Open(path, opts.Section)
	if err != nil {
		return err
	}
	defer im.Close()

	jsonOut := openOutput(opts.OutJSON, stdout)
	hdrOut := openOutput(opts.OutHdr, stdout)
	var hdrDst io.WriteCloser = hdrOut
	if hdrOut.close == nil {
		// stdout, shared with the JSON array
		hdrDst = newDeferred(hdrOut.Writer)
	}

	jw := emit.NewJSONWriter(jsonOut)
	hw := emit.NewHeaderWriter(hdrDst, emit.WithMSVCDecls(opts.MSVC))

	res, err := pipeline.RunSource(im, opts.Options, emit.Tee(jw, hw))
	if err != nil {
		// A failed run leaves no output behind; the array is never closed and
		// the deferred header is never written.
		return errors.Join(err, jsonOut.discard(), hdrOut.discard())
	}

	if err := errors.Join(jw.Close(), jsonOut.Close(), hw.Close(), hdrDst.Close()); err != nil {
		return err
	}

	for _, d := range res.Diags {
		slog.Debug("layout note", "struct", d.Struct, "field", d.Field, "msg", d.Msg)
	}
	slog.Info("Generated metadata", "image", path, "format", im.Format,
		"records", len(res.Records), "structs", len(res.Structs), "items", jw.Len())
	return nil
}

func Execute() {
	if err := execute(); err != nil {
		log.Close()
		os.Exit(1)
	}
	log.Close()
}

func execute() error {
	// Bypass fang when output is piped; generated text must stay verbatim.
	if !term.IsTerminal(os.Stdout.Fd()) {
		err := rootCmd.Execute()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	)
}
