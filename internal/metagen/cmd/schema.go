package cmd

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"metagen/internal/emit"
)

var schemaTargets = map[string]func() any{
	"config":   func() any { return &Config{} },
	"pack":     func() any { return &PackDescription{} },
	"report":   func() any { return &Report{} },
	"function": func() any { return &emit.FunctionItem{} },
	"data":     func() any { return &emit.DataItem{} },
	"struct":   func() any { return &emit.StructItem{} },
}

// Schema returns the JSON Schema for one of the named document types.
func Schema(name string) (*jsonschema.Schema, error) {
	target, ok := schemaTargets[name]
	if !ok {
		return nil, fmt.Errorf("no schema named %q", name)
	}
	reflector := &jsonschema.Reflector{DoNotReference: name != "report" && name != "pack"}
	return reflector.Reflect(target()), nil
}

var schemaCmd = &cobra.Command{
	Use:       "schema [config|pack|report|function|data|struct]",
	Short:     "Generate JSON schema for configuration and outputs",
	Long:      "Generate JSON schema for the metagen config file, pack descriptions, reports and JSON items",
	Hidden:    true,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"config", "pack", "report", "function", "data", "struct"},
	RunE: func(cmd *cobra.Command, args []string) error {
		name := "config"
		if len(args) == 1 {
			name = args[0]
		}
		s, err := Schema(name)
		if err != nil {
			return err
		}
		bts, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal schema: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(bts))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
