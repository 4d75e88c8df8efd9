package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config mirrors the command-line flags. A value from the file applies only
// when the flag was not given explicitly.
type Config struct {
	Code    *bool   `yaml:"code,omitempty" json:"code,omitempty" jsonschema:"title=Code,description=Emit function references"`
	Data    *bool   `yaml:"data,omitempty" json:"data,omitempty" jsonschema:"title=Data,description=Emit data references"`
	Types   *bool   `yaml:"types,omitempty" json:"types,omitempty" jsonschema:"title=Types,description=Emit resolved struct layouts"`
	OutJSON *string `yaml:"out-json,omitempty" json:"out-json,omitempty" jsonschema:"title=JSON output,description=Path of the JSON item array"`
	OutHdr  *string `yaml:"out-hdr,omitempty" json:"out-hdr,omitempty" jsonschema:"title=Header output,description=Path of the generated C header"`
	Section *string `yaml:"section,omitempty" json:"section,omitempty" jsonschema:"title=Section,description=Name of the metadata section,default=metadata"`
	Strict  *bool   `yaml:"strict,omitempty" json:"strict,omitempty" jsonschema:"title=Strict,description=Fail on unknown record discriminants"`
	MSVC    *bool   `yaml:"msvc,omitempty" json:"msvc,omitempty" jsonschema:"title=MSVC,description=Declare functions and data for MSVC builds"`
	Debug   *bool   `yaml:"debug,omitempty" json:"debug,omitempty" jsonschema:"title=Debug,description=Enable debug logging"`
}

// DefaultConfigPath is $XDG_CONFIG_HOME/metagen/config.yaml, or the
// platform equivalent.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "metagen", "config.yaml")
}

// LoadConfig reads path. A missing file is an error only when required.
func LoadConfig(path string, required bool) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) values() map[string]string {
	out := map[string]string{}
	setBool := func(name string, v *bool) {
		if v != nil {
			out[name] = strconv.FormatBool(*v)
		}
	}
	setString := func(name string, v *string) {
		if v != nil {
			out[name] = *v
		}
	}
	setBool("code", c.Code)
	setBool("data", c.Data)
	setBool("types", c.Types)
	setString("out-json", c.OutJSON)
	setString("out-hdr", c.OutHdr)
	setString("section", c.Section)
	setBool("strict", c.Strict)
	setBool("msvc", c.MSVC)
	setBool("debug", c.Debug)
	return out
}

// Apply sets every flag in flags that the config names and the user left alone.
func (c *Config) Apply(flags *pflag.FlagSet) error {
	for name, v := range c.values() {
		f := flags.Lookup(name)
		if f == nil || f.Changed {
			continue
		}
		if err := f.Value.Set(v); err != nil {
			return fmt.Errorf("config %s: %w", name, err)
		}
	}
	return nil
}

// loadAndApplyConfig runs before every command.
func loadAndApplyConfig(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	required := path != ""
	if path == "" {
		path = DefaultConfigPath()
	}
	cfg, err := LoadConfig(path, required)
	if err != nil {
		return err
	}
	return cfg.Apply(cmd.Flags())
}
