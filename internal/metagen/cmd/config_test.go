package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.yaml")

	if cfg, err := LoadConfig(missing, false); err != nil || cfg.Code != nil {
		t.Errorf("optional missing config = %+v, %v", cfg, err)
	}
	if _, err := LoadConfig(missing, true); err == nil {
		t.Error("required missing config accepted")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("code: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad, true); err == nil {
		t.Error("malformed config accepted")
	}
}

func TestConfigApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	src := "code: true\ntypes: true\nsection: .meta\nout-hdr: decl.h\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatal(err)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("code", false, "")
	flags.Bool("types", false, "")
	flags.String("section", "metadata", "")
	flags.String("out-hdr", "", "")
	if err := flags.Parse([]string{"--types=false", "--out-hdr", "cli.h"}); err != nil {
		t.Fatal(err)
	}

	if err := cfg.Apply(flags); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	tests := []struct {
		flag string
		want string
	}{
		{"code", "true"},     // from the file
		{"types", "false"},   // explicit flag wins
		{"section", ".meta"}, // from the file
		{"out-hdr", "cli.h"}, // explicit flag wins
	}
	for _, tt := range tests {
		if got := flags.Lookup(tt.flag).Value.String(); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.flag, got, tt.want)
		}
	}
}
