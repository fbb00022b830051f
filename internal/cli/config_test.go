package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/framepen/pkg/errors"
	"github.com/matzehuels/framepen/pkg/pipeline"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), configFile)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
columns = 80
fps = 15.0
style = "block"
sharpen = true
format = "ytt,json"

[cache]
redis_url = "redis://localhost:6379/1"
`)
	cfg, got, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if got != path {
		t.Errorf("path = %q, want %q", got, path)
	}
	if cfg.Columns == nil || *cfg.Columns != 80 {
		t.Errorf("columns = %v, want 80", cfg.Columns)
	}
	if cfg.FPS == nil || *cfg.FPS != 15 {
		t.Errorf("fps = %v, want 15", cfg.FPS)
	}
	if cfg.Threshold != nil {
		t.Errorf("threshold = %v, want unset", *cfg.Threshold)
	}
	if cfg.Cache.RedisURL == nil || *cfg.Cache.RedisURL != "redis://localhost:6379/1" {
		t.Errorf("redis_url = %v", cfg.Cache.RedisURL)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "colums = 80\n"},
		{"wrong type", "columns = \"wide\"\n"},
		{"syntax", "columns = \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := loadConfig(writeConfig(t, tt.body))
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("loadConfig() error = %v, want InvalidConfig", err)
			}
		})
	}

	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("a missing explicit config should fail")
	}
}

func TestLoadConfigMissingDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, path, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if path != "" || cfg.Columns != nil {
		t.Errorf("missing default config should load empty, got path %q", path)
	}
}

func TestConfigApply(t *testing.T) {
	columns, threshold := 80, 0
	style, format := "block", "json"
	disabled := true
	cfg := fileConfig{
		Columns:   &columns,
		Threshold: &threshold,
		Style:     &style,
		Format:    &format,
		Cache:     cacheConfig{Disabled: &disabled},
	}

	opts := pipeline.DefaultOptions()
	opts.Columns = 30
	flags := convertFlags{formats: pipeline.FormatYTT}
	changed := func(name string) bool { return name == "columns" }
	cfg.apply(changed, &opts, &flags)

	if opts.Columns != 30 {
		t.Errorf("columns = %d, flag should win over config", opts.Columns)
	}
	if opts.Threshold != 0 {
		t.Errorf("threshold = %d, want 0 from config", opts.Threshold)
	}
	if opts.Style != "block" {
		t.Errorf("style = %q, want block", opts.Style)
	}
	if opts.TargetFPS != pipeline.DefaultTargetFPS {
		t.Errorf("fps = %v, unset key should keep the default", opts.TargetFPS)
	}
	if flags.formats != "json" || !flags.noCache {
		t.Errorf("flags = %+v, want json format and cache disabled", flags)
	}
}

func TestConfigShowCommand(t *testing.T) {
	path := writeConfig(t, "columns = 64\nmode = \"grey\"\n")
	out, err := execute(t, "config", "show", "--config", path)
	if err != nil {
		t.Fatalf("config show error: %v", err)
	}

	var cfg fileConfig
	if _, err := toml.Decode(out, &cfg); err != nil {
		t.Fatalf("config show printed invalid TOML: %v\n%s", err, out)
	}
	if cfg.Columns == nil || *cfg.Columns != 64 {
		t.Errorf("columns = %v, want 64", cfg.Columns)
	}
	if cfg.Mode == nil || *cfg.Mode != "grayscale" {
		t.Errorf("mode = %v, want normalized grayscale", cfg.Mode)
	}
	if cfg.Threshold == nil || *cfg.Threshold != pipeline.DefaultThreshold {
		t.Errorf("threshold = %v, want default %d", cfg.Threshold, pipeline.DefaultThreshold)
	}
}

func TestConvertUsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	frames := filepath.Join(dir, "frames")
	writeFrames(t, frames, 2)
	path := writeConfig(t, "columns = 2\nstyle = \"block\"\nformat = \"ytt\"\n[cache]\ndisabled = true\n")
	output := filepath.Join(dir, "clip.ytt")

	if _, err := execute(t, "convert", frames, "--config", path, "-o", output); err != nil {
		t.Fatalf("convert error: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "██</s>") {
		t.Errorf("block style with 2 columns expected:\n%s", data)
	}
}

func TestConfigPathCommand(t *testing.T) {
	cmd := New(io.Discard, LogInfo).RootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "path"})
	t.Setenv("XDG_CONFIG_HOME", "/tmp/framepen-config")
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config path error: %v", err)
	}
	want := filepath.Join("/tmp/framepen-config", appName, configFile)
	if strings.TrimSpace(out.String()) != want {
		t.Errorf("config path = %q, want %q", out.String(), want)
	}
}
