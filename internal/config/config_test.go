package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	c := Default()
	if !c.Debug.Lines || !c.Debug.Locals {
		t.Errorf("Expected debug tables enabled by default")
	}
	if c.Compile.MaxStack != DefaultMaxStack {
		t.Errorf("Expected max_stack %d, got %d", DefaultMaxStack, c.Compile.MaxStack)
	}
	if !c.Compile.Timestamp {
		t.Errorf("Expected timestamp enabled by default")
	}
	if c.Compile.Parallel {
		t.Errorf("Expected parallel disabled by default")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(*Config) bool
	}{
		{"empty keeps defaults", "", false, func(c *Config) bool { return c.Compile.MaxStack == DefaultMaxStack }},
		{"parallel", "[compile]\nparallel = true\n", false, func(c *Config) bool { return c.Compile.Parallel }},
		{"partial section keeps other defaults", "[compile]\nmax_stack = 64\n", false, func(c *Config) bool {
			return c.Compile.MaxStack == 64 && c.Compile.Timestamp
		}},
		{"disable lines", "[debug]\nlines = false\n", false, func(c *Config) bool { return !c.Debug.Lines && c.Debug.Locals }},
		{"log level", "[log]\nlevel = \"debug\"\n", false, func(c *Config) bool { return c.Log.Level == "debug" }},
		{"bad max stack", "[compile]\nmax_stack = 0\n", true, nil},
		{"bad level", "[log]\nlevel = \"loud\"\n", true, nil},
		{"bad version", "[target]\nversion = \"2.0\"\n", true, nil},
		{"syntax error", "[compile\n", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !tt.check(c) {
				t.Errorf("Unexpected config: %+v", c)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	c := Default()
	c.Compile.Parallel = true
	c.Compile.MaxStack = 256
	if err := c.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !loaded.Compile.Parallel || loaded.Compile.MaxStack != 256 {
		t.Errorf("Expected parallel=true max_stack=256, got %+v", loaded.Compile)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}
