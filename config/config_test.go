package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/stackvm/vm"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[limits]
max-stack-size = 4096
max-try-nesting-depth = 8

[log]
verbosity = 2
trace = true

[history]
database = "runs.db"
enabled = true

[host]
storage-dir = "storage"
strict = true
`
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := vm.DefaultLimits()
	want.MaxStackSize = 4096
	want.MaxTryNestingDepth = 8
	if diff := cmp.Diff(want, c.VMLimits()); diff != "" {
		t.Errorf("limits mismatch (-want +got):\n%s", diff)
	}
	if c.Log.Verbosity != 2 || !c.Log.Trace {
		t.Errorf("log = %+v", c.Log)
	}
	if !c.History.Enabled {
		t.Error("history should be enabled")
	}
	if got := c.HistoryPath(); got != filepath.Join(c.Dir, "runs.db") {
		t.Errorf("HistoryPath = %q", got)
	}
	if got := c.StoragePath(); got != filepath.Join(c.Dir, "storage") {
		t.Errorf("StoragePath = %q", got)
	}
	if !c.Host.Strict {
		t.Error("host strict should be set")
	}
}

func TestDefaults(t *testing.T) {
	c, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(empty): %v", err)
	}
	if diff := cmp.Diff(vm.DefaultLimits(), c.VMLimits()); diff != "" {
		t.Errorf("limits mismatch (-want +got):\n%s", diff)
	}
	if c.History.Database != "stackvm-history.db" {
		t.Errorf("history database = %q", c.History.Database)
	}
	if c.StoragePath() != "" {
		t.Errorf("StoragePath = %q, want in-memory", c.StoragePath())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want string
	}{
		{"unknown key", "[limits]\nmax-stack = 1\n", "unknown keys: limits.max-stack"},
		{"unknown section", "[network]\nport = 1\n", "unknown keys"},
		{"negative limit", "[limits]\nmax-item-size = -1\n", "MaxItemSize must be positive"},
		{"verbosity", "[log]\nverbosity = 5\n", "verbosity"},
		{"comparable", "[limits]\nmax-item-size = 10\nmax-comparable-size = 20\n", "max-comparable-size"},
		{"syntax", "[limits\n", "parse error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.toml))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Parse error = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("[log]\nverbosity = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if c.Log.Verbosity != 1 {
		t.Errorf("verbosity = %d, want 1", c.Log.Verbosity)
	}
	abs, _ := filepath.Abs(root)
	if c.Dir != abs {
		t.Errorf("Dir = %q, want %q", c.Dir, abs)
	}
}

func TestFindAndLoadMissing(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if c.Dir != "" {
		t.Errorf("Dir = %q, want empty for defaults", c.Dir)
	}
}
