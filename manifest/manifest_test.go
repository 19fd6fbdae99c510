package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "demo"

[analysis]
units = ["build/app.cbor", "/abs/lib.cbor"]
propagate-copies = false
inline = true

[log]
verbosity = 2
file = "callsite.log"

[report]
database = "out/report.db"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "demo" {
		t.Errorf("project name = %q, want demo", m.Project.Name)
	}
	if m.Analysis.PropagateCopies {
		t.Error("propagate-copies = true, want false")
	}
	if !m.Analysis.Inline {
		t.Error("inline = false, want true")
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}

	abs, _ := filepath.Abs(dir)
	units := m.UnitPaths()
	if len(units) != 2 || units[0] != filepath.Join(abs, "build/app.cbor") || units[1] != "/abs/lib.cbor" {
		t.Errorf("UnitPaths() = %v", units)
	}
	if got := m.DatabasePath(); got != filepath.Join(abs, "out/report.db") {
		t.Errorf("DatabasePath() = %q", got)
	}
	if got := m.LogPath(); got != filepath.Join(abs, "callsite.log") {
		t.Errorf("LogPath() = %q", got)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Report.Database != DefaultDatabase {
		t.Errorf("report database = %q, want %q", m.Report.Database, DefaultDatabase)
	}
	if !m.Analysis.PropagateCopies {
		t.Error("propagate-copies should default to true")
	}
	if m.Analysis.Inline {
		t.Error("inline should default to false")
	}
	if m.LogPath() != "" {
		t.Errorf("LogPath() = %q, want stderr", m.LogPath())
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown section", "[image]\noutput = \"x\"\n"},
		{"unknown key", "[project]\nnamespace = \"X\"\n"},
		{"wrong type", "[analysis]\ninline = \"yes\"\n"},
		{"verbosity range", "[log]\nverbosity = 9\n"},
		{"empty database", "[report]\ndatabase = \"\"\n"},
		{"empty unit path", "[analysis]\nunits = [\"\"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.content)); err == nil {
				t.Errorf("Parse(%q) succeeded, want a schema error", tt.content)
			}
		})
	}
}

func TestParseSyntaxError(t *testing.T) {
	if _, err := Parse([]byte("[project\nname = 1")); err == nil {
		t.Error("expected a parse error")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[project]\nname = \"walk\"\n")

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil || m.Project.Name != "walk" {
		t.Fatalf("FindAndLoad = %+v, want project walk", m)
	}
	abs, _ := filepath.Abs(root)
	if m.Dir != abs {
		t.Errorf("Dir = %q, want %q", m.Dir, abs)
	}
}

func TestDefault(t *testing.T) {
	dir := t.TempDir()
	m := Default(dir)
	abs, _ := filepath.Abs(dir)
	if m.Dir != abs {
		t.Errorf("Dir = %q, want %q", m.Dir, abs)
	}
	if !m.Analysis.PropagateCopies || m.Analysis.Inline {
		t.Errorf("analysis defaults = %+v", m.Analysis)
	}
	if m.DatabasePath() != filepath.Join(abs, DefaultDatabase) {
		t.Errorf("DatabasePath() = %q", m.DatabasePath())
	}
}
