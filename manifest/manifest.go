// Package manifest handles callsite.toml project configuration.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "callsite.toml"

// DefaultDatabase is the report database used when none is configured.
const DefaultDatabase = ".callsite/report.db"

//go:embed schema.cue
var schemaSource string

// Manifest represents a callsite.toml project configuration.
type Manifest struct {
	Project  Project  `toml:"project"`
	Analysis Analysis `toml:"analysis"`
	Log      Log      `toml:"log"`
	Report   Report   `toml:"report"`

	// Dir is the directory containing the callsite.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// Analysis selects the units to analyze and the passes to run on them.
type Analysis struct {
	Units           []string `toml:"units"`
	PropagateCopies bool     `toml:"propagate-copies"`
	Inline          bool     `toml:"inline"`
}

// Log configures the commonlog backend.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Report configures the analysis report store.
type Report struct {
	Database string `toml:"database"`
}

// Default returns the configuration used when dir has no callsite.toml.
func Default(dir string) *Manifest {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return &Manifest{
		Analysis: Analysis{PropagateCopies: true},
		Report:   Report{Database: DefaultDatabase},
		Dir:      abs,
	}
}

// Load parses a callsite.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes and validates manifest text and applies defaults.
func Parse(data []byte) (*Manifest, error) {
	var doc map[string]any
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	// Defaults
	if !md.IsDefined("analysis", "propagate-copies") {
		m.Analysis.PropagateCopies = true
	}
	if m.Report.Database == "" {
		m.Report.Database = DefaultDatabase
	}
	return &m, nil
}

// Validate checks a decoded manifest document against the embedded schema.
// Unknown sections and keys are rejected.
func Validate(doc map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("manifest schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Manifest"))

	v := ctx.Encode(doc)
	if err := v.Err(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	return nil
}

// FindAndLoad walks up from startDir to find a callsite.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// UnitPaths returns absolute paths for the configured units.
func (m *Manifest) UnitPaths() []string {
	var paths []string
	for _, u := range m.Analysis.Units {
		paths = append(paths, m.resolve(u))
	}
	return paths
}

// DatabasePath returns the absolute path of the report database.
func (m *Manifest) DatabasePath() string {
	return m.resolve(m.Report.Database)
}

// LogPath returns the absolute path of the log file, or "" for stderr.
func (m *Manifest) LogPath() string {
	if m.Log.File == "" {
		return ""
	}
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
