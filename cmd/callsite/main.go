// callsite CLI - analyzes the call sites of encoded IR units
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/callsite/ir"
	"github.com/chazu/callsite/ir/wire"
	"github.com/chazu/callsite/manifest"
	"github.com/chazu/callsite/report"
	"github.com/chazu/callsite/runtime"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("callsite.cli")

func main() {
	verbose := flag.Bool("v", false, "Verbose output (debug logging)")
	configDir := flag.String("config", ".", "Directory to search upward for callsite.toml")
	dbPath := flag.String("db", "", "Report database (overrides the manifest)")
	inline := flag.Bool("inline", false, "Inline calls with a static target")
	noPropagate := flag.Bool("no-propagate", false, "Skip copy propagation")
	noReport := flag.Bool("no-report", false, "Do not save reports")
	runScope := flag.String("run", "", "Interpret the named script after analysis and print its result")
	example := flag.String("example", "", "Write a demo unit to this path and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: callsite [options] [units...]\n\n")
		fmt.Fprintf(os.Stderr, "Loads CBOR-encoded IR units, runs the call-site passes, prints annotated\n")
		fmt.Fprintf(os.Stderr, "listings and stores the results. Without arguments the units listed in\n")
		fmt.Fprintf(os.Stderr, "callsite.toml are analyzed.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  callsite -example demo.cbor            # Write the demo unit\n")
		fmt.Fprintf(os.Stderr, "  callsite demo.cbor                     # Analyze it, save reports\n")
		fmt.Fprintf(os.Stderr, "  callsite -inline -run main demo.cbor   # Inline, then execute main\n")
	}
	flag.Parse()

	if *example != "" {
		if err := wire.WriteFile(*example, "demo", demoArena()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", *example)
		return
	}

	m, err := manifest.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		m = manifest.Default(*configDir)
	}

	configureLogging(m, *verbose)

	opts := options{
		propagate: m.Analysis.PropagateCopies && !*noPropagate,
		inline:    m.Analysis.Inline || *inline,
	}

	units := flag.Args()
	if len(units) == 0 {
		units = m.UnitPaths()
	}
	if len(units) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var store *report.Store
	if !*noReport {
		path := m.DatabasePath()
		if *dbPath != "" {
			path = *dbPath
		}
		store, err = report.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	failed := false
	for _, path := range units {
		if err := processUnit(path, opts, store, *runScope); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func configureLogging(m *manifest.Manifest, verbose bool) {
	verbosity := m.Log.Verbosity
	if verbose && verbosity < 2 {
		verbosity = 2
	}
	if path := m.LogPath(); path != "" {
		commonlog.Configure(verbosity, &path)
		return
	}
	commonlog.Configure(verbosity, nil)
}

func processUnit(path string, opts options, store *report.Store, runScope string) error {
	u, a, err := wire.ReadFile(path)
	if err != nil {
		return err
	}
	name := u.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	res := analyze(a, opts)
	log.Infof("%s: %d operands propagated, %d methods flagged, %d calls inlined",
		name, res.Propagated, len(res.Inferred), res.Inlined)

	fmt.Printf("== %s\n", name)
	writeListing(os.Stdout, a)

	if store != nil {
		if _, err := store.SaveUnit(name, a); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if runScope != "" {
		v, err := runScript(a, runScope)
		if err != nil {
			return fmt.Errorf("%s: run %s: %w", name, runScope, err)
		}
		fmt.Printf("%s => %s\n", runScope, v)
	}
	return nil
}

// runScript interprets the script named name against a fresh runtime.
func runScript(a *ir.Arena, name string) (runtime.Value, error) {
	for _, s := range a.Scopes() {
		if s.Kind == ir.ScopeScript && s.Name == name {
			interp := ir.NewInterp(runtime.New(), runtime.NilValue())
			return interp.Run(s)
		}
	}
	return runtime.NilValue(), fmt.Errorf("no script named %s", name)
}
