// Package report stores per-call-site analysis results in SQLite so runs
// can be compared and queried after the fact.
package report

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chazu/callsite/ir"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("callsite.report")

// CallReport is the analysis result for one call instruction.
type CallReport struct {
	Unit          string
	Scope         string
	Index         int
	Text          string
	Method        string // literal method name, "" when dynamic
	CanBeEval     bool
	RequiresFrame bool
	CapturesFrame bool
	Barrier       bool
	Target        string // statically resolved target, "" when unknown
}

// ScopeReport is the per-scope summary of one analysis run.
type ScopeReport struct {
	Unit          string
	Scope         string
	Calls         int
	StaticCalls   int
	EvalCalls     int
	Barriers      int
	RequiresFrame bool
}

// Store is a report database.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	unit TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS call_sites (
	run_id TEXT NOT NULL REFERENCES runs(id),
	unit TEXT NOT NULL,
	scope TEXT NOT NULL,
	idx INTEGER NOT NULL,
	text TEXT NOT NULL,
	method TEXT NOT NULL,
	can_be_eval INTEGER NOT NULL,
	requires_frame INTEGER NOT NULL,
	captures_frame INTEGER NOT NULL,
	barrier INTEGER NOT NULL,
	target TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS scopes (
	run_id TEXT NOT NULL REFERENCES runs(id),
	unit TEXT NOT NULL,
	scope TEXT NOT NULL,
	calls INTEGER NOT NULL,
	static_calls INTEGER NOT NULL,
	eval_calls INTEGER NOT NULL,
	barriers INTEGER NOT NULL,
	requires_frame INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS call_sites_unit ON call_sites(unit);
CREATE INDEX IF NOT EXISTS scopes_unit ON scopes(unit);
`

// Open opens or creates the report database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Collect computes the call-site reports for every scope of a.
func Collect(unit string, a *ir.Arena) ([]CallReport, []ScopeReport) {
	var calls []CallReport
	var scopes []ScopeReport
	for _, sc := range a.Scopes() {
		if len(sc.Instrs()) == 0 {
			continue
		}
		for i, instr := range sc.Instrs() {
			c, ok := instr.(*ir.CallInstr)
			if !ok {
				continue
			}
			r := CallReport{
				Unit:          unit,
				Scope:         sc.String(),
				Index:         i,
				Text:          c.String(),
				CanBeEval:     c.CanBeEval(),
				RequiresFrame: c.RequiresFrame(),
				CapturesFrame: c.CanCaptureCallersFrame(),
				Barrier:       c.IsDataflowBarrier(),
			}
			if ma, ok := c.MethodAddr().(*ir.MethAddr); ok {
				r.Method = ma.Name
			}
			if t := c.TargetMethod(); t != nil {
				r.Target = t.String()
			}
			calls = append(calls, r)
		}

		sum := ir.AnalyzeScope(sc)
		scopes = append(scopes, ScopeReport{
			Unit:          unit,
			Scope:         sc.String(),
			Calls:         sum.Calls,
			StaticCalls:   sum.StaticCalls,
			EvalCalls:     sum.EvalCalls,
			Barriers:      len(sum.Barriers),
			RequiresFrame: sum.RequiresFrame,
		})
	}
	return calls, scopes
}

// SaveUnit analyzes a and replaces the stored reports for unit. It returns
// the id of the new run.
func (s *Store) SaveUnit(unit string, a *ir.Arena) (string, error) {
	calls, scopes := Collect(unit, a)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"call_sites", "scopes", "runs"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE unit = ?", unit); err != nil {
			return "", fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	runID := uuid.New().String()
	if _, err := tx.Exec("INSERT INTO runs (id, unit, created_at) VALUES (?, ?, ?)",
		runID, unit, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return "", fmt.Errorf("saving run: %w", err)
	}

	for _, r := range calls {
		_, err := tx.Exec(`INSERT INTO call_sites
			(run_id, unit, scope, idx, text, method, can_be_eval, requires_frame, captures_frame, barrier, target)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, r.Unit, r.Scope, r.Index, r.Text, r.Method,
			r.CanBeEval, r.RequiresFrame, r.CapturesFrame, r.Barrier, r.Target)
		if err != nil {
			return "", fmt.Errorf("saving call site %s[%d]: %w", r.Scope, r.Index, err)
		}
	}
	for _, r := range scopes {
		_, err := tx.Exec(`INSERT INTO scopes
			(run_id, unit, scope, calls, static_calls, eval_calls, barriers, requires_frame)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, r.Unit, r.Scope, r.Calls, r.StaticCalls, r.EvalCalls, r.Barriers, r.RequiresFrame)
		if err != nil {
			return "", fmt.Errorf("saving scope %s: %w", r.Scope, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	log.Infof("saved %d call sites in %d scopes for %s", len(calls), len(scopes), unit)
	return runID, nil
}

// Reports returns the stored call-site reports of unit in the order they
// were saved.
func (s *Store) Reports(unit string) ([]CallReport, error) {
	return s.queryCalls("unit = ?", unit)
}

// Barriers returns the dataflow-barrier call sites stored across every unit.
func (s *Store) Barriers() ([]CallReport, error) {
	return s.queryCalls("barrier = 1")
}

func (s *Store) queryCalls(where string, args ...any) ([]CallReport, error) {
	rows, err := s.db.Query(`SELECT unit, scope, idx, text, method,
		can_be_eval, requires_frame, captures_frame, barrier, target
		FROM call_sites WHERE `+where+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying call sites: %w", err)
	}
	defer rows.Close()

	var out []CallReport
	for rows.Next() {
		var r CallReport
		if err := rows.Scan(&r.Unit, &r.Scope, &r.Index, &r.Text, &r.Method,
			&r.CanBeEval, &r.RequiresFrame, &r.CapturesFrame, &r.Barrier, &r.Target); err != nil {
			return nil, fmt.Errorf("scanning call site: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Scopes returns the stored scope summaries of unit.
func (s *Store) Scopes(unit string) ([]ScopeReport, error) {
	rows, err := s.db.Query(`SELECT unit, scope, calls, static_calls, eval_calls, barriers, requires_frame
		FROM scopes WHERE unit = ? ORDER BY rowid`, unit)
	if err != nil {
		return nil, fmt.Errorf("querying scopes: %w", err)
	}
	defer rows.Close()

	var out []ScopeReport
	for rows.Next() {
		var r ScopeReport
		if err := rows.Scan(&r.Unit, &r.Scope, &r.Calls, &r.StaticCalls, &r.EvalCalls,
			&r.Barriers, &r.RequiresFrame); err != nil {
			return nil, fmt.Errorf("scanning scope: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
