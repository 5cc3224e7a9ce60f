// CLAUDE:SUMMARY SQLite run journal: one row per run plus every finding and warning, queryable as a review queue.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/bibclean/pkg/pipeline"
)

// Run is a row from the runs table.
type Run struct {
	ID         string
	Input      string
	Settings   string
	StartedAt  int64
	FinishedAt *int64
	Summary    *pipeline.Summary
}

// Entry is a row from the findings table.
type Entry struct {
	RunID       string
	RecordIndex int
	RecordID    string
	Tag         string
	Code        string
	Kind        pipeline.Kind
	Detail      string
}

// Journal persists run outcomes in SQLite.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	const ddl = `CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		input       TEXT NOT NULL,
		settings    TEXT NOT NULL DEFAULT '',
		started_at  INTEGER NOT NULL,
		finished_at INTEGER,
		summary     TEXT
	);
	CREATE TABLE IF NOT EXISTS findings (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id       TEXT NOT NULL REFERENCES runs(id),
		record_index INTEGER NOT NULL,
		record_id    TEXT NOT NULL,
		tag          TEXT NOT NULL DEFAULT '',
		code         TEXT NOT NULL DEFAULT '',
		kind         TEXT NOT NULL,
		detail       TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS findings_run_kind ON findings(run_id, kind)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal tables: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartRun inserts a run row and returns its identifier.
func (j *Journal) StartRun(input string, settings any) (string, error) {
	blob, err := json.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}
	id := uuid.NewString()
	_, err = j.db.Exec(`INSERT INTO runs (id, input, settings, started_at) VALUES (?, ?, ?, ?)`,
		id, input, string(blob), time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

// FinishRun stores the final summary.
func (j *Journal) FinishRun(runID string, sum pipeline.Summary) error {
	blob, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	res, err := j.db.Exec(`UPDATE runs SET finished_at = ?, summary = ? WHERE id = ?`,
		time.Now().Unix(), string(blob), runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// Record writes every warning, finding and skip of rep in one transaction.
func (j *Journal) Record(runID string, rep *pipeline.RecordReport) error {
	entries := Entries(runID, rep)
	if len(entries) == 0 {
		return nil
	}
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO findings
		(run_id, record_index, record_id, tag, code, kind, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.Exec(e.RunID, e.RecordIndex, e.RecordID, e.Tag, e.Code, string(e.Kind), e.Detail); err != nil {
			tx.Rollback()
			return fmt.Errorf("record %s: %w", rep.ID, err)
		}
	}
	return tx.Commit()
}

// Entries flattens a report into journal rows.
func Entries(runID string, rep *pipeline.RecordReport) []Entry {
	base := Entry{RunID: runID, RecordIndex: rep.Index, RecordID: rep.ID}
	if rep.Skipped() {
		e := base
		e.Kind = pipeline.KindSkippedRecord
		e.Detail = rep.Skip.Error()
		return []Entry{e}
	}
	var out []Entry
	for _, w := range rep.Warnings {
		e := base
		e.Tag, e.Code, e.Kind = w.Tag, w.Code, w.Kind
		if w.Err != nil {
			e.Detail = w.Err.Error()
		}
		out = append(out, e)
	}
	for _, f := range rep.Findings {
		e := base
		e.Tag, e.Code, e.Kind = f.Tag, f.Code, pipeline.KindAnomaly
		e.Detail = f.Finding.String()
		out = append(out, e)
	}
	return out
}

// Sink returns a pipeline.Sink that journals each report before passing it
// to next. next may be nil.
func (j *Journal) Sink(runID string, next pipeline.Sink) pipeline.Sink {
	return pipeline.SinkFunc(func(rep *pipeline.RecordReport) error {
		if err := j.Record(runID, rep); err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		return next.Put(rep)
	})
}

// Findings lists a run's rows, optionally filtered by kind.
func (j *Journal) Findings(runID string, kind pipeline.Kind) ([]Entry, error) {
	q := `SELECT run_id, record_index, record_id, tag, code, kind, detail
		FROM findings WHERE run_id = ?`
	args := []any{runID}
	if kind != "" {
		q += ` AND kind = ?`
		args = append(args, string(kind))
	}
	q += ` ORDER BY id`

	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var k string
		if err := rows.Scan(&e.RunID, &e.RecordIndex, &e.RecordID, &e.Tag, &e.Code, &k, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		e.Kind = pipeline.Kind(k)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Runs lists all runs, newest first.
func (j *Journal) Runs() ([]Run, error) {
	rows, err := j.db.Query(`SELECT id, input, settings, started_at, finished_at, summary
		FROM runs ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var summary *string
		if err := rows.Scan(&r.ID, &r.Input, &r.Settings, &r.StartedAt, &r.FinishedAt, &summary); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if summary != nil {
			var s pipeline.Summary
			if err := json.Unmarshal([]byte(*summary), &s); err != nil {
				return nil, fmt.Errorf("decode summary of %s: %w", r.ID, err)
			}
			r.Summary = &s
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
