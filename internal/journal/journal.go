// Package journal keeps a local SQLite log of control transitions and
// comfort range changes for the status page.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultPath is the journal location on the device.
const DefaultPath = "/var/lib/goldilocks/journal.db"

// DefaultKeep is the number of entries retained.
const DefaultKeep = 1000

// Kind classifies an entry.
type Kind string

const (
	KindTransition Kind = "transition"
	KindRange      Kind = "range"
)

// Entry is one journal row.
type Entry struct {
	ID          int64     `json:"id"`
	At          time.Time `json:"at"`
	Kind        Kind      `json:"kind"`
	Summary     string    `json:"summary"`
	Temperature float64   `json:"temperature,omitempty"`
	Low         float64   `json:"low,omitempty"`
	High        float64   `json:"high,omitempty"`
}

// Journal is an append-only, size-bounded event log.
type Journal struct {
	db   *sql.DB
	keep int
}

// Open opens (or creates) the journal database.
func Open(path string) (*Journal, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	j := &Journal{db: db, keep: DefaultKeep}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

// SetKeep sets how many entries are retained.
func (j *Journal) SetKeep(n int) { j.keep = n }

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		at          TEXT NOT NULL,
		kind        TEXT NOT NULL,
		summary     TEXT NOT NULL,
		temperature REAL NOT NULL DEFAULT 0,
		low         REAL NOT NULL DEFAULT 0,
		high        REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_entries_kind ON entries(kind, id);
	`
	_, err := j.db.Exec(schema)
	return err
}

// RecordTransition logs a control state change.
func (j *Journal) RecordTransition(at time.Time, from, to string, temp, target float64) error {
	summary := fmt.Sprintf("%s -> %s", from, to)
	if target != 0 {
		summary += fmt.Sprintf(" (target %.1f)", target)
	}
	return j.insert(Entry{At: at, Kind: KindTransition, Summary: summary, Temperature: temp})
}

// RecordRange logs a comfort range change and what caused it.
func (j *Journal) RecordRange(at time.Time, low, high float64, cause string) error {
	summary := fmt.Sprintf("range %.0f-%.0f", low, high)
	if cause != "" {
		summary += " by " + cause
	}
	return j.insert(Entry{At: at, Kind: KindRange, Summary: summary, Low: low, High: high})
}

func (j *Journal) insert(e Entry) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO entries (at, kind, summary, temperature, low, high) VALUES (?, ?, ?, ?, ?, ?)`,
		e.At.UTC().Format(time.RFC3339Nano), string(e.Kind), e.Summary, e.Temperature, e.Low, e.High,
	)
	if err != nil {
		return fmt.Errorf("insert %s: %w", e.Kind, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert %s: %w", e.Kind, err)
	}
	if j.keep > 0 {
		if _, err := tx.Exec(`DELETE FROM entries WHERE id <= ?`, id-int64(j.keep)); err != nil {
			return fmt.Errorf("prune: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	rows, err := j.db.Query(
		`SELECT id, at, kind, summary, temperature, low, high FROM entries ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var at, kind string
		if err := rows.Scan(&e.ID, &at, &kind, &e.Summary, &e.Temperature, &e.Low, &e.High); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", e.ID, err)
		}
		e.Kind = Kind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of stored entries of kind, or of all kinds when
// kind is empty.
func (j *Journal) Count(kind Kind) (int, error) {
	var n int
	var err error
	if kind == "" {
		err = j.db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&n)
	} else {
		err = j.db.QueryRow(`SELECT COUNT(*) FROM entries WHERE kind = ?`, string(kind)).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}
