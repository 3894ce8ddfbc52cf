// Package keystore writes and reads the pseudonym key file: a SQLite database that
// maps every token handed out during a redaction run back to the name it
// replaced, together with the place each name occurred.
//
// The key file is the only artifact of a run that links tokens to real
// names. It is written once at the end of a run and replaced if it exists;
// Read opens it read-only for inspection. The registry is never seeded from
// a key file.
package keystore

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/FocuswithJustin/eaftools/core/errors"
	"github.com/FocuswithJustin/eaftools/core/redact"
	"github.com/FocuswithJustin/eaftools/core/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	CREATE TABLE IF NOT EXISTS pseudonyms (
		ordinal INTEGER PRIMARY KEY,
		token TEXT NOT NULL UNIQUE,
		canonical TEXT NOT NULL UNIQUE,
		source TEXT
	);
	CREATE TABLE IF NOT EXISTS occurrences (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		tier TEXT NOT NULL,
		annotation_id TEXT,
		begin_ms INTEGER,
		end_ms INTEGER,
		value TEXT NOT NULL,
		token TEXT NOT NULL REFERENCES pseudonyms(token)
	);
	CREATE INDEX IF NOT EXISTS idx_occurrences_token ON occurrences(token);
`

// Occurrence is one redacted annotation.
type Occurrence struct {
	Source       string
	Tier         string
	AnnotationID string
	Begin        int64
	End          int64
	Value        string
	Token        string
}

// Snapshot is the content of a key file.
type Snapshot struct {
	RunID       string
	Prefix      string
	Created     time.Time
	Mappings    []redact.Mapping
	Occurrences []Occurrence
}

// OccurrencesFrom converts the pending references of a redaction result
// into occurrences.
func OccurrencesFrom(res *redact.Result) []Occurrence {
	out := make([]Occurrence, 0, len(res.Pending))
	for _, p := range res.Pending {
		out = append(out, Occurrence{
			Source:       res.Source,
			Tier:         p.Tier,
			AnnotationID: p.AnnotationID,
			Begin:        p.Begin,
			End:          p.End,
			Value:        p.Value,
			Token:        p.Token,
		})
	}
	return out
}

// Write stores snap at path, replacing any existing key file.
func Write(path string, snap *Snapshot) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewIO("replace", path, err)
	}

	db, err := sqlite.Open(path)
	if err != nil {
		return errors.NewIO("open", path, err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return errors.NewIO("create schema in", path, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.NewIO("write", path, err)
	}
	if err := insert(tx, snap); err != nil {
		tx.Rollback()
		return errors.NewIO("write", path, err)
	}
	if err := tx.Commit(); err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}

func insert(tx *sql.Tx, snap *Snapshot) error {
	meta := [][2]string{
		{"run_id", snap.RunID},
		{"prefix", snap.Prefix},
		{"created", snap.Created.UTC().Format(time.RFC3339)},
		{"driver", sqlite.DriverType()},
	}
	for _, kv := range meta {
		if _, err := tx.Exec("INSERT INTO meta (key, value) VALUES (?, ?)", kv[0], kv[1]); err != nil {
			return fmt.Errorf("meta %s: %w", kv[0], err)
		}
	}

	for _, m := range snap.Mappings {
		if _, err := tx.Exec("INSERT INTO pseudonyms (ordinal, token, canonical, source) VALUES (?, ?, ?, ?)",
			m.Ordinal, m.Token, m.Canonical, m.Source); err != nil {
			return fmt.Errorf("pseudonym %s: %w", m.Token, err)
		}
	}

	for _, o := range snap.Occurrences {
		if _, err := tx.Exec(`INSERT INTO occurrences (source, tier, annotation_id, begin_ms, end_ms, value, token)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			o.Source, o.Tier, o.AnnotationID, o.Begin, o.End, o.Value, o.Token); err != nil {
			return fmt.Errorf("occurrence %s/%s: %w", o.Source, o.AnnotationID, err)
		}
	}
	return nil
}

// Read loads a key file.
func Read(path string) (*Snapshot, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer db.Close()

	snap := &Snapshot{}
	rows, err := db.Query("SELECT key, value FROM meta")
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, errors.NewIO("read", path, err)
		}
		switch k {
		case "run_id":
			snap.RunID = v
		case "prefix":
			snap.Prefix = v
		case "created":
			snap.Created, _ = time.Parse(time.RFC3339, v)
		}
	}
	rows.Close()

	rows, err = db.Query("SELECT ordinal, token, canonical, source FROM pseudonyms ORDER BY ordinal")
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	for rows.Next() {
		var m redact.Mapping
		if err := rows.Scan(&m.Ordinal, &m.Token, &m.Canonical, &m.Source); err != nil {
			rows.Close()
			return nil, errors.NewIO("read", path, err)
		}
		snap.Mappings = append(snap.Mappings, m)
	}
	rows.Close()

	rows, err = db.Query("SELECT source, tier, annotation_id, begin_ms, end_ms, value, token FROM occurrences ORDER BY id")
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	defer rows.Close()
	for rows.Next() {
		var o Occurrence
		if err := rows.Scan(&o.Source, &o.Tier, &o.AnnotationID, &o.Begin, &o.End, &o.Value, &o.Token); err != nil {
			return nil, errors.NewIO("read", path, err)
		}
		snap.Occurrences = append(snap.Occurrences, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	return snap, nil
}
