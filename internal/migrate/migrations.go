// Package migrate applies the embedded SQLite schema.
package migrate

import (
	"database/sql"
	"embed"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Step is one numbered schema file, e.g. 0001_init.sql.
type Step struct {
	Version   int    `json:"version"`
	Name      string `json:"name"`
	AppliedAt string `json:"applied_at,omitempty"`
	body      string
}

func steps() ([]Step, error) {
	entries, err := fs.ReadDir(migrationsFS, "sql")
	if err != nil {
		return nil, err
	}
	out := make([]Step, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(entry.Name(), "_")
		version, err := strconv.Atoi(prefix)
		if !ok || err != nil || version <= 0 {
			return nil, errors.Errorf("migration %s: name must start with a positive number", entry.Name())
		}
		data, err := migrationsFS.ReadFile("sql/" + entry.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, Step{Version: version, Name: entry.Name(), body: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	for i := 1; i < len(out); i++ {
		if out[i].Version == out[i-1].Version {
			return nil, errors.Errorf("migrations %s and %s share version %d", out[i-1].Name, out[i].Name, out[i].Version)
		}
	}
	return out, nil
}

const ledgerTable = `CREATE TABLE IF NOT EXISTS schema_migrations(
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at TEXT NOT NULL
)`

// Migrate brings the database up to the newest embedded schema. Each file
// runs in its own transaction together with its schema_migrations row.
func Migrate(db *sql.DB) error {
	_, err := Apply(db)
	return err
}

// Apply is Migrate returning the steps it ran.
func Apply(db *sql.DB) ([]Step, error) {
	all, err := steps()
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(ledgerTable); err != nil {
		return nil, errors.Wrap(err, "create schema_migrations")
	}
	done, err := appliedVersions(db)
	if err != nil {
		return nil, err
	}
	var ran []Step
	for _, s := range all {
		if _, ok := done[s.Version]; ok {
			continue
		}
		s.AppliedAt = time.Now().UTC().Format(time.RFC3339)
		if err := runStep(db, s); err != nil {
			return ran, err
		}
		ran = append(ran, s)
	}
	return ran, nil
}

func runStep(db *sql.DB, s Step) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(s.body); err != nil {
		return errors.Wrapf(err, "migration %s", s.Name)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations(version,name,applied_at) VALUES (?,?,?)`, s.Version, s.Name, s.AppliedAt); err != nil {
		return errors.Wrapf(err, "record migration %s", s.Name)
	}
	return tx.Commit()
}

func appliedVersions(db *sql.DB) (map[int]string, error) {
	rows, err := db.Query(`SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, errors.Wrap(err, "read schema_migrations")
	}
	defer rows.Close()
	out := make(map[int]string)
	for rows.Next() {
		var (
			v  int
			at string
		)
		if err := rows.Scan(&v, &at); err != nil {
			return nil, err
		}
		out[v] = at
	}
	return out, rows.Err()
}

// Status lists every embedded step; AppliedAt is empty for pending ones.
func Status(db *sql.DB) ([]Step, error) {
	all, err := steps()
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(ledgerTable); err != nil {
		return nil, errors.Wrap(err, "create schema_migrations")
	}
	done, err := appliedVersions(db)
	if err != nil {
		return nil, err
	}
	for i := range all {
		all[i].AppliedAt = done[all[i].Version]
	}
	return all, nil
}
