package ledger

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// A migration upgrades the ledger from version-1 to version. Fresh
// databases get schema.sql and then every migration, so each one must be
// safe to run on a database created by schema.sql.
type migration struct {
	version int
	about   string
	stmt    string
}

var migrations = []migration{
	{1, "per-scenario history index", `CREATE INDEX IF NOT EXISTS idx_runs_scenario ON runs(scenario, started_at)`},
}

// schemaVersion is the user_version a fully migrated ledger carries.
var schemaVersion = migrations[len(migrations)-1].version

// connPragmas are set on the single connection and read back on open.
var connPragmas = []struct{ name, set, want string }{
	{"journal_mode", "WAL", "wal"},
	{"synchronous", "NORMAL", "1"},
	{"busy_timeout", "5000", "5000"},
	{"foreign_keys", "ON", "1"},
}

// Ledger records scenario runs in a SQLite database.
type Ledger struct {
	db *sql.DB
}

// Open opens the ledger at path, creating and migrating it as needed.
// Opening an up-to-date ledger changes nothing.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	// One connection, so the pragmas below hold for every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &Ledger{db: db}
	if err := l.prepare(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	return l, nil
}

func (l *Ledger) prepare() error {
	for _, p := range connPragmas {
		if _, err := l.db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.set)); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
		if err := l.checkPragma(p.name, p.want); err != nil {
			return err
		}
	}
	if _, err := l.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return l.migrate()
}

// migrate runs every migration newer than the stored user_version, each in
// its own transaction together with the version bump.
func (l *Ledger) migrate() error {
	var have int
	if err := l.db.QueryRow("PRAGMA user_version").Scan(&have); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if have > schemaVersion {
		return fmt.Errorf("ledger schema v%d is newer than this build (v%d)", have, schemaVersion)
	}

	for _, m := range migrations {
		if m.version <= have {
			continue
		}
		tx, err := l.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d (%s): %w", m.version, m.about, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d: set user_version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *Ledger) checkPragma(name, want string) error {
	var got string
	if err := l.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("read pragma %s: %w", name, err)
	}
	if got != want {
		return fmt.Errorf("pragma %s is %q, want %q", name, got, want)
	}
	return nil
}
