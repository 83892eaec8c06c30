// Package store is the local journal: status changes seen on the board and
// the last board snapshot, used to warm-start the daemon.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ankittk/pabellon/internal/board"
	"github.com/ankittk/pabellon/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// sqliteJournal is the SQLite implementation of Journal (internal to this package).
type sqliteJournal struct {
	DB *sql.DB
	// Prepared statements for hot paths (prepared at open, closed in Close).
	stmtInsertChange *sql.Stmt
	stmtSaveSnapshot *sql.Stmt
}

// OpenOptions configures how to open the journal (driver and location).
type OpenOptions struct {
	Driver string // "sqlite" (default) or "none"
	Home   string // for sqlite: directory containing protected/journal.sqlite
	DSN    string // for sqlite: explicit DSN instead of Home
}

// Open opens the default SQLite journal at home/protected/journal.sqlite.
func Open(home string) (Journal, error) {
	return OpenWithOptions(OpenOptions{Driver: "sqlite", Home: home})
}

// OpenWithOptions opens a journal based on driver and options. For driver
// "postgres" the caller must use postgres.Open(dsn) from internal/store/postgres
// to avoid import cycles.
func OpenWithOptions(opts OpenOptions) (Journal, error) {
	switch opts.Driver {
	case "none":
		return Nop{}, nil
	case "postgres":
		return nil, errors.New("for postgres use postgres.Open(dsn) from github.com/ankittk/pabellon/internal/store/postgres")
	}
	if opts.Home == "" && opts.DSN != "" {
		return openSQLiteDSN(opts.DSN)
	}
	if opts.Home == "" {
		return nil, errors.New("sqlite journal needs a home or DSN")
	}
	dbPath := filepath.Join(opts.Home, "protected", "journal.sqlite")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	return openSQLiteDSN("file:" + dbPath + "?_pragma=busy_timeout(5000)")
}

func openSQLiteDSN(dsn string) (*sqliteJournal, error) {
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn + "?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)
	s := &sqliteJournal{DB: db}
	if err := s.initPragmas(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.prepareStatements(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteJournal) prepareStatements(ctx context.Context) error {
	pairs := []struct {
		dest **sql.Stmt
		q    string
	}{
		{&s.stmtInsertChange, `INSERT INTO status_changes(cirugia_id, pabellon_id, pabellon, old_estado, new_estado, cycle, changed_at) VALUES(?, ?, ?, ?, ?, ?, ?)`},
		{&s.stmtSaveSnapshot, `INSERT INTO board_snapshot(id, cycle, taken_at, body) VALUES(1, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET cycle=excluded.cycle, taken_at=excluded.taken_at, body=excluded.body`},
	}
	for _, p := range pairs {
		st, err := s.DB.PrepareContext(ctx, p.q)
		if err != nil {
			return err
		}
		*p.dest = st
	}
	return nil
}

func (s *sqliteJournal) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	for _, st := range []*sql.Stmt{s.stmtInsertChange, s.stmtSaveSnapshot} {
		if st != nil {
			_ = st.Close()
		}
	}
	return s.DB.Close()
}

func (s *sqliteJournal) initPragmas(ctx context.Context) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, q := range stmts {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// RecordStatusChanges appends changes in one transaction.
func (s *sqliteJournal) RecordStatusChanges(ctx context.Context, changes []board.StatusChange) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	st := tx.StmtContext(ctx, s.stmtInsertChange)
	for _, c := range changes {
		at := c.At
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := st.ExecContext(ctx, c.CirugiaID, c.PabellonID, c.Pabellon, string(c.Old), string(c.New), int64(c.Cycle), at.UnixMilli()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListStatusChanges returns the newest changes first.
func (s *sqliteJournal) ListStatusChanges(ctx context.Context, opts ListOptions) ([]StatusChangeRecord, error) {
	q := `SELECT id, cirugia_id, pabellon_id, pabellon, old_estado, new_estado, cycle, changed_at FROM status_changes WHERE 1=1`
	var args []any
	if opts.CirugiaID != 0 {
		q += ` AND cirugia_id = ?`
		args = append(args, opts.CirugiaID)
	}
	if !opts.Since.IsZero() {
		q += ` AND changed_at >= ?`
		args = append(args, opts.Since.UnixMilli())
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, opts.limit())

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []StatusChangeRecord{}
	for rows.Next() {
		var (
			r        StatusChangeRecord
			old, cur string
			cycle    int64
			at       int64
		)
		if err := rows.Scan(&r.ID, &r.CirugiaID, &r.PabellonID, &r.Pabellon, &old, &cur, &cycle, &at); err != nil {
			return nil, err
		}
		r.Old, r.New = models.Estado(old), models.Estado(cur)
		r.Cycle = uint64(cycle)
		r.At = time.UnixMilli(at).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveSnapshot replaces the stored board.
func (s *sqliteJournal) SaveSnapshot(ctx context.Context, cycle uint64, rooms []board.RoomAssignments) error {
	body, err := json.Marshal(rooms)
	if err != nil {
		return err
	}
	_, err = s.stmtSaveSnapshot.ExecContext(ctx, int64(cycle), time.Now().UnixMilli(), string(body))
	return err
}

func (s *sqliteJournal) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	var (
		cycle, taken int64
		body         string
	)
	err := s.DB.QueryRowContext(ctx, `SELECT cycle, taken_at, body FROM board_snapshot WHERE id = 1`).Scan(&cycle, &taken, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Cycle: uint64(cycle), TakenAt: time.UnixMilli(taken).UTC()}
	if err := json.Unmarshal([]byte(body), &snap.Rooms); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (s *sqliteJournal) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("journal not initialized")
	}

	// Ensure migrations table exists even before we run migration files.
	if _, err := s.DB.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at INTEGER NOT NULL
);`); err != nil {
		return err
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return err
	}
	migs, err := LoadMigrations(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	for _, m := range migs {
		if applied[m.Version] {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
	}
	return nil
}

// Migration is one numbered SQL file (NNN_name.sql).
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// LoadMigrations reads dir from fsys and returns its migrations by version.
func LoadMigrations(fsys embed.FS, dir string) ([]Migration, error) {
	files, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var migs []Migration
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".sql") {
			continue
		}
		v, err := parseMigrationVersion(f.Name())
		if err != nil {
			return nil, err
		}
		body, err := fsys.ReadFile(dir + "/" + f.Name())
		if err != nil {
			return nil, err
		}
		migs = append(migs, Migration{Version: v, Name: f.Name(), SQL: string(body)})
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].Version < migs[j].Version })
	return migs, nil
}

func (s *sqliteJournal) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func (s *sqliteJournal) applyMigration(ctx context.Context, m Migration) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)`, m.Version, time.Now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

func parseMigrationVersion(filename string) (int, error) {
	base := strings.TrimSuffix(filename, ".sql")
	prefix, _, _ := strings.Cut(base, "_")
	v, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("invalid migration version in %s", filename)
	}
	return v, nil
}
