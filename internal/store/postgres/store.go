// Package postgres is the shared PostgreSQL journal, for sites where several
// board daemons should write to one history.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ankittk/pabellon/internal/board"
	"github.com/ankittk/pabellon/internal/store"
	"github.com/ankittk/pabellon/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Journal is the PostgreSQL implementation of store.Journal.
type Journal struct {
	Pool *pgxpool.Pool
}

// Open opens a PostgreSQL connection pool and runs migrations. dsn may be empty to use DATABASE_URL env.
func Open(dsn string) (store.Journal, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return nil, errors.New("postgres DSN or DATABASE_URL required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	j := &Journal{Pool: pool}
	if err := j.Migrate(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the connection pool.
func (j *Journal) Close() error {
	if j == nil || j.Pool == nil {
		return nil
	}
	j.Pool.Close()
	return nil
}

// Migrate runs pending migrations (only those not already in schema_migrations).
func (j *Journal) Migrate(ctx context.Context) error {
	if _, err := j.Pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, applied_at BIGINT NOT NULL)`); err != nil {
		return err
	}
	applied := make(map[int]bool)
	rows, err := j.Pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()

	migs, err := store.LoadMigrations(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	for _, m := range migs {
		if applied[m.Version] {
			continue
		}
		err := pgx.BeginFunc(ctx, j.Pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES($1, $2) ON CONFLICT (version) DO NOTHING`, m.Version, time.Now().Unix())
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
	}
	return nil
}

func (j *Journal) RecordStatusChanges(ctx context.Context, changes []board.StatusChange) error {
	if len(changes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range changes {
		at := c.At
		if at.IsZero() {
			at = time.Now()
		}
		batch.Queue(`INSERT INTO status_changes(cirugia_id, pabellon_id, pabellon, old_estado, new_estado, cycle, changed_at) VALUES($1, $2, $3, $4, $5, $6, $7)`,
			c.CirugiaID, c.PabellonID, c.Pabellon, string(c.Old), string(c.New), int64(c.Cycle), at.UnixMilli())
	}
	return pgx.BeginFunc(ctx, j.Pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (j *Journal) ListStatusChanges(ctx context.Context, opts store.ListOptions) ([]store.StatusChangeRecord, error) {
	q := `SELECT id, cirugia_id, pabellon_id, pabellon, old_estado, new_estado, cycle, changed_at FROM status_changes WHERE TRUE`
	var args []any
	if opts.CirugiaID != 0 {
		args = append(args, opts.CirugiaID)
		q += ` AND cirugia_id = $` + strconv.Itoa(len(args))
	}
	if !opts.Since.IsZero() {
		args = append(args, opts.Since.UnixMilli())
		q += ` AND changed_at >= $` + strconv.Itoa(len(args))
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = models.DefaultEventListLimit
	}
	args = append(args, limit)
	q += ` ORDER BY id DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := j.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []store.StatusChangeRecord{}
	for rows.Next() {
		var (
			r         store.StatusChangeRecord
			old, cur  string
			cycle, at int64
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

func (j *Journal) SaveSnapshot(ctx context.Context, cycle uint64, rooms []board.RoomAssignments) error {
	body, err := json.Marshal(rooms)
	if err != nil {
		return err
	}
	_, err = j.Pool.Exec(ctx, `INSERT INTO board_snapshot(id, cycle, taken_at, body) VALUES(1, $1, $2, $3)
ON CONFLICT (id) DO UPDATE SET cycle = EXCLUDED.cycle, taken_at = EXCLUDED.taken_at, body = EXCLUDED.body`,
		int64(cycle), time.Now().UnixMilli(), body)
	return err
}

func (j *Journal) LoadSnapshot(ctx context.Context) (*store.Snapshot, error) {
	var (
		cycle, taken int64
		body         []byte
	)
	err := j.Pool.QueryRow(ctx, `SELECT cycle, taken_at, body FROM board_snapshot WHERE id = 1`).Scan(&cycle, &taken, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap := &store.Snapshot{Cycle: uint64(cycle), TakenAt: time.UnixMilli(taken).UTC()}
	if err := json.Unmarshal(body, &snap.Rooms); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
