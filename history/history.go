// Package history persists evaluation outcomes in PostgreSQL.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/lib/pq"

	"github.com/zephyrtronium/calcpipe"
)

// Entry is one evaluation outcome.
type Entry struct {
	Expression string
	// Result is the value of a successful evaluation.
	Result float64
	// Kind is KindNone for a successful evaluation.
	Kind     calcpipe.Kind
	Error    string
	Duration time.Duration
	At       time.Time
}

// Recorder records evaluation outcomes.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Store is a Recorder backed by a SQL database.
type Store struct {
	db *sql.DB
}

var _ Recorder = (*Store)(nil)

// Open connects to the PostgreSQL database named by dsn and checks that it is
// reachable.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to history database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type migration struct {
	version int
	up      string
}

// migrations are applied in order. Never edit an applied migration; append a
// new one.
var migrations = []migration{
	{1, `CREATE TABLE evaluations (
		id          BIGSERIAL PRIMARY KEY,
		expression  TEXT NOT NULL,
		result      DOUBLE PRECISION NOT NULL DEFAULT 0,
		kind        TEXT NOT NULL,
		error       TEXT NOT NULL DEFAULT '',
		duration_us BIGINT NOT NULL,
		at          TIMESTAMP WITH TIME ZONE NOT NULL
	)`},
	{2, `CREATE INDEX evaluations_at ON evaluations (at DESC)`},
}

// Migrate brings the schema up to date. Each migration runs in its own
// transaction together with its version record.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT PRIMARY KEY,
		at      TIMESTAMP WITH TIME ZONE NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}
	var cur int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&cur); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= cur {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, m.up); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, at) VALUES ($1, now())`, m.version); err != nil {
		return err
	}
	return tx.Commit()
}

// Record inserts e. Non-finite results are stored as 0.
func (s *Store) Record(ctx context.Context, e Entry) error {
	r := e.Result
	if math.IsNaN(r) || math.IsInf(r, 0) {
		r = 0
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations (expression, result, kind, error, duration_us, at) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.Expression, r, e.Kind.String(), e.Error, e.Duration.Microseconds(), e.At,
	)
	if err != nil {
		return fmt.Errorf("recording evaluation: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT expression, result, kind, error, duration_us, at FROM evaluations ORDER BY at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()
	var r []Entry
	for rows.Next() {
		var (
			e    Entry
			kind string
			us   int64
		)
		if err := rows.Scan(&e.Expression, &e.Result, &kind, &e.Error, &us, &e.At); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		e.Kind = calcpipe.ParseKind(kind)
		e.Duration = time.Duration(us) * time.Microsecond
		r = append(r, e)
	}
	return r, rows.Err()
}
