// Package postgres provides a PostgreSQL-backed journal store.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//	_ = store.Record(ctx, entry)
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/voxmate/internal/journal"
)

var _ journal.Store = (*Store)(nil)

const ddlUtterances = `
CREATE TABLE IF NOT EXISTS utterances (
    id          BIGSERIAL    PRIMARY KEY,
    tab         TEXT         NOT NULL,
    at          TIMESTAMPTZ  NOT NULL DEFAULT now(),
    raw         TEXT         NOT NULL,
    normalized  TEXT         NOT NULL DEFAULT '',
    outcome     TEXT         NOT NULL,
    strategy    TEXT         NOT NULL DEFAULT '',
    intent      TEXT         NOT NULL DEFAULT '',
    move        TEXT         NOT NULL DEFAULT '',
    oracle      TEXT         NOT NULL DEFAULT '',
    latency_ns  BIGINT       NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_utterances_tab_at
    ON utterances (tab, at);

CREATE INDEX IF NOT EXISTS idx_utterances_outcome
    ON utterances (outcome);
`

// Store is the PostgreSQL journal. All operations are safe for concurrent
// use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn, pings the server and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("journal postgres: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("journal postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal postgres: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal postgres: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate creates the utterances table and its indexes if absent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlUtterances); err != nil {
		return fmt.Errorf("create utterances: %w", err)
	}
	return nil
}

// Record implements [journal.Store].
func (s *Store) Record(ctx context.Context, e journal.Entry) error {
	const q = `
		INSERT INTO utterances
		    (tab, at, raw, normalized, outcome, strategy, intent, move, oracle, latency_ns)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	at := e.Time
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.pool.Exec(ctx, q,
		e.Tab,
		at,
		e.Raw,
		e.Normalized,
		e.Outcome,
		e.Strategy,
		e.Intent,
		e.Move,
		e.Oracle,
		e.Latency.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("journal postgres: record: %w", err)
	}
	return nil
}

// Recent implements [journal.Store].
func (s *Store) Recent(ctx context.Context, tab string, limit int) ([]journal.Entry, error) {
	if limit <= 0 {
		limit = journal.DefaultCapacity
	}
	const q = `
		SELECT tab, at, raw, normalized, outcome, strategy, intent, move, oracle, latency_ns
		FROM (
		    SELECT *
		    FROM   utterances
		    WHERE  $1 = '' OR tab = $1
		    ORDER  BY at DESC, id DESC
		    LIMIT  $2
		) recent
		ORDER BY at, id`

	rows, err := s.pool.Query(ctx, q, tab, limit)
	if err != nil {
		return nil, fmt.Errorf("journal postgres: recent: %w", err)
	}
	return collectEntries(rows)
}

// OutcomeCounts returns how many utterances ended in each outcome for tab
// (all tabs when empty).
func (s *Store) OutcomeCounts(ctx context.Context, tab string) (map[string]int, error) {
	const q = `
		SELECT outcome, count(*)
		FROM   utterances
		WHERE  $1 = '' OR tab = $1
		GROUP  BY outcome`

	rows, err := s.pool.Query(ctx, q, tab)
	if err != nil {
		return nil, fmt.Errorf("journal postgres: outcome counts: %w", err)
	}
	type count struct {
		outcome string
		n       int
	}
	counts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (count, error) {
		var c count
		err := row.Scan(&c.outcome, &c.n)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("journal postgres: scan counts: %w", err)
	}
	out := make(map[string]int, len(counts))
	for _, c := range counts {
		out[c.outcome] = c.n
	}
	return out, nil
}

// Ping checks connectivity; used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements [journal.Store].
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func collectEntries(rows pgx.Rows) ([]journal.Entry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (journal.Entry, error) {
		var (
			e         journal.Entry
			latencyNS int64
		)
		if err := row.Scan(
			&e.Tab,
			&e.Time,
			&e.Raw,
			&e.Normalized,
			&e.Outcome,
			&e.Strategy,
			&e.Intent,
			&e.Move,
			&e.Oracle,
			&latencyNS,
		); err != nil {
			return journal.Entry{}, err
		}
		e.Latency = time.Duration(latencyNS)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("journal postgres: scan rows: %w", err)
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	return entries, nil
}
