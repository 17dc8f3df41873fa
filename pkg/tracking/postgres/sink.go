package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/credfab/credfab/pkg/tracking"
)

// Queryer is the subset of pgxpool.Pool (or pgx.Tx) this sink needs.
//
// This is an extracted interface; when you need more pgx methods, add them.
type Queryer interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Sink records run parameters, metrics and artifact references in postgres.
//
// Every Log* call is a single multi-row INSERT, so one call commits
// atomically without an explicit transaction; concurrent workers logging
// different runs never block each other beyond row locks.
type Sink struct {
	conn Queryer
}

var _ tracking.Sink = (*Sink)(nil)

func New(conn Queryer) *Sink {
	return &Sink{conn: conn}
}

// Schema is the DDL this sink expects. Ensure applies it idempotently.
const Schema = `
CREATE TABLE IF NOT EXISTS run_params (
	run_id TEXT NOT NULL,
	"key"  TEXT NOT NULL,
	value  TEXT NOT NULL,
	PRIMARY KEY (run_id, "key")
);
CREATE TABLE IF NOT EXISTS run_metrics (
	run_id TEXT NOT NULL,
	"key"  TEXT NOT NULL,
	value  DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, "key")
);
CREATE TABLE IF NOT EXISTS run_artifacts (
	run_id TEXT NOT NULL,
	ref    TEXT NOT NULL,
	PRIMARY KEY (run_id, ref)
);
`

func (s *Sink) Ensure(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, Schema)
	return err
}

func (s *Sink) LogParams(ctx context.Context, runID string, params map[string]string) error {
	if len(params) == 0 {
		return nil
	}
	sql, args := upsertKV("run_params", runID, sortedKeys(params), func(k string) interface{} { return params[k] })
	_, err := s.conn.Exec(ctx, sql, args...)
	return err
}

func (s *Sink) LogMetrics(ctx context.Context, runID string, metrics map[string]float64) error {
	if len(metrics) == 0 {
		return nil
	}
	sql, args := upsertKV("run_metrics", runID, sortedKeys(metrics), func(k string) interface{} { return metrics[k] })
	_, err := s.conn.Exec(ctx, sql, args...)
	return err
}

func (s *Sink) LogArtifact(ctx context.Context, runID string, ref string) error {
	_, err := s.conn.Exec(
		ctx,
		`INSERT INTO "run_artifacts" ("run_id", "ref") VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		runID, ref,
	)
	return err
}

func (s *Sink) RunLog(ctx context.Context, runID string) (tracking.RunLog, error) {
	out := tracking.RunLog{
		RunID:   runID,
		Params:  map[string]string{},
		Metrics: map[string]float64{},
	}

	found := false

	if err := scanRows(ctx, s.conn,
		`SELECT "key", "value" FROM "run_params" WHERE "run_id" = $1`, runID,
		func(rows pgx.Rows) error {
			var k, v string
			if err := rows.Scan(&k, &v); err != nil {
				return err
			}
			out.Params[k] = v
			found = true
			return nil
		},
	); err != nil {
		return tracking.RunLog{}, err
	}

	if err := scanRows(ctx, s.conn,
		`SELECT "key", "value" FROM "run_metrics" WHERE "run_id" = $1`, runID,
		func(rows pgx.Rows) error {
			var k string
			var v float64
			if err := rows.Scan(&k, &v); err != nil {
				return err
			}
			out.Metrics[k] = v
			found = true
			return nil
		},
	); err != nil {
		return tracking.RunLog{}, err
	}

	if err := scanRows(ctx, s.conn,
		`SELECT "ref" FROM "run_artifacts" WHERE "run_id" = $1 ORDER BY "ref"`, runID,
		func(rows pgx.Rows) error {
			var ref string
			if err := rows.Scan(&ref); err != nil {
				return err
			}
			out.Artifacts = append(out.Artifacts, ref)
			found = true
			return nil
		},
	); err != nil {
		return tracking.RunLog{}, err
	}

	if !found {
		return tracking.RunLog{}, fmt.Errorf("%w: %s", tracking.ErrUnknownRun, runID)
	}
	return out, nil
}

func scanRows(ctx context.Context, conn Queryer, sql string, runID string, each func(pgx.Rows) error) error {
	rows, err := conn.Query(ctx, sql, runID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := each(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func upsertKV(table string, runID string, keys []string, value func(string) interface{}) (string, []interface{}) {
	values := make([]string, 0, len(keys))
	args := make([]interface{}, 0, 1+2*len(keys))
	args = append(args, runID)
	for _, k := range keys {
		values = append(values, fmt.Sprintf("($1, $%d, $%d)", len(args)+1, len(args)+2))
		args = append(args, k, value(k))
	}

	sql := fmt.Sprintf(
		`INSERT INTO "%s" ("run_id", "key", "value") VALUES %s
ON CONFLICT ("run_id", "key") DO UPDATE SET "value" = EXCLUDED."value"`,
		table, strings.Join(values, ", "),
	)
	return sql, args
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
