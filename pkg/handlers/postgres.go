package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/tubeworker/pkg/pg"
	"github.com/dmitrymomot/tubeworker/pkg/queue"
)

// DefaultTable is the table the postgres handler writes to unless "table" is set.
const DefaultTable = "jobs"

var tablePattern = `^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`

var postgresSchema = configSchema(map[string]any{
	"url":            map[string]any{"type": "string", "minLength": 1},
	"table":          map[string]any{"type": "string", "pattern": tablePattern},
	"max_conns":      map[string]any{"type": "integer", "minimum": 1},
	"retry_attempts": map[string]any{"type": "integer", "minimum": 1},
	"retry_interval": map[string]any{"type": []any{"string", "number"}},
}, "url")

var tableRe = regexp.MustCompile(tablePattern)

// Execer is the part of a pgx pool the postgres sink uses.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink inserts records into a table with the columns
// (job_id bigint, job_type text, payload jsonb, received_at timestamptz).
type PostgresSink struct {
	db    Execer
	query string
	close func()
}

// NewPostgresSink returns a sink inserting into table, which may be
// schema-qualified. closeFn runs on Close and may be nil.
func NewPostgresSink(db Execer, table string, closeFn func()) (*PostgresSink, error) {
	if !tableRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	ident := pgx.Identifier(strings.Split(table, ".")).Sanitize()
	return &PostgresSink{
		db:    db,
		query: "INSERT INTO " + ident + " (job_id, job_type, payload, received_at) VALUES ($1, $2, $3, $4)",
		close: closeFn,
	}, nil
}

func (s *PostgresSink) Write(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, s.query, int64(rec.JobID), rec.JobType, payload, rec.ReceivedAt)
	if pg.IsUndefinedTableError(err) {
		return fmt.Errorf("table is missing, create it before starting the worker: %w", err)
	}
	return err
}

func (s *PostgresSink) Close(context.Context) error {
	if s.close != nil {
		s.close()
	}
	return nil
}

// Postgres inserts every job into a table through a pgx pool. Options:
// "url" (required), "table" (default jobs), "max_conns", "retry_attempts"
// and "retry_interval".
func Postgres(opts queue.Options, logger *slog.Logger) (queue.Handler, error) {
	base, err := newBase(opts, postgresSchema, logger)
	if err != nil {
		return nil, err
	}

	cfg := pg.DefaultConfig()
	cfg.ConnectionString = opts.String("url", "")
	cfg.MaxConns = int32(opts.Int("max_conns", int(cfg.MaxConns)))
	cfg.RetryAttempts = opts.Int("retry_attempts", cfg.RetryAttempts)
	if cfg.RetryInterval, err = durationOption(opts, "retry_interval", cfg.RetryInterval); err != nil {
		return nil, err
	}
	table := opts.String("table", DefaultTable)

	open := func(ctx context.Context) (Sink, error) {
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		sink, err := NewPostgresSink(pool, table, pool.Close)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return sink, nil
	}
	return NewSinkHandler(base, open, failureVerdict(opts)), nil
}
