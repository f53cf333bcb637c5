package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"doacao/internal/metrics"
)

// SQLExecutor is the storage contract used by repositories and stores.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// DefaultSlowStatement is the threshold above which statements log a warning.
const DefaultSlowStatement = 500 * time.Millisecond

var (
	markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

	ErrEmptyQuery    = errors.New("sql: empty query")
	ErrInvalidMarker = errors.New("sql: marker missing or invalid")
)

// SQLRunner executes marked statements against the pool. Every statement
// starts with a `--sql <uuid>` line; logs and metrics carry the uuid only,
// so donor data in the SQL text never leaves the process.
type SQLRunner struct {
	Pool   *pgxpool.Pool
	Logger zerolog.Logger
	Slow   time.Duration
}

func NewSQLRunner(pool *pgxpool.Pool, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{Pool: pool, Logger: logger, Slow: DefaultSlowStatement}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	st, err := parseStatement(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := time.Now()
	tag, err := r.Pool.Exec(ctx, st.body, args...)
	r.observe(st.marker, "exec", start, err)
	return tag, err
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	st, err := parseStatement(query)
	if err != nil {
		return errorRow{err: err}
	}
	return &timedRow{
		row:    r.Pool.QueryRow(ctx, st.body, args...),
		runner: r,
		marker: st.marker,
		start:  time.Now(),
	}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	st, err := parseStatement(query)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := r.Pool.Query(ctx, st.body, args...)
	if err != nil {
		r.observe(st.marker, "query", start, err)
		return nil, err
	}
	return &timedRows{Rows: rows, runner: r, marker: st.marker, start: start}, nil
}

// observe records one finished statement. Empty results are not failures.
func (r *SQLRunner) observe(marker, op string, start time.Time, err error) {
	elapsed := time.Since(start)
	if IsNoRows(err) {
		err = nil
	}
	metrics.DBStatements.WithLabelValues(marker, metrics.Outcome(err)).Observe(elapsed.Seconds())

	switch {
	case err != nil:
		r.Logger.Error().Err(err).Str("sql", marker).Str("op", op).Dur("elapsed", elapsed).Msg("sql: statement failed")
	case r.Slow > 0 && elapsed > r.Slow:
		r.Logger.Warn().Str("sql", marker).Str("op", op).Dur("elapsed", elapsed).Msg("sql: slow statement")
	default:
		r.Logger.Debug().Str("sql", marker).Str("op", op).Dur("elapsed", elapsed).Msg("sql: statement ok")
	}
}

type timedRow struct {
	row    pgx.Row
	runner *SQLRunner
	marker string
	start  time.Time
}

func (t *timedRow) Scan(dest ...any) error {
	err := t.row.Scan(dest...)
	t.runner.observe(t.marker, "query_row", t.start, err)
	return err
}

type timedRows struct {
	pgx.Rows
	runner *SQLRunner
	marker string
	start  time.Time
	closed bool
}

func (t *timedRows) Close() {
	t.Rows.Close()
	if t.closed {
		return
	}
	t.closed = true
	t.runner.observe(t.marker, "query", t.start, t.Rows.Err())
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(...any) error {
	return e.err
}

// ValidMarker reports whether line is a well-formed audit marker.
func ValidMarker(line string) bool {
	return markerRegexp.MatchString(strings.TrimSpace(line))
}

type statement struct {
	marker string
	body   string
}

func parseStatement(query string) (statement, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return statement{}, ErrEmptyQuery
	}
	first, body, _ := strings.Cut(trimmed, "\n")
	first = strings.TrimSpace(first)
	if !markerRegexp.MatchString(first) {
		return statement{}, ErrInvalidMarker
	}
	return statement{marker: strings.TrimPrefix(first, "--sql "), body: body}, nil
}

var _ SQLExecutor = (*SQLRunner)(nil)
