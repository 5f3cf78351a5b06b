// Package requestlog persists one record per answered prompt to SQLite or
// Postgres. Records carry the outcome and a fingerprint of the prompt, never
// the prompt text or the generated answer.
package requestlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Entry is one persisted request record.
type Entry struct {
	ID           string    `json:"id"`
	TraceID      string    `json:"trace_id,omitempty"`
	Outcome      string    `json:"outcome"`
	Reason       string    `json:"reason,omitempty"`
	Backend      string    `json:"backend,omitempty"`
	CacheHit     bool      `json:"cache_hit"`
	PromptHash   string    `json:"prompt_hash,omitempty"`
	LatencyMS    int64     `json:"latency_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Query filters List.
type Query struct {
	Limit   int
	Offset  int
	Outcome string
	Backend string
	Since   *time.Time
}

// ListResult is a page of entries plus the total number matching the query.
type ListResult struct {
	Data  []Entry `json:"data"`
	Total int     `json:"total"`
}

// MaintenanceQuery selects entries for deletion. Before is required.
type MaintenanceQuery struct {
	Before  *time.Time
	Outcome string
}

// Writer persists request log entries.
type Writer interface {
	Write(ctx context.Context, entry Entry) error
}

// Reader lists persisted entries, newest first.
type Reader interface {
	List(ctx context.Context, q Query) (ListResult, error)
}

// Maintainer prunes persisted entries.
type Maintainer interface {
	Delete(ctx context.Context, q MaintenanceQuery) (int64, error)
}

// NoopWriter ignores all log writes.
type NoopWriter struct{}

func (NoopWriter) Write(_ context.Context, _ Entry) error { return nil }

// SQLWriter persists entries to SQLite or Postgres. It implements Writer,
// Reader and Maintainer.
type SQLWriter struct {
	db      *sql.DB
	dialect string
}

// Open returns a SQLWriter for driver ("sqlite" or "postgres").
func Open(driver, dsn string) (*SQLWriter, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite:
		return NewSQLiteWriter(dsn)
	case DriverPostgres:
		return NewPostgresWriter(dsn)
	default:
		return nil, fmt.Errorf("unsupported request log driver %q", driver)
	}
}

// NewSQLiteWriter opens (creating if needed) a SQLite database at dsn.
func NewSQLiteWriter(dsn string) (*SQLWriter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "chorechart-requests.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite request log writer: %w", err)
	}
	// One writer avoids SQLITE_BUSY under concurrent inserts.
	db.SetMaxOpenConns(1)
	w := &SQLWriter{db: db, dialect: DriverSQLite}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

// NewPostgresWriter connects to Postgres at dsn.
func NewPostgresWriter(dsn string) (*SQLWriter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres request log writer: %w", err)
	}
	w := &SQLWriter{db: db, dialect: DriverPostgres}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLWriter) init() error {
	if err := w.db.Ping(); err != nil {
		return fmt.Errorf("ping %s request log writer: %w", w.dialect, err)
	}

	tsType := "TIMESTAMP"
	if w.dialect == DriverPostgres {
		tsType = "TIMESTAMPTZ"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chorechart_requests (
	id TEXT PRIMARY KEY,
	trace_id TEXT,
	outcome TEXT NOT NULL,
	reason TEXT,
	backend TEXT,
	cache_hit BOOLEAN NOT NULL,
	prompt_hash TEXT,
	latency_ms BIGINT NOT NULL,
	error_message TEXT,
	created_at ` + tsType + ` NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS chorechart_requests_created_at ON chorechart_requests (created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := w.db.Exec(stmt); err != nil {
			return fmt.Errorf("initialize request log schema: %w", err)
		}
	}
	return nil
}

// placeholder returns the n-th (1-based) bind parameter for the dialect.
func (w *SQLWriter) placeholder(n int) string {
	if w.dialect == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Write inserts entry, assigning an ID and timestamp when they are unset.
func (w *SQLWriter) Write(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	ph := make([]string, 10)
	for i := range ph {
		ph[i] = w.placeholder(i + 1)
	}
	query := `INSERT INTO chorechart_requests(id, trace_id, outcome, reason, backend, cache_hit, prompt_hash, latency_ms, error_message, created_at)
	VALUES(` + strings.Join(ph, ", ") + `)`

	_, err := w.db.ExecContext(ctx, query,
		entry.ID,
		entry.TraceID,
		entry.Outcome,
		entry.Reason,
		entry.Backend,
		entry.CacheHit,
		entry.PromptHash,
		entry.LatencyMS,
		entry.ErrorMessage,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("write request log: %w", err)
	}
	return nil
}

// where builds a WHERE clause from the non-empty filters.
func (w *SQLWriter) where(outcome, backend string, since, before *time.Time) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, cond+" "+w.placeholder(len(args)))
	}
	if outcome != "" {
		add("outcome =", outcome)
	}
	if backend != "" {
		add("backend =", backend)
	}
	if since != nil {
		add("created_at >=", since.UTC())
	}
	if before != nil {
		add("created_at <", before.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns entries matching q, newest first.
func (w *SQLWriter) List(ctx context.Context, q Query) (ListResult, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	clause, args := w.where(q.Outcome, q.Backend, q.Since, nil)

	var total int
	if err := w.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chorechart_requests"+clause, args...).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("count request logs: %w", err)
	}

	query := `SELECT id, trace_id, outcome, reason, backend, cache_hit, prompt_hash, latency_ms, error_message, created_at
	FROM chorechart_requests` + clause + ` ORDER BY created_at DESC LIMIT ` + w.placeholder(len(args)+1) + ` OFFSET ` + w.placeholder(len(args)+2)
	rows, err := w.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return ListResult{}, fmt.Errorf("list request logs: %w", err)
	}
	defer rows.Close()

	result := ListResult{Data: make([]Entry, 0, q.Limit), Total: total}
	for rows.Next() {
		var (
			e                                         Entry
			traceID, reason, backend, hash, errorText sql.NullString
		)
		if err := rows.Scan(&e.ID, &traceID, &e.Outcome, &reason, &backend, &e.CacheHit, &hash, &e.LatencyMS, &errorText, &e.CreatedAt); err != nil {
			return ListResult{}, fmt.Errorf("scan request log: %w", err)
		}
		e.TraceID = traceID.String
		e.Reason = reason.String
		e.Backend = backend.String
		e.PromptHash = hash.String
		e.ErrorMessage = errorText.String
		e.CreatedAt = e.CreatedAt.UTC()
		result.Data = append(result.Data, e)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, fmt.Errorf("iterate request logs: %w", err)
	}
	return result, nil
}

// Delete removes entries created before q.Before and returns how many rows
// were removed.
func (w *SQLWriter) Delete(ctx context.Context, q MaintenanceQuery) (int64, error) {
	if q.Before == nil {
		return 0, fmt.Errorf("before is required")
	}
	clause, args := w.where(q.Outcome, "", nil, q.Before)
	res, err := w.db.ExecContext(ctx, "DELETE FROM chorechart_requests"+clause, args...)
	if err != nil {
		return 0, fmt.Errorf("delete request logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete request logs: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (w *SQLWriter) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}
