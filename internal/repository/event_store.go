package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"TokenLens/internal/domain/models"
	domrepo "TokenLens/internal/domain/repository"
	applogger "TokenLens/pkg/logger"
)

const eventColumns = "id, at, report_id, token_key, stage, capability, provider, cache_status, elapsed_ms, outcome, error_kind"

// insertChunk bounds rows per multi-row INSERT.
const insertChunk = 2000

// ClickHouseEventStore keeps fetch events in a MergeTree table for audit
// and latency analysis.
type ClickHouseEventStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewClickHouseEventStore(db *sql.DB, table string, l *applogger.Logger) *ClickHouseEventStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseEventStore{db: db, table: table, l: l}
}

var _ domrepo.Storage = (*ClickHouseEventStore)(nil)

// EventSchema returns the idempotent DDL for the events table.
func EventSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id String,
            at DateTime64(3, 'UTC'),
            report_id String,
            token_key LowCardinality(String),
            stage LowCardinality(String),
            capability LowCardinality(String),
            provider LowCardinality(String),
            cache_status LowCardinality(String),
            elapsed_ms Int64,
            outcome LowCardinality(String),
            error_kind LowCardinality(String)
        ) ENGINE = MergeTree
        PARTITION BY toYYYYMMDD(at)
        ORDER BY (token_key, capability, at)
        TTL toDateTime(at) + INTERVAL 30 DAY
    `, table)}
}

func (s *ClickHouseEventStore) Init(ctx context.Context) error {
	for _, stmt := range EventSchema(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *ClickHouseEventStore) Store(ctx context.Context, e *models.Event) error {
	return s.StoreBatch(ctx, []*models.Event{e})
}

func (s *ClickHouseEventStore) StoreBatch(ctx context.Context, events []*models.Event) error {
	for start := 0; start < len(events); start += insertChunk {
		end := start + insertChunk
		if end > len(events) {
			end = len(events)
		}
		q, args := buildInsert(s.table, events[start:end])
		if len(args) == 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse insert events failed",
				applogger.String("table", s.table),
				applogger.Int("rows", len(args)/11),
				applogger.Error(err),
			)
			return fmt.Errorf("insert events: %w", err)
		}
	}
	return nil
}

// buildInsert renders a multi-row INSERT, skipping events without an ID or
// token.
func buildInsert(table string, events []*models.Event) (string, []interface{}) {
	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*11)
	for _, e := range events {
		if e == nil || e.ID == "" || e.TokenKey == "" {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			e.ID,
			e.At.UTC(),
			e.ReportID,
			e.TokenKey,
			e.Stage,
			string(e.Capability),
			e.Provider,
			string(e.CacheStatus),
			e.ElapsedMs,
			string(e.Outcome),
			string(e.ErrorKind),
		)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, eventColumns, strings.Join(values, ","))
	return q, args
}

// Query returns the newest events of one token within [from, to].
func (s *ClickHouseEventStore) Query(ctx context.Context, tokenKey string, from, to time.Time, limit int) ([]*models.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE token_key = ? AND at >= ? AND at <= ? ORDER BY at DESC LIMIT ?", eventColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, tokenKey, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		var (
			e                                   models.Event
			capability, status, outcome, errKnd string
		)
		if err := rows.Scan(&e.ID, &e.At, &e.ReportID, &e.TokenKey, &e.Stage, &capability,
			&e.Provider, &status, &e.ElapsedMs, &outcome, &errKnd); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Capability = models.Capability(capability)
		e.CacheStatus = models.CacheStatus(status)
		e.Outcome = models.Status(outcome)
		e.ErrorKind = models.ErrorKind(errKnd)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *ClickHouseEventStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

