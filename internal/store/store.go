// Package store provides the SQLite run log and its model types.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/costwise/costwise/internal/orchestrator"
)

// DB wraps *sql.DB and provides migration support.
type DB struct {
	*sql.DB
}

// New opens a SQLite connection with WAL mode and foreign keys enabled.
// Driver name is "sqlite" (modernc.org/sqlite, not mattn/go-sqlite3).
func New(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_journal=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store.New: open: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("store.New: ping: %w", err)
	}
	// Limit to 1 writer at a time to avoid SQLITE_BUSY in WAL mode.
	sqlDB.SetMaxOpenConns(1)
	return &DB{sqlDB}, nil
}

// Migrate runs all CREATE TABLE IF NOT EXISTS migrations exactly once per
// schema version.
func (d *DB) Migrate() error {
	// Settings table first; it holds schema_version.
	if _, err := d.Exec(ddlSettings); err != nil {
		return fmt.Errorf("store.Migrate: settings table: %w", err)
	}

	// Seed user-facing defaults. INSERT OR IGNORE is idempotent —
	// existing values are never overwritten.
	defaults := []struct{ k, v string }{
		{"retention_days", "0"},
		{"digest_enabled", "1"},
	}
	for _, s := range defaults {
		if _, err := d.Exec(`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, s.k, s.v); err != nil {
			return fmt.Errorf("store.Migrate: seed setting %q: %w", s.k, err)
		}
	}

	var version int
	row := d.QueryRow(`SELECT value FROM settings WHERE key='schema_version' LIMIT 1`)
	_ = row.Scan(&version) // Row may not exist yet (version=0).

	if version >= schemaVersion {
		return nil
	}

	if _, err := d.Exec(ddlTaskRuns); err != nil {
		return fmt.Errorf("store.Migrate: %w", err)
	}

	_, err := d.Exec(`INSERT INTO settings (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, schemaVersion)
	if err != nil {
		return fmt.Errorf("store.Migrate: schema_version upsert: %w", err)
	}
	return nil
}

const schemaVersion = 1

// timeFormat keeps timestamps lexicographically sortable in SQLite.
const timeFormat = time.RFC3339

// ── Model Types ──────────────────────────────────────────────────────────────

// Run is one finalized run as stored in the task_runs table.
type Run struct {
	ID                 int64           `json:"id"`
	TraceID            string          `json:"trace_id"`
	Timestamp          string          `json:"timestamp"`
	Model              string          `json:"model"`
	OriginalModel      string          `json:"original_model,omitempty"`
	RouterReason       string          `json:"router_reason"`
	TaskLevel          int             `json:"task_level"`
	PromptTokens       int             `json:"prompt_tokens"`
	OutputTokens       int             `json:"output_tokens"`
	PromptCost         float64         `json:"prompt_cost"`
	CompletionCost     float64         `json:"completion_cost"`
	TotalCost          float64         `json:"total_cost"`
	Budget             float64         `json:"budget"`
	BudgetExceeded     bool            `json:"budget_exceeded"`
	CompressedPrompt   string          `json:"compressed_prompt"`
	Response           string          `json:"response,omitempty"`
	ActualCost         sql.NullFloat64 `json:"-"`
	ActualOutputTokens sql.NullInt64   `json:"-"`
	QualityScore       sql.NullInt64   `json:"-"`
	QualityReason      string          `json:"quality_reason,omitempty"`
	QualityFailOpen    bool            `json:"quality_fail_open,omitempty"`
	QualityRetries     int             `json:"quality_retries"`
	Status             string          `json:"status"`
	ErrorCode          string          `json:"error_code,omitempty"`
	TenantID           string          `json:"tenant_id,omitempty"`
	CallerID           string          `json:"caller_id,omitempty"`
	Quotes             json.RawMessage `json:"quotes,omitempty"`
}

// MarshalJSON flattens the nullable columns so API consumers see plain
// values or null instead of the sql.Null wrappers.
func (r Run) MarshalJSON() ([]byte, error) {
	type alias Run
	out := struct {
		alias
		ActualCost         *float64 `json:"actual_cost"`
		ActualOutputTokens *int64   `json:"actual_output_tokens,omitempty"`
		QualityScore       *int64   `json:"quality_score,omitempty"`
	}{alias: alias(r)}
	if r.ActualCost.Valid {
		out.ActualCost = &r.ActualCost.Float64
	}
	if r.ActualOutputTokens.Valid {
		out.ActualOutputTokens = &r.ActualOutputTokens.Int64
	}
	if r.QualityScore.Valid {
		out.QualityScore = &r.QualityScore.Int64
	}
	return json.Marshal(out)
}

// Stats aggregates run activity over a window.
type Stats struct {
	Runs       int     `json:"runs"`
	TotalCost  float64 `json:"total_cost"`
	Escalated  int     `json:"escalated"`
	Errors     int     `json:"errors"`
	OverBudget int     `json:"over_budget"`
}

// ── DDL Statements ───────────────────────────────────────────────────────────

const ddlSettings = `CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);`

const ddlTaskRuns = `CREATE TABLE IF NOT EXISTS task_runs (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id             TEXT    NOT NULL DEFAULT '',
	timestamp            TEXT    NOT NULL,
	model                TEXT    NOT NULL,
	original_model       TEXT    NOT NULL DEFAULT '',
	router_reason        TEXT    NOT NULL DEFAULT '',
	task_level           INTEGER NOT NULL DEFAULT 1,
	prompt_tokens        INTEGER NOT NULL DEFAULT 0,
	output_tokens        INTEGER NOT NULL DEFAULT 0,
	prompt_cost          REAL    NOT NULL DEFAULT 0,
	completion_cost      REAL    NOT NULL DEFAULT 0,
	total_cost           REAL    NOT NULL DEFAULT 0,
	budget               REAL    NOT NULL DEFAULT 0,
	budget_exceeded      INTEGER NOT NULL DEFAULT 0,
	compressed_prompt    TEXT    NOT NULL DEFAULT '',
	response             TEXT    NOT NULL DEFAULT '',
	actual_cost          REAL,
	actual_output_tokens INTEGER,
	quality_score        INTEGER,
	quality_reason       TEXT    NOT NULL DEFAULT '',
	quality_fail_open    INTEGER NOT NULL DEFAULT 0,
	quality_retries      INTEGER NOT NULL DEFAULT 0,
	status               TEXT    NOT NULL DEFAULT 'ok',
	error_code           TEXT    NOT NULL DEFAULT '',
	tenant_id            TEXT    NOT NULL DEFAULT '',
	caller_id            TEXT    NOT NULL DEFAULT '',
	quotes               TEXT    NOT NULL DEFAULT '[]'
);`

// ── Run Log ──────────────────────────────────────────────────────────────────

const runColumns = `id, trace_id, timestamp, model, original_model, router_reason,
	task_level, prompt_tokens, output_tokens, prompt_cost, completion_cost,
	total_cost, budget, budget_exceeded, compressed_prompt, response,
	actual_cost, actual_output_tokens, quality_score, quality_reason,
	quality_fail_open, quality_retries, status, error_code, tenant_id,
	caller_id, quotes`

// InsertRun persists one finalized record. The write is a single INSERT,
// so readers never observe a partial run.
func (d *DB) InsertRun(ctx context.Context, rec *orchestrator.RunRecord) (int64, error) {
	quotes, err := json.Marshal(rec.Quotes)
	if err != nil {
		return 0, fmt.Errorf("store.InsertRun: quotes: %w", err)
	}
	ts := rec.StartedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	var actualCost sql.NullFloat64
	if rec.ActualCost != nil {
		actualCost = sql.NullFloat64{Float64: *rec.ActualCost, Valid: true}
	}
	var actualTokens sql.NullInt64
	if rec.ActualOutputTokens != nil {
		actualTokens = sql.NullInt64{Int64: int64(*rec.ActualOutputTokens), Valid: true}
	}
	var score sql.NullInt64
	if rec.QualityScore != nil {
		score = sql.NullInt64{Int64: int64(*rec.QualityScore), Valid: true}
	}

	res, err := d.ExecContext(ctx, `INSERT INTO task_runs (
		trace_id, timestamp, model, original_model, router_reason,
		task_level, prompt_tokens, output_tokens, prompt_cost, completion_cost,
		total_cost, budget, budget_exceeded, compressed_prompt, response,
		actual_cost, actual_output_tokens, quality_score, quality_reason,
		quality_fail_open, quality_retries, status, error_code, tenant_id,
		caller_id, quotes
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.TraceID, ts.UTC().Format(timeFormat), rec.Model, rec.OriginalModel, rec.RouterReason,
		rec.Tier, rec.PromptTokens, rec.OutputTokens, rec.PromptCost, rec.CompletionCost,
		rec.TotalCost, rec.Budget, boolInt(rec.BudgetExceeded), rec.CompressedPrompt, rec.Response,
		actualCost, actualTokens, score, rec.QualityReason,
		boolInt(rec.QualityFailOpen), rec.QualityRetries, rec.Status, rec.ErrorCode, rec.TenantID,
		rec.CallerID, string(quotes),
	)
	if err != nil {
		return 0, fmt.Errorf("store.InsertRun: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store.InsertRun: last id: %w", err)
	}
	return id, nil
}

// RecentRuns returns the most recent runs, newest first.
func (d *DB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := d.QueryContext(ctx,
		`SELECT `+runColumns+` FROM task_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store.RecentRuns: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store.RecentRuns: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store.RecentRuns: %w", err)
	}
	return runs, nil
}

// GetRun returns a single run by row id.
func (d *DB) GetRun(ctx context.Context, id int64) (Run, error) {
	rows, err := d.QueryContext(ctx,
		`SELECT `+runColumns+` FROM task_runs WHERE id = ?`, id)
	if err != nil {
		return Run{}, fmt.Errorf("store.GetRun: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Run{}, fmt.Errorf("store.GetRun: %w", err)
		}
		return Run{}, sql.ErrNoRows
	}
	r, err := scanRun(rows)
	if err != nil {
		return Run{}, fmt.Errorf("store.GetRun: %w", err)
	}
	return r, nil
}

// CumulativeCost sums total_cost across every logged run.
func (d *DB) CumulativeCost(ctx context.Context) (float64, error) {
	var total float64
	err := d.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_cost), 0.0) FROM task_runs`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("store.CumulativeCost: %w", err)
	}
	return total, nil
}

// CostSince sums total_cost of runs whose timestamp is at or after since.
func (d *DB) CostSince(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	err := d.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_cost), 0.0) FROM task_runs WHERE timestamp >= ?`,
		since.UTC().Format(timeFormat)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("store.CostSince: %w", err)
	}
	return total, nil
}

// StatsSince aggregates run counts and spend at or after since.
func (d *DB) StatsSince(ctx context.Context, since time.Time) (Stats, error) {
	var s Stats
	err := d.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(total_cost), 0.0),
		COALESCE(SUM(CASE WHEN quality_retries > 0 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(budget_exceeded), 0)
	FROM task_runs WHERE timestamp >= ?`,
		since.UTC().Format(timeFormat)).
		Scan(&s.Runs, &s.TotalCost, &s.Escalated, &s.Errors, &s.OverBudget)
	if err != nil {
		return Stats{}, fmt.Errorf("store.StatsSince: %w", err)
	}
	return s, nil
}

// DeleteRunsBefore removes runs older than cutoff and returns how many
// rows went away. Used by the retention job.
func (d *DB) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.ExecContext(ctx,
		`DELETE FROM task_runs WHERE timestamp < ?`, cutoff.UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("store.DeleteRunsBefore: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store.DeleteRunsBefore: rows affected: %w", err)
	}
	return n, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		r      Run
		budgEx int
		failOp int
		quotes string
	)
	err := rows.Scan(
		&r.ID, &r.TraceID, &r.Timestamp, &r.Model, &r.OriginalModel, &r.RouterReason,
		&r.TaskLevel, &r.PromptTokens, &r.OutputTokens, &r.PromptCost, &r.CompletionCost,
		&r.TotalCost, &r.Budget, &budgEx, &r.CompressedPrompt, &r.Response,
		&r.ActualCost, &r.ActualOutputTokens, &r.QualityScore, &r.QualityReason,
		&failOp, &r.QualityRetries, &r.Status, &r.ErrorCode, &r.TenantID,
		&r.CallerID, &quotes,
	)
	if err != nil {
		return Run{}, err
	}
	r.BudgetExceeded = budgEx != 0
	r.QualityFailOpen = failOp != 0
	r.Quotes = json.RawMessage(quotes)
	return r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ── Settings ─────────────────────────────────────────────────────────────────

// GetSetting retrieves a settings value by key, returning fallback if not found.
func (d *DB) GetSetting(key, fallback string) string {
	var v string
	if err := d.QueryRow(`SELECT value FROM settings WHERE key=?`, key).Scan(&v); err != nil {
		return fallback
	}
	return v
}

// SetSetting upserts a settings key-value pair.
func (d *DB) SetSetting(key, value string) error {
	_, err := d.Exec(
		`INSERT INTO settings (key, value) VALUES (?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("store.SetSetting: %w", err)
	}
	return nil
}
