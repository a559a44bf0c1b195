// Package store provides SQLite-backed persistence for orange.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/orange/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultListLimit caps list queries that are given no limit.
const DefaultListLimit = 50

// Store provides access to the orange SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		transcript TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL,
		reason TEXT,
		risk_level TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS safety_decisions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		category TEXT NOT NULL,
		decision TEXT NOT NULL,
		approval_mode TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		timestamp DATETIME NOT NULL
	);

	CREATE TRIGGER IF NOT EXISTS safety_decisions_no_update
	BEFORE UPDATE ON safety_decisions
	BEGIN
		SELECT RAISE(ABORT, 'safety decisions are append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS safety_decisions_no_delete
	BEFORE DELETE ON safety_decisions
	BEGIN
		SELECT RAISE(ABORT, 'safety decisions are append-only');
	END;

	CREATE TABLE IF NOT EXISTS action_runs (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		action_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		latency_ms INTEGER NOT NULL,
		error_code TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS telemetry_events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		status TEXT NOT NULL,
		app TEXT,
		action_kind TEXT,
		latency_ms INTEGER,
		error_code TEXT,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
	CREATE INDEX IF NOT EXISTS idx_safety_decisions_session_id ON safety_decisions(session_id);
	CREATE INDEX IF NOT EXISTS idx_action_runs_session_id ON action_runs(session_id);
	CREATE INDEX IF NOT EXISTS idx_telemetry_events_session_id ON telemetry_events(session_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// --- Session Operations ---

// SaveSession inserts or updates a session record. CreatedAt is kept from
// the first save.
func (s *Store) SaveSession(ctx context.Context, rec models.SessionRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, transcript, state, reason, risk_level, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			transcript = excluded.transcript,
			state = excluded.state,
			reason = excluded.reason,
			risk_level = excluded.risk_level,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Transcript, rec.State, rec.Reason, rec.RiskLevel, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID. It returns nil if none exists.
func (s *Store) GetSession(ctx context.Context, id string) (*models.SessionRecord, error) {
	rec := &models.SessionRecord{}
	var reason, risk sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, transcript, state, reason, risk_level, created_at, updated_at FROM sessions WHERE id = ?`,
		id,
	).Scan(&rec.ID, &rec.Transcript, &rec.State, &reason, &risk, &rec.CreatedAt, &rec.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	rec.Reason = reason.String
	rec.RiskLevel = models.RiskLevel(risk.String)
	return rec, nil
}

// ListSessions returns the most recently updated sessions first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]models.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, transcript, state, reason, risk_level, created_at, updated_at
		 FROM sessions ORDER BY updated_at DESC LIMIT ?`,
		limitOrDefault(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []models.SessionRecord
	for rows.Next() {
		var rec models.SessionRecord
		var reason, risk sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Transcript, &rec.State, &reason, &risk, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.Reason = reason.String
		rec.RiskLevel = models.RiskLevel(risk.String)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- Safety Decision Operations ---

// AppendDecision inserts a safety decision. Decisions are never updated or
// deleted; the schema rejects both.
func (s *Store) AppendDecision(ctx context.Context, rec models.SafetyDecisionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO safety_decisions (id, session_id, category, decision, approval_mode, inputs_hash, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Category, rec.Decision, rec.ApprovalMode, rec.InputsHash, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert safety decision: %w", err)
	}
	return nil
}

// ListDecisions returns the newest limit decisions, oldest first. An empty
// sessionID lists every session.
func (s *Store) ListDecisions(ctx context.Context, sessionID string, limit int) ([]models.SafetyDecisionRecord, error) {
	query := `SELECT id, session_id, category, decision, approval_mode, inputs_hash, timestamp FROM safety_decisions`
	var args []interface{}
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY timestamp DESC, rowid DESC LIMIT ?"
	args = append(args, limitOrDefault(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query safety decisions: %w", err)
	}
	defer rows.Close()

	var out []models.SafetyDecisionRecord
	for rows.Next() {
		var rec models.SafetyDecisionRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Category, &rec.Decision, &rec.ApprovalMode, &rec.InputsHash, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan safety decision: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// --- Action Run Operations ---

// RecordActionRun inserts the outcome of one executed action.
func (s *Store) RecordActionRun(ctx context.Context, run models.ActionRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO action_runs (id, session_id, action_id, kind, status, latency_ms, error_code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SessionID, run.ActionID, run.Kind, run.Status, run.LatencyMs, run.ErrorCode, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert action run: %w", err)
	}
	return nil
}

// ListActionRuns returns the runs of a session in execution order.
func (s *Store) ListActionRuns(ctx context.Context, sessionID string) ([]models.ActionRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, action_id, kind, status, latency_ms, error_code, created_at
		 FROM action_runs WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query action runs: %w", err)
	}
	defer rows.Close()

	var out []models.ActionRun
	for rows.Next() {
		var run models.ActionRun
		var code sql.NullString
		if err := rows.Scan(&run.ID, &run.SessionID, &run.ActionID, &run.Kind, &run.Status, &run.LatencyMs, &code, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action run: %w", err)
		}
		run.ErrorCode = code.String
		out = append(out, run)
	}
	return out, rows.Err()
}

// --- Telemetry Operations ---

// RecordTelemetry stores a telemetry event locally.
func (s *Store) RecordTelemetry(ctx context.Context, ev models.TelemetryEvent) error {
	var latency sql.NullInt64
	if ev.LatencyMs != nil {
		latency = sql.NullInt64{Int64: *ev.LatencyMs, Valid: true}
	}
	ts := ev.Timestamp
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO telemetry_events (id, session_id, stage, status, app, action_kind, latency_ms, error_code, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), ev.SessionID, ev.Stage, ev.Status, ev.App, ev.ActionKind, latency, ev.ErrorCode, ts,
	)
	if err != nil {
		return fmt.Errorf("insert telemetry event: %w", err)
	}
	return nil
}

// ListTelemetry returns the stored events of a session in arrival order.
func (s *Store) ListTelemetry(ctx context.Context, sessionID string) ([]models.TelemetryEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, stage, status, app, action_kind, latency_ms, error_code, timestamp
		 FROM telemetry_events WHERE session_id = ? ORDER BY rowid ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query telemetry: %w", err)
	}
	defer rows.Close()

	var out []models.TelemetryEvent
	for rows.Next() {
		var ev models.TelemetryEvent
		var app, kind, code sql.NullString
		var latency sql.NullInt64
		if err := rows.Scan(&ev.SessionID, &ev.Stage, &ev.Status, &app, &kind, &latency, &code, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan telemetry: %w", err)
		}
		ev.App, ev.ActionKind, ev.ErrorCode = app.String, kind.String, code.String
		if latency.Valid {
			v := latency.Int64
			ev.LatencyMs = &v
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
