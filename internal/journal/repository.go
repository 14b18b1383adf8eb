package journal

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cutpilot/cutpilot-agent/internal/db"
)

type Repository interface {
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	CreateRun(ctx context.Context, run *Run) error
	UpdateRunTools(ctx context.Context, id, sessionID string, tools []string) error
	FinishRun(ctx context.Context, id, status, responseText, errMsg string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	RecordCommands(ctx context.Context, runID string, records []CommandRecord) error
	ListCommands(ctx context.Context, runID string) ([]CommandRecord, error)

	RecordDecision(ctx context.Context, rec DecisionRecord) error
	ListDecisions(ctx context.Context, runID string) ([]DecisionRecord, error)
}

// timeLayout has a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db   *sql.DB
	pool *db.DB
}

func NewRepository(database *db.DB) *SQLiteRepository {
	return &SQLiteRepository{db: database.Conn(), pool: database}
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = run.CreatedAt
	if run.Status == "" {
		run.Status = StatusRunning
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, session_id, message, tools, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.SessionID, run.Message, strings.Join(run.Tools, ","), run.Status,
		run.CreatedAt.UTC().Format(timeLayout), run.UpdatedAt.UTC().Format(timeLayout))
	return err
}

// FinishRun sets the final status of a run.
func (r *SQLiteRepository) FinishRun(ctx context.Context, id, status, responseText, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, response_text = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, status, nullString(responseText), nullString(errMsg), time.Now().UTC().Format(timeLayout), id)
	return err
}

// UpdateRunTools records the tools the intent step asked for and the
// session id the service answered with.
func (r *SQLiteRepository) UpdateRunTools(ctx context.Context, id, sessionID string, tools []string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs SET session_id = ?, tools = ?, updated_at = ? WHERE id = ?
	`, sessionID, strings.Join(tools, ","), time.Now().UTC().Format(timeLayout), id)
	return err
}

const runColumns = `id, session_id, message, tools, status, response_text, error, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var tools string
	var responseText, errMsg sql.NullString
	var createdAt, updatedAt string

	if err := s.Scan(&run.ID, &run.SessionID, &run.Message, &tools, &run.Status, &responseText, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if tools != "" {
		run.Tools = strings.Split(tools, ",")
	}
	run.ResponseText = responseText.String
	run.Error = errMsg.String
	run.CreatedAt = parseTime(createdAt)
	run.UpdatedAt = parseTime(updatedAt)
	return &run, nil
}

func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordCommands stores all command outcomes of a run in one transaction.
func (r *SQLiteRepository) RecordCommands(ctx context.Context, runID string, records []CommandRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.pool.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO run_commands (run_id, idx, action, status, applied, failed, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, idx) DO UPDATE SET
				action = excluded.action, status = excluded.status,
				applied = excluded.applied, failed = excluded.failed, error = excluded.error
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, rec := range records {
			if _, err := stmt.ExecContext(ctx, runID, rec.Index, rec.Action, rec.Status, rec.Applied, rec.Failed, nullString(rec.Error)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) ListCommands(ctx context.Context, runID string) ([]CommandRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, idx, action, status, applied, failed, error
		FROM run_commands WHERE run_id = ? ORDER BY idx
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CommandRecord
	for rows.Next() {
		var rec CommandRecord
		var errMsg sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.Index, &rec.Action, &rec.Status, &rec.Applied, &rec.Failed, &errMsg); err != nil {
			return nil, err
		}
		rec.Error = errMsg.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) RecordDecision(ctx context.Context, rec DecisionRecord) error {
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO review_decisions (run_id, idx, start_seconds, end_seconds, decision, decided_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, idx) DO UPDATE SET decision = excluded.decision, decided_at = excluded.decided_at
	`, rec.RunID, rec.Index, rec.Start, rec.End, rec.Decision, rec.DecidedAt.UTC().Format(timeLayout))
	return err
}

func (r *SQLiteRepository) ListDecisions(ctx context.Context, runID string) ([]DecisionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, idx, start_seconds, end_seconds, decision, decided_at
		FROM review_decisions WHERE run_id = ? ORDER BY idx
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var decidedAt string
		if err := rows.Scan(&rec.RunID, &rec.Index, &rec.Start, &rec.End, &rec.Decision, &decidedAt); err != nil {
			return nil, err
		}
		rec.DecidedAt = parseTime(decidedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
