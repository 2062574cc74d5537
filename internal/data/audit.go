package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sey-media/clientwatch/internal/biz/domain"
	"github.com/sey-media/clientwatch/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// auditRepo implements the audit log repository on sqlite. The log is
// append-only operational history: posted alerts, skipped batches, and
// question outcomes. The live message window never touches it.
type auditRepo struct {
	db *sql.DB
}

// NewAuditRepo opens (and if needed creates) the audit database.
func NewAuditRepo(dbPath string) (repo.AuditRepo, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			client_name TEXT,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create alerts table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS skipped_batches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id TEXT NOT NULL,
			reason TEXT,
			message_count INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create skipped_batches table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS question_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			question_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			text TEXT NOT NULL,
			status TEXT NOT NULL,
			deadline_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create question_events table: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_questions_created ON question_events(created_at)`)

	return &auditRepo{db: db}, nil
}

// RecordAlert appends a posted alert.
func (r *auditRepo) RecordAlert(ctx context.Context, kind, channelID, clientName, content string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (kind, channel_id, client_name, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, kind, channelID, clientName, content, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record alert: %w", err)
	}
	return nil
}

// RecordSkippedBatch appends a batch dropped after classification failed.
func (r *auditRepo) RecordSkippedBatch(ctx context.Context, channelID, reason string, messageCount int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO skipped_batches (channel_id, reason, message_count, created_at)
		VALUES (?, ?, ?, ?)
	`, channelID, reason, messageCount, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record skipped batch: %w", err)
	}
	return nil
}

// RecordQuestionOutcome appends a question's terminal state.
func (r *auditRepo) RecordQuestionOutcome(ctx context.Context, q *domain.TrackedQuestion) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO question_events (question_id, channel_id, text, status, deadline_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, q.ID, q.ChannelID, q.Text, q.Status().String(), q.DeadlineAt.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record question outcome: %w", err)
	}
	return nil
}

// RecentAlerts returns the newest alerts, most recent first.
func (r *auditRepo) RecentAlerts(ctx context.Context, limit int) ([]repo.AlertRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, channel_id, client_name, content, created_at
		FROM alerts
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var records []repo.AlertRecord
	for rows.Next() {
		var rec repo.AlertRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.ChannelID, &rec.ClientName, &rec.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SkippedBatches returns the newest skipped-batch records, most recent first.
func (r *auditRepo) SkippedBatches(ctx context.Context, limit int) ([]repo.SkippedBatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, channel_id, reason, message_count, created_at
		FROM skipped_batches
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query skipped batches: %w", err)
	}
	defer rows.Close()

	var records []repo.SkippedBatchRecord
	for rows.Next() {
		var rec repo.SkippedBatchRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.ChannelID, &rec.Reason, &rec.MessageCount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan skipped batch: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// QuestionHistory returns the newest question outcomes, most recent first.
func (r *auditRepo) QuestionHistory(ctx context.Context, limit int) ([]repo.QuestionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, question_id, channel_id, text, status, deadline_at, created_at
		FROM question_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query question events: %w", err)
	}
	defer rows.Close()

	var records []repo.QuestionRecord
	for rows.Next() {
		var rec repo.QuestionRecord
		var deadlineAt, createdAt int64
		if err := rows.Scan(&rec.ID, &rec.QuestionID, &rec.ChannelID, &rec.Text, &rec.Status, &deadlineAt, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan question event: %w", err)
		}
		rec.DeadlineAt = time.Unix(deadlineAt, 0)
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database connection.
func (r *auditRepo) Close() error {
	return r.db.Close()
}
