package repo

import (
	"context"
	"time"

	"github.com/sey-media/clientwatch/internal/biz/domain"
)

// Alert kinds recorded in the audit log.
const (
	AlertKindFire        = "fire"
	AlertKindTestimonial = "testimonial"
	AlertKindExpired     = "expired_question"
)

// AlertRecord is one posted alert.
type AlertRecord struct {
	ID         int64
	Kind       string
	ChannelID  string
	ClientName string
	Content    string
	CreatedAt  time.Time
}

// SkippedBatchRecord is one batch dropped after the classifier retry budget
// was exhausted.
type SkippedBatchRecord struct {
	ID           int64
	ChannelID    string
	Reason       string
	MessageCount int
	CreatedAt    time.Time
}

// QuestionRecord is the terminal outcome of one tracked question.
type QuestionRecord struct {
	ID         int64
	QuestionID string
	ChannelID  string
	Status     string
	Text       string
	DeadlineAt time.Time
	CreatedAt  time.Time
}

// AuditRepo is the append-only operational record. It is not message
// persistence: the live window and tracker state stay in memory and are
// rebuilt from zero on restart.
type AuditRepo interface {
	RecordAlert(ctx context.Context, kind, channelID, clientName, content string) error
	RecordSkippedBatch(ctx context.Context, channelID, reason string, messageCount int) error
	RecordQuestionOutcome(ctx context.Context, q *domain.TrackedQuestion) error

	RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	SkippedBatches(ctx context.Context, limit int) ([]SkippedBatchRecord, error)
	QuestionHistory(ctx context.Context, limit int) ([]QuestionRecord, error)

	Close() error
}
