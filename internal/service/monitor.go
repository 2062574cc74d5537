package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sey-media/clientwatch/internal/biz/domain"
	"github.com/sey-media/clientwatch/internal/biz/repo"
	"github.com/sey-media/clientwatch/internal/biz/usecase"
)

// Monitor is the ingestion path: every message from the platform passes
// through here on its way into the per-channel window. It filters what should
// never reach the core (empty text, unmonitored channels), resolves author
// roles, and feeds internal replies to the question tracker.
type Monitor struct {
	registry *usecase.BufferRegistry
	tracker  *usecase.QuestionTracker
	metadata repo.MetadataRepo
	platform repo.PlatformRepo
	audit    repo.AuditRepo
	log      zerolog.Logger

	// Redelivery cache: a message id seen again is an edit of the original.
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time
	seenTTL    time.Duration
}

// NewMonitor creates the ingestion service.
func NewMonitor(
	registry *usecase.BufferRegistry,
	tracker *usecase.QuestionTracker,
	metadata repo.MetadataRepo,
	platform repo.PlatformRepo,
	audit repo.AuditRepo,
	log zerolog.Logger,
) *Monitor {
	return &Monitor{
		registry: registry,
		tracker:  tracker,
		metadata: metadata,
		platform: platform,
		audit:    audit,
		log:      log.With().Str("component", "monitor").Logger(),
		seenMsgs: make(map[string]time.Time),
		seenTTL:  15 * time.Minute,
	}
}

// Ingest processes one incoming message. Messages with no text and messages
// from unmonitored channels never reach the window. A message id arriving a
// second time is an edit: it supersedes the buffered original and is not
// re-checked as a question reply.
func (m *Monitor) Ingest(ctx context.Context, msg domain.Message) {
	if msg.Text == "" {
		return
	}
	if !m.metadata.IsMonitored(msg.ChannelID) {
		m.log.Debug().Str("channel", msg.ChannelID).Msg("channel not monitored, dropping message")
		return
	}
	if msg.ChannelName == "" {
		msg.ChannelName = m.metadata.ChannelNameFor(msg.ChannelID)
	}

	isEdit := m.markSeen(msg.ID)
	if isEdit {
		msg.EditOf = msg.ID
	}

	if msg.AuthorRole == "" {
		role, err := m.platform.LookupAuthorRole(ctx, msg.AuthorID, msg.ChannelID)
		if err != nil {
			role = domain.RoleUnknown
		}
		msg.AuthorRole = role
	}

	m.registry.Append(msg)
	m.log.Debug().
		Str("channel", msg.ChannelID).
		Str("msg", msg.ID).
		Str("role", string(msg.AuthorRole)).
		Bool("edit", isEdit).
		Msg("message buffered")

	if isEdit {
		return
	}

	for _, q := range m.tracker.ObserveReply(msg) {
		if err := m.audit.RecordQuestionOutcome(ctx, q); err != nil {
			m.log.Error().Err(err).Str("question", q.ID).Msg("failed to record answered question")
		}
	}
}

// markSeen records a message id and reports whether it was already known.
func (m *Monitor) markSeen(msgID string) bool {
	m.seenMsgsMu.Lock()
	defer m.seenMsgsMu.Unlock()

	_, seen := m.seenMsgs[msgID]
	m.seenMsgs[msgID] = time.Now()

	cutoff := time.Now().Add(-m.seenTTL)
	for id, ts := range m.seenMsgs {
		if ts.Before(cutoff) {
			delete(m.seenMsgs, id)
		}
	}
	return seen
}
