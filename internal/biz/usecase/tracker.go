package usecase

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sey-media/clientwatch/internal/biz/domain"
)

// QuestionTracker maintains the set of open client questions with deadlines.
// Terminal transitions go through the question's own compare-and-swap, so a
// reply observer and the expiry sweep racing on one question resolve to
// exactly one outcome.
type QuestionTracker struct {
	mu        sync.RWMutex
	open      map[string]*domain.TrackedQuestion // by question id
	bySource  map[string]string                  // source message id -> question id
	window    time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// NewQuestionTracker creates a tracker whose questions expire window after
// registration.
func NewQuestionTracker(window time.Duration, log zerolog.Logger) *QuestionTracker {
	return &QuestionTracker{
		open:     make(map[string]*domain.TrackedQuestion),
		bySource: make(map[string]string),
		window:   window,
		log:      log.With().Str("component", "tracker").Logger(),
		now:      time.Now,
	}
}

// SetClock overrides the tracker's clock. Test hook.
func (t *QuestionTracker) SetClock(now func() time.Time) { t.now = now }

// Register starts tracking a question found in a batch. The deadline is
// anchored to registration time, not the original message time. A question
// already tracked for the same source message is returned unchanged.
func (t *QuestionTracker) Register(f domain.QuestionFinding, channelID, channelName string) *domain.TrackedQuestion {
	t.mu.Lock()
	defer t.mu.Unlock()

	if f.SourceMessageID != "" {
		if id, ok := t.bySource[f.SourceMessageID]; ok {
			return t.open[id]
		}
	}

	now := t.now()
	q := &domain.TrackedQuestion{
		ID:              uuid.NewString(),
		ChannelID:       channelID,
		ChannelName:     channelName,
		SourceMessageID: f.SourceMessageID,
		ThreadID:        f.ThreadID,
		Text:            f.Text,
		CreatedAt:       now,
		DeadlineAt:      now.Add(t.window),
	}
	t.open[q.ID] = q
	if f.SourceMessageID != "" {
		t.bySource[f.SourceMessageID] = q.ID
	}

	t.log.Info().
		Str("question", q.ID).
		Str("channel", channelID).
		Time("deadline", q.DeadlineAt).
		Msg("tracking new question")
	return q
}

// ObserveReply checks whether a new message answers any open question.
// Only internal authors qualify; the reply must be in the question's thread,
// or, when the question has no thread linkage, in the same channel and
// created after the question. The first qualifying reply wins; the answered
// questions are returned so the caller can record the outcome.
func (t *QuestionTracker) ObserveReply(msg domain.Message) []*domain.TrackedQuestion {
	if msg.AuthorRole != domain.RoleInternal {
		return nil
	}

	var answered []*domain.TrackedQuestion
	for _, q := range t.snapshot() {
		if !t.qualifies(q, msg) {
			continue
		}
		if q.MarkAnswered() {
			t.evict(q)
			t.log.Info().
				Str("question", q.ID).
				Str("channel", q.ChannelID).
				Str("reply", msg.ID).
				Msg("question answered")
			answered = append(answered, q)
		}
	}
	return answered
}

func (t *QuestionTracker) qualifies(q *domain.TrackedQuestion, msg domain.Message) bool {
	if q.ThreadID != "" {
		return msg.ThreadID == q.ThreadID
	}
	return msg.ChannelID == q.ChannelID && msg.CreatedAt.After(q.CreatedAt)
}

// SweepExpired transitions every open question past its deadline to Expired
// and returns the newly-expired set. The transition is the question's CAS,
// so a question is reported exactly once even under concurrent sweeps.
func (t *QuestionTracker) SweepExpired(now time.Time) []*domain.TrackedQuestion {
	var expired []*domain.TrackedQuestion
	for _, q := range t.snapshot() {
		if q.DeadlineAt.After(now) {
			continue
		}
		if q.MarkExpired() {
			t.evict(q)
			t.log.Warn().
				Str("question", q.ID).
				Str("channel", q.ChannelID).
				Str("text", q.Text).
				Msg("question expired unanswered")
			expired = append(expired, q)
		}
	}
	return expired
}

// OpenCount reports how many questions are currently open.
func (t *QuestionTracker) OpenCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.open)
}

func (t *QuestionTracker) snapshot() []*domain.TrackedQuestion {
	t.mu.RLock()
	defer t.mu.RUnlock()
	qs := make([]*domain.TrackedQuestion, 0, len(t.open))
	for _, q := range t.open {
		qs = append(qs, q)
	}
	return qs
}

func (t *QuestionTracker) evict(q *domain.TrackedQuestion) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.open, q.ID)
	if q.SourceMessageID != "" {
		delete(t.bySource, q.SourceMessageID)
	}
}
