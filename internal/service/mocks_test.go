package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sey-media/clientwatch/internal/biz/domain"
	"github.com/sey-media/clientwatch/internal/biz/repo"
)

var testLog = zerolog.Nop()

type fakeClassifier struct {
	mu       sync.Mutex
	calls    int
	fail     bool
	findings []*domain.Finding // consumed in order; last one repeats
}

func (f *fakeClassifier) Classify(_ context.Context, _ string) (*domain.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, errors.New("upstream unavailable")
	}
	if len(f.findings) == 0 {
		return &domain.Finding{}, nil
	}
	finding := f.findings[0]
	if len(f.findings) > 1 {
		f.findings = f.findings[1:]
	}
	return finding, nil
}

func (f *fakeClassifier) Summarize(_ context.Context, _ string) (string, error) {
	return "summary", nil
}

type sentMessage struct {
	Sink    string
	Content string
}

type fakePlatform struct {
	mu        sync.Mutex
	alerts    []sentMessage
	summaries []sentMessage
	roles     map[string]domain.AuthorRole
	history   []domain.Message
}

func (f *fakePlatform) LookupAuthorRole(_ context.Context, userID, _ string) (domain.AuthorRole, error) {
	if role, ok := f.roles[userID]; ok {
		return role, nil
	}
	return domain.RoleUnknown, nil
}

func (f *fakePlatform) PostAlert(_ context.Context, sink, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, sentMessage{Sink: sink, Content: content})
	return nil
}

func (f *fakePlatform) PostSummary(_ context.Context, sink, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, sentMessage{Sink: sink, Content: content})
	return nil
}

func (f *fakePlatform) BuildLink(channelID, messageID string) string {
	return "https://chat.example.com/" + channelID + "/" + messageID
}

func (f *fakePlatform) ChannelHistory(_ context.Context, _ string, _ time.Time) ([]domain.Message, error) {
	return f.history, nil
}

func (f *fakePlatform) alertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

type fakeMetadata struct {
	channels map[string]repo.ChannelMeta
}

func (f *fakeMetadata) IsMonitored(channelID string) bool {
	_, ok := f.channels[channelID]
	return ok
}

func (f *fakeMetadata) ChannelNameFor(channelID string) string {
	return f.channels[channelID].ChannelName
}

func (f *fakeMetadata) ClientNameFor(channelID string) string {
	return f.channels[channelID].ClientName
}

func (f *fakeMetadata) RoleFor(_, _ string) domain.AuthorRole {
	return domain.RoleUnknown
}

func (f *fakeMetadata) MonitoredChannels() []repo.ChannelMeta {
	var out []repo.ChannelMeta
	for _, ch := range f.channels {
		out = append(out, ch)
	}
	return out
}

type fakeAudit struct {
	mu        sync.Mutex
	alerts    []repo.AlertRecord
	skipped   []repo.SkippedBatchRecord
	questions []repo.QuestionRecord
}

func (f *fakeAudit) RecordAlert(_ context.Context, kind, channelID, clientName, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, repo.AlertRecord{Kind: kind, ChannelID: channelID, ClientName: clientName, Content: content})
	return nil
}

func (f *fakeAudit) RecordSkippedBatch(_ context.Context, channelID, reason string, messageCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skipped = append(f.skipped, repo.SkippedBatchRecord{ChannelID: channelID, Reason: reason, MessageCount: messageCount})
	return nil
}

func (f *fakeAudit) RecordQuestionOutcome(_ context.Context, q *domain.TrackedQuestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, repo.QuestionRecord{QuestionID: q.ID, ChannelID: q.ChannelID, Text: q.Text, Status: q.Status().String()})
	return nil
}

func (f *fakeAudit) RecentAlerts(_ context.Context, _ int) ([]repo.AlertRecord, error) {
	return f.alerts, nil
}

func (f *fakeAudit) SkippedBatches(_ context.Context, _ int) ([]repo.SkippedBatchRecord, error) {
	return f.skipped, nil
}

func (f *fakeAudit) QuestionHistory(_ context.Context, _ int) ([]repo.QuestionRecord, error) {
	return f.questions, nil
}

func (f *fakeAudit) Close() error { return nil }
