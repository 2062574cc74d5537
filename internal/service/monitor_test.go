package service

import (
	"context"
	"testing"
	"time"

	"github.com/sey-media/clientwatch/internal/biz/domain"
	"github.com/sey-media/clientwatch/internal/biz/repo"
	"github.com/sey-media/clientwatch/internal/biz/usecase"
)

func newTestMonitor(platform *fakePlatform, audit *fakeAudit) (*Monitor, *usecase.BufferRegistry, *usecase.QuestionTracker) {
	registry := usecase.NewBufferRegistry(testLog)
	tracker := usecase.NewQuestionTracker(30*time.Minute, testLog)
	meta := &fakeMetadata{channels: map[string]repo.ChannelMeta{
		"c1": {ChannelID: "c1", ChannelName: "acme-support", ClientName: "Acme"},
	}}
	return NewMonitor(registry, tracker, meta, platform, audit, testLog), registry, tracker
}

func incoming(id, channel, author, text string, at time.Time) domain.Message {
	return domain.Message{
		ID:         id,
		ChannelID:  channel,
		AuthorID:   author,
		Text:       text,
		CreatedAt:  at,
		ReceivedAt: at,
	}
}

func TestIngestBuffersMonitoredChannel(t *testing.T) {
	platform := &fakePlatform{roles: map[string]domain.AuthorRole{"u1": domain.RoleClient}}
	m, registry, _ := newTestMonitor(platform, &fakeAudit{})

	m.Ingest(context.Background(), incoming("m1", "c1", "u1", "hello", time.Now()))

	if got := registry.BufferedCount("c1"); got != 1 {
		t.Errorf("Expected 1 buffered message, got %d", got)
	}
}

func TestIngestDropsUnmonitoredChannel(t *testing.T) {
	m, registry, _ := newTestMonitor(&fakePlatform{}, &fakeAudit{})

	m.Ingest(context.Background(), incoming("m1", "c-other", "u1", "hello", time.Now()))

	if got := registry.BufferedCount("c-other"); got != 0 {
		t.Errorf("Unmonitored channel must not buffer, got %d", got)
	}
}

func TestIngestDropsEmptyText(t *testing.T) {
	m, registry, _ := newTestMonitor(&fakePlatform{}, &fakeAudit{})

	m.Ingest(context.Background(), incoming("m1", "c1", "u1", "", time.Now()))

	if got := registry.BufferedCount("c1"); got != 0 {
		t.Errorf("Empty message must not buffer, got %d", got)
	}
}

func TestIngestRedeliverySupersedes(t *testing.T) {
	platform := &fakePlatform{roles: map[string]domain.AuthorRole{"u1": domain.RoleClient}}
	m, registry, _ := newTestMonitor(platform, &fakeAudit{})
	ctx := context.Background()
	base := time.Now()

	m.Ingest(ctx, incoming("m1", "c1", "u1", "original", base))
	m.Ingest(ctx, incoming("m1", "c1", "u1", "edited", base.Add(time.Second)))

	if got := registry.BufferedCount("c1"); got != 1 {
		t.Fatalf("Edit must replace the original, got %d buffered", got)
	}
	batches := registry.SweepInactive(base.Add(time.Hour), time.Minute)
	if len(batches) != 1 || len(batches[0].Messages) != 1 {
		t.Fatalf("Expected one batch with one message, got %v", batches)
	}
	if batches[0].Messages[0].Text != "edited" {
		t.Errorf("Expected edited text to survive, got %q", batches[0].Messages[0].Text)
	}
}

func TestIngestInternalReplyAnswersQuestion(t *testing.T) {
	platform := &fakePlatform{roles: map[string]domain.AuthorRole{
		"u-client": domain.RoleClient,
		"u-team":   domain.RoleInternal,
	}}
	audit := &fakeAudit{}
	m, _, tracker := newTestMonitor(platform, audit)
	ctx := context.Background()
	base := time.Now()

	tracker.Register(domain.QuestionFinding{Text: "eta?", SourceMessageID: "m1", ThreadID: "th1"}, "c1", "acme-support")

	reply := incoming("r1", "c1", "u-team", "shipping tomorrow", base.Add(time.Minute))
	reply.ThreadID = "th1"
	m.Ingest(ctx, reply)

	if tracker.OpenCount() != 0 {
		t.Errorf("Expected question answered, %d still open", tracker.OpenCount())
	}
	if len(audit.questions) != 1 || audit.questions[0].Status != "answered" {
		t.Errorf("Expected one answered outcome recorded, got %v", audit.questions)
	}
}

func TestIngestEditDoesNotAnswerQuestion(t *testing.T) {
	platform := &fakePlatform{roles: map[string]domain.AuthorRole{"u-team": domain.RoleInternal}}
	m, _, tracker := newTestMonitor(platform, &fakeAudit{})
	ctx := context.Background()
	base := time.Now()

	// Deliver once before the question exists, then register, then redeliver.
	first := incoming("r1", "c1", "u-team", "hello", base)
	first.ThreadID = "th1"
	m.Ingest(ctx, first)

	tracker.Register(domain.QuestionFinding{Text: "eta?", SourceMessageID: "m1", ThreadID: "th1"}, "c1", "acme-support")

	edited := incoming("r1", "c1", "u-team", "hello (edited)", base.Add(time.Minute))
	edited.ThreadID = "th1"
	m.Ingest(ctx, edited)

	if tracker.OpenCount() != 1 {
		t.Errorf("An edit must not count as a new reply, %d open", tracker.OpenCount())
	}
}
