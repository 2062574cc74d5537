package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sey-media/clientwatch/internal/biz/domain"
	"github.com/sey-media/clientwatch/internal/biz/repo"
)

// TriggerConfig carries the trigger engine's tunables.
type TriggerConfig struct {
	AlertSink       string
	TestimonialSink string
	QuestionWindow  time.Duration
	ClassifyTimeout time.Duration
}

// TriggerEngine turns a flushed batch into findings and dispatches them:
// fire alerts, testimonial alerts, and tracked questions.
type TriggerEngine struct {
	classifier repo.ClassifierRepo
	platform   repo.PlatformRepo
	metadata   repo.MetadataRepo
	audit      repo.AuditRepo
	tracker    *QuestionTracker
	cfg        TriggerConfig
	log        zerolog.Logger
}

// NewTriggerEngine creates a trigger engine.
func NewTriggerEngine(
	classifier repo.ClassifierRepo,
	platform repo.PlatformRepo,
	metadata repo.MetadataRepo,
	audit repo.AuditRepo,
	tracker *QuestionTracker,
	cfg TriggerConfig,
	log zerolog.Logger,
) *TriggerEngine {
	return &TriggerEngine{
		classifier: classifier,
		platform:   platform,
		metadata:   metadata,
		audit:      audit,
		tracker:    tracker,
		cfg:        cfg,
		log:        log.With().Str("component", "trigger").Logger(),
	}
}

// Process classifies one batch and dispatches its findings. The whole window
// goes to the classifier in a single call; on failure the call is retried
// exactly once with the same input, then the batch is recorded as skipped
// and dropped. A skipped batch produces no alert and registers no question.
func (e *TriggerEngine) Process(ctx context.Context, batch domain.Batch) {
	transcript := RenderTranscript(batch.Messages)

	finding, err := e.classifyWithRetry(ctx, transcript)
	if err != nil {
		e.log.Error().
			Err(err).
			Str("channel", batch.ChannelID).
			Int("messages", len(batch.Messages)).
			Msg("classification failed after retry, skipping batch")
		if auditErr := e.audit.RecordSkippedBatch(ctx, batch.ChannelID, err.Error(), len(batch.Messages)); auditErr != nil {
			e.log.Error().Err(auditErr).Msg("failed to record skipped batch")
		}
		return
	}

	clientName := e.metadata.ClientNameFor(batch.ChannelID)
	if clientName == "" {
		clientName = "an unknown client"
	}
	link := e.platform.BuildLink(batch.ChannelID, batch.First().ID)

	// The three findings are independent; none short-circuits another.
	if finding.IsFire && finding.FireText != "" {
		e.postAlert(ctx, repo.AlertKindFire, e.cfg.AlertSink, batch.ChannelID, clientName, fmt.Sprintf(
			"🔥 Client fire detected for *%s*!\n\n> %s\n\n[Jump to conversation](%s)",
			clientName, finding.FireText, link))
	}

	if finding.IsTestimonial && finding.TestimonialText != "" {
		e.postAlert(ctx, repo.AlertKindTestimonial, e.cfg.TestimonialSink, batch.ChannelID, clientName, fmt.Sprintf(
			"🌟 New testimonial from *%s*!\n\n> %s\n\n[Jump to conversation](%s)",
			clientName, finding.TestimonialText, link))
	}

	for _, qf := range finding.Questions {
		e.registerQuestion(batch, qf)
	}
}

// classifyWithRetry runs the classifier with a bounded timeout, retrying
// once on any failure, malformed responses included.
func (e *TriggerEngine) classifyWithRetry(ctx context.Context, transcript string) (*domain.Finding, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.ClassifyTimeout)
		finding, err := e.classifier.Classify(callCtx, transcript)
		cancel()
		if err == nil {
			return finding, nil
		}
		lastErr = err
		e.log.Warn().Err(err).Int("attempt", attempt+1).Msg("classifier call failed")
	}
	return nil, lastErr
}

func (e *TriggerEngine) registerQuestion(batch domain.Batch, qf domain.QuestionFinding) {
	// Recover thread linkage and author from the source message when the
	// classifier echoed its id back.
	if qf.SourceMessageID != "" {
		for _, m := range batch.Messages {
			if m.ID == qf.SourceMessageID {
				qf.ThreadID = m.ThreadID
				qf.AuthorID = m.AuthorID
				break
			}
		}
	}
	q := e.tracker.Register(qf, batch.ChannelID, batch.ChannelName)
	e.log.Info().
		Str("question", q.ID).
		Str("channel", batch.ChannelID).
		Msg("question handed to tracker")
}

func (e *TriggerEngine) postAlert(ctx context.Context, kind, sink, channelID, clientName, content string) {
	if err := e.platform.PostAlert(ctx, sink, content); err != nil {
		e.log.Error().Err(err).Str("kind", kind).Str("sink", sink).Msg("failed to post alert")
		return
	}
	if err := e.audit.RecordAlert(ctx, kind, channelID, clientName, content); err != nil {
		e.log.Error().Err(err).Str("kind", kind).Msg("failed to record alert")
	}
}
