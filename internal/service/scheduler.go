package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/sey-media/clientwatch/internal/biz/domain"
	"github.com/sey-media/clientwatch/internal/biz/repo"
	"github.com/sey-media/clientwatch/internal/biz/usecase"
	"github.com/sey-media/clientwatch/internal/conf"
)

// Sweeper owns the periodic work: the flush sweep that turns quiet channels
// into batches, the expiry sweep over tracked questions, and the once-daily
// summary run. Every job is guarded against overlapping with itself; a slow
// run makes the next tick skip, never stack.
type Sweeper struct {
	registry *usecase.BufferRegistry
	tracker  *usecase.QuestionTracker
	trigger  *usecase.TriggerEngine
	summary  *usecase.SummaryUsecase
	platform repo.PlatformRepo
	metadata repo.MetadataRepo
	audit    repo.AuditRepo
	cfg      conf.ScheduleConfig
	// alertSink receives expired-question alerts, same channel as fires.
	alertSink string
	log       zerolog.Logger

	cron *cron.Cron
	now  func() time.Time
}

// NewSweeper creates the scheduler.
func NewSweeper(
	registry *usecase.BufferRegistry,
	tracker *usecase.QuestionTracker,
	trigger *usecase.TriggerEngine,
	summary *usecase.SummaryUsecase,
	platform repo.PlatformRepo,
	metadata repo.MetadataRepo,
	audit repo.AuditRepo,
	cfg conf.ScheduleConfig,
	alertSink string,
	log zerolog.Logger,
) *Sweeper {
	return &Sweeper{
		registry:  registry,
		tracker:   tracker,
		trigger:   trigger,
		summary:   summary,
		platform:  platform,
		metadata:  metadata,
		audit:     audit,
		cfg:       cfg,
		alertSink: alertSink,
		log:       log.With().Str("component", "sweeper").Logger(),
		now:       time.Now,
	}
}

// SetClock overrides the sweeper's clock. Test hook; it does not affect cron
// scheduling, only the timestamps the sweeps compare against.
func (s *Sweeper) SetClock(now func() time.Time) { s.now = now }

// Start registers the jobs and starts the cron runner.
func (s *Sweeper) Start() error {
	loc, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", s.cfg.Timezone, err)
	}

	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.FlushInterval), s.RunFlushSweep); err != nil {
		return fmt.Errorf("schedule flush sweep: %w", err)
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.ExpiryInterval), s.RunExpirySweep); err != nil {
		return fmt.Errorf("schedule expiry sweep: %w", err)
	}
	dailySpec := fmt.Sprintf("%d %d * * *", s.cfg.SummaryMinute, s.cfg.SummaryHour)
	if _, err := s.cron.AddFunc(dailySpec, s.RunDailySummaries); err != nil {
		return fmt.Errorf("schedule daily summary: %w", err)
	}

	s.cron.Start()
	s.log.Info().
		Str("flush_every", s.cfg.FlushInterval.String()).
		Str("expiry_every", s.cfg.ExpiryInterval.String()).
		Str("summary_at", dailySpec).
		Str("timezone", s.cfg.Timezone).
		Msg("scheduler started")
	return nil
}

// Stop halts the cron runner and waits for in-flight jobs to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunFlushSweep flushes every channel quiet for at least the inactivity
// threshold and hands each batch to the trigger engine.
func (s *Sweeper) RunFlushSweep() {
	ctx := context.Background()
	batches := s.registry.SweepInactive(s.now(), s.cfg.InactivityThreshold)
	for _, batch := range batches {
		s.trigger.Process(ctx, batch)
	}
}

// RunExpirySweep expires overdue questions and posts one alert per question.
func (s *Sweeper) RunExpirySweep() {
	ctx := context.Background()
	for _, q := range s.tracker.SweepExpired(s.now()) {
		s.alertExpired(ctx, q)
	}
}

// RunDailySummaries runs the once-daily summary pass.
func (s *Sweeper) RunDailySummaries() {
	s.summary.Run(context.Background())
}

func (s *Sweeper) alertExpired(ctx context.Context, q *domain.TrackedQuestion) {
	clientName := s.metadata.ClientNameFor(q.ChannelID)
	if clientName == "" {
		clientName = "#" + q.ChannelName
	}
	link := s.platform.BuildLink(q.ChannelID, q.SourceMessageID)
	elapsed := int(s.now().Sub(q.CreatedAt).Minutes())

	content := fmt.Sprintf(
		"❓ Unanswered question for *%s* needs attention!\n\n> %s\n\nThis question has been unanswered for %d minutes.\n[Jump to question](%s)",
		clientName, q.Text, elapsed, link)

	if err := s.platform.PostAlert(ctx, s.alertSink, content); err != nil {
		s.log.Error().Err(err).Str("question", q.ID).Msg("failed to post expiry alert")
		return
	}
	if err := s.audit.RecordAlert(ctx, repo.AlertKindExpired, q.ChannelID, clientName, content); err != nil {
		s.log.Error().Err(err).Str("question", q.ID).Msg("failed to record expiry alert")
	}
	if err := s.audit.RecordQuestionOutcome(ctx, q); err != nil {
		s.log.Error().Err(err).Str("question", q.ID).Msg("failed to record expired question")
	}
}
