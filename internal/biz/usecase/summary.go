package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sey-media/clientwatch/internal/biz/domain"
	"github.com/sey-media/clientwatch/internal/biz/repo"
)

// SummaryConfig carries the daily summary tunables.
type SummaryConfig struct {
	Sink     string
	Lookback time.Duration
}

// SummaryUsecase generates and posts the once-daily per-channel summaries.
// It reuses the canonical transcript rendering and the classifier's
// summarization call.
type SummaryUsecase struct {
	platform   repo.PlatformRepo
	classifier repo.ClassifierRepo
	metadata   repo.MetadataRepo
	cfg        SummaryConfig
	log        zerolog.Logger
	now        func() time.Time
}

// NewSummaryUsecase creates a summary usecase.
func NewSummaryUsecase(
	platform repo.PlatformRepo,
	classifier repo.ClassifierRepo,
	metadata repo.MetadataRepo,
	cfg SummaryConfig,
	log zerolog.Logger,
) *SummaryUsecase {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 24 * time.Hour
	}
	return &SummaryUsecase{
		platform:   platform,
		classifier: classifier,
		metadata:   metadata,
		cfg:        cfg,
		log:        log.With().Str("component", "summary").Logger(),
		now:        time.Now,
	}
}

// SetClock overrides the usecase's clock. Test hook.
func (u *SummaryUsecase) SetClock(now func() time.Time) { u.now = now }

// Run generates a summary for every monitored channel. A failure in one
// channel is logged and never stops the others.
func (u *SummaryUsecase) Run(ctx context.Context) {
	channels := u.metadata.MonitoredChannels()
	u.log.Info().Int("channels", len(channels)).Msg("running daily summaries")

	for _, ch := range channels {
		if err := u.summarizeChannel(ctx, ch); err != nil {
			u.log.Error().Err(err).Str("channel", ch.ChannelID).Msg("daily summary failed")
		}
	}
}

func (u *SummaryUsecase) summarizeChannel(ctx context.Context, ch repo.ChannelMeta) error {
	now := u.now()
	history, err := u.platform.ChannelHistory(ctx, ch.ChannelID, now.Add(-u.cfg.Lookback))
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	if len(history) == 0 {
		u.log.Info().Str("channel", ch.ChannelID).Msg("no messages in lookback window, skipping summary")
		return nil
	}

	u.resolveRoles(ctx, ch.ChannelID, history)

	transcript := RenderDailyTranscript(history)
	if transcript == "" {
		return nil
	}

	summary, err := u.classifier.Summarize(ctx, transcript)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	clientName := ch.ClientName
	if clientName == "" {
		clientName = ch.ChannelName
	}
	post := fmt.Sprintf("📝 *Daily Summary for %s - %s*\n\n%s",
		clientName, now.Format("January 2, 2006"), summary)

	if err := u.platform.PostSummary(ctx, u.cfg.Sink, post); err != nil {
		return fmt.Errorf("post summary: %w", err)
	}
	u.log.Info().Str("channel", ch.ChannelID).Msg("daily summary posted")
	return nil
}

// resolveRoles fills in author roles for history messages, caching lookups
// per author for the duration of one channel's summary.
func (u *SummaryUsecase) resolveRoles(ctx context.Context, channelID string, msgs []domain.Message) {
	cache := make(map[string]domain.AuthorRole)
	for i := range msgs {
		m := &msgs[i]
		if m.AuthorRole != "" || m.AuthorID == "" {
			continue
		}
		role, ok := cache[m.AuthorID]
		if !ok {
			var err error
			role, err = u.platform.LookupAuthorRole(ctx, m.AuthorID, channelID)
			if err != nil {
				role = domain.RoleUnknown
			}
			cache[m.AuthorID] = role
		}
		m.AuthorRole = role
	}
}
