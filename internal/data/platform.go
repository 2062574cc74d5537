package data

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sey-media/clientwatch/internal/biz/domain"
	"github.com/sey-media/clientwatch/internal/biz/repo"
	"github.com/sey-media/clientwatch/internal/infra/lark"
)

const emailLookupAttempts = 3

// larkPlatform implements the platform repository on the Lark client. Author
// roles are resolved email-first through the metadata repo and cached for the
// process lifetime; people do not change sides mid-run.
type larkPlatform struct {
	client   *lark.Client
	metadata repo.MetadataRepo
	log      zerolog.Logger

	mu        sync.Mutex
	roleCache map[string]domain.AuthorRole // open_id -> role
}

// NewPlatformRepo creates a platform repository over a connected Lark client.
func NewPlatformRepo(client *lark.Client, metadata repo.MetadataRepo, log zerolog.Logger) repo.PlatformRepo {
	return &larkPlatform{
		client:    client,
		metadata:  metadata,
		log:       log.With().Str("component", "platform").Logger(),
		roleCache: make(map[string]domain.AuthorRole),
	}
}

// LookupAuthorRole resolves a user's role in a channel from their email
// domain. Lookup failures degrade to unknown instead of blocking ingestion.
func (p *larkPlatform) LookupAuthorRole(ctx context.Context, userID, channelID string) (domain.AuthorRole, error) {
	p.mu.Lock()
	if role, ok := p.roleCache[userID]; ok {
		p.mu.Unlock()
		return role, nil
	}
	p.mu.Unlock()

	email, err := p.userEmail(ctx, userID)
	if err != nil {
		p.log.Warn().Err(err).Str("user", userID).Msg("email lookup failed, role unknown")
		return domain.RoleUnknown, err
	}

	role := p.metadata.RoleFor(email, channelID)
	p.mu.Lock()
	p.roleCache[userID] = role
	p.mu.Unlock()
	return role, nil
}

// userEmail fetches a user's email with a short retry, since the contact API
// is occasionally flaky right after a user joins.
func (p *larkPlatform) userEmail(ctx context.Context, userID string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < emailLookupAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		email, err := p.client.GetUserEmail(ctx, userID)
		if err == nil {
			if email == "" {
				return "", fmt.Errorf("user %s has no email", userID)
			}
			return email, nil
		}
		lastErr = err
	}
	return "", lastErr
}

// PostAlert sends an alert to a sink channel.
func (p *larkPlatform) PostAlert(ctx context.Context, sink, content string) error {
	return p.client.SendText(ctx, sink, content)
}

// PostSummary sends a summary to a sink channel.
func (p *larkPlatform) PostSummary(ctx context.Context, sink, content string) error {
	return p.client.SendText(ctx, sink, content)
}

// BuildLink builds a deep link that opens the channel. Lark applinks open a
// chat, not a single message, so the message id only disambiguates the link
// text for humans scanning the audit log.
func (p *larkPlatform) BuildLink(channelID, messageID string) string {
	return fmt.Sprintf("https://applink.feishu.cn/client/chat/open?openChatId=%s", channelID)
}

// ChannelHistory fetches messages created at or after since, oldest first,
// excluding anything the bot itself posted.
func (p *larkPlatform) ChannelHistory(ctx context.Context, channelID string, since time.Time) ([]domain.Message, error) {
	raw, err := p.client.GetChatHistory(ctx, channelID, since.Unix())
	if err != nil {
		return nil, err
	}

	var msgs []domain.Message
	for _, m := range raw {
		if m.SenderType == "app" || m.Content == "" {
			continue
		}
		msgs = append(msgs, domain.Message{
			ID:        m.MsgID,
			ChannelID: channelID,
			AuthorID:  m.SenderOpenID,
			Text:      m.Content,
			ThreadID:  m.RootID,
			CreatedAt: time.UnixMilli(m.CreateTime),
		})
	}
	return msgs, nil
}
