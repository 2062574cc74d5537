package repo

import (
	"context"
	"time"

	"github.com/sey-media/clientwatch/internal/biz/domain"
)

// PlatformRepo is the chat platform interface.
// The core depends only on these operations, not on transport details.
type PlatformRepo interface {
	// LookupAuthorRole resolves a platform user to a role for the given
	// channel. Transient failures are retried with backoff inside the
	// implementation; an unresolvable user comes back as RoleUnknown.
	LookupAuthorRole(ctx context.Context, userID, channelID string) (domain.AuthorRole, error)

	// PostAlert posts an alert message to the named sink channel.
	PostAlert(ctx context.Context, sink, content string) error

	// PostSummary posts a daily summary to the named sink channel.
	PostSummary(ctx context.Context, sink, content string) error

	// BuildLink returns a deep link to the conversation around a message.
	BuildLink(channelID, messageID string) string

	// ChannelHistory fetches the channel's messages since the given time,
	// oldest first. Author roles are not resolved; callers that need them
	// go through LookupAuthorRole.
	ChannelHistory(ctx context.Context, channelID string, since time.Time) ([]domain.Message, error)
}
