package repo

import "github.com/sey-media/clientwatch/internal/biz/domain"

// ChannelMeta is one row of the channel metadata table.
type ChannelMeta struct {
	ChannelID   string
	ChannelName string
	ClientName  string
	EmailDomain string
}

// MetadataRepo is the channel/client metadata registry, loaded once at
// startup. Messages from unmonitored channels never reach the core.
type MetadataRepo interface {
	IsMonitored(channelID string) bool
	ChannelNameFor(channelID string) string
	ClientNameFor(channelID string) string

	// RoleFor resolves an email address to a role for the given channel:
	// a known internal domain wins, then the channel's client domain,
	// otherwise RoleUnknown.
	RoleFor(email, channelID string) domain.AuthorRole

	MonitoredChannels() []ChannelMeta
}
