package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sey-media/clientwatch/internal/biz/domain"
	"github.com/sey-media/clientwatch/internal/biz/repo"
)

// csvMetadata implements the metadata repository over a CSV roster of
// monitored channels. The roster is loaded once at startup; role resolution
// compares email domains against the global internal list first, then the
// channel's client domain.
type csvMetadata struct {
	byChannelID     map[string]repo.ChannelMeta
	internalDomains map[string]struct{}
	log             zerolog.Logger
}

// NewMetadataRepo loads channel metadata from a CSV file with the headers
// channel_id, channel_name, client_name, client_email_domain.
func NewMetadataRepo(csvPath string, internalDomains []string, log zerolog.Logger) (repo.MetadataRepo, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open channel metadata: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read channel metadata: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("channel metadata %s is empty", csvPath)
	}

	col := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		col[strings.TrimSpace(strings.ToLower(h))] = i
	}
	for _, required := range []string{"channel_id", "channel_name"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("channel metadata missing column %q", required)
		}
	}

	m := &csvMetadata{
		byChannelID:     make(map[string]repo.ChannelMeta),
		internalDomains: make(map[string]struct{}, len(internalDomains)),
		log:             log.With().Str("component", "metadata").Logger(),
	}
	for _, d := range internalDomains {
		m.internalDomains[strings.ToLower(d)] = struct{}{}
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for _, row := range rows[1:] {
		meta := repo.ChannelMeta{
			ChannelID:   field(row, "channel_id"),
			ChannelName: field(row, "channel_name"),
			ClientName:  field(row, "client_name"),
			EmailDomain: strings.ToLower(field(row, "client_email_domain")),
		}
		if meta.ChannelID == "" {
			m.log.Warn().Strs("row", row).Msg("skipping metadata row with no channel_id")
			continue
		}
		m.byChannelID[meta.ChannelID] = meta
	}

	m.log.Info().Int("channels", len(m.byChannelID)).Msg("channel metadata loaded")
	return m, nil
}

func (m *csvMetadata) IsMonitored(channelID string) bool {
	_, ok := m.byChannelID[channelID]
	return ok
}

func (m *csvMetadata) ChannelNameFor(channelID string) string {
	return m.byChannelID[channelID].ChannelName
}

func (m *csvMetadata) ClientNameFor(channelID string) string {
	return m.byChannelID[channelID].ClientName
}

// RoleFor resolves an author's role from their email domain. Internal domains
// win over the channel's client domain; anything else is unknown.
func (m *csvMetadata) RoleFor(email, channelID string) domain.AuthorRole {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return domain.RoleUnknown
	}
	emailDomain := strings.ToLower(email[at+1:])

	if _, ok := m.internalDomains[emailDomain]; ok {
		return domain.RoleInternal
	}

	meta, ok := m.byChannelID[channelID]
	if !ok || meta.EmailDomain == "" {
		return domain.RoleUnknown
	}
	if emailDomain == meta.EmailDomain {
		return domain.RoleClient
	}
	return domain.RoleUnknown
}

func (m *csvMetadata) MonitoredChannels() []repo.ChannelMeta {
	out := make([]repo.ChannelMeta, 0, len(m.byChannelID))
	for _, meta := range m.byChannelID {
		out = append(out, meta)
	}
	return out
}
