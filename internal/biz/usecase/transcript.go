package usecase

import (
	"fmt"
	"strings"

	"github.com/sey-media/clientwatch/internal/biz/domain"
)

// roleLabel maps an author role onto the two canonical transcript labels.
// Everything that is not the client side reads as the team side.
func roleLabel(role domain.AuthorRole) string {
	if role == domain.RoleClient {
		return "Client"
	}
	return "Team"
}

// RenderTranscript renders a batch into the canonical classifier transcript:
// one line per message in sequence order, labeled Client or Team, carrying
// the message id so the classifier can reference source messages.
func RenderTranscript(msgs []domain.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&sb, "%s (id: %s): %s\n", roleLabel(m.AuthorRole), m.ID, m.Text)
	}
	return sb.String()
}

// RenderDailyTranscript renders a day of history for summarization, with
// human-readable clock times instead of message ids.
func RenderDailyTranscript(msgs []domain.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		if m.Text == "" {
			continue
		}
		fmt.Fprintf(&sb, "%s - %s: %s\n", m.CreatedAt.Format("3:04 PM"), roleLabel(m.AuthorRole), m.Text)
	}
	return sb.String()
}
