package domain

import "time"

// AuthorRole classifies who sent a message relative to the monitored client.
type AuthorRole string

const (
	RoleClient   AuthorRole = "client"
	RoleInternal AuthorRole = "internal"
	RoleUnknown  AuthorRole = "unknown"
)

// Message is a single chat message as seen by the monitor.
// A message is immutable once ingested; an edit arrives as a new message
// whose EditOf references the superseded message id.
type Message struct {
	ID          string
	ChannelID   string
	ChannelName string
	AuthorID    string
	AuthorRole  AuthorRole
	Text        string
	ThreadID    string // thread root id, empty when the message is not threaded
	EditOf      string // id of the buffered message this one supersedes, if any
	CreatedAt   time.Time
	ReceivedAt  time.Time
}

// Batch is an immutable group of messages flushed together from one channel
// for joint classification. Messages are in arrival order.
type Batch struct {
	ChannelID   string
	ChannelName string
	Messages    []Message
}

// First returns the earliest message of the batch.
func (b Batch) First() Message {
	return b.Messages[0]
}
