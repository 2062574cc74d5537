package usecase

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sey-media/clientwatch/internal/biz/domain"
)

// channelBuffer holds the unflushed messages of one channel. All access goes
// through its mutex; append and sweep on the same channel are mutually
// exclusive so a message arriving mid-sweep is never lost.
type channelBuffer struct {
	mu           sync.Mutex
	channelID    string
	channelName  string
	messages     []domain.Message
	lastActivity time.Time
}

func (b *channelBuffer) append(msg domain.Message) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Edit supersession: drop the stale copy, append the edit at the tail.
	if msg.EditOf != "" {
		for i, m := range b.messages {
			if m.ID == msg.EditOf {
				b.messages = append(b.messages[:i], b.messages[i+1:]...)
				break
			}
		}
	}

	b.messages = append(b.messages, msg)
	b.lastActivity = msg.ReceivedAt
	return len(b.messages)
}

// detachIfInactive atomically takes the full sequence when the channel has
// been quiet for at least threshold. Returns nil when there is nothing to
// flush.
func (b *channelBuffer) detachIfInactive(now time.Time, threshold time.Duration) []domain.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.messages) == 0 {
		return nil
	}
	if now.Sub(b.lastActivity) < threshold {
		return nil
	}

	msgs := b.messages
	b.messages = nil
	return msgs
}

func (b *channelBuffer) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

// BufferRegistry maps channel ids to their buffers. Buffers are created
// lazily on first message and live for the process lifetime; a flush only
// empties them.
type BufferRegistry struct {
	mu      sync.RWMutex
	buffers map[string]*channelBuffer
	log     zerolog.Logger
}

// NewBufferRegistry creates an empty registry.
func NewBufferRegistry(log zerolog.Logger) *BufferRegistry {
	return &BufferRegistry{
		buffers: make(map[string]*channelBuffer),
		log:     log.With().Str("component", "buffer").Logger(),
	}
}

func (r *BufferRegistry) buffer(channelID, channelName string) *channelBuffer {
	r.mu.RLock()
	b, ok := r.buffers[channelID]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.buffers[channelID]; ok {
		return b
	}
	b = &channelBuffer{channelID: channelID, channelName: channelName}
	r.buffers[channelID] = b
	return b
}

// Append inserts a message at the tail of its channel's sequence, applying
// edit supersession, and updates the channel's last-activity time.
func (r *BufferRegistry) Append(msg domain.Message) {
	n := r.buffer(msg.ChannelID, msg.ChannelName).append(msg)
	r.log.Debug().
		Str("channel", msg.ChannelID).
		Int("buffered", n).
		Msg("message buffered")
}

// SweepInactive flushes every channel whose buffer is non-empty and has seen
// no activity for at least threshold. Each flushed channel yields exactly one
// batch; channels with empty buffers are skipped.
func (r *BufferRegistry) SweepInactive(now time.Time, threshold time.Duration) []domain.Batch {
	r.mu.RLock()
	buffers := make([]*channelBuffer, 0, len(r.buffers))
	for _, b := range r.buffers {
		buffers = append(buffers, b)
	}
	r.mu.RUnlock()

	var batches []domain.Batch
	for _, b := range buffers {
		msgs := b.detachIfInactive(now, threshold)
		if msgs == nil {
			continue
		}
		r.log.Info().
			Str("channel", b.channelID).
			Int("messages", len(msgs)).
			Msg("flushing inactive channel")
		batches = append(batches, domain.Batch{
			ChannelID:   b.channelID,
			ChannelName: b.channelName,
			Messages:    msgs,
		})
	}
	return batches
}

// BufferedCount reports how many messages are currently buffered for a
// channel. Zero for channels the registry has never seen.
func (r *BufferRegistry) BufferedCount(channelID string) int {
	r.mu.RLock()
	b, ok := r.buffers[channelID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	return b.size()
}
