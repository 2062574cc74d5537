package usecase

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sey-media/clientwatch/internal/biz/domain"
)

var testLog = zerolog.Nop()

func msgAt(id, channel, text string, at time.Time) domain.Message {
	return domain.Message{
		ID:         id,
		ChannelID:  channel,
		AuthorRole: domain.RoleClient,
		Text:       text,
		CreatedAt:  at,
		ReceivedAt: at,
	}
}

func TestSweepFlushesInactiveChannel(t *testing.T) {
	reg := NewBufferRegistry(testLog)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	reg.Append(msgAt("m1", "c1", "hello", base))
	reg.Append(msgAt("m2", "c1", "anyone there?", base.Add(1*time.Minute)))
	reg.Append(msgAt("m3", "c1", "still waiting", base.Add(2*time.Minute)))

	batches := reg.SweepInactive(base.Add(7*time.Minute+time.Second), 5*time.Minute)
	if len(batches) != 1 {
		t.Fatalf("Expected 1 batch, got %d", len(batches))
	}
	batch := batches[0]
	if batch.ChannelID != "c1" {
		t.Errorf("Expected channel c1, got %s", batch.ChannelID)
	}
	if len(batch.Messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(batch.Messages))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if batch.Messages[i].ID != want {
			t.Errorf("Message %d: expected %s, got %s", i, want, batch.Messages[i].ID)
		}
	}
	if reg.BufferedCount("c1") != 0 {
		t.Errorf("Buffer should be empty after flush, has %d", reg.BufferedCount("c1"))
	}
}

func TestSweepSkipsActiveChannel(t *testing.T) {
	reg := NewBufferRegistry(testLog)
	base := time.Now()

	reg.Append(msgAt("m1", "c1", "hi", base))

	batches := reg.SweepInactive(base.Add(2*time.Minute), 5*time.Minute)
	if len(batches) != 0 {
		t.Fatalf("Expected no batches for an active channel, got %d", len(batches))
	}
	if reg.BufferedCount("c1") != 1 {
		t.Errorf("Active buffer must be untouched, has %d", reg.BufferedCount("c1"))
	}
}

func TestSweepNeverFlushesEmptyBuffer(t *testing.T) {
	reg := NewBufferRegistry(testLog)
	base := time.Now()

	reg.Append(msgAt("m1", "c1", "hi", base))
	if got := reg.SweepInactive(base.Add(10*time.Minute), 5*time.Minute); len(got) != 1 {
		t.Fatalf("Expected first sweep to flush, got %d batches", len(got))
	}

	// Channel is now empty but still registered; later sweeps must skip it.
	if got := reg.SweepInactive(base.Add(20*time.Minute), 5*time.Minute); len(got) != 0 {
		t.Errorf("Expected no batch from an emptied buffer, got %d", len(got))
	}
}

func TestFlushExactlyOnce(t *testing.T) {
	reg := NewBufferRegistry(testLog)
	base := time.Now()
	reg.Append(msgAt("m1", "c1", "hi", base))

	sweepAt := base.Add(10 * time.Minute)

	var total int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, b := range reg.SweepInactive(sweepAt, 5*time.Minute) {
				mu.Lock()
				total += len(b.Messages)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if total != 1 {
		t.Errorf("Message flushed %d times, expected exactly once", total)
	}
}

func TestEditSupersession(t *testing.T) {
	reg := NewBufferRegistry(testLog)
	base := time.Now()

	reg.Append(msgAt("m1", "c1", "can you shipit tomorrow?", base))
	reg.Append(msgAt("m2", "c1", "thanks", base.Add(time.Second)))

	edit := msgAt("m1b", "c1", "can you ship it tomorrow?", base.Add(2*time.Second))
	edit.EditOf = "m1"
	reg.Append(edit)

	batches := reg.SweepInactive(base.Add(10*time.Minute), 5*time.Minute)
	if len(batches) != 1 {
		t.Fatalf("Expected 1 batch, got %d", len(batches))
	}
	msgs := batches[0].Messages
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages after supersession, got %d", len(msgs))
	}
	for _, m := range msgs {
		if m.Text == "can you shipit tomorrow?" {
			t.Error("Stale copy of the edited message leaked into the batch")
		}
	}
	if msgs[1].Text != "can you ship it tomorrow?" {
		t.Errorf("Edited content missing, tail is %q", msgs[1].Text)
	}
}

func TestEditOfUnknownMessageAppends(t *testing.T) {
	reg := NewBufferRegistry(testLog)
	base := time.Now()

	edit := msgAt("m9", "c1", "edited after flush", base)
	edit.EditOf = "gone"
	reg.Append(edit)

	if reg.BufferedCount("c1") != 1 {
		t.Errorf("Edit of an unknown message should still buffer, has %d", reg.BufferedCount("c1"))
	}
}

func TestChannelsFlushIndependently(t *testing.T) {
	reg := NewBufferRegistry(testLog)
	base := time.Now()

	reg.Append(msgAt("a1", "c1", "quiet channel", base))
	reg.Append(msgAt("b1", "c2", "busy channel", base.Add(4*time.Minute)))

	batches := reg.SweepInactive(base.Add(6*time.Minute), 5*time.Minute)
	if len(batches) != 1 || batches[0].ChannelID != "c1" {
		t.Fatalf("Expected only c1 to flush, got %+v", batches)
	}
	if reg.BufferedCount("c2") != 1 {
		t.Errorf("c2 must keep its message, has %d", reg.BufferedCount("c2"))
	}
}

func TestConcurrentAppendAndSweepLosesNothing(t *testing.T) {
	reg := NewBufferRegistry(testLog)
	base := time.Now()
	const perChannel = 200
	channels := []string{"c1", "c2", "c3"}

	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func(ch string) {
			defer wg.Done()
			for i := 0; i < perChannel; i++ {
				reg.Append(msgAt(fmt.Sprintf("%s-%d", ch, i), ch, "x", base))
			}
		}(ch)
	}

	var flushed int
	var mu sync.Mutex
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			// Zero threshold makes every non-empty buffer eligible.
			for _, b := range reg.SweepInactive(time.Now(), 0) {
				mu.Lock()
				flushed += len(b.Messages)
				mu.Unlock()
			}
		}
	}()
	wg.Wait()

	for _, b := range reg.SweepInactive(time.Now(), 0) {
		flushed += len(b.Messages)
	}

	if want := perChannel * len(channels); flushed != want {
		t.Errorf("Flushed %d messages, expected %d", flushed, want)
	}
}
