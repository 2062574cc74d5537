package domain

import (
	"sync/atomic"
	"time"
)

// QuestionStatus is the lifecycle state of a tracked question.
// Answered and Expired are terminal; there is no transition out of either.
type QuestionStatus int32

const (
	QuestionOpen QuestionStatus = iota
	QuestionAnswered
	QuestionExpired
)

func (s QuestionStatus) String() string {
	switch s {
	case QuestionOpen:
		return "open"
	case QuestionAnswered:
		return "answered"
	case QuestionExpired:
		return "expired"
	}
	return "unknown"
}

// TrackedQuestion is an open obligation with a deadline, created from a
// Finding's question entries. Status moves through a compare-and-swap so a
// reply observer and an expiry sweep racing on the same question can never
// both win.
type TrackedQuestion struct {
	ID              string
	ChannelID       string
	ChannelName     string
	SourceMessageID string
	ThreadID        string
	Text            string
	CreatedAt       time.Time
	DeadlineAt      time.Time

	status atomic.Int32
}

// Status returns the current lifecycle state.
func (q *TrackedQuestion) Status() QuestionStatus {
	return QuestionStatus(q.status.Load())
}

// MarkAnswered transitions Open -> Answered. Returns false if the question
// already reached a terminal state.
func (q *TrackedQuestion) MarkAnswered() bool {
	return q.status.CompareAndSwap(int32(QuestionOpen), int32(QuestionAnswered))
}

// MarkExpired transitions Open -> Expired. Returns false if the question
// already reached a terminal state.
func (q *TrackedQuestion) MarkExpired() bool {
	return q.status.CompareAndSwap(int32(QuestionOpen), int32(QuestionExpired))
}
