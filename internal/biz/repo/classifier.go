package repo

import (
	"context"
	"errors"

	"github.com/sey-media/clientwatch/internal/biz/domain"
)

// ErrMalformedResponse marks a classifier reply that could not be parsed
// into a Finding. Callers treat it like any transient classifier failure.
var ErrMalformedResponse = errors.New("classifier: malformed response")

// ClassifierRepo is the language-understanding interface. The core treats it
// as a pure function with latency and a failure mode.
type ClassifierRepo interface {
	// Classify analyzes a rendered transcript and returns the structured
	// finding. A response that does not parse returns ErrMalformedResponse.
	Classify(ctx context.Context, transcript string) (*domain.Finding, error)

	// Summarize produces a markdown summary of a day's transcript.
	Summarize(ctx context.Context, transcript string) (string, error)
}
