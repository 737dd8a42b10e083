// Package scorer talks to the two remote endpoints of the pronunciation
// backend: sentence sample generation and audio scoring. Both are plain
// JSON-over-POST with an API-key header.
package scorer

import (
	"context"
	"errors"
	"fmt"
)

// Severity categories for a word pair, as reported by the backend.
const (
	CategoryGood = 0
	CategoryOkay = 1
	CategoryBad  = 2
)

var ErrBackendUnavailable = errors.New("scorer: backend unavailable")

// APIError is an error reported by the backend inside a 200 response body.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return "backend error: " + e.Message
}

// Sample is one practice sentence from the sample service.
type Sample struct {
	Text        string
	IPA         string
	Translation string
}

// Result is the parsed scoring response. All per-word slices are positionally
// aligned to the reference sentence's word split; the backend may return
// fewer entries than words, which renderers must treat as worst-case unknown
// rather than an error.
type Result struct {
	Accuracy          float64 // [0, 100]
	IPATranscript     string
	RealIPAWords      []string
	MatchedIPAWords   []string
	WordCategories    []int
	LetterCorrectness []string // per word, string of '0'/'1'
	StartOffsets      []float64
	EndOffsets        []float64

	// Metrics is the network timing breakdown for the scoring round trip.
	// Nil for fake clients.
	Metrics *NetworkMetrics
}

// Client is the remote backend surface the session machine depends on.
// Implementations must be safe for sequential reuse; the machine never
// issues concurrent calls.
type Client interface {
	// Warmup pings the scoring endpoint once. Used to wake a cold backend
	// before the first sample fetch.
	Warmup(ctx context.Context) error
	FetchSample(ctx context.Context, category int, language string) (Sample, error)
	Score(ctx context.Context, title, base64Audio, language string) (Result, error)
}

func httpStatusError(endpoint string, status int, body []byte) error {
	return fmt.Errorf("%s: status %d: %s", endpoint, status, truncate(body, 200))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
