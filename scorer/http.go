package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const payloadPrefix = "data:audio/wav;base64,"

// HTTPClient talks to the sample and scoring endpoints over JSON POST.
type HTTPClient struct {
	sampleURL string
	scoreURL  string
	apiKey    string
	client    *TracedClient
}

func NewHTTPClient(sampleURL, scoreURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		sampleURL: sampleURL,
		scoreURL:  scoreURL,
		apiKey:    apiKey,
		client:    NewTracedClient(),
	}
}

func (c *HTTPClient) post(ctx context.Context, url string, payload any) (*TracedResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	return c.client.Do(req)
}

// Warmup issues one empty scoring request to wake a cold backend. A
// completed round trip below 500 counts as warm even if the backend
// rejects the empty payload.
func (c *HTTPClient) Warmup(ctx context.Context) error {
	resp, err := c.post(ctx, c.scoreURL, map[string]string{
		"title":       "",
		"base64Audio": "",
		"language":    "",
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrBackendUnavailable, resp.StatusCode)
	}
	return nil
}

type sampleResponse struct {
	RealTranscript json.RawMessage `json:"real_transcript"`
	IPATranscript  string          `json:"ipa_transcript"`
	Translation    string          `json:"transcript_translation"`
	Err            string          `json:"error"`
}

func (c *HTTPClient) FetchSample(ctx context.Context, category int, language string) (Sample, error) {
	resp, err := c.post(ctx, c.sampleURL, map[string]string{
		"category": strconv.Itoa(category),
		"language": language,
	})
	if err != nil {
		return Sample{}, fmt.Errorf("fetching sample: %w", err)
	}
	if resp.StatusCode != 200 {
		return Sample{}, httpStatusError("sample", resp.StatusCode, resp.Body)
	}

	var sr sampleResponse
	if err := json.Unmarshal(resp.Body, &sr); err != nil {
		return Sample{}, fmt.Errorf("sample response parse error: %w", err)
	}
	if sr.Err != "" {
		return Sample{}, &APIError{Message: sr.Err}
	}

	text, err := decodeTranscript(sr.RealTranscript)
	if err != nil {
		return Sample{}, fmt.Errorf("sample response parse error: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return Sample{}, &APIError{Message: "empty sample"}
	}

	return Sample{
		Text:        strings.TrimSpace(text),
		IPA:         sr.IPATranscript,
		Translation: sr.Translation,
	}, nil
}

// decodeTranscript accepts real_transcript as either a bare string or a
// one-element array of strings, both of which the backend emits.
func decodeTranscript(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", nil
	}
	return list[0], nil
}

type scoreResponse struct {
	PronunciationAccuracy   string `json:"pronunciation_accuracy"`
	IPATranscript           string `json:"ipa_transcript"`
	RealTranscriptsIPA      string `json:"real_transcripts_ipa"`
	MatchedTranscriptsIPA   string `json:"matched_transcripts_ipa"`
	PairAccuracyCategory    string `json:"pair_accuracy_category"`
	IsLetterCorrectAllWords string `json:"is_letter_correct_all_words"`
	StartTime               string `json:"start_time"`
	EndTime                 string `json:"end_time"`
	Err                     string `json:"error"`
}

func (c *HTTPClient) Score(ctx context.Context, title, base64Audio, language string) (Result, error) {
	resp, err := c.post(ctx, c.scoreURL, map[string]string{
		"title":       title,
		"base64Audio": payloadPrefix + base64Audio,
		"language":    language,
	})
	if err != nil {
		return Result{}, fmt.Errorf("scoring audio: %w", err)
	}
	if resp.StatusCode != 200 {
		return Result{}, httpStatusError("score", resp.StatusCode, resp.Body)
	}

	var sr scoreResponse
	if err := json.Unmarshal(resp.Body, &sr); err != nil {
		return Result{}, fmt.Errorf("score response parse error: %w", err)
	}
	if sr.Err != "" {
		return Result{}, &APIError{Message: sr.Err}
	}

	accuracy, err := strconv.ParseFloat(strings.TrimSpace(sr.PronunciationAccuracy), 64)
	if err != nil {
		return Result{}, fmt.Errorf("score response parse error: accuracy %q", sr.PronunciationAccuracy)
	}

	return Result{
		Accuracy:          clampAccuracy(accuracy),
		IPATranscript:     sr.IPATranscript,
		RealIPAWords:      strings.Fields(sr.RealTranscriptsIPA),
		MatchedIPAWords:   strings.Fields(sr.MatchedTranscriptsIPA),
		WordCategories:    parseCategories(sr.PairAccuracyCategory),
		LetterCorrectness: strings.Fields(sr.IsLetterCorrectAllWords),
		StartOffsets:      parseOffsets(sr.StartTime),
		EndOffsets:        parseOffsets(sr.EndTime),
		Metrics:           resp.Metrics,
	}, nil
}

func clampAccuracy(a float64) float64 {
	if a < 0 {
		return 0
	}
	if a > 100 {
		return 100
	}
	return a
}

// parseCategories splits the space-joined category field. Anything that is
// not a clean integer counts as the worst category rather than failing the
// whole attempt.
func parseCategories(field string) []int {
	parts := strings.Fields(field)
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < CategoryGood || n > CategoryBad {
			n = CategoryBad
		}
		out[i] = n
	}
	return out
}

func parseOffsets(field string) []float64 {
	parts := strings.Fields(field)
	out := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil || f < 0 {
			f = 0
		}
		out[i] = f
	}
	return out
}
