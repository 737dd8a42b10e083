package session

import (
	"errors"
	"testing"
	"time"

	"parla/encoder"
	"parla/scorer"
)

var testSample = scorer.Sample{
	Text: "the cat sat",
	IPA:  "ðə kæt sæt",
}

func readyMachine(t *testing.T) *Machine {
	t.Helper()
	m := New("en", 1)
	m.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }

	effs := m.Apply(Start{})
	if len(effs) != 1 {
		t.Fatalf("Start effects = %v", effs)
	}
	effs = m.Apply(WarmupDone{Attempt: 1})
	if _, ok := effs[0].(FetchSampleEffect); !ok {
		t.Fatalf("after warmup, effects = %v", effs)
	}
	m.Apply(SampleFetched{Sample: testSample})
	if m.State() != SampleReady {
		t.Fatalf("state = %v, want SampleReady", m.State())
	}
	return m
}

// completeAttempt drives one record-submit-score cycle and returns the
// effects emitted by the scoring event.
func completeAttempt(t *testing.T, m *Machine, accuracy float64) []Effect {
	t.Helper()
	if effs := m.Apply(ToggleRecord{}); len(effs) != 1 {
		t.Fatalf("toggle-on effects = %v", effs)
	}
	m.Apply(ToggleRecord{})
	effs := m.Apply(RecordingFinalized{
		Payload:  "UklGRg==",
		PCM:      make([]byte, encoder.SampleRate*2),
		Duration: 1.0,
	})
	var submitted bool
	for _, fx := range effs {
		if _, ok := fx.(SubmitEffect); ok {
			submitted = true
		}
	}
	if !submitted {
		t.Fatalf("no submit after finalize, effects = %v", effs)
	}
	scored := m.Apply(Scored{Result: scorer.Result{
		Accuracy:          accuracy,
		RealIPAWords:      []string{"ðə", "kæt", "sæt"},
		MatchedIPAWords:   []string{"ðə", "kæt", "sæt"},
		WordCategories:    []int{0, 1, 2},
		LetterCorrectness: []string{"111", "111", "111"},
	}})
	m.Apply(Rendered{})
	return scored
}

func nextSample(t *testing.T, m *Machine) {
	t.Helper()
	effs := m.Apply(NextSample{})
	if len(effs) != 1 {
		t.Fatalf("next-sample effects = %v", effs)
	}
	m.Apply(SampleFetched{Sample: testSample})
}

func TestWarmupExhaustionDisablesBackend(t *testing.T) {
	m := New("en", 1)

	effs := m.Apply(Start{})
	warmupErr := errors.New("connection refused")
	for attempt := 1; attempt < WarmupMaxTries; attempt++ {
		effs = m.Apply(WarmupDone{Attempt: attempt, Err: warmupErr})
		w, ok := effs[0].(WarmupEffect)
		if !ok || w.Attempt != attempt+1 {
			t.Fatalf("attempt %d: effects = %v", attempt, effs)
		}
	}
	effs = m.Apply(WarmupDone{Attempt: WarmupMaxTries, Err: warmupErr})
	if len(effs) != 0 {
		t.Errorf("exhausted warmup still emitted %v", effs)
	}
	if m.State() != ErrorState || !m.BackendDown() {
		t.Errorf("state = %v, backendDown = %v", m.State(), m.BackendDown())
	}

	// Every later fetch short-circuits without touching the network.
	if effs := m.Apply(NextSample{}); len(effs) != 0 {
		t.Errorf("backend-down fetch emitted %v", effs)
	}
	if m.State() != ErrorState {
		t.Errorf("state = %v, want ErrorState", m.State())
	}
}

func TestSampleCounterIncrementsOnFetchSuccess(t *testing.T) {
	m := readyMachine(t)
	if m.SampleCounter() != 1 {
		t.Errorf("counter = %d", m.SampleCounter())
	}

	m.Apply(NextSample{})
	m.Apply(SampleFetched{Err: errors.New("boom")})
	if m.SampleCounter() != 1 {
		t.Errorf("counter advanced on failed fetch: %d", m.SampleCounter())
	}
	if m.State() != ErrorState {
		t.Errorf("state = %v", m.State())
	}

	nextSample(t, m)
	if m.SampleCounter() != 2 {
		t.Errorf("counter = %d", m.SampleCounter())
	}
}

func TestScoreAccumulation(t *testing.T) {
	m := readyMachine(t)

	m.SetDifficulty(0) // x1.3
	completeAttempt(t, m, 80)
	nextSample(t, m)

	m.SetDifficulty(1) // x1.0
	completeAttempt(t, m, 60)
	nextSample(t, m)

	m.SetDifficulty(3) // x1.6
	completeAttempt(t, m, 40)

	if m.CumulativeScore() != 228 {
		t.Errorf("cumulative = %d, want 104+60+64 = 228", m.CumulativeScore())
	}
}

func TestTooShortRecordingNeverSubmits(t *testing.T) {
	m := readyMachine(t)

	m.Apply(ToggleRecord{})
	m.Apply(ToggleRecord{})
	effs := m.Apply(RecordingFinalized{Err: encoder.ErrRecordingTooShort})
	if len(effs) != 0 {
		t.Errorf("failed recording emitted %v", effs)
	}
	if m.State() != SampleReady {
		t.Errorf("state = %v, want SampleReady", m.State())
	}
	if m.Status() == "" {
		t.Error("no status message after too-short recording")
	}
}

func TestPersistExactlyOncePerAttempt(t *testing.T) {
	m := readyMachine(t)
	effs := completeAttempt(t, m, 75)

	var persist *PersistEffect
	for _, fx := range effs {
		if p, ok := fx.(PersistEffect); ok {
			if persist != nil {
				t.Fatal("more than one persist effect")
			}
			persist = &p
		}
	}
	if persist == nil {
		t.Fatal("no persist effect")
	}
	if persist.History.Sentence != "the cat sat" || persist.History.Score != 75 {
		t.Errorf("history = %+v", persist.History)
	}
	if len(persist.Mistakes) != 3 {
		t.Fatalf("mistakes = %d, want word count 3", len(persist.Mistakes))
	}
	if persist.Mistakes[2].Category != scorer.CategoryBad || persist.Mistakes[2].Word != "sat" {
		t.Errorf("mistake[2] = %+v", persist.Mistakes[2])
	}

	// A replayed scoring event after success must not double-append.
	if effs := m.Apply(Scored{Result: scorer.Result{Accuracy: 75}}); len(effs) != 0 {
		t.Errorf("replayed scored event emitted %v", effs)
	}
}

func TestSubmitUsesReferenceSnapshot(t *testing.T) {
	m := readyMachine(t)

	m.Apply(ToggleRecord{})
	m.Apply(ToggleRecord{})
	effs := m.Apply(RecordingFinalized{Payload: "UklGRg==", PCM: []byte{0, 0}, Duration: 0.1})

	var submit SubmitEffect
	for _, fx := range effs {
		if s, ok := fx.(SubmitEffect); ok {
			submit = s
		}
	}
	if submit.Title != testSample.Text {
		t.Errorf("title = %q, want snapshot %q", submit.Title, testSample.Text)
	}
	if submit.Language != "en" {
		t.Errorf("language = %q", submit.Language)
	}
	if submit.Duration != 0.1 {
		t.Errorf("duration = %v, want the finalized recording length", submit.Duration)
	}
}

func TestScoringErrorRecoversViaNextSample(t *testing.T) {
	m := readyMachine(t)

	m.Apply(ToggleRecord{})
	m.Apply(ToggleRecord{})
	m.Apply(RecordingFinalized{Payload: "UklGRg==", PCM: []byte{0, 0}, Duration: 0.1})
	m.Apply(Scored{Err: errors.New("score: status 502")})

	if m.State() != ErrorState {
		t.Fatalf("state = %v", m.State())
	}
	if m.Status() != "score: status 502" {
		t.Errorf("status = %q, want the error verbatim", m.Status())
	}
	// Record toggle is dead in the error state; only next-sample recovers.
	if effs := m.Apply(ToggleRecord{}); len(effs) != 0 {
		t.Errorf("toggle in error state emitted %v", effs)
	}
	nextSample(t, m)
	if m.State() != SampleReady {
		t.Errorf("state = %v", m.State())
	}
}

func TestToggleDuringSubmitIsRejected(t *testing.T) {
	m := readyMachine(t)

	m.Apply(ToggleRecord{})
	m.Apply(ToggleRecord{})
	m.Apply(RecordingFinalized{Payload: "UklGRg==", PCM: []byte{0, 0}, Duration: 0.1})

	if m.State() != Submitting {
		t.Fatalf("state = %v", m.State())
	}
	if effs := m.Apply(ToggleRecord{}); len(effs) != 0 {
		t.Errorf("toggle while submitting emitted %v", effs)
	}
}

func TestPlayWordAlternates(t *testing.T) {
	m := readyMachine(t)
	completeAttempt(t, m, 90)

	effs := m.Apply(PlayWord{Index: 1})
	if _, ok := effs[0].(PlayReferenceEffect); !ok {
		t.Fatalf("first activation = %v, want reference", effs)
	}
	effs = m.Apply(PlayWord{Index: 1})
	rec, ok := effs[0].(PlayRecordedEffect)
	if !ok {
		t.Fatalf("second activation = %v, want recorded", effs)
	}
	if len(rec.PCM) == 0 {
		t.Error("recorded segment is empty")
	}
	effs = m.Apply(PlayWord{Index: 1})
	if _, ok := effs[0].(PlayReferenceEffect); !ok {
		t.Fatalf("third activation = %v, want reference again", effs)
	}

	// Other words start at reference independently.
	effs = m.Apply(PlayWord{Index: 0})
	if _, ok := effs[0].(PlayReferenceEffect); !ok {
		t.Fatalf("word 0 first activation = %v", effs)
	}

	if effs := m.Apply(PlayWord{Index: 99}); len(effs) != 0 {
		t.Errorf("out-of-range word emitted %v", effs)
	}
}

func TestNewSampleClearsResult(t *testing.T) {
	m := readyMachine(t)
	completeAttempt(t, m, 90)
	if !m.HasResult() {
		t.Fatal("no result after attempt")
	}

	nextSample(t, m)
	if m.HasResult() {
		t.Error("result survived a new sample")
	}
	if effs := m.Apply(PlayWord{Index: 0}); len(effs) != 0 {
		t.Errorf("playback after reset emitted %v", effs)
	}
}
