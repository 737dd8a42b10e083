package session

import (
	"context"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"parla/audio"
	"parla/encoder"
	"parla/scorer"
	"parla/store"
)

type captureSink struct {
	snaps []Snapshot
}

func (s *captureSink) Push(snap Snapshot) { s.snaps = append(s.snaps, snap) }

func (s *captureSink) last() Snapshot { return s.snaps[len(s.snaps)-1] }

type recordingSpeaker struct {
	said []string
}

func (s *recordingSpeaker) Say(text, _ string) error {
	s.said = append(s.said, text)
	return nil
}

func testClip(seconds int) []byte {
	n := seconds * encoder.SampleRate
	pcm := make([]byte, n*2)
	for i := range n {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(i%500))
	}
	return pcm
}

func newTestRunner(t *testing.T, client scorer.Client) (*Runner, *captureSink, *audio.FakeContext) {
	t.Helper()
	audioCtx := audio.NewFakeContext(testClip(1))
	rec := audio.NewRecorder(audioCtx, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err := rec.Initialize(nil); err != nil {
		t.Fatal(err)
	}

	db, err := store.Open(filepath.Join(t.TempDir(), "parla.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	player, err := audioCtx.NewPlayer(audio.CaptureConfig{})
	if err != nil {
		t.Fatal(err)
	}

	sink := &captureSink{}
	r := &Runner{
		Machine:  New("en", 1),
		Recorder: rec,
		Client:   client,
		DB:       db,
		Archive:  &store.Archive{},
		Player:   player,
		Speaker:  NopSpeaker{},
		Sink:     sink,
		Backoff:  time.Millisecond,
	}
	return r, sink, audioCtx
}

func TestRunnerFullAttempt(t *testing.T) {
	fake := scorer.NewFake()
	fake.Samples = []scorer.Sample{{Text: "the cat sat", IPA: "ðə kæt sæt"}}
	fake.Results = []scorer.Result{{
		Accuracy:          80,
		IPATranscript:     "ðə kət sæt",
		RealIPAWords:      []string{"ðə", "kæt", "sæt"},
		MatchedIPAWords:   []string{"ðə", "kət", "sæt"},
		WordCategories:    []int{0, 1, 0},
		LetterCorrectness: []string{"111", "010", "111"},
	}}

	r, sink, _ := newTestRunner(t, fake)
	ctx := context.Background()

	r.Dispatch(ctx, Start{})
	snap := sink.last()
	if snap.State != SampleReady || snap.Sentence != "the cat sat" {
		t.Fatalf("after start: %+v", snap)
	}
	if snap.Language != "en" || snap.Difficulty != 1 {
		t.Errorf("snapshot lang/difficulty = %q/%d", snap.Language, snap.Difficulty)
	}
	if fake.Warmups != 1 {
		t.Errorf("warmups = %d", fake.Warmups)
	}

	r.Dispatch(ctx, ToggleRecord{})
	if sink.last().State != Recording {
		t.Fatalf("state = %v", sink.last().State)
	}

	r.Dispatch(ctx, ToggleRecord{})
	snap = sink.last()
	if snap.State != SampleReady || !snap.HasResult {
		t.Fatalf("after attempt: state = %v, hasResult = %v", snap.State, snap.HasResult)
	}
	if snap.Accuracy != 80 || len(snap.Words) != 3 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.CumulativeScore != 80 { // tier 1, x1.0
		t.Errorf("cumulative = %d", snap.CumulativeScore)
	}

	if len(fake.ScoreCalls) != 1 {
		t.Fatalf("score calls = %d", len(fake.ScoreCalls))
	}
	call := fake.ScoreCalls[0]
	if call.Title != "the cat sat" || call.Language != "en" {
		t.Errorf("score call = %+v", call)
	}
	if len(call.Payload) < encoder.MinPayloadChars {
		t.Errorf("payload length = %d", len(call.Payload))
	}

	history := r.DB.TryLoadHistory(ctx)
	if len(history) != 1 || history[0].Score != 80 {
		t.Errorf("history = %+v", history)
	}
	mistakes := r.DB.TryLoadMistakes(ctx)
	if len(mistakes) != 3 {
		t.Errorf("mistakes = %d", len(mistakes))
	}
}

func TestRunnerWarmupRetriesThenGivesUp(t *testing.T) {
	fake := scorer.NewFake()
	fake.WarmupErr = errors.New("connection refused")

	r, sink, _ := newTestRunner(t, fake)
	r.Dispatch(context.Background(), Start{})

	if fake.Warmups != WarmupMaxTries {
		t.Errorf("warmup attempts = %d, want %d", fake.Warmups, WarmupMaxTries)
	}
	snap := sink.last()
	if snap.State != ErrorState || !snap.BackendDown {
		t.Errorf("snapshot = %+v", snap)
	}
	if fake.FetchCalls != 0 {
		t.Errorf("sample fetched despite dead backend: %d", fake.FetchCalls)
	}
}

func TestRunnerWordPlayback(t *testing.T) {
	fake := scorer.NewFake()
	fake.Results = []scorer.Result{{
		Accuracy:          90,
		RealIPAWords:      []string{"ðə", "kæt", "sæt"},
		MatchedIPAWords:   []string{"ðə", "kæt", "sæt"},
		WordCategories:    []int{0, 0, 0},
		LetterCorrectness: []string{"111", "111", "111"},
		StartOffsets:      []float64{0, 0.3, 0.6},
		EndOffsets:        []float64{0.3, 0.6, 1.0},
	}}

	r, _, audioCtx := newTestRunner(t, fake)
	speaker := &recordingSpeaker{}
	r.Speaker = speaker
	ctx := context.Background()

	r.Dispatch(ctx, Start{})
	r.Dispatch(ctx, ToggleRecord{})
	r.Dispatch(ctx, ToggleRecord{})

	r.Dispatch(ctx, PlayWord{Index: 1})
	if len(speaker.said) != 1 || speaker.said[0] != "quick" {
		t.Fatalf("said = %v", speaker.said)
	}
	if len(audioCtx.Played()) != 0 {
		t.Fatal("recorded segment played on first activation")
	}

	r.Dispatch(ctx, PlayWord{Index: 1})
	played := audioCtx.Played()
	if len(played) != 1 {
		t.Fatalf("played = %d clips", len(played))
	}
	// Word 1 spans 0.3s..0.6s of a 1s clip.
	want := int(0.3*encoder.SampleRate) * 2
	if len(played[0]) != want {
		t.Errorf("segment bytes = %d, want %d", len(played[0]), want)
	}
}

// The TUI changes difficulty and language from its own goroutine while
// dispatches run on others; both paths must serialize on the runner lock.
func TestRunnerSettersSerializeWithDispatch(t *testing.T) {
	fake := scorer.NewFake()
	r, sink, _ := newTestRunner(t, fake)
	ctx := context.Background()

	languages := []string{"en", "de", "hi", "mr"}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			r.SetDifficulty(i % 4)
			r.SetLanguage(languages[i%len(languages)])
		}
	}()

	r.Dispatch(ctx, Start{})
	r.Dispatch(ctx, ToggleRecord{})
	r.Dispatch(ctx, ToggleRecord{})
	<-done

	snap := sink.last()
	if snap.Difficulty < 0 || snap.Difficulty > 3 {
		t.Errorf("difficulty = %d", snap.Difficulty)
	}
	var known bool
	for _, l := range languages {
		if snap.Language == l {
			known = true
		}
	}
	if !known {
		t.Errorf("language = %q", snap.Language)
	}
	if samples, _ := r.Totals(); samples != 1 {
		t.Errorf("samples = %d", samples)
	}
}

func TestRunnerTooShortRecordingSkipsScoring(t *testing.T) {
	fake := scorer.NewFake()
	audioCtx := audio.NewFakeContext(nil) // silent device
	rec := audio.NewRecorder(audioCtx, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err := rec.Initialize(nil); err != nil {
		t.Fatal(err)
	}

	sink := &captureSink{}
	r := &Runner{
		Machine:  New("en", 1),
		Recorder: rec,
		Client:   fake,
		Archive:  &store.Archive{},
		Speaker:  NopSpeaker{},
		Sink:     sink,
	}
	ctx := context.Background()

	r.Dispatch(ctx, Start{})
	r.Dispatch(ctx, ToggleRecord{})
	r.Dispatch(ctx, ToggleRecord{})

	if len(fake.ScoreCalls) != 0 {
		t.Errorf("scoring reached with too-short recording: %d calls", len(fake.ScoreCalls))
	}
	snap := sink.last()
	if snap.State != SampleReady || snap.Status == "" {
		t.Errorf("snapshot = %+v", snap)
	}
}
