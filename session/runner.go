package session

import (
	"context"
	"sync"
	"time"

	"parla/audio"
	"parla/log"
	"parla/scorer"
	"parla/store"
)

// Speaker plays a reference pronunciation through a platform speech
// synthesizer.
type Speaker interface {
	Say(text, language string) error
}

// NopSpeaker discards playback requests. Used when no synthesizer is
// configured.
type NopSpeaker struct{}

func (NopSpeaker) Say(string, string) error { return nil }

// Runner executes machine effects against the real collaborators and feeds
// completion events back in. Dispatches are serialized; the machine never
// sees concurrent calls.
type Runner struct {
	mu sync.Mutex

	Machine  *Machine
	Recorder *audio.Recorder
	Client   scorer.Client
	DB       *store.Store
	Archive  *store.Archive
	Player   audio.Player
	Speaker  Speaker
	Sink     ViewSink

	// Backoff is the pause between warmup retries.
	Backoff time.Duration
}

// Dispatch applies the event, runs every resulting effect to completion and
// pushes a fresh view snapshot.
func (r *Runner) Dispatch(ctx context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	queue := []Event{ev}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		for _, fx := range r.Machine.Apply(next) {
			if follow := r.execute(ctx, fx); follow != nil {
				queue = append(queue, follow)
			}
		}
	}

	if r.Sink != nil {
		r.Sink.Push(r.Machine.snapshotView())
	}
}

// SetDifficulty changes the tier under the dispatch lock. The machine's
// fields are only ever touched while holding r.mu; callers outside a
// dispatch must go through these setters and read state from snapshots.
func (r *Runner) SetDifficulty(tier int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Machine.SetDifficulty(tier)
	if r.Sink != nil {
		r.Sink.Push(r.Machine.snapshotView())
	}
}

// Totals reports the session counters for the shutdown log line.
func (r *Runner) Totals() (samples, score int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Machine.SampleCounter(), r.Machine.CumulativeScore()
}

func (r *Runner) SetLanguage(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Machine.SetLanguage(code)
	if r.Sink != nil {
		r.Sink.Push(r.Machine.snapshotView())
	}
}

func (r *Runner) execute(ctx context.Context, fx Effect) Event {
	switch fx := fx.(type) {
	case WarmupEffect:
		if fx.Attempt > 1 && r.Backoff > 0 {
			select {
			case <-time.After(r.Backoff):
			case <-ctx.Done():
				return WarmupDone{Attempt: fx.Attempt, Err: ctx.Err()}
			}
		}
		err := r.Client.Warmup(ctx)
		if err != nil {
			log.Warnf("warmup attempt %d failed: %v", fx.Attempt, err)
		}
		return WarmupDone{Attempt: fx.Attempt, Err: err}

	case FetchSampleEffect:
		sample, err := r.Client.FetchSample(ctx, fx.Category, fx.Language)
		if err != nil {
			log.Errorf("sample fetch failed: %v", err)
		}
		return SampleFetched{Sample: sample, Err: err}

	case StartRecordingEffect:
		if err := r.Recorder.Start(); err != nil {
			return RecordingFinalized{Err: err}
		}
		return nil

	case StopRecordingEffect:
		fin, err := r.Recorder.Stop()
		return RecordingFinalized{
			Payload:  fin.Payload,
			PCM:      fin.PCM,
			Duration: fin.Duration,
			Err:      err,
		}

	case SubmitEffect:
		started := time.Now()
		result, err := r.Client.Score(ctx, fx.Title, fx.Payload, fx.Language)
		if err != nil {
			log.Errorf("scoring failed: %v", err)
		} else {
			m := log.AttemptMetrics{
				AudioLengthS: fx.Duration,
				PayloadKB:    float64(len(fx.Payload)) / 1024,
				TotalTimeMs:  float64(time.Since(started).Milliseconds()),
				Accuracy:     result.Accuracy,
			}
			connReused := false
			if result.Metrics != nil {
				m.DNSTimeMs = float64(result.Metrics.DNS.Milliseconds())
				m.TLSTimeMs = float64(result.Metrics.TLS.Milliseconds())
				m.TTFBMs = float64(result.Metrics.TTFB.Milliseconds())
				connReused = result.Metrics.ConnReused
			}
			log.Attempt(m, fx.Language, connReused)
		}
		return Scored{Result: result, Err: err}

	case ArchiveEffect:
		r.Archive.TrySave(fx.PCM, time.Now())
		return nil

	case PersistEffect:
		r.DB.TryAppendHistory(ctx, fx.History)
		r.DB.TryAppendMistakes(ctx, fx.Mistakes)
		log.PracticeLine(fx.History.Sentence, float64(fx.History.Score))
		return Rendered{}

	case PlayReferenceEffect:
		speaker := r.Speaker
		if speaker == nil {
			speaker = NopSpeaker{}
		}
		if err := speaker.Say(fx.Text, r.Machine.Language()); err != nil {
			log.Warnf("reference playback failed: %v", err)
		}
		return nil

	case PlayRecordedEffect:
		if r.Player == nil || len(fx.PCM) == 0 {
			return nil
		}
		if err := r.Player.Play(fx.PCM); err != nil {
			log.Warnf("segment playback failed: %v", err)
		}
		return nil

	default:
		return nil
	}
}
