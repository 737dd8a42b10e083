// Package session sequences a practice run: backend warmup, sample fetch,
// recording, submission and result rendering. The Machine is a pure state
// machine over events and effects so tests can drive a full session without
// a microphone or network; the Runner executes effects against real
// collaborators.
package session

import (
	"fmt"
	"math"
	"time"

	"parla/align"
	"parla/scorer"
	"parla/store"
)

type State int

const (
	Idle State = iota
	Initializing
	FetchingSample
	SampleReady
	Recording
	Submitting
	RenderingResult
	ErrorState
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Initializing:
		return "Initializing"
	case FetchingSample:
		return "FetchingSample"
	case SampleReady:
		return "SampleReady"
	case Recording:
		return "Recording"
	case Submitting:
		return "Submitting"
	case RenderingResult:
		return "RenderingResult"
	case ErrorState:
		return "Error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// WarmupMaxTries bounds the cold-backend ping loop. Once exhausted the
// backend stays marked unavailable until the process restarts.
const WarmupMaxTries = 4

// tierMultipliers scale the per-attempt score before it joins the running
// total, keyed by difficulty tier.
var tierMultipliers = [4]float64{1.3, 1.0, 1.3, 1.6}

func Multiplier(tier int) float64 {
	if tier < 0 || tier >= len(tierMultipliers) {
		return 1.0
	}
	return tierMultipliers[tier]
}

// Event is an input to the machine: a user action or the completion of a
// previously requested effect.
type Event interface{ isEvent() }

type Start struct{}

type WarmupDone struct {
	Attempt int
	Err     error
}

type SampleFetched struct {
	Sample scorer.Sample
	Err    error
}

// ToggleRecord is the single record control: it starts from SampleReady and
// stops from Recording.
type ToggleRecord struct{}

type RecordingFinalized struct {
	Payload  string
	PCM      []byte
	Duration float64
	Err      error
}

type Scored struct {
	Result scorer.Result
	Err    error
}

type Rendered struct{}

type NextSample struct{}

// PlayWord is a per-word playback request. Successive activations on the
// same word alternate between the reference pronunciation and the user's
// recorded segment, starting with the reference.
type PlayWord struct{ Index int }

func (Start) isEvent()              {}
func (WarmupDone) isEvent()         {}
func (SampleFetched) isEvent()      {}
func (ToggleRecord) isEvent()       {}
func (RecordingFinalized) isEvent() {}
func (Scored) isEvent()             {}
func (Rendered) isEvent()           {}
func (NextSample) isEvent()         {}
func (PlayWord) isEvent()           {}

// Effect is work the machine requests from the Runner.
type Effect interface{ isEffect() }

type WarmupEffect struct{ Attempt int }

type FetchSampleEffect struct {
	Category int
	Language string
}

type StartRecordingEffect struct{}

type StopRecordingEffect struct{}

type SubmitEffect struct {
	Title    string
	Payload  string
	Language string
	Duration float64
}

type ArchiveEffect struct{ PCM []byte }

type PersistEffect struct {
	History  store.HistoryRecord
	Mistakes []store.MistakeRecord
}

type PlayReferenceEffect struct{ Text string }

type PlayRecordedEffect struct{ PCM []byte }

func (WarmupEffect) isEffect()         {}
func (FetchSampleEffect) isEffect()    {}
func (StartRecordingEffect) isEffect() {}
func (StopRecordingEffect) isEffect()  {}
func (SubmitEffect) isEffect()         {}
func (ArchiveEffect) isEffect()        {}
func (PersistEffect) isEffect()        {}
func (PlayReferenceEffect) isEffect()  {}
func (PlayRecordedEffect) isEffect()   {}

// Machine owns all mutable session state. Apply is the only mutation point.
type Machine struct {
	state      State
	language   string
	difficulty int

	backendDown bool
	status      string

	sample          scorer.Sample
	sampleCounter   int
	cumulativeScore int

	// snapshot is the reference sentence captured when recording starts,
	// so the scored text always matches the audio even if the display
	// changes mid-flight. Cleared after every submit outcome.
	snapshot string

	recordedPCM      []byte
	recordedDuration float64

	result           scorer.Result
	alignment        align.Alignment
	hasResult        bool
	playRecordedNext []bool

	now func() time.Time
}

func New(language string, difficulty int) *Machine {
	if difficulty < 0 || difficulty > 3 {
		difficulty = 1
	}
	return &Machine{
		state:      Idle,
		language:   language,
		difficulty: difficulty,
		now:        time.Now,
	}
}

func (m *Machine) State() State          { return m.state }
func (m *Machine) Status() string        { return m.status }
func (m *Machine) Language() string      { return m.language }
func (m *Machine) Difficulty() int       { return m.difficulty }
func (m *Machine) BackendDown() bool     { return m.backendDown }
func (m *Machine) Sample() scorer.Sample { return m.sample }
func (m *Machine) SampleCounter() int    { return m.sampleCounter }
func (m *Machine) CumulativeScore() int  { return m.cumulativeScore }
func (m *Machine) HasResult() bool       { return m.hasResult }
func (m *Machine) Result() scorer.Result { return m.result }
func (m *Machine) Alignment() align.Alignment {
	return m.alignment
}

// SetDifficulty applies outside an in-flight attempt; the new tier takes
// effect on the next sample fetch.
func (m *Machine) SetDifficulty(tier int) {
	if tier >= 0 && tier <= 3 {
		m.difficulty = tier
	}
}

func (m *Machine) SetLanguage(code string) {
	if code != "" {
		m.language = code
	}
}

// Apply advances the machine and returns the effects the caller must
// execute. It never blocks and never touches a device or the network.
func (m *Machine) Apply(ev Event) []Effect {
	switch ev := ev.(type) {
	case Start:
		return m.applyStart()
	case WarmupDone:
		return m.applyWarmupDone(ev)
	case SampleFetched:
		return m.applySampleFetched(ev)
	case ToggleRecord:
		return m.applyToggleRecord()
	case RecordingFinalized:
		return m.applyRecordingFinalized(ev)
	case Scored:
		return m.applyScored(ev)
	case Rendered:
		if m.state == RenderingResult {
			m.state = SampleReady
		}
		return nil
	case NextSample:
		return m.applyNextSample()
	case PlayWord:
		return m.applyPlayWord(ev)
	default:
		return nil
	}
}

func (m *Machine) applyStart() []Effect {
	if m.state != Idle {
		return nil
	}
	m.state = Initializing
	m.status = "waking up the scoring service..."
	return []Effect{WarmupEffect{Attempt: 1}}
}

func (m *Machine) applyWarmupDone(ev WarmupDone) []Effect {
	if m.state != Initializing {
		return nil
	}
	if ev.Err == nil {
		m.status = ""
		return m.fetchSample()
	}
	if ev.Attempt < WarmupMaxTries {
		m.status = fmt.Sprintf("scoring service not ready, retrying (%d/%d)...", ev.Attempt+1, WarmupMaxTries)
		return []Effect{WarmupEffect{Attempt: ev.Attempt + 1}}
	}
	m.backendDown = true
	m.state = ErrorState
	m.status = "scoring service unavailable, restart to try again"
	return nil
}

func (m *Machine) fetchSample() []Effect {
	m.state = FetchingSample
	return []Effect{FetchSampleEffect{Category: m.difficulty, Language: m.language}}
}

func (m *Machine) applySampleFetched(ev SampleFetched) []Effect {
	if m.state != FetchingSample {
		return nil
	}
	if ev.Err != nil {
		m.state = ErrorState
		m.status = ev.Err.Error()
		return nil
	}
	m.sample = ev.Sample
	m.sampleCounter++
	m.clearAttempt()
	m.state = SampleReady
	m.status = ""
	return nil
}

// clearAttempt resets per-attempt display state when a new sample arrives.
func (m *Machine) clearAttempt() {
	m.snapshot = ""
	m.recordedPCM = nil
	m.recordedDuration = 0
	m.result = scorer.Result{}
	m.alignment = align.Alignment{}
	m.hasResult = false
	m.playRecordedNext = nil
}

func (m *Machine) applyToggleRecord() []Effect {
	switch m.state {
	case SampleReady:
		m.snapshot = m.sample.Text
		m.state = Recording
		m.status = "recording..."
		return []Effect{StartRecordingEffect{}}
	case Recording:
		m.status = "scoring..."
		return []Effect{StopRecordingEffect{}}
	case Submitting:
		m.status = "still scoring the last attempt"
		return nil
	default:
		return nil
	}
}

func (m *Machine) applyRecordingFinalized(ev RecordingFinalized) []Effect {
	if m.state != Recording {
		return nil
	}
	if ev.Err != nil {
		// Too-short and codec failures recover in place; the snapshot is
		// discarded and the scoring service is never contacted.
		m.snapshot = ""
		m.state = SampleReady
		m.status = ev.Err.Error()
		return nil
	}
	m.recordedPCM = ev.PCM
	m.recordedDuration = ev.Duration
	m.state = Submitting
	return []Effect{
		ArchiveEffect{PCM: ev.PCM},
		SubmitEffect{Title: m.snapshot, Payload: ev.Payload, Language: m.language, Duration: ev.Duration},
	}
}

func (m *Machine) applyScored(ev Scored) []Effect {
	if m.state != Submitting {
		return nil
	}
	reference := m.snapshot
	m.snapshot = ""

	if ev.Err != nil {
		m.state = ErrorState
		m.status = ev.Err.Error()
		return nil
	}

	m.result = ev.Result
	m.alignment = align.Build(reference, ev.Result, m.recordedDuration)
	m.hasResult = true
	m.playRecordedNext = make([]bool, len(m.alignment.Words))
	m.cumulativeScore += int(math.Round(ev.Result.Accuracy * Multiplier(m.difficulty)))
	m.state = RenderingResult
	m.status = ""

	ts := m.now()
	mistakes := make([]store.MistakeRecord, len(m.alignment.Words))
	for i, w := range m.alignment.Words {
		mistakes[i] = store.MistakeRecord{
			Word:      w.Text,
			RealIPA:   w.RealIPA,
			SpokenIPA: w.SpokenIPA,
			Category:  w.Severity,
			Language:  m.language,
			Timestamp: ts,
		}
	}
	return []Effect{PersistEffect{
		History: store.HistoryRecord{
			Sentence:  reference,
			Score:     int(math.Round(ev.Result.Accuracy)),
			Language:  m.language,
			Timestamp: ts,
		},
		Mistakes: mistakes,
	}}
}

func (m *Machine) applyNextSample() []Effect {
	switch m.state {
	case Idle, Initializing, FetchingSample, Recording, Submitting:
		return nil
	}
	if m.backendDown {
		m.state = ErrorState
		m.status = "scoring service unavailable, restart to try again"
		return nil
	}
	return m.fetchSample()
}

func (m *Machine) applyPlayWord(ev PlayWord) []Effect {
	if !m.hasResult || ev.Index < 0 || ev.Index >= len(m.alignment.Words) {
		return nil
	}
	w := m.alignment.Words[ev.Index]
	if m.playRecordedNext[ev.Index] {
		m.playRecordedNext[ev.Index] = false
		return []Effect{PlayRecordedEffect{
			PCM: align.SegmentPCM(m.recordedPCM, w.Start, w.End),
		}}
	}
	m.playRecordedNext[ev.Index] = true
	return []Effect{PlayReferenceEffect{Text: w.Text}}
}
