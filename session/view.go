package session

import "parla/align"

// Snapshot is the immutable view model pushed after every dispatch. The
// core never queries presentation state; the UI renders whatever the last
// snapshot says.
type Snapshot struct {
	State  State
	Status string

	Language   string
	Difficulty int

	Sentence    string
	IPA         string
	Translation string

	SampleCounter   int
	CumulativeScore int

	HasResult   bool
	Accuracy    float64
	RecordedIPA string
	Words       []align.Word
	Mismatch    bool

	BackendDown bool
}

// ViewSink consumes view snapshots.
type ViewSink interface {
	Push(Snapshot)
}

func (m *Machine) snapshotView() Snapshot {
	return Snapshot{
		State:           m.state,
		Status:          m.status,
		Language:        m.language,
		Difficulty:      m.difficulty,
		Sentence:        m.sample.Text,
		IPA:             m.sample.IPA,
		Translation:     m.sample.Translation,
		SampleCounter:   m.sampleCounter,
		CumulativeScore: m.cumulativeScore,
		HasResult:       m.hasResult,
		Accuracy:        m.result.Accuracy,
		RecordedIPA:     m.result.IPATranscript,
		Words:           m.alignment.Words,
		Mismatch:        m.alignment.Mismatch,
		BackendDown:     m.backendDown,
	}
}
