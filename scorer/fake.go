package scorer

import "context"

// Fake is a scripted Client for tests. Queued samples and results are
// consumed in order; the last entry repeats once the queue drains.
type Fake struct {
	Samples    []Sample
	Results    []Result
	WarmupErr  error
	SampleErr  error
	ScoreErr   error
	ScoreCalls []ScoreCall
	FetchCalls int
	Warmups    int

	sampleIdx int
	resultIdx int
}

type ScoreCall struct {
	Title    string
	Payload  string
	Language string
}

func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Warmup(_ context.Context) error {
	f.Warmups++
	return f.WarmupErr
}

func (f *Fake) FetchSample(_ context.Context, _ int, _ string) (Sample, error) {
	f.FetchCalls++
	if f.SampleErr != nil {
		return Sample{}, f.SampleErr
	}
	if len(f.Samples) == 0 {
		return Sample{Text: "the quick brown fox", IPA: "ðə kwɪk braʊn fɑks"}, nil
	}
	s := f.Samples[f.sampleIdx]
	if f.sampleIdx < len(f.Samples)-1 {
		f.sampleIdx++
	}
	return s, nil
}

func (f *Fake) Score(_ context.Context, title, payload, language string) (Result, error) {
	f.ScoreCalls = append(f.ScoreCalls, ScoreCall{Title: title, Payload: payload, Language: language})
	if f.ScoreErr != nil {
		return Result{}, f.ScoreErr
	}
	if len(f.Results) == 0 {
		return Result{Accuracy: 100}, nil
	}
	r := f.Results[f.resultIdx]
	if f.resultIdx < len(f.Results)-1 {
		f.resultIdx++
	}
	return r, nil
}
