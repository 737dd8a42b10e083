// Package align maps a scoring result onto the reference sentence: per-letter
// correctness, per-word IPA pairs and severity, and the playback segment for
// each word. The backend's aligned fields may be shorter than the sentence's
// word count; missing entries degrade to worst-case defaults instead of
// failing the render.
package align

import (
	"strings"

	"parla/encoder"
	"parla/log"
	"parla/scorer"
)

const missingIPA = "-"

type Letter struct {
	R       rune
	Correct bool
}

// Word is one rendered word of the reference sentence.
type Word struct {
	Text      string
	Letters   []Letter
	RealIPA   string
	SpokenIPA string
	Severity  int
	// Playback segment in seconds, clamped to the recording's duration.
	Start float64
	End   float64
}

type Alignment struct {
	Words []Word
	// Mismatch is set when any aligned field was shorter than the word
	// count and defaults were substituted.
	Mismatch bool
}

// Build renders a scoring result onto the reference sentence. audioDuration
// is the recorded clip's length in seconds, used to clamp word segments.
func Build(reference string, r scorer.Result, audioDuration float64) Alignment {
	words := strings.Fields(reference)
	a := Alignment{Words: make([]Word, len(words))}

	for i, text := range words {
		w := Word{
			Text:      text,
			RealIPA:   missingIPA,
			SpokenIPA: missingIPA,
			Severity:  scorer.CategoryBad,
		}

		var bitmap string
		if i < len(r.LetterCorrectness) {
			bitmap = r.LetterCorrectness[i]
		} else {
			a.Mismatch = true
		}
		w.Letters = buildLetters(text, bitmap)

		if i < len(r.RealIPAWords) {
			w.RealIPA = r.RealIPAWords[i]
		} else {
			a.Mismatch = true
		}
		if i < len(r.MatchedIPAWords) {
			w.SpokenIPA = r.MatchedIPAWords[i]
		} else {
			a.Mismatch = true
		}
		if i < len(r.WordCategories) {
			w.Severity = r.WordCategories[i]
		} else {
			a.Mismatch = true
		}

		var start, end float64
		if i < len(r.StartOffsets) {
			start = r.StartOffsets[i]
		}
		end = audioDuration
		if i < len(r.EndOffsets) {
			end = r.EndOffsets[i]
		}
		w.Start, w.End = clampSegment(start, end, audioDuration)

		a.Words[i] = w
	}

	if a.Mismatch {
		log.Warnf("alignment data shorter than %d words, rendering worst-case defaults", len(words))
	}
	return a
}

// buildLetters marks each rune of the word against the '0'/'1' bitmap.
// Letters beyond the end of the bitmap count as incorrect.
func buildLetters(text, bitmap string) []Letter {
	runes := []rune(text)
	letters := make([]Letter, len(runes))
	for i, r := range runes {
		letters[i] = Letter{R: r, Correct: i < len(bitmap) && bitmap[i] == '1'}
	}
	return letters
}

func clampSegment(start, end, duration float64) (float64, float64) {
	if duration < 0 {
		duration = 0
	}
	if start < 0 {
		start = 0
	}
	if start > duration {
		start = duration
	}
	if end > duration {
		end = duration
	}
	if end < start {
		end = start
	}
	return start, end
}

// SegmentPCM cuts the word's playback segment out of the recorded 16-bit
// mono PCM clip. Bounds are re-clamped against the actual byte length so a
// stale duration can never slice out of range.
func SegmentPCM(pcm []byte, start, end float64) []byte {
	const bytesPerSecond = encoder.SampleRate * encoder.BitsPerSample / 8
	from := int(start*bytesPerSecond) &^ 1
	to := int(end*bytesPerSecond) &^ 1
	if from < 0 {
		from = 0
	}
	if to > len(pcm) {
		to = len(pcm)
	}
	if from >= to {
		return nil
	}
	return pcm[from:to]
}
