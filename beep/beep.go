// Package beep plays short audio cues for recording start, stop and errors
// through the active playback device.
package beep

import (
	"encoding/binary"
	"math"
	"sync"

	"parla/audio"
	"parla/encoder"
)

const (
	// Start cue: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End cue: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error cue: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

var (
	mu       sync.Mutex
	player   audio.Player
	disabled bool

	genOnce      sync.Once
	startSamples []byte
	endSamples   []byte
	errorSamples []byte
)

func Disable() {
	mu.Lock()
	disabled = true
	mu.Unlock()
}

// Init opens a playback stream on the given audio context. Without Init
// every cue is a no-op.
func Init(ctx audio.Context) error {
	p, err := ctx.NewPlayer(audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return err
	}
	mu.Lock()
	player = p
	mu.Unlock()
	return nil
}

func Close() {
	mu.Lock()
	if player != nil {
		player.Close()
		player = nil
	}
	mu.Unlock()
}

func Start() { play(&startSamples) }
func End()   { play(&endSamples) }
func Error() { play(&errorSamples) }

func play(samples *[]byte) {
	genOnce.Do(func() {
		startSamples = tick(startFreq, 0.2, startVolume, startDecay)
		endSamples = tick(endFreq, 0.2, endVolume, endDecay)
		errorSamples = doubleBeep(errorFreq, 0.08, 0.05, errorVolume, errorDecay)
	})
	mu.Lock()
	p := player
	off := disabled
	mu.Unlock()
	if p == nil || off {
		return
	}
	// Playback is a cue, not a blocking step.
	go p.Play(*samples)
}

// tick generates an exponentially decaying sine as 16-bit mono PCM.
func tick(freq, duration, volume, decay float64) []byte {
	n := int(encoder.SampleRate * duration)
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / encoder.SampleRate
		envelope := math.Exp(-t * decay)
		s := int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func doubleBeep(freq, beepDur, gapDur, volume, decay float64) []byte {
	one := tick(freq, beepDur, volume, decay)
	gap := make([]byte, int(encoder.SampleRate*gapDur)*2)
	out := make([]byte, 0, len(one)*2+len(gap))
	out = append(out, one...)
	out = append(out, gap...)
	out = append(out, one...)
	return out
}
