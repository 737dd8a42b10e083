// Package audio owns the microphone and speaker lifecycle. Platform backends
// (PulseAudio on Linux, miniaudio elsewhere) hide behind small interfaces so
// the rest of the program can run against a fake device in tests.
package audio

import (
	"errors"
	"strings"
)

var ErrDeviceUnavailable = errors.New("audio: no capture device or permission denied")

var btKeywords = []string{
	"airpods", "beats", "bose", "jabra", "galaxy buds", "pixel buds",
	"sony wh-", "sony wf-", "bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth flags headset microphones that typically capture at phone-call
// quality, which tanks pronunciation scoring.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

// CaptureConfig carries the fixed capture constraints agreed with the scoring
// backend: mono 16 kHz with echo cancellation and noise suppression where the
// platform supports them.
type CaptureConfig struct {
	SampleRate       uint32
	Channels         uint32
	EchoCancellation bool
	NoiseSuppression bool
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	NewPlayer(config CaptureConfig) (Player, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// Player plays raw 16-bit mono PCM. Play blocks until the clip finishes or
// Stop is called from another goroutine.
type Player interface {
	Play(pcm []byte) error
	Stop()
	Close()
}
