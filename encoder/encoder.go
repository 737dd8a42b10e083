// Package encoder turns raw captured PCM into transport and archive formats.
// The transport contract with the scoring backend is fixed: mono, 16 kHz,
// 16-bit PCM in a WAV container, base64-encoded for JSON transport.
package encoder

import "errors"

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096

	// MinPayloadChars is the minimum accepted length of the base64 payload.
	// Anything shorter is silence, a revoked permission, or a device glitch.
	MinPayloadChars = 50
)

var (
	ErrRecordingTooShort = errors.New("encoder: recording too short")
	ErrCodec             = errors.New("encoder: audio encode failed")
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
}
