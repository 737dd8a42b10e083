package encoder

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

const wavHeaderSize = 44

// WavEncoder writes 16-bit little-endian PCM into a RIFF/WAVE container.
// The header is written up front with zero sizes and patched on Close.
type WavEncoder struct {
	buf         bytes.Buffer
	totalFrames uint64
	closed      bool
}

func NewWav() *WavEncoder {
	e := &WavEncoder{}
	e.buf.Write(make([]byte, wavHeaderSize))
	return e
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	if e.closed {
		return fmt.Errorf("%w: write after close", ErrCodec)
	}
	for _, s := range block {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(s))
		e.buf.Write(b[:])
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *WavEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	data := e.buf.Bytes()
	dataLen := uint32(len(data) - wavHeaderSize)

	copy(data[0:4], "RIFF")
	binary.LittleEndian.PutUint32(data[4:8], 36+dataLen)
	copy(data[8:12], "WAVE")
	copy(data[12:16], "fmt ")
	binary.LittleEndian.PutUint32(data[16:20], 16)
	binary.LittleEndian.PutUint16(data[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(data[22:24], Channels)
	binary.LittleEndian.PutUint32(data[24:28], SampleRate)
	binary.LittleEndian.PutUint32(data[28:32], SampleRate*Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(data[32:34], Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(data[34:36], BitsPerSample)
	copy(data[36:40], "data")
	binary.LittleEndian.PutUint32(data[40:44], dataLen)
	return nil
}

func (e *WavEncoder) Bytes() []byte {
	return e.buf.Bytes()
}

func (e *WavEncoder) TotalFrames() uint64 {
	return e.totalFrames
}

// EncodePayload concatenates raw capture chunks into the transport payload:
// base64 of a 16 kHz mono 16-bit WAV. Zero-length chunks are dropped. A
// payload below MinPayloadChars reports ErrRecordingTooShort so the caller
// never submits a failed recording to the scoring service.
func EncodePayload(chunks [][]byte) (string, error) {
	enc := NewWav()
	for _, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		if err := enc.EncodeBlock(bytesToSamples(chunk)); err != nil {
			return "", err
		}
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	payload := base64.StdEncoding.EncodeToString(enc.Bytes())
	if len(payload) < MinPayloadChars || enc.TotalFrames() == 0 {
		return "", ErrRecordingTooShort
	}
	return payload, nil
}

// bytesToSamples reinterprets little-endian PCM bytes as int16 samples.
// A trailing odd byte is a truncated sample and is dropped.
func bytesToSamples(pcm []byte) []int16 {
	samples := make([]int16, 0, len(pcm)/2)
	for i := 0; i+1 < len(pcm); i += 2 {
		samples = append(samples, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	return samples
}
