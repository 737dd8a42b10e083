package audio

import (
	"encoding/binary"
	"math"
)

// rmsLevel returns the normalized RMS of a 16-bit little-endian PCM chunk,
// in [0, 1]. Used for the live level meter while recording.
func rmsLevel(data []byte) float64 {
	if len(data) < 2 {
		return 0
	}
	var sumSquares float64
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(len(data)/2))
}
