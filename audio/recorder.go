package audio

import (
	"fmt"
	"sync"

	"parla/encoder"
)

type RecorderState int

const (
	Uninitialized RecorderState = iota
	DeviceReady
	Recording
	PermissionDenied
)

func (s RecorderState) String() string {
	switch s {
	case DeviceReady:
		return "ready"
	case Recording:
		return "recording"
	case PermissionDenied:
		return "permission-denied"
	default:
		return "uninitialized"
	}
}

// Finalized is the outcome of one recording: the transport payload plus the
// raw PCM kept in memory for per-word segment replay.
type Finalized struct {
	Payload  string
	PCM      []byte
	Frames   uint64
	Duration float64 // seconds
}

// Recorder is the capture controller. It owns the device lifecycle and the
// chunk buffer for the recording in progress. All methods are safe for
// concurrent use; a Start while already recording is an idempotent no-op so
// a double trigger can never duplicate audio.
type Recorder struct {
	ctx    Context
	config CaptureConfig

	mu     sync.Mutex
	state  RecorderState
	device CaptureDevice
	chunks [][]byte
	frames uint64

	// OnLevel, if set, receives the RMS level of each captured chunk.
	OnLevel func(level float64)
}

func NewRecorder(ctx Context, config CaptureConfig) *Recorder {
	return &Recorder{ctx: ctx, config: config}
}

// Initialize opens the capture device with the fixed constraints. Denial or
// absence of a device parks the recorder in PermissionDenied; retrying
// requires another Initialize call after the user fixes permissions.
func (r *Recorder) Initialize(device *DeviceInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, err := r.ctx.NewCapture(device, r.config)
	if err != nil {
		r.state = PermissionDenied
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if r.device != nil {
		r.device.Close()
	}
	r.device = dev
	r.state = DeviceReady
	return nil
}

func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start clears the chunk buffer and begins accumulating capture callbacks.
// Valid only from DeviceReady; calling it while Recording is a no-op.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.state == Recording {
		r.mu.Unlock()
		return nil
	}
	if r.state != DeviceReady {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("%w: recorder %s", ErrDeviceUnavailable, state)
	}
	r.chunks = nil
	r.frames = 0
	r.state = Recording
	dev := r.device
	r.mu.Unlock()

	dev.SetCallback(func(data []byte, frameCount uint32) {
		chunk := make([]byte, len(data))
		copy(chunk, data)
		r.mu.Lock()
		if r.state != Recording {
			r.mu.Unlock()
			return
		}
		r.chunks = append(r.chunks, chunk)
		r.frames += uint64(frameCount)
		onLevel := r.OnLevel
		r.mu.Unlock()
		if onLevel != nil {
			onLevel(rmsLevel(chunk))
		}
	})
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		r.mu.Lock()
		r.state = DeviceReady
		r.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return nil
}

// Stop finalizes the chunk buffer through the codec. Valid only from
// Recording.
func (r *Recorder) Stop() (Finalized, error) {
	r.mu.Lock()
	if r.state != Recording {
		state := r.state
		r.mu.Unlock()
		return Finalized{}, fmt.Errorf("stop while recorder %s", state)
	}
	dev := r.device
	r.mu.Unlock()

	dev.Stop()
	dev.ClearCallback()

	r.mu.Lock()
	r.state = DeviceReady
	chunks := r.chunks
	frames := r.frames
	r.chunks = nil
	r.mu.Unlock()

	payload, err := encoder.EncodePayload(chunks)
	if err != nil {
		return Finalized{}, err
	}

	var size int
	for _, chunk := range chunks {
		size += len(chunk)
	}
	pcm := make([]byte, 0, size)
	for _, chunk := range chunks {
		pcm = append(pcm, chunk...)
	}

	return Finalized{
		Payload:  payload,
		PCM:      pcm,
		Frames:   frames,
		Duration: float64(frames) / float64(encoder.SampleRate),
	}, nil
}

func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.device != nil {
		r.device.Close()
		r.device = nil
	}
	r.state = Uninitialized
}
