package audio

import "sync"

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext feeds canned PCM through the CaptureDevice interface so the
// recorder and session machine can be tested without a microphone. Each
// Start replays the full clip synchronously and deterministically.
type FakeContext struct {
	pcm  []byte
	Deny bool // simulate missing device / denied permission

	mu     sync.Mutex
	played [][]byte
}

func NewFakeContext(pcm []byte) *FakeContext {
	return &FakeContext{pcm: pcm}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	if f.Deny {
		return nil, ErrDeviceUnavailable
	}
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	if f.Deny {
		return nil, ErrDeviceUnavailable
	}
	return &FakeCapture{pcm: f.pcm}, nil
}

func (f *FakeContext) NewPlayer(_ CaptureConfig) (Player, error) {
	return &fakePlayer{ctx: f}, nil
}

func (f *FakeContext) Close() {}

// Played returns the clips handed to fake players, in order.
func (f *FakeContext) Played() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.played
}

type FakeCapture struct {
	pcm []byte

	mu sync.Mutex
	cb DataCallback
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb == nil {
		return nil
	}
	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	for pos := 0; pos < len(f.pcm); pos += chunkBytes {
		end := min(pos+chunkBytes, len(f.pcm))
		chunk := make([]byte, end-pos)
		copy(chunk, f.pcm[pos:end])
		cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	}
	return nil
}

func (f *FakeCapture) Stop()  {}
func (f *FakeCapture) Close() {}

type fakePlayer struct {
	ctx *FakeContext
}

func (p *fakePlayer) Play(pcm []byte) error {
	p.ctx.mu.Lock()
	p.ctx.played = append(p.ctx.played, pcm)
	p.ctx.mu.Unlock()
	return nil
}

func (p *fakePlayer) Stop()  {}
func (p *fakePlayer) Close() {}
