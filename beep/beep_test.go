package beep

import (
	"testing"
	"time"

	"parla/audio"
)

func TestCuesPlayThroughPlayer(t *testing.T) {
	ctx := audio.NewFakeContext(nil)
	if err := Init(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(Close)

	Start()
	End()
	Error()

	// Playback runs on short-lived goroutines.
	for i := 0; i < 200 && len(ctx.Played()) < 3; i++ {
		time.Sleep(time.Millisecond)
	}
	if got := len(ctx.Played()); got < 3 {
		t.Fatalf("played %d cues, want 3", got)
	}
	for i, clip := range ctx.Played()[:3] {
		if len(clip) == 0 {
			t.Errorf("cue %d is empty", i)
		}
	}
}

func TestTickShape(t *testing.T) {
	clip := tick(1000, 0.1, 0.5, 40)
	if len(clip) == 0 || len(clip)%2 != 0 {
		t.Fatalf("clip length = %d", len(clip))
	}
	var nonZero bool
	for _, b := range clip[:64] {
		if b != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Error("tick generated silence")
	}
}
