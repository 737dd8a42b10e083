// Package doctor runs interactive diagnostics for the three things that
// break in the field: the microphone, the scoring backend and local
// storage.
package doctor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"parla/audio"
	"parla/encoder"
	"parla/scorer"
	"parla/store"
)

// Config carries the settings the checks need.
type Config struct {
	SampleURL string
	ScoreURL  string
	APIKey    string
	Language  string
	DBPath    string
}

// Run executes the diagnostic checks and returns an exit code (0=all pass,
// 1=any fail).
func Run(cfg Config) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("parla doctor - interactive system diagnostics")
	fmt.Println("=============================================")

	allPass := true

	if !checkMicrophone() {
		allPass = false
	}
	if !checkBackend(cfg) {
		allPass = false
	}
	if !checkStorage(cfg.DBPath) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkMicrophone() bool {
	fmt.Println()
	fmt.Println("[1/3] Microphone capture")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}

	device := pickDevice(devices)
	if device == nil {
		fmt.Println("  FAIL: invalid choice")
		return false
	}
	fmt.Printf("Using device: %s\n", device.Name)
	if audio.IsBluetooth(device.Name) {
		fmt.Println("  note: bluetooth input often degrades scoring quality")
	}

	rec := audio.NewRecorder(ctx, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err := rec.Initialize(device); err != nil {
		fmt.Printf("  FAIL: device init: %v\n", err)
		return false
	}
	defer rec.Close()

	var peak float64
	rec.OnLevel = func(level float64) {
		if level > peak {
			peak = level
		}
	}

	fmt.Print("Press Enter and speak for 2 seconds...")
	bufio.NewReader(os.Stdin).ReadString('\n')

	if err := rec.Start(); err != nil {
		fmt.Printf("  FAIL: start recording: %v\n", err)
		return false
	}
	time.Sleep(2 * time.Second)
	fin, err := rec.Stop()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}

	fmt.Printf("  Recorded %.1fs, %.1f KB payload, peak level %.2f\n",
		fin.Duration, float64(len(fin.Payload))/1024, peak)
	if peak < 0.02 {
		fmt.Println("  FAIL: no voice detected, check the input device")
		return false
	}
	fmt.Println("  PASS: microphone works")
	return true
}

func pickDevice(devices []audio.DeviceInfo) *audio.DeviceInfo {
	if len(devices) == 1 {
		return &devices[0]
	}
	fmt.Println()
	fmt.Println("Select input device:")
	for i, d := range devices {
		fmt.Printf("  %d. %s\n", i+1, d.Name)
	}
	fmt.Printf("Choice [1-%d]: ", len(devices))

	choice, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return &devices[0]
	}
	idx := 0
	fmt.Sscanf(choice, "%d", &idx)
	idx--
	if idx < 0 || idx >= len(devices) {
		return nil
	}
	return &devices[idx]
}

func checkBackend(cfg Config) bool {
	fmt.Println()
	fmt.Println("[2/3] Scoring backend")

	if cfg.APIKey == "" {
		fmt.Println("  FAIL: no API key configured")
		return false
	}

	client := scorer.NewHTTPClient(cfg.SampleURL, cfg.ScoreURL, cfg.APIKey)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.Warmup(ctx); err != nil {
		fmt.Printf("  FAIL: warmup: %v\n", err)
		return false
	}
	fmt.Println("  warmup ok")

	lang := cfg.Language
	if lang == "" {
		lang = "en"
	}
	sample, err := client.FetchSample(ctx, 0, lang)
	if err != nil {
		fmt.Printf("  FAIL: sample fetch: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: sample service returned %q\n", sample.Text)
	return true
}

func checkStorage(dbPath string) bool {
	fmt.Println()
	fmt.Println("[3/3] Local storage")

	db, err := store.Open(dbPath)
	if err != nil {
		fmt.Printf("  FAIL: open database: %v\n", err)
		return false
	}
	defer db.Close()

	ctx := context.Background()
	probe := time.Now().Format(time.RFC3339Nano)
	if !db.TrySetPref(ctx, "doctor_probe", probe) {
		fmt.Println("  FAIL: write failed")
		return false
	}
	got, ok := db.TryGetPref(ctx, "doctor_probe")
	if !ok || got != probe {
		fmt.Println("  FAIL: read back failed")
		return false
	}
	fmt.Printf("  PASS: database at %s is writable\n", dbPath)
	return true
}
