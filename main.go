package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"parla/audio"
	"parla/beep"
	"parla/config"
	"parla/doctor"
	"parla/encoder"
	"parla/log"
	"parla/scorer"
	"parla/session"
	"parla/store"
)

var version = "dev"

const warmupBackoff = 2 * time.Second

var shutdownOnce sync.Once

func gracefulShutdown(r *session.Runner, db *store.Store) {
	shutdownOnce.Do(func() {
		if r != nil {
			log.SessionEnd(r.Totals())
		}
		beep.Close()
		db.Close()
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
	})
}

// ttsSpeaker shells out to the platform speech synthesizer for reference
// pronunciation playback.
type ttsSpeaker struct{}

func (ttsSpeaker) Say(text, language string) error {
	if runtime.GOOS == "darwin" {
		return exec.Command("say", text).Run()
	}
	if _, err := exec.LookPath("espeak-ng"); err == nil {
		return exec.Command("espeak-ng", "-v", language, text).Run()
	}
	if _, err := exec.LookPath("espeak"); err == nil {
		return exec.Command("espeak", "-v", language, text).Run()
	}
	return fmt.Errorf("no speech synthesizer found")
}

func stringOr(v *string, fallback string) string {
	if v != nil && *v != "" {
		return *v
	}
	return fallback
}

func main() {
	configFlag := flag.String("config", "", "Config file path (default: XDG config location)")
	langFlag := flag.String("lang", "", "Practice language: en, de, hi or mr")
	difficultyFlag := flag.Int("difficulty", 0, "Sentence difficulty 1-4 (1=short, 4=long)")
	sampleURLFlag := flag.String("sample-url", "", "Sample service endpoint")
	scoreURLFlag := flag.String("score-url", "", "Scoring service endpoint")
	apiKeyFlag := flag.String("apikey", "", "API key (or PARLA_API_KEY)")
	dbFlag := flag.String("db", "", "SQLite database path")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	archiveFlag := flag.Bool("archive", false, "Keep a FLAC recording of every attempt")
	mutedFlag := flag.Bool("mute", false, "Disable audio cues")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("parla %s\n", version)
		os.Exit(0)
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	configPath := *configFlag
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	fileCfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sampleURL := stringOr(fileCfg.Backend.SampleURL, "")
	if *sampleURLFlag != "" {
		sampleURL = *sampleURLFlag
	}
	scoreURL := stringOr(fileCfg.Backend.ScoreURL, "")
	if *scoreURLFlag != "" {
		scoreURL = *scoreURLFlag
	}
	apiKey := stringOr(fileCfg.Backend.APIKey, os.Getenv("PARLA_API_KEY"))
	if *apiKeyFlag != "" {
		apiKey = *apiKeyFlag
	}
	if sampleURL == "" || scoreURL == "" {
		fmt.Fprintln(os.Stderr, "Error: backend endpoints not configured (set backend.sample-url and backend.score-url, or pass -sample-url/-score-url)")
		os.Exit(1)
	}

	language := stringOr(fileCfg.Practice.Lang, "en")
	if *langFlag != "" {
		language = *langFlag
	}
	if !config.ValidLanguage(language) {
		fmt.Fprintf(os.Stderr, "Error: unsupported language %q (use one of %v)\n", language, config.Languages)
		os.Exit(1)
	}

	difficulty := 1
	if fileCfg.Practice.Difficulty != nil {
		difficulty = *fileCfg.Practice.Difficulty - 1
	}
	if *difficultyFlag != 0 {
		difficulty = *difficultyFlag - 1
	}
	if difficulty < 0 || difficulty > 3 {
		fmt.Fprintln(os.Stderr, "Error: difficulty must be 1-4")
		os.Exit(1)
	}

	dbPath := stringOr(dbFlag, config.DefaultDBPath())

	if *doctorFlag {
		os.Exit(doctor.Run(doctor.Config{
			SampleURL: sampleURL,
			ScoreURL:  scoreURL,
			APIKey:    apiKey,
			Language:  language,
			DBPath:    dbPath,
		}))
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	log.SessionStart(language, difficulty)

	ctx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Close()

	deviceName := stringOr(fileCfg.Audio.Device, "")
	if *deviceFlag != "" {
		deviceName = *deviceFlag
	}
	var selectedDevice *audio.DeviceInfo
	if deviceName != "" {
		if devices, err := ctx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == deviceName {
					selectedDevice = &devices[i]
					break
				}
			}
		}
		if selectedDevice == nil {
			fmt.Fprintf(os.Stderr, "Warning: device %q not found, using system default\n", deviceName)
		}
	} else if *setupFlag {
		selectedDevice, err = audio.SelectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\nFalling back to default device\n", err)
			selectedDevice = nil
		}
	}

	recorder := audio.NewRecorder(ctx, audio.CaptureConfig{
		SampleRate:       encoder.SampleRate,
		Channels:         encoder.Channels,
		EchoCancellation: true,
		NoiseSuppression: true,
	})
	if err := recorder.Initialize(selectedDevice); err != nil {
		log.Errorf("microphone init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: microphone unavailable: %v\n", err)
		fmt.Fprintln(os.Stderr, "Grant microphone access (or plug in a device) and run again.")
		os.Exit(1)
	}
	defer recorder.Close()

	db, err := store.Open(dbPath)
	if err != nil {
		// The app must stay usable without persistence.
		log.Warnf("store unavailable, history disabled: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: history disabled: %v\n", err)
		db = nil
	}
	defer db.Close()

	archiveEnabled := *archiveFlag
	if fileCfg.Audio.Archive != nil {
		archiveEnabled = archiveEnabled || *fileCfg.Audio.Archive
	}
	archive := &store.Archive{
		Dir:     stringOr(fileCfg.Audio.ArchiveDir, config.DefaultArchiveDir()),
		Enabled: archiveEnabled,
	}

	player, err := ctx.NewPlayer(audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		log.Warnf("playback unavailable: %v", err)
		player = nil
	}

	if *mutedFlag {
		beep.Disable()
	} else if err := beep.Init(ctx); err != nil {
		log.Warnf("audio cues unavailable: %v", err)
	}

	runner := &session.Runner{
		Machine:  session.New(language, difficulty),
		Recorder: recorder,
		Client:   scorer.NewHTTPClient(sampleURL, scoreURL, apiKey),
		DB:       db,
		Archive:  archive,
		Player:   player,
		Speaker:  ttsSpeaker{},
		Sink:     programSink{},
		Backoff:  warmupBackoff,
	}

	themeName, _ := db.TryGetPref(context.Background(), "theme")
	program := NewTUIProgram(runner, db, themeName)
	setTUIProgram(program)
	recorder.OnLevel = sendAudioLevel

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		gracefulShutdown(runner, db)
	}()

	if _, err := program.Run(); err != nil {
		log.Errorf("tui error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	gracefulShutdown(runner, db)
}
