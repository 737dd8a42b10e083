// Package log writes diagnostics to a file so the terminal stays free for
// the practice UI. Logging is best-effort: every entry point is a no-op
// until Init succeeds.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog      zerolog.Logger
	diagFile     *os.File
	practiceFile *os.File
	logMu        sync.Mutex
	logReady     bool
	pid          int
	dir          string
)

// AttemptMetrics is the timing and size breakdown of one scoring round trip.
type AttemptMetrics struct {
	AudioLengthS float64
	PayloadKB    float64
	DNSTimeMs    float64
	TLSTimeMs    float64
	TTFBMs       float64
	TotalTimeMs  float64
	Accuracy     float64
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: PARLA_LOG_PATH environment variable
	envPath := os.Getenv("PARLA_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	practicePath := filepath.Join(dir, "practice_log.txt")
	practiceFile, err = os.OpenFile(practicePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if practiceFile != nil {
		practiceFile.Close()
		practiceFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func Attempt(m AttemptMetrics, language string, connReused bool) {
	if !logReady {
		return
	}

	connStatus := "new"
	if connReused {
		connStatus = "reused"
	}

	diagLog.Info().
		Str("language", language).
		Str("conn", connStatus).
		Float64("audio_s", m.AudioLengthS).
		Float64("payload_kb", m.PayloadKB).
		Float64("dns_ms", m.DNSTimeMs).
		Float64("tls_ms", m.TLSTimeMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalTimeMs).
		Float64("accuracy", m.Accuracy).
		Msg("attempt")
}

// PracticeLine appends a scored sentence to the plain-text practice log.
func PracticeLine(sentence string, accuracy float64) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%.0f\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, accuracy, sentence)
	practiceFile.WriteString(line)
}

func SessionStart(language string, difficulty int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("language", language).
		Int("difficulty", difficulty).
		Msg("session_start")
}

func SessionEnd(attempts int, cumulativeScore int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("attempts", attempts).
		Int("score", cumulativeScore).
		Msg("session_end")
}
