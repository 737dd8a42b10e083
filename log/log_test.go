package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("PARLA_LOG_PATH", "/tmp/parla-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/parla-env-log" {
		t.Errorf("got %q, want /tmp/parla-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("PARLA_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("default log dir is empty")
	}
	if !strings.Contains(got, "parla") {
		t.Errorf("default log dir %q does not contain app name", got)
	}
}

func TestInitAndWrite(t *testing.T) {
	tmp := setupLogDir(t)
	if err := Init(); err != nil {
		t.Fatal(err)
	}

	Info("hello")
	Attempt(AttemptMetrics{AudioLengthS: 1.5, Accuracy: 82}, "en", true)
	PracticeLine("the quick brown fox", 82)
	Close()

	diag, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(diag), "hello") {
		t.Error("diagnostics log missing info message")
	}
	if !strings.Contains(string(diag), "attempt") {
		t.Error("diagnostics log missing attempt metrics")
	}

	practice, err := os.ReadFile(filepath.Join(tmp, "practice_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(practice), "the quick brown fox") {
		t.Error("practice log missing sentence")
	}
}

func TestWriteBeforeInitIsNoop(t *testing.T) {
	setupLogDir(t)
	// Must not panic with no open files.
	Info("early")
	Warn("early")
	Attempt(AttemptMetrics{}, "en", false)
	PracticeLine("early", 0)
}
