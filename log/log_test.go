package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
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
	t.Setenv("VOX_LOG_PATH", "/tmp/vox-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/vox-env-log" {
		t.Errorf("got %q, want /tmp/vox-env-log", got)
	}
}

func TestInitWritesDiagnostics(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Info("hello")
	Request("GET", "/auth/users/me", 200, false, 12*time.Millisecond)
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "hello") {
		t.Errorf("diagnostics missing info line: %q", text)
	}
	if !strings.Contains(text, "api_request") {
		t.Errorf("diagnostics missing request line: %q", text)
	}
}

func TestPredictionResultAppendsFile(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	PredictionResult("happy", 0.92)
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, "predictions_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "happy") {
		t.Errorf("predictions file missing result: %q", string(data))
	}
}

func TestLoggingBeforeInitIsNoop(t *testing.T) {
	setupLogDir(t)
	// Must not panic with no open files.
	Info("dropped")
	Warnf("dropped %d", 1)
	RefreshOutcome(false)
	RecordingMetrics("audio/wav", 1, 100)
}
