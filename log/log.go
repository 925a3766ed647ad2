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
	diagLog     zerolog.Logger
	diagFile    *os.File
	predictFile *os.File
	logMu       sync.Mutex
	logReady    bool
	pid         int
	dir         string
)

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

	// Priority 2: VOX_LOG_PATH environment variable
	envPath := os.Getenv("VOX_LOG_PATH")
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

	predictPath := filepath.Join(dir, "predictions_log.txt")
	predictFile, err = os.OpenFile(predictPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
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
	if predictFile != nil {
		predictFile.Close()
		predictFile = nil
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

// Request records one outbound API call. Diagnostic only: nothing branches
// on whether this ran.
func Request(method, path string, status int, retried bool, d time.Duration) {
	if !logReady {
		return
	}
	ev := diagLog.Info().
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Int64("total_ms", d.Milliseconds())
	if retried {
		ev = ev.Bool("retried", true)
	}
	ev.Msg("api_request")
}

func RefreshOutcome(ok bool) {
	if !logReady {
		return
	}
	if ok {
		diagLog.Info().Msg("token_refresh_ok")
	} else {
		diagLog.Warn().Msg("token_refresh_failed")
	}
}

func RecordingMetrics(mime string, seconds, bytes int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("mime", mime).
		Int("audio_s", seconds).
		Int("bytes", bytes).
		Msg("recording")
}

// PredictionResult appends the emotion outcome to the predictions file and
// the diagnostic log.
func PredictionResult(emotion string, confidence float64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("emotion", emotion).
		Float64("confidence", confidence).
		Msg("prediction")

	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\t%.4f\n", time.Now().Format("2006-01-02 15:04:05"), pid, emotion, confidence)
	predictFile.WriteString(line)
}

func SessionStart(server, format string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("server", server).
		Str("format", format).
		Msg("session_start")
}

func SessionEnd(count int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("count", count).
		Msg("session_end")
}
