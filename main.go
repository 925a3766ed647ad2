package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"golang.org/x/term"

	"vox/api"
	"vox/audio"
	"vox/encoder"
	"vox/log"
	"vox/recorder"
	"vox/shutdown"
	"vox/store"
)

var version = "dev"

const defaultServer = "http://localhost:8000"

var (
	client *api.Client
	rec    *recorder.Recorder

	predictionsMu sync.Mutex
	predictions   int
	shutdownOnce  sync.Once
)

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		if rec != nil && rec.State() == recorder.StateRecording {
			rec.Stop()
		}
		predictionsMu.Lock()
		n := predictions
		predictionsMu.Unlock()
		if n > 0 {
			log.SessionEnd(n)
		}
		log.Close()
		if tuiProgram != nil {
			tuiProgram.Quit()
		}
		os.Exit(0)
	})
}

func countPrediction() {
	predictionsMu.Lock()
	predictions++
	predictionsMu.Unlock()
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	if dev != nil {
		name = dev.Name
	}
	return "mic: " + name
}

func modeLineText(server, format string) string {
	return fmt.Sprintf("[%s | %s]", format, server)
}

// formatFactories maps the -format flag onto an encoder probe list.
func formatFactories(format string) ([]encoder.Factory, error) {
	all := encoder.Priority()
	switch format {
	case "auto":
		return all, nil
	case "wav":
		return []encoder.Factory{all[0]}, nil
	case "webm":
		// keep the platform-default fallback in case opus is unusable
		return []encoder.Factory{all[1], all[2]}, nil
	}
	return nil, fmt.Errorf("unknown format %q (use wav, webm, or auto)", format)
}

func main() {
	serverFlag := flag.String("server", defaultServer, "Backend base URL")
	usernameFlag := flag.String("username", "", "Username for login (prompted if needed)")
	fileFlag := flag.String("file", "", "Predict a pre-existing audio file and exit")
	formatFlag := flag.String("format", "auto", "Capture format: wav, webm, or auto")
	archiveFlag := flag.String("archive", "", "Directory for lossless FLAC copies of recordings")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	statePathFlag := flag.String("statepath", "", "Token file path (default: OS-specific location)")
	logPathFlag := flag.String("logpath", "", "Log directory path (default: OS-specific location, use ./ for current dir)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("vox %s\n", version)
		os.Exit(0)
	}

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

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	statePath, err := store.ResolvePath(*statePathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve token path: %v\n", err)
		os.Exit(1)
	}
	tokens := store.Open(statePath, func(err error) {
		log.Errorf("token store: %v", err)
	})

	client = api.New(*serverFlag, tokens, api.WithSessionExpiredHook(func() {
		log.Info("session_expired")
		tuiSend(SessionExpiredMsg{})
	}))

	formats, err := formatFactories(*formatFlag)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	log.SessionStart(*serverFlag, *formatFlag)

	if *fileFlag != "" {
		ensureSession(tokens, *usernameFlag)
		runFilePredict(*fileFlag)
		return
	}

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: vox -test <wav-file>")
			os.Exit(1)
		}
		runTestMode(args[0], formats, *archiveFlag)
		return
	}

	ensureSession(tokens, *usernameFlag)

	// Device selection happens before the TUI takes over the terminal.
	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" || *setupFlag {
		ctx, err := audio.NewContext()
		if err != nil {
			log.Errorf("audio context init error: %v", err)
			fmt.Printf("Error initializing audio: %v\n", err)
			os.Exit(1)
		}
		if *deviceFlag != "" {
			selectedDevice = findDevice(ctx, *deviceFlag)
			if selectedDevice == nil {
				fmt.Printf("Warning: device %q not found, using default\n", *deviceFlag)
			}
		} else {
			selectedDevice, err = selectDevice(ctx)
			if err != nil {
				log.Warnf("device selection failed: %v", err)
				fmt.Printf("Warning: device selection failed: %v\n", err)
				fmt.Println("Falling back to default device")
			}
		}
		ctx.Close()
	}

	rec = recorder.New(recorder.Config{
		Device:     selectedDevice,
		Formats:    formats,
		ArchiveDir: *archiveFlag,
		OnTick:     func(seconds int) { tuiSend(RecordingTickMsg{Seconds: seconds}) },
		OnFrame:    func(frame []int16) { tuiSend(WaveformMsg{Frame: frame}) },
	})

	ch := tuiChannels{
		Record:  make(chan struct{}, 1),
		History: make(chan struct{}, 1),
		Stats:   make(chan struct{}, 1),
	}
	tuiMu.Lock()
	tuiProgram = NewTUIProgram(ch)
	tuiMu.Unlock()

	go func() {
		if _, err := tuiProgram.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
			os.Exit(1)
		}
		gracefulShutdown()
	}()

	tuiSend(ModeLineMsg{Text: modeLineText(*serverFlag, *formatFlag)})
	tuiSend(DeviceLineMsg{Text: deviceLineText(selectedDevice)})

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)

	for {
		select {
		case <-ch.Record:
			toggleRecording()
		case <-ch.History:
			go fetchHistory()
		case <-ch.Stats:
			go fetchStats()
		case <-sigChan:
			gracefulShutdown()
		}
	}
}

// ensureSession makes sure the store holds a usable pair, prompting for
// credentials when it doesn't.
func ensureSession(tokens store.Store, username string) {
	if _, ok := tokens.Read(); ok {
		if user, err := client.CurrentUser(context.Background()); err == nil {
			fmt.Printf("Logged in as %s\n", user.Username)
			return
		}
		// Stored pair is dead and refresh could not revive it.
		tokens.Clear()
	}

	reader := bufio.NewReader(os.Stdin)
	if username == "" {
		fmt.Print("Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading username: %v\n", err)
			os.Exit(1)
		}
		username = strings.TrimSpace(line)
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
		os.Exit(1)
	}

	if err := client.Login(context.Background(), username, string(password)); err != nil {
		var httpErr *api.HTTPError
		if errors.As(err, &httpErr) && httpErr.Status == 401 {
			fmt.Println("Login failed: wrong username or password")
		} else {
			fmt.Printf("Login failed: %v\n", err)
		}
		os.Exit(1)
	}

	user, err := client.CurrentUser(context.Background())
	if err != nil {
		log.Warnf("fetching profile failed: %v", err)
		return
	}
	fmt.Printf("Logged in as %s\n", user.Username)
}

func toggleRecording() {
	switch rec.State() {
	case recorder.StateRecording:
		tuiSend(RecordingStopMsg{})
		art, err := rec.Stop()
		if err != nil {
			reportRecordingError(err)
			if art == nil {
				return
			}
		}
		go submitRecording(art)
	default:
		if err := rec.Start(); err != nil {
			reportRecordingError(err)
			return
		}
		log.Info("recording_start")
		tuiSend(RecordingStartMsg{})
	}
}

func reportRecordingError(err error) {
	if err == nil {
		return
	}
	log.Errorf("recording error: %v", err)
	switch {
	case errors.Is(err, recorder.ErrPermissionDenied):
		logToTUI("Microphone permission denied")
	case errors.Is(err, recorder.ErrDeviceUnavailable):
		logToTUI("Capture device unavailable")
	default:
		logToTUI("Recording error: %v", err)
	}
}

func submitRecording(art *recorder.Artifact) {
	log.RecordingMetrics(art.MIME, art.Duration, len(art.Data))

	pred, err := client.PredictRecording(context.Background(), art.MIME, art.Data)
	if err != nil {
		switch {
		case errors.Is(err, api.ErrEmptyRecording):
			logToTUI("Recording was empty, nothing to analyze")
		case errors.Is(err, api.ErrSessionExpired):
			// hook already told the TUI
		default:
			log.Errorf("prediction error: %v", err)
			logToTUI("Prediction failed: %v", err)
		}
		return
	}

	countPrediction()
	log.PredictionResult(pred.Emotion, pred.Confidence)

	summary := fmt.Sprintf("%s (%.0f%%)", pred.Emotion, pred.Confidence*100)
	copied := clipboard.WriteAll(summary) == nil
	tuiSend(PredictionMsg{Pred: *pred, Copied: copied})
}

func fetchHistory() {
	preds, err := client.Predictions(context.Background(), 0, 10)
	if err != nil {
		log.Errorf("history fetch error: %v", err)
		logToTUI("Could not fetch history: %v", err)
		return
	}
	tuiSend(HistoryMsg{Items: preds})
}

func fetchStats() {
	stats, err := client.Statistics(context.Background())
	if err != nil {
		log.Errorf("statistics fetch error: %v", err)
		logToTUI("Could not fetch statistics: %v", err)
		return
	}
	tuiSend(StatsMsg{Stats: *stats})
}

// runFilePredict is the one-shot mode: upload a file, print the verdict.
func runFilePredict(path string) {
	pred, err := client.PredictFile(context.Background(), path)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	countPrediction()
	log.PredictionResult(pred.Emotion, pred.Confidence)
	fmt.Printf("%s: %s (%.0f%% confidence)\n", filepath.Base(path), pred.Emotion, pred.Confidence*100)
	predictionsMu.Lock()
	n := predictions
	predictionsMu.Unlock()
	log.SessionEnd(n)
	log.Close()
}

func findDevice(ctx audio.Context, name string) *audio.DeviceInfo {
	devices, err := ctx.Devices()
	if err != nil {
		log.Warnf("device enumeration failed: %v", err)
		return nil
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i]
		}
	}
	return nil
}
