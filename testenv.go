package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"vox/audio"
	"vox/encoder"
	"vox/log"
	"vox/recorder"
)

// runTestMode drives a full record/stop cycle from stdin against a fake
// capture device that replays the given WAV file. Output is line-oriented so
// integration scripts can assert on it.
func runTestMode(wavPath string, formats []encoder.Factory, archiveDir string) {
	fakeCtx, err := audio.NewFakeContextFromWAV(wavPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}

	r := recorder.New(recorder.Config{
		Formats:    formats,
		ArchiveDir: archiveDir,
		NewContext: func() (audio.Context, error) { return fakeCtx, nil },
	})

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch cmd {
		case "RECORD":
			if err := r.Start(); err != nil {
				fmt.Printf("ERROR %v\n", err)
				continue
			}
			fmt.Println("RECORDING")
		case "STOP":
			art, err := r.Stop()
			if err != nil {
				fmt.Printf("ERROR %v\n", err)
				continue
			}
			fmt.Printf("ARTIFACT mime=%s bytes=%d duration=%d\n", art.MIME, len(art.Data), art.Duration)
			if art.ArchivePath != "" {
				fmt.Printf("ARCHIVE %s\n", art.ArchivePath)
			}
		case "PREDICT":
			art, err := r.Stop()
			if err != nil {
				fmt.Printf("ERROR %v\n", err)
				continue
			}
			pred, err := client.PredictRecording(context.Background(), art.MIME, art.Data)
			if err != nil {
				fmt.Printf("ERROR %v\n", err)
				continue
			}
			countPrediction()
			log.PredictionResult(pred.Emotion, pred.Confidence)
			fmt.Printf("PREDICTION %s %.2f\n", pred.Emotion, pred.Confidence)
		case "QUIT":
			predictionsMu.Lock()
			n := predictions
			predictionsMu.Unlock()
			log.SessionEnd(n)
			log.Close()
			os.Exit(0)
		default:
			if strings.HasPrefix(cmd, "SLEEP ") {
				if ms, err := strconv.Atoi(cmd[6:]); err == nil {
					time.Sleep(time.Duration(ms) * time.Millisecond)
				}
			}
		}
	}
}
