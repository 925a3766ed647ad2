package main

import (
	"strings"
	"testing"

	"vox/encoder"
)

func TestRenderWaveformIdleIsBlank(t *testing.T) {
	out := renderWaveform(nil, false)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != waveHeight {
		t.Fatalf("got %d lines, want %d", len(lines), waveHeight)
	}
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			t.Errorf("line %d not blank while idle: %q", i, line)
		}
	}
}

func TestRenderWaveformLoudFrameFillsColumns(t *testing.T) {
	frame := make([]int16, 1024)
	for i := range frame {
		frame[i] = 32000
	}
	out := renderWaveform(frame, true)
	if !strings.Contains(out, "█") {
		t.Error("full-scale frame rendered no solid blocks")
	}
}

func TestRenderWaveformQuietFrame(t *testing.T) {
	frame := make([]int16, 1024) // silence
	out := renderWaveform(frame, true)
	if strings.Contains(out, "█") {
		t.Error("silent frame rendered solid blocks")
	}
}

func TestEmotionBars(t *testing.T) {
	lines := emotionBars(map[string]int{"happy": 4, "angry": 2, "sad": 1}, 40)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	// Stable alphabetical order.
	if !strings.HasPrefix(lines[0], "angry") || !strings.HasPrefix(lines[2], "sad") {
		t.Errorf("labels out of order: %q", lines)
	}
	if !strings.HasSuffix(lines[1], " 4") {
		t.Errorf("happy count missing: %q", lines[1])
	}

	if got := emotionBars(nil, 40); got != nil {
		t.Errorf("empty counts produced %q", got)
	}
}

func TestFormatFactories(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
		first   string
	}{
		{"auto", false, encoder.MIMEWav},
		{"wav", false, encoder.MIMEWav},
		{"webm", false, encoder.MIMEWebM},
		{"mp3", true, ""},
	}
	for _, tt := range tests {
		factories, err := formatFactories(tt.format)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.format)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tt.format, err)
			continue
		}
		if factories[0].MIME != tt.first {
			t.Errorf("%s: first factory %q, want %q", tt.format, factories[0].MIME, tt.first)
		}
	}
}
