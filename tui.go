package main

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vox/api"
)

// TUI message types
type RecordingStartMsg struct{}
type RecordingStopMsg struct{}
type RecordingTickMsg struct{ Seconds int }
type WaveformMsg struct{ Frame []int16 }
type PredictionMsg struct {
	Pred   api.Prediction
	Copied bool
}
type LogMsg struct{ Text string }
type SessionExpiredMsg struct{}
type StatsMsg struct{ Stats api.Statistics }
type HistoryMsg struct{ Items []api.Prediction }
type ModeLineMsg struct{ Text string }   // server/format info
type DeviceLineMsg struct{ Text string } // microphone device name
type tickMsg time.Time

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateRecording
	tuiStateUploading
)

// tuiChannels carries user intents out of the Update loop; the main event
// loop drains them.
type tuiChannels struct {
	Record  chan struct{}
	History chan struct{}
	Stats   chan struct{}
}

type tuiModel struct {
	state         tuiState
	frame         int
	seconds       int
	waveform      []int16
	width, height int
	modeLine      string
	deviceLine    string
	logLine       string
	lastPred      api.Prediction
	hasPred       bool
	predCount     int
	copied        bool
	stats         *api.Statistics
	history       []api.Prediction
	expired       bool

	ch tuiChannels
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

const (
	waveWidth  = 44
	waveHeight = 8
)

var waveGlyphs = []rune("▁▂▃▄▅▆▇█")

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	waveStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	emotionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	copiedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	faintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

func NewTUIProgram(ch tuiChannels) *tea.Program {
	m := tuiModel{ch: ch}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func fire(ch chan struct{}) {
	if ch != nil {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			fire(m.ch.Record)
		case "h":
			fire(m.ch.History)
		case "s":
			fire(m.ch.Stats)
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case RecordingStartMsg:
		m.state = tuiStateRecording
		m.seconds = 0
		m.waveform = nil
		m.logLine = ""

	case RecordingStopMsg:
		m.state = tuiStateUploading
		m.waveform = nil

	case RecordingTickMsg:
		m.seconds = msg.Seconds

	case WaveformMsg:
		if m.state == tuiStateRecording {
			m.waveform = msg.Frame
		}

	case PredictionMsg:
		m.state = tuiStateIdle
		m.predCount++
		m.lastPred = msg.Pred
		m.hasPred = true
		m.copied = msg.Copied

	case LogMsg:
		if m.state == tuiStateUploading {
			m.state = tuiStateIdle
		}
		m.logLine = msg.Text

	case SessionExpiredMsg:
		m.state = tuiStateIdle
		m.expired = true

	case StatsMsg:
		stats := msg.Stats
		m.stats = &stats

	case HistoryMsg:
		m.history = msg.Items

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	left := renderWaveform(m.waveform, m.state == tuiStateRecording)

	var infoLines []string
	switch m.state {
	case tuiStateRecording:
		infoLines = append(infoLines, recStyle.Render(fmt.Sprintf("● REC %ds", m.seconds)))
	case tuiStateUploading:
		infoLines = append(infoLines, warnStyle.Render("◌ analyzing..."))
	default:
		infoLines = append(infoLines, idleStyle.Render("○ STANDBY"))
	}
	if m.expired {
		infoLines = append(infoLines, warnStyle.Render("⚠ session expired, restart and log in"))
	}
	if m.modeLine != "" {
		infoLines = append(infoLines, faintStyle.Render(m.modeLine))
	}
	if m.deviceLine != "" {
		infoLines = append(infoLines, idleStyle.Render(m.deviceLine))
	}
	if m.logLine != "" {
		infoLines = append(infoLines, warnStyle.Render(m.logLine))
	}
	infoLines = append(infoLines, "")
	infoLines = append(infoLines,
		helpKeyStyle.Render("r")+helpStyle.Render(" record/stop  ")+
			helpKeyStyle.Render("h")+helpStyle.Render(" history  ")+
			helpKeyStyle.Render("s")+helpStyle.Render(" stats  ")+
			helpKeyStyle.Render("q")+helpStyle.Render(" quit"))
	infoLines = append(infoLines, helpStyle.Render("vox "+version))

	for _, line := range infoLines {
		left += line + "\n"
	}
	leftLines := strings.Split(left, "\n")

	rightWidth := m.width - waveWidth - 2
	if rightWidth < 20 {
		rightWidth = 20
	}
	right := m.renderRightPanel(rightWidth - 2)

	leftPadded := make([]string, m.height)
	for i := range leftPadded {
		if i < len(leftLines) {
			leftPadded[i] = leftLines[i]
		}
	}
	leftPanel := lipgloss.NewStyle().
		Width(waveWidth + 1).
		Height(m.height).
		Render(strings.Join(leftPadded, "\n"))
	rightPanel := lipgloss.NewStyle().
		Width(rightWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(right)

	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

func (m tuiModel) renderRightPanel(wrapWidth int) string {
	if wrapWidth < 10 {
		wrapWidth = 10
	}
	var b strings.Builder

	if m.hasPred {
		b.WriteString(faintStyle.Render(fmt.Sprintf("Last prediction (#%d)", m.predCount)) + "\n\n")

		line := emotionStyle.Render(strings.ToUpper(m.lastPred.Emotion))
		if m.lastPred.Confidence > 0 {
			line += faintStyle.Render(fmt.Sprintf("  %.0f%%", m.lastPred.Confidence*100))
		}
		if m.copied {
			line += " " + copiedStyle.Render("[✓ copied]")
		}
		b.WriteString(line + "\n")
		if m.lastPred.ModelType != "" {
			b.WriteString(faintStyle.Render("model: "+m.lastPred.ModelType) + "\n")
		}
	} else {
		b.WriteString(idleStyle.Render("No predictions yet") + "\n")
	}

	if m.stats != nil {
		b.WriteString("\n" + faintStyle.Render("Your statistics") + "\n")
		b.WriteString(faintStyle.Render(fmt.Sprintf("  predictions: %d  files: %d  avg conf: %.0f%%",
			m.stats.TotalPredictions, m.stats.TotalAudioFiles, m.stats.AverageConfidence*100)) + "\n")
		for _, line := range emotionBars(m.stats.EmotionsDetected, wrapWidth-4) {
			b.WriteString(faintStyle.Render("  "+line) + "\n")
		}
	}

	if len(m.history) > 0 {
		b.WriteString("\n" + faintStyle.Render("Recent") + "\n")
		for _, p := range m.history {
			conf := ""
			if p.Confidence > 0 {
				conf = fmt.Sprintf(" (%.0f%%)", p.Confidence*100)
			}
			b.WriteString(idleStyle.Render("  "+p.CreatedAt+"  "+p.Emotion+conf) + "\n")
		}
	}
	return b.String()
}

// renderWaveform draws the latest capture frame as a peak-per-column bar
// chart. While idle the panel stays blank.
func renderWaveform(frame []int16, recording bool) string {
	cols := make([]float64, waveWidth)
	if recording && len(frame) > 0 {
		per := len(frame) / waveWidth
		if per < 1 {
			per = 1
		}
		for c := 0; c < waveWidth; c++ {
			start := c * per
			if start >= len(frame) {
				break
			}
			end := start + per
			if end > len(frame) {
				end = len(frame)
			}
			var peak float64
			for _, s := range frame[start:end] {
				v := float64(s)
				if v < 0 {
					v = -v
				}
				if v > peak {
					peak = v
				}
			}
			cols[c] = peak / 32768.0
		}
	}

	var b strings.Builder
	for row := waveHeight - 1; row >= 0; row-- {
		lo := float64(row) / waveHeight
		hi := float64(row+1) / waveHeight
		for c := 0; c < waveWidth; c++ {
			v := cols[c]
			switch {
			case v <= lo:
				b.WriteString(" ")
			case v >= hi:
				b.WriteString(waveStyle.Render("█"))
			default:
				idx := int((v - lo) * waveHeight * float64(len(waveGlyphs)))
				if idx >= len(waveGlyphs) {
					idx = len(waveGlyphs) - 1
				}
				b.WriteString(waveStyle.Render(string(waveGlyphs[idx])))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// emotionBars renders the emotion histogram as fixed-width text bars, labels
// sorted for a stable layout.
func emotionBars(counts map[string]int, width int) []string {
	if len(counts) == 0 || width < 12 {
		return nil
	}
	max := 0
	labels := make([]string, 0, len(counts))
	for label, n := range counts {
		labels = append(labels, label)
		if n > max {
			max = n
		}
	}
	sort.Strings(labels)

	barWidth := width - 12
	if barWidth > 20 {
		barWidth = 20
	}
	lines := make([]string, 0, len(labels))
	for _, label := range labels {
		n := counts[label]
		filled := 0
		if max > 0 {
			filled = n * barWidth / max
		}
		lines = append(lines, fmt.Sprintf("%-9s %s %d", label,
			strings.Repeat("█", filled)+strings.Repeat("░", barWidth-filled), n))
	}
	return lines
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func logToTUI(format string, args ...interface{}) {
	tuiSend(LogMsg{Text: fmt.Sprintf(format, args...)})
}
