// Package recorder owns the capture session lifecycle: acquiring the audio
// device, streaming PCM blocks into an encoder, driving the live visualizer,
// and tearing everything down in a fixed order so no capture resource stays
// live after Stop.
package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"vox/audio"
	"vox/encoder"
)

// State of the recording session. Transitions are one-directional within a
// session: Idle -> Acquiring -> Recording -> Stopping -> Idle, with Errored
// reachable from Acquiring and Recording.
type State int32

const (
	StateIdle State = iota
	StateAcquiring
	StateRecording
	StateStopping
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

var (
	// ErrBusy is returned by Start while a session is already open.
	ErrBusy = errors.New("recorder: session already open")
	// ErrNotRecording is returned by Stop when no session is open.
	ErrNotRecording = errors.New("recorder: not recording")
	// ErrPermissionDenied means the platform refused microphone access.
	ErrPermissionDenied = errors.New("recorder: microphone permission denied")
	// ErrDeviceUnavailable means the requested device could not be opened.
	ErrDeviceUnavailable = errors.New("recorder: capture device unavailable")
)

// Artifact is the finished product of one session. Data is nil when no
// frames were captured, so callers can reject empty recordings before
// spending a network round trip.
type Artifact struct {
	MIME        string
	Data        []byte
	Duration    int // seconds, derived from captured frames
	ArchivePath string
}

type Config struct {
	// Device selects the capture device; nil means platform default.
	Device *audio.DeviceInfo
	// Formats is the encoder probe list, tried in order. Defaults to
	// encoder.Priority().
	Formats []encoder.Factory
	// ArchiveDir, when set, receives a lossless FLAC copy of every
	// non-empty session.
	ArchiveDir string
	// OnTick is called once per second of recording with the elapsed time.
	OnTick func(seconds int)
	// OnFrame receives visualizer frames (~30 fps) while recording.
	OnFrame func(frame []int16)
	// NewContext builds the audio backend; defaults to the platform one.
	NewContext func() (audio.Context, error)
}

type Recorder struct {
	cfg   Config
	state atomic.Int32

	mu   sync.Mutex // guards sess and Start/Stop against each other
	sess *session
}

type session struct {
	ctx     audio.Context
	capture audio.CaptureDevice
	enc     encoder.Encoder
	archive *encoder.FlacEncoder

	blockChan  chan []int16
	encodeDone chan struct{}
	encodeErr  error

	pending []int16

	ringMu sync.Mutex
	ring   []int16

	tickerQuit chan struct{}
	tickerDone chan struct{}

	visual *Visualizer
}

func New(cfg Config) *Recorder {
	if cfg.Formats == nil {
		cfg.Formats = encoder.Priority()
	}
	if cfg.NewContext == nil {
		cfg.NewContext = func() (audio.Context, error) { return audio.NewContext() }
	}
	return &Recorder{cfg: cfg}
}

// State is lock-free so the visualizer and UI can poll it while Stop holds
// the session lock during teardown.
func (r *Recorder) State() State {
	return State(r.state.Load())
}

// Start opens a capture session. A second Start while a session is open
// returns ErrBusy; the caller must Stop first.
func (r *Recorder) Start() error {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateAcquiring)) &&
		!r.state.CompareAndSwap(int32(StateErrored), int32(StateAcquiring)) {
		return ErrBusy
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, err := r.open()
	if err != nil {
		r.state.Store(int32(StateIdle))
		return classify(err)
	}
	r.sess = sess
	r.state.Store(int32(StateRecording))

	sess.visual.Start()
	go r.tickLoop(sess)
	return nil
}

func (r *Recorder) open() (*session, error) {
	s := &session{
		blockChan:  make(chan []int16, 16),
		encodeDone: make(chan struct{}),
		tickerQuit: make(chan struct{}),
		tickerDone: make(chan struct{}),
		ring:       make([]int16, 0, FrameSize),
	}

	enc, err := encoder.Pick(r.cfg.Formats)
	if err != nil {
		return nil, err
	}
	s.enc = enc

	if r.cfg.ArchiveDir != "" {
		s.archive, err = encoder.NewFlac()
		if err != nil {
			return nil, err
		}
	}

	ctx, err := r.cfg.NewContext()
	if err != nil {
		return nil, err
	}
	s.ctx = ctx

	capture, err := ctx.NewCapture(r.cfg.Device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		ctx.Close()
		return nil, err
	}
	s.capture = capture

	go s.encodeLoop()

	capture.SetCallback(s.onData)
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		close(s.blockChan)
		<-s.encodeDone
		ctx.Close()
		return nil, err
	}

	s.visual = NewVisualizer(
		func() bool { return r.State() == StateRecording },
		s.sampleRing,
		func(frame []int16) {
			if r.cfg.OnFrame != nil {
				r.cfg.OnFrame(frame)
			}
		},
	)
	return s, nil
}

// onData runs on the device thread. It slices the byte stream into
// fixed-size encoder blocks and keeps the visualizer ring current.
func (s *session) onData(data []byte, frameCount uint32) {
	samples := make([]int16, frameCount)
	for i := range samples {
		samples[i] = int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
	}

	s.ringMu.Lock()
	s.ring = append(s.ring, samples...)
	if n := len(s.ring); n > FrameSize {
		s.ring = s.ring[n-FrameSize:]
	}
	s.ringMu.Unlock()

	s.pending = append(s.pending, samples...)
	for len(s.pending) >= encoder.BlockSize {
		block := make([]int16, encoder.BlockSize)
		copy(block, s.pending[:encoder.BlockSize])
		s.pending = s.pending[encoder.BlockSize:]
		s.blockChan <- block
	}
}

func (s *session) sampleRing() []int16 {
	s.ringMu.Lock()
	defer s.ringMu.Unlock()
	if len(s.ring) == 0 {
		return nil
	}
	frame := make([]int16, len(s.ring))
	copy(frame, s.ring)
	return frame
}

func (s *session) encodeLoop() {
	defer close(s.encodeDone)
	for block := range s.blockChan {
		if s.encodeErr != nil {
			continue // drain so the callback never blocks
		}
		if err := s.enc.EncodeBlock(block); err != nil {
			s.encodeErr = err
			continue
		}
		if s.archive != nil {
			if err := s.archive.EncodeBlock(block); err != nil {
				s.encodeErr = err
			}
		}
	}
}

func (r *Recorder) tickLoop(s *session) {
	defer close(s.tickerDone)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	seconds := 0
	for {
		select {
		case <-s.tickerQuit:
			return
		case <-ticker.C:
			seconds++
			if r.cfg.OnTick != nil {
				r.cfg.OnTick(seconds)
			}
		}
	}
}

// Stop tears the session down in a fixed order: the capture stream first so
// no more data arrives, then the encoder flush, the ticker, the visualizer,
// and finally the audio context. A failing step never skips the later ones.
func (r *Recorder) Stop() (*Artifact, error) {
	if !r.state.CompareAndSwap(int32(StateRecording), int32(StateStopping)) {
		return nil, ErrNotRecording
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sess
	r.sess = nil

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// (a) stop the stream; Stop is synchronous, so after it returns the
	// device thread delivers no more data.
	if s.capture != nil {
		s.capture.ClearCallback()
		s.capture.Stop()
	}

	// (b) flush the encoder, final short block included.
	if len(s.pending) > 0 {
		tail := make([]int16, len(s.pending))
		copy(tail, s.pending)
		s.pending = nil
		s.blockChan <- tail
	}
	close(s.blockChan)
	<-s.encodeDone
	keep(s.encodeErr)
	keep(s.enc.Close())
	if s.archive != nil {
		keep(s.archive.Close())
	}

	// (c) stop the duration ticker.
	close(s.tickerQuit)
	<-s.tickerDone

	// (d) stop the visualizer. Its active check already failed once the
	// state left Recording; Stop just waits for the loop to exit.
	if s.visual != nil {
		s.visual.Stop()
	}

	// (e) release the device and backend.
	if s.capture != nil {
		s.capture.Close()
	}
	if s.ctx != nil {
		s.ctx.Close()
	}

	art := r.buildArtifact(s, keep)

	if firstErr != nil {
		r.state.Store(int32(StateErrored))
		return art, firstErr
	}
	r.state.Store(int32(StateIdle))
	return art, nil
}

func (r *Recorder) buildArtifact(s *session, keep func(error)) *Artifact {
	frames := s.enc.TotalFrames()
	art := &Artifact{
		MIME:     s.enc.MIME(),
		Duration: int(frames / encoder.SampleRate),
	}
	if frames == 0 {
		return art
	}
	art.Data = s.enc.Bytes()

	if s.archive != nil {
		path, err := writeArchive(r.cfg.ArchiveDir, s.archive.Bytes())
		keep(err)
		art.ArchivePath = path
	}
	return art
}

func writeArchive(dir string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating archive dir: %w", err)
	}
	path := filepath.Join(dir, "rec-"+time.Now().Format("20060102-150405")+".flac")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing archive: %w", err)
	}
	return path, nil
}

// classify maps backend errors onto the recorder's error taxonomy so the UI
// can tell a permission problem from a missing device.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "denied") || strings.Contains(msg, "permission"):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case strings.Contains(msg, "no such device") || strings.Contains(msg, "not found") ||
		strings.Contains(msg, "unavailable") || strings.Contains(msg, "no device"):
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return err
}
