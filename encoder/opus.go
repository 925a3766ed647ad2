package encoder

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/at-wat/ebml-go/webm"
	"gopkg.in/hraban/opus.v2"
)

const (
	opusFrameSamples = 320 // 20 ms at 16 kHz
	opusFrameMs      = 20
	opusMaxPacket    = 4000
)

// OpusEncoder produces Opus frames muxed into a WebM container, the
// compressed fallback when the backend should not receive raw PCM.
type OpusEncoder struct {
	mu          sync.Mutex
	buf         bytes.Buffer
	enc         *opus.Encoder
	block       webm.BlockWriteCloser
	pending     []int16
	packet      []byte
	totalFrames uint64
	timestamp   int64 // ms
	closed      bool
}

func opusSupported() bool {
	_, err := opus.NewEncoder(SampleRate, Channels, opus.AppVoIP)
	return err == nil
}

func NewOpus() (*OpusEncoder, error) {
	enc, err := opus.NewEncoder(SampleRate, Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("creating opus encoder: %w", err)
	}

	e := &OpusEncoder{enc: enc, packet: make([]byte, opusMaxPacket)}
	writers, err := webm.NewSimpleBlockWriter(nopCloser{&e.buf}, []webm.TrackEntry{{
		Name:        "Audio",
		TrackNumber: 1,
		TrackUID:    1,
		CodecID:     "A_OPUS",
		TrackType:   2,
		Audio: &webm.Audio{
			SamplingFrequency: float64(SampleRate),
			Channels:          uint64(Channels),
		},
	}})
	if err != nil {
		return nil, fmt.Errorf("creating webm writer: %w", err)
	}
	e.block = writers[0]
	return e, nil
}

func (e *OpusEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending = append(e.pending, block...)
	e.totalFrames += uint64(len(block))

	for len(e.pending) >= opusFrameSamples {
		if err := e.writeFrame(e.pending[:opusFrameSamples]); err != nil {
			return err
		}
		e.pending = e.pending[opusFrameSamples:]
	}
	return nil
}

func (e *OpusEncoder) writeFrame(frame []int16) error {
	n, err := e.enc.Encode(frame, e.packet)
	if err != nil {
		return fmt.Errorf("encoding opus frame: %w", err)
	}
	if _, err := e.block.Write(true, e.timestamp, e.packet[:n]); err != nil {
		return fmt.Errorf("writing webm block: %w", err)
	}
	e.timestamp += opusFrameMs
	return nil
}

func (e *OpusEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	// Pad the final partial frame with silence so no samples are dropped.
	if len(e.pending) > 0 {
		frame := make([]int16, opusFrameSamples)
		copy(frame, e.pending)
		e.pending = nil
		if err := e.writeFrame(frame); err != nil {
			return err
		}
	}
	return e.block.Close()
}

func (e *OpusEncoder) Bytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf.Bytes()
}

func (e *OpusEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

func (e *OpusEncoder) MIME() string { return MIMEWebM }

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
