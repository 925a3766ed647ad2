package encoder

import "errors"

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

const (
	MIMEWav  = "audio/wav"
	MIMEWebM = "audio/webm"
	MIMEM4A  = "audio/m4a"
	MIMEFlac = "audio/flac"
)

// Encoder consumes 16-bit mono PCM blocks and yields a finished artifact
// body after Close.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	MIME() string
}

// Factory describes one capture format. Probe reports whether the format is
// usable on this platform without touching capture-path resources.
type Factory struct {
	MIME  string
	Probe func() bool
	New   func() (Encoder, error)
}

// Priority is the capability-probe order the backend expects: uncompressed
// WAV first, the Opus-in-WebM fallback second, then the platform default
// (plain PCM WAV here). The order is part of the backend contract; the last
// entry always probes true.
func Priority() []Factory {
	return []Factory{
		{MIME: MIMEWav, Probe: wavSupported, New: func() (Encoder, error) { return NewWav() }},
		{MIME: MIMEWebM, Probe: opusSupported, New: func() (Encoder, error) { return NewOpus() }},
		{MIME: MIMEWav, Probe: func() bool { return true }, New: func() (Encoder, error) { return NewWav() }},
	}
}

// Pick returns an encoder for the first factory whose probe passes.
func Pick(factories []Factory) (Encoder, error) {
	for _, f := range factories {
		if f.Probe() {
			return f.New()
		}
	}
	return nil, errors.New("encoder: no supported capture format")
}
