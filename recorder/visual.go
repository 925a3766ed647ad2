package recorder

import (
	"sync"
	"time"
)

// FrameSize is the number of samples handed to the paint callback per tick,
// the most recent slice of the capture stream.
const FrameSize = 1024

const defaultPaintInterval = 33 * time.Millisecond // ~30 fps

// Visualizer periodically samples the live capture and hands the frame to a
// paint callback. It checks active at the top of every tick so it shuts
// itself down within one interval of the recording ending.
type Visualizer struct {
	interval time.Duration
	active   func() bool
	sample   func() []int16
	paint    func([]int16)

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewVisualizer(active func() bool, sample func() []int16, paint func([]int16)) *Visualizer {
	return &Visualizer{
		interval: defaultPaintInterval,
		active:   active,
		sample:   sample,
		paint:    paint,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (v *Visualizer) Start() {
	go v.run()
}

func (v *Visualizer) run() {
	defer close(v.done)
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()
	for {
		select {
		case <-v.quit:
			return
		case <-ticker.C:
		}
		if !v.active() {
			return
		}
		if frame := v.sample(); frame != nil {
			v.paint(frame)
		}
	}
}

// Stop requests shutdown and waits for the paint loop to exit. Safe to call
// more than once, and safe to call after the loop exited on its own.
func (v *Visualizer) Stop() {
	v.stopOnce.Do(func() { close(v.quit) })
	<-v.done
}

// Done is closed when the paint loop has exited.
func (v *Visualizer) Done() <-chan struct{} {
	return v.done
}
