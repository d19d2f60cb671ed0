package ringbuf

import (
	"errors"
	"runtime"
	"sync/atomic"

	"github.com/lumenboard/audiocore/pkg/frame"
)

var errBadGeometry = errors.New("ring buffer geometry must be positive")

// Buffer is the fixed-capacity circular PCM store shared between the
// playback scheduler (producer) and the output task (consumer).
//
// The store is organised as numFrames frames of frameSize samples.
// The producer owns the write cursor and only ever advances it; the
// consumer owns the read cursor and only ever advances that. The one
// unused frame of margin (FramesFree never reports the final frame)
// guarantees the two cursors never land inside the same frame, so the
// sample storage itself needs no lock. The populated-frame count is
// touched by both sides and is therefore atomic.
type Buffer struct {
	samples   []frame.Sample
	frameSize int
	numFrames int

	// Next sample slot to fill. Producer side only.
	writeCursor int

	// Next frame to hand to the consumer. Consumer side only.
	readCursor int

	populated atomic.Int32
}

// New creates a ring of numFrames frames, each frameSize samples.
func New(frameSize, numFrames int) (*Buffer, error) {
	if frameSize <= 0 || numFrames <= 1 {
		return nil, errBadGeometry
	}
	return &Buffer{
		samples:   make([]frame.Sample, frameSize*numFrames),
		frameSize: frameSize,
		numFrames: numFrames,
	}, nil
}

// FrameSize returns the number of samples per frame.
func (b *Buffer) FrameSize() int { return b.frameSize }

// NumFrames returns the total frame capacity of the ring.
func (b *Buffer) NumFrames() int { return b.numFrames }

// Populated returns the count of fully written, not yet consumed frames.
func (b *Buffer) Populated() int { return int(b.populated.Load()) }

// FramesFree returns how many whole frames the producer may still write
// without overtaking the consumer. One frame is always held back as a
// safety margin between the cursors.
func (b *Buffer) FramesFree() int {
	return b.numFrames - int(b.populated.Load()) - 1
}

// SamplesFree returns the writable headroom in samples, excluding any
// partially filled frame already in progress.
func (b *Buffer) SamplesFree() int {
	return b.FramesFree() * b.frameSize
}

// WriteSamples appends samples at the write cursor, wrapping modulo the
// total capacity. Each time the cursor crosses a frame boundary the
// populated count is published and the goroutine yields so the output
// task is never starved during a long synthesis run.
//
// The caller must respect SamplesFree; WriteSamples does not block.
func (b *Buffer) WriteSamples(samples []frame.Sample) {
	total := len(b.samples)
	for _, s := range samples {
		b.samples[b.writeCursor] = s
		b.writeCursor = (b.writeCursor + 1) % total
		if b.writeCursor%b.frameSize == 0 {
			b.populated.Add(1)
			runtime.Gosched()
		}
	}
}

// ConsumeFrame hands the frame at the read cursor to deliver, then
// advances the read cursor and decrements the populated count. Called
// only from the output task. Returns false without calling deliver when
// no frame is populated; the consumer treats that as implicit silence.
//
// The frame slice passed to deliver aliases ring storage and is only
// valid for the duration of the call.
func (b *Buffer) ConsumeFrame(deliver func(frame.PCMFrame) error) (bool, error) {
	if b.populated.Load() == 0 {
		return false, nil
	}
	start := b.readCursor * b.frameSize
	err := deliver(frame.PCMFrame(b.samples[start : start+b.frameSize]))
	b.readCursor = (b.readCursor + 1) % b.numFrames
	b.populated.Add(-1)
	return true, err
}

// Reset zeroes both cursors and the populated count. Only safe once the
// consumer is confirmed halted; the session controller enforces that.
func (b *Buffer) Reset() {
	b.writeCursor = 0
	b.readCursor = 0
	b.populated.Store(0)
}
