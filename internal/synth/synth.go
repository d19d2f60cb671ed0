package synth

import (
	"math"

	"github.com/lumenboard/audiocore/internal/notation"
	"github.com/lumenboard/audiocore/internal/ringbuf"
	"github.com/lumenboard/audiocore/pkg/frame"
)

const (
	// Linear amplitude envelope applied at both ends of every tone to
	// suppress clicking at note boundaries.
	fadeInFrac  = 0.02
	fadeOutFrac = 0.02

	baseAmplitude = 16000

	// The physical speaker has a non-flat frequency response; tones
	// below lowBoostHz are doubled in amplitude and the range up to
	// boostTaperHz is scaled linearly to compensate.
	lowBoostHz   = 800.0
	boostTaperHz = 1100.0

	// Tones are written to the ring in chunks so long notes do not
	// build one giant scratch slice.
	renderChunk = 256
)

// Renderer turns resolved notes into PCM samples in the shared ring.
type Renderer struct {
	ring       *ringbuf.Buffer
	sampleRate int
	scratch    []frame.Sample
}

// NewRenderer creates a Renderer writing into ring at the given sample
// rate.
func NewRenderer(ring *ringbuf.Buffer, sampleRate int) *Renderer {
	return &Renderer{
		ring:       ring,
		sampleRate: sampleRate,
		scratch:    make([]frame.Sample, renderChunk),
	}
}

// NumSamples returns how many samples a note of the given duration
// occupies at the renderer's sample rate.
func (r *Renderer) NumSamples(durationSec float64) int {
	return int(durationSec * float64(r.sampleRate))
}

// Render writes the note into the ring at the given volume (1-10).
//
// If the ring does not have headroom for the whole note, Render does
// nothing and returns false; the scheduler retries on a later step.
// Notes are never truncated or dropped on back-pressure. Returns true
// once every sample of the note has been written.
func (r *Renderer) Render(note notation.Note, volume int) bool {
	numSamples := r.NumSamples(note.DurationSec)
	if r.ring.SamplesFree() <= numSamples {
		return false
	}

	if note.FrequencyHz == 0 {
		r.renderSilence(numSamples)
		return true
	}
	r.renderTone(note.FrequencyHz, numSamples, amplitudeFor(note.FrequencyHz, volume))
	return true
}

// amplitudeFor computes the peak amplitude for a tone, applying the
// speaker compensation boost.
func amplitudeFor(freq float64, volume int) float64 {
	amp := baseAmplitude * (float64(volume) / 10.0)
	switch {
	case freq < lowBoostHz:
		amp *= 2
	case freq < boostTaperHz:
		amp *= (freq - lowBoostHz) / (boostTaperHz - lowBoostHz)
	}
	return amp
}

func (r *Renderer) renderSilence(numSamples int) {
	for i := range r.scratch {
		r.scratch[i] = 0
	}
	for numSamples > 0 {
		n := min(numSamples, len(r.scratch))
		r.ring.WriteSamples(r.scratch[:n])
		numSamples -= n
	}
}

func (r *Renderer) renderTone(freq float64, numSamples int, amplitude float64) {
	phaseStep := 2 * math.Pi * freq / float64(r.sampleRate)
	for written := 0; written < numSamples; {
		n := min(numSamples-written, len(r.scratch))
		for i := 0; i < n; i++ {
			sampleIdx := written + i
			amp := amplitude
			frac := float64(sampleIdx) / float64(numSamples)
			if frac < fadeInFrac {
				amp *= frac / fadeInFrac
			} else if frac > 1-fadeOutFrac {
				amp *= 1 - (frac-(1-fadeOutFrac))/fadeOutFrac
			}
			r.scratch[i] = frame.Sample(amp * math.Sin(phaseStep*float64(sampleIdx)))
		}
		r.ring.WriteSamples(r.scratch[:n])
		written += n
	}
}
