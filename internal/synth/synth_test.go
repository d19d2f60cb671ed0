package synth

import (
	"math"
	"testing"

	"github.com/lumenboard/audiocore/internal/notation"
	"github.com/lumenboard/audiocore/internal/ringbuf"
	"github.com/lumenboard/audiocore/pkg/frame"
)

// drainSamples consumes every populated frame into one flat slice.
func drainSamples(t *testing.T, ring *ringbuf.Buffer) []frame.Sample {
	t.Helper()
	var out []frame.Sample
	for {
		consumed, err := ring.ConsumeFrame(func(f frame.PCMFrame) error {
			out = append(out, f...)
			return nil
		})
		if err != nil {
			t.Fatalf("ConsumeFrame: %v", err)
		}
		if !consumed {
			return out
		}
	}
}

func TestAmplitudeFor(t *testing.T) {
	cases := []struct {
		name   string
		freq   float64
		volume int
		want   float64
	}{
		{"low tone doubled", 440, 10, 32000},
		{"low tone half volume", 440, 5, 16000},
		{"taper start", 800, 10, 0},
		{"taper midpoint", 950, 10, 8000},
		{"taper end", 1100, 10, 16000},
		{"above taper", 2000, 10, 16000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := amplitudeFor(tc.freq, tc.volume)
			if math.Abs(got-tc.want) > 1e-6 {
				t.Errorf("amplitudeFor(%g, %d) = %g, want %g", tc.freq, tc.volume, got, tc.want)
			}
		})
	}
}

func TestRender_RefusesWithoutHeadroom(t *testing.T) {
	ring, err := ringbuf.New(8, 3)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRenderer(ring, 16)

	// 1s at 16Hz is 16 samples, exactly the free space. The whole note
	// must fit with room to spare, so this is refused.
	note := notation.Note{FrequencyHz: 440, DurationSec: 1.0}
	if r.Render(note, 10) {
		t.Error("Render succeeded with no headroom for the whole note")
	}
	if got := ring.Populated(); got != 0 {
		t.Errorf("Populated after refused render = %d, want 0 (nothing written)", got)
	}

	// One sample less fits.
	note.DurationSec = 15.0 / 16.0
	if !r.Render(note, 10) {
		t.Error("Render refused a note that fits")
	}
}

func TestRender_SilenceWritesZeros(t *testing.T) {
	ring, err := ringbuf.New(100, 20)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRenderer(ring, 16000)

	if !r.Render(notation.Note{FrequencyHz: 0, DurationSec: 0.05}, 10) {
		t.Fatal("Render refused a rest that fits")
	}

	samples := drainSamples(t, ring)
	if len(samples) != 800 {
		t.Fatalf("rest produced %d samples in full frames, want 800", len(samples))
	}
	for i, s := range samples {
		if s != 0 {
			t.Fatalf("sample %d = %d, want 0", i, s)
		}
	}
}

func TestRender_ToneShape(t *testing.T) {
	const (
		sampleRate = 16000
		freq       = 1000.0
		duration   = 0.1
	)
	ring, err := ringbuf.New(100, 200)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRenderer(ring, sampleRate)

	if !r.Render(notation.Note{FrequencyHz: freq, DurationSec: duration}, 10) {
		t.Fatal("Render refused a tone that fits")
	}

	samples := drainSamples(t, ring)
	numSamples := int(duration * sampleRate)
	if len(samples) != numSamples {
		t.Fatalf("tone produced %d samples, want %d", len(samples), numSamples)
	}

	// The envelope starts from zero.
	if samples[0] != 0 {
		t.Errorf("first sample = %d, want 0 (fade-in starts silent)", samples[0])
	}

	// Peak amplitude in the steady region matches the compensation
	// formula: 16000 * (1000-800)/300.
	wantAmp := amplitudeFor(freq, 10)
	var peak float64
	for _, s := range samples[numSamples/10 : numSamples*9/10] {
		if v := math.Abs(float64(s)); v > peak {
			peak = v
		}
	}
	if peak > wantAmp+1 {
		t.Errorf("peak = %g, exceeds amplitude %g", peak, wantAmp)
	}
	if peak < 0.95*wantAmp {
		t.Errorf("peak = %g, want near %g", peak, wantAmp)
	}

	// Frequency check via sign changes: a sine at f Hz crosses zero
	// 2*f*duration times.
	signChanges := 0
	prev := samples[0]
	for _, s := range samples[1:] {
		if (prev < 0 && s > 0) || (prev > 0 && s < 0) {
			signChanges++
		}
		if s != 0 {
			prev = s
		}
	}
	wantChanges := int(2 * freq * duration)
	if signChanges < wantChanges-2 || signChanges > wantChanges+2 {
		t.Errorf("sign changes = %d, want about %d", signChanges, wantChanges)
	}
}

func TestRender_FadeEnvelope(t *testing.T) {
	const sampleRate = 16000
	ring, err := ringbuf.New(100, 200)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRenderer(ring, sampleRate)

	if !r.Render(notation.Note{FrequencyHz: 440, DurationSec: 0.5}, 10) {
		t.Fatal("Render refused a tone that fits")
	}
	samples := drainSamples(t, ring)
	numSamples := len(samples)

	// Inside the 2% fade windows the magnitude stays under the envelope
	// at that point.
	amp := amplitudeFor(440, 10)
	fadeLen := int(0.02 * float64(numSamples))
	for i := 0; i < fadeLen; i++ {
		bound := amp*float64(i)/float64(fadeLen) + 1
		if v := math.Abs(float64(samples[i])); v > bound {
			t.Fatalf("fade-in sample %d = %g, exceeds envelope %g", i, v, bound)
		}
	}
	for i := numSamples - fadeLen; i < numSamples; i++ {
		bound := amp*float64(numSamples-i)/float64(fadeLen) + 1
		if v := math.Abs(float64(samples[i])); v > bound {
			t.Fatalf("fade-out sample %d = %g, exceeds envelope %g", i, v, bound)
		}
	}
}

func TestNumSamples(t *testing.T) {
	ring, err := ringbuf.New(8, 3)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRenderer(ring, 16000)

	cases := []struct {
		duration float64
		want     int
	}{
		{0.5, 8000},
		{0.45, 7200},
		{0.2, 3200},
		{0, 0},
	}
	for _, tc := range cases {
		if got := r.NumSamples(tc.duration); got != tc.want {
			t.Errorf("NumSamples(%g) = %d, want %d", tc.duration, got, tc.want)
		}
	}
}
