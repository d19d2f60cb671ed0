package wavestream

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/lumenboard/audiocore/internal/ringbuf"
	"github.com/lumenboard/audiocore/pkg/frame"
)

const testSampleRate = 16000

// writeWaveFixture writes a wave file with the given format and sample
// data and returns its path.
func writeWaveFixture(t *testing.T, name string, sampleRate, numChannels int, samples []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, numChannels, 1)
	err = enc.Write(&audio.IntBuffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: numChannels,
		},
		Data:           samples,
		SourceBitDepth: 16,
	})
	if err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close fixture encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close fixture: %v", err)
	}
	return path
}

func TestOpen_ValidFile(t *testing.T) {
	path := writeWaveFixture(t, "ok.wav", testSampleRate, 1, []int{1, 2, 3, 4})

	stream, err := Open(path, testSampleRate)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer stream.Close()

	if !stream.Available() {
		t.Error("Available = false on a file with sample data")
	}
}

func TestOpen_RejectsShortHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.wav")
	if err := os.WriteFile(path, []byte("RIFF1234"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(path, testSampleRate)
	if !errors.Is(err, ErrShortHeader) {
		t.Errorf("Open on truncated header = %v, want ErrShortHeader", err)
	}
}

func TestOpen_RejectsStereo(t *testing.T) {
	path := writeWaveFixture(t, "stereo.wav", testSampleRate, 2, []int{1, 2, 3, 4})

	_, err := Open(path, testSampleRate)
	if !errors.Is(err, ErrNotMono) {
		t.Errorf("Open on stereo file = %v, want ErrNotMono", err)
	}
}

func TestOpen_RejectsWrongSampleRate(t *testing.T) {
	path := writeWaveFixture(t, "rate.wav", 44100, 1, []int{1, 2, 3, 4})

	_, err := Open(path, testSampleRate)
	if !errors.Is(err, ErrBadSampleRate) {
		t.Errorf("Open on 44100Hz file = %v, want ErrBadSampleRate", err)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope.wav"), testSampleRate); err == nil {
		t.Error("Open on missing file succeeded")
	}
}

func newTestStreamer(t *testing.T, samples []int, frameSize, numFrames, bufferTarget, volume int) (*Streamer, *ringbuf.Buffer) {
	t.Helper()
	path := writeWaveFixture(t, "stream.wav", testSampleRate, 1, samples)
	stream, err := Open(path, testSampleRate)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { stream.Close() })

	ring, err := ringbuf.New(frameSize, numFrames)
	if err != nil {
		t.Fatal(err)
	}
	return NewStreamer(stream, ring, bufferTarget, volume, slog.Default()), ring
}

func TestStreamFrame_SwapsAdjacentPairs(t *testing.T) {
	s, ring := newTestStreamer(t, []int{1, 2, 3, 4}, 4, 8, 2, 10)

	if !s.StreamFrame() {
		t.Fatal("StreamFrame did not commit a full frame")
	}

	var got []frame.Sample
	ring.ConsumeFrame(func(f frame.PCMFrame) error {
		got = append(got, f...)
		return nil
	})
	want := []frame.Sample{2, 1, 4, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d (pair swap)", i, got[i], want[i])
		}
	}
}

func TestStreamFrame_AppliesVolume(t *testing.T) {
	s, ring := newTestStreamer(t, []int{100, 200, 300, 400}, 4, 8, 2, 5)

	if !s.StreamFrame() {
		t.Fatal("StreamFrame did not commit a full frame")
	}

	var got []frame.Sample
	ring.ConsumeFrame(func(f frame.PCMFrame) error {
		got = append(got, f...)
		return nil
	})
	want := []frame.Sample{100, 50, 200, 150}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d (half volume, swapped)", i, got[i], want[i])
		}
	}
}

func TestStreamFrame_HonorsBufferTarget(t *testing.T) {
	samples := make([]int, 6*4)
	s, ring := newTestStreamer(t, samples, 4, 8, 2, 10)

	for i := 0; i < 2; i++ {
		if !s.StreamFrame() {
			t.Fatalf("StreamFrame %d did not commit", i)
		}
	}
	if s.StreamFrame() {
		t.Error("StreamFrame committed past the buffering target")
	}
	if got := ring.Populated(); got != 2 {
		t.Errorf("Populated = %d, want 2", got)
	}

	// Draining a frame reopens the window.
	ring.ConsumeFrame(func(frame.PCMFrame) error { return nil })
	if !s.StreamFrame() {
		t.Error("StreamFrame refused after a frame drained")
	}
}

func TestStreamFrame_DiscardsShortTail(t *testing.T) {
	// Six samples: one full 4-sample frame plus a 2-sample tail.
	s, ring := newTestStreamer(t, []int{1, 2, 3, 4, 5, 6}, 4, 8, 4, 10)

	if !s.StreamFrame() {
		t.Fatal("first StreamFrame did not commit")
	}
	if s.StreamFrame() {
		t.Error("StreamFrame committed a partial trailing frame")
	}
	if got := ring.Populated(); got != 1 {
		t.Errorf("Populated = %d, want 1 (tail discarded)", got)
	}
	if !s.Exhausted() {
		t.Error("Exhausted = false after the tail was consumed")
	}
}

func TestSetVolume_Saturates(t *testing.T) {
	s, _ := newTestStreamer(t, []int{1, 2, 3, 4}, 4, 8, 2, 5)

	s.SetVolume(25)
	if s.volume != 10 {
		t.Errorf("volume after SetVolume(25) = %d, want 10", s.volume)
	}
	s.SetVolume(-3)
	if s.volume != 0 {
		t.Errorf("volume after SetVolume(-3) = %d, want 0", s.volume)
	}
}

func TestExhausted_AfterDrainingWholeFile(t *testing.T) {
	s, ring := newTestStreamer(t, make([]int, 3*4), 4, 8, 8, 10)

	streamed := 0
	for s.StreamFrame() {
		streamed++
	}
	if streamed != 3 {
		t.Errorf("streamed %d frames, want 3", streamed)
	}
	if !s.Exhausted() {
		t.Error("Exhausted = false after streaming the whole file")
	}
	if got := ring.Populated(); got != 3 {
		t.Errorf("Populated = %d, want 3", got)
	}
}
