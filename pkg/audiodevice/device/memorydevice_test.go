package device

import (
	"errors"
	"testing"
	"time"

	"github.com/lumenboard/audiocore/pkg/frame"
)

func TestMemoryDevice_RecordsFrames(t *testing.T) {
	d := NewMemoryAudioSinkDevice(testProperties())
	d.Start()
	defer d.Stop()

	d.WriteFrame(frame.PCMFrame{1, 2})
	d.WriteFrame(frame.PCMFrame{3, 4})

	if got := d.FramesWritten(); got != 2 {
		t.Errorf("FramesWritten = %d, want 2", got)
	}
	got := d.Samples()
	want := frame.PCMFrame{1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("recorded %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestMemoryDevice_FailStartWith(t *testing.T) {
	d := NewMemoryAudioSinkDevice(testProperties())
	driverErr := errors.New("driver installation failed")
	d.FailStartWith(driverErr)

	if err := d.Start(); !errors.Is(err, driverErr) {
		t.Errorf("Start = %v, want injected error", err)
	}
	if d.Running() {
		t.Error("Running = true after failed Start")
	}
}

func TestMemoryDevice_RunningTransitions(t *testing.T) {
	d := NewMemoryAudioSinkDevice(testProperties())

	if d.Running() {
		t.Error("Running = true before Start")
	}
	d.Start()
	if !d.Running() {
		t.Error("Running = false after Start")
	}
	d.Stop()
	if d.Running() {
		t.Error("Running = true after Stop")
	}
	assertNoSignal(t, d.FrameTransmitted())
}

func TestMemoryDevice_FreeRunningClock(t *testing.T) {
	d := NewMemoryAudioSinkDevice(testProperties())
	d.Start()
	defer d.Stop()

	waitSignal(t, d.FrameTransmitted())
	waitSignal(t, d.FrameTransmitted())
}

func TestMemoryDevice_ClockedCadence(t *testing.T) {
	const interval = 50 * time.Millisecond
	d := NewClockedMemoryAudioSinkDevice(testProperties(), interval)
	d.Start()
	defer d.Stop()

	// The ticker cannot fire before its interval elapses.
	select {
	case <-d.FrameTransmitted():
		t.Error("transmit event before the first cadence interval")
	case <-time.After(interval / 10):
	}
	waitSignal(t, d.FrameTransmitted())
}

func TestMemoryDevice_CountsZeroBufferCalls(t *testing.T) {
	d := NewMemoryAudioSinkDevice(testProperties())
	if got := d.TimesZeroed(); got != 0 {
		t.Errorf("TimesZeroed = %d, want 0", got)
	}
	d.ZeroBuffer()
	d.ZeroBuffer()
	if got := d.TimesZeroed(); got != 2 {
		t.Errorf("TimesZeroed = %d, want 2", got)
	}
}
