package audiodevice

import "github.com/lumenboard/audiocore/pkg/frame"

type DeviceProperties struct {
	SampleRate  int
	NumChannels int
}

// Interface for audio sink devices, e.g. the board's audio peripheral
// or a host speaker backend.
//
// Sink devices consume fixed-size PCM frames pushed by the output task
// and report drainage through an asynchronous frame-transmitted signal.
type AudioSinkDevice interface {
	// Start clocking samples out. An error here is fatal for the audio
	// subsystem; there is no retry policy for driver bring-up.
	Start() error

	// Stop halts output. After Stop returns no frame is in flight, so
	// shared playback state may safely be reset. Idempotent.
	Stop() error

	// ZeroBuffer clears any samples the device still holds so a
	// stopped session never leaks a stale tail into the next one.
	ZeroBuffer()

	// WriteFrame hands one frame to the device, blocking until the
	// device has accepted it. Returns the number of bytes accepted.
	WriteFrame(f frame.PCMFrame) (int, error)

	// FrameTransmitted returns the channel on which the device signals
	// each fully drained frame. The output task waits on this signal
	// (with a bounded poll timeout) before consuming the next frame.
	FrameTransmitted() <-chan struct{}

	GetDeviceProperties() DeviceProperties
}
