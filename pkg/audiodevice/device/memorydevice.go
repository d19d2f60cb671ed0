package device

import (
	"sync"
	"time"

	"github.com/lumenboard/audiocore/pkg/audiodevice"
	"github.com/lumenboard/audiocore/pkg/frame"
)

// An AudioSinkDevice that records every sample it is handed.
//
// While running the device emits transmit events from its own clock,
// the way real hardware signals DMA completions: free-running by
// default so playback drains as fast as frames are produced, or at a
// fixed cadence via NewClockedMemoryAudioSinkDevice to emulate a
// real-time output. Useful in tests asserting on the exact PCM a
// session renders and on its pacing.
type MemoryAudioSinkDevice struct {
	properties audiodevice.DeviceProperties
	interval   time.Duration

	mu       sync.Mutex
	running  bool
	quit     chan struct{}
	samples  frame.PCMFrame
	frames   int
	zeroed   int
	starts   int
	stops    int
	startErr error

	txDone chan struct{}
}

func NewMemoryAudioSinkDevice(properties audiodevice.DeviceProperties) *MemoryAudioSinkDevice {
	return NewClockedMemoryAudioSinkDevice(properties, 0)
}

// NewClockedMemoryAudioSinkDevice creates a recording sink whose
// transmit events fire every interval, emulating a hardware frame
// cadence. A zero interval means free-running.
func NewClockedMemoryAudioSinkDevice(
	properties audiodevice.DeviceProperties,
	interval time.Duration,
) *MemoryAudioSinkDevice {
	return &MemoryAudioSinkDevice{
		properties: properties,
		interval:   interval,
		txDone:     make(chan struct{}, 1),
	}
}

// FailStartWith makes subsequent Start calls return err, emulating a
// hardware driver installation failure.
func (d *MemoryAudioSinkDevice) FailStartWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.startErr = err
}

func (d *MemoryAudioSinkDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	if d.running {
		return nil
	}
	d.running = true
	d.starts++
	d.quit = make(chan struct{})
	go d.transmitLoop(d.quit)
	return nil
}

func (d *MemoryAudioSinkDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return nil
	}
	d.running = false
	d.stops++
	close(d.quit)
	return nil
}

func (d *MemoryAudioSinkDevice) ZeroBuffer() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.zeroed++
}

func (d *MemoryAudioSinkDevice) WriteFrame(f frame.PCMFrame) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples = append(d.samples, f...)
	d.frames++
	return f.ByteLen(), nil
}

func (d *MemoryAudioSinkDevice) FrameTransmitted() <-chan struct{} {
	return d.txDone
}

func (d *MemoryAudioSinkDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.properties
}

// Samples returns a copy of every sample written so far.
func (d *MemoryAudioSinkDevice) Samples() frame.PCMFrame {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(frame.PCMFrame, len(d.samples))
	copy(out, d.samples)
	return out
}

// FramesWritten returns the number of frames handed to the device.
func (d *MemoryAudioSinkDevice) FramesWritten() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

// Running reports whether the device is currently started.
func (d *MemoryAudioSinkDevice) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// TimesZeroed returns how often ZeroBuffer has been called.
func (d *MemoryAudioSinkDevice) TimesZeroed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.zeroed
}

func (d *MemoryAudioSinkDevice) transmitLoop(quit <-chan struct{}) {
	if d.interval <= 0 {
		for {
			select {
			case <-quit:
				return
			default:
			}
			select {
			case d.txDone <- struct{}{}:
			case <-quit:
				return
			}
		}
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		default:
		}
		select {
		case <-ticker.C:
			select {
			case d.txDone <- struct{}{}:
			default:
				// Consumer is still busy with the last frame; this
				// transmit slot is lost, as on hardware.
			}
		case <-quit:
			return
		}
	}
}
