package device

import (
	"sync"

	"github.com/lumenboard/audiocore/pkg/audiodevice"
	"github.com/lumenboard/audiocore/pkg/frame"
)

// An AudioSinkDevice that consumes all frames without any further
// actions, emitting a free-running transmit clock while started.
//
// A minimal example of the architecture of an AudioSinkDevice, useful
// in testing and examples.
type DummyAudioSinkDevice struct {
	properties audiodevice.DeviceProperties

	mu      sync.Mutex
	running bool
	quit    chan struct{}
	txDone  chan struct{}
}

func NewDummyAudioSinkDevice(properties audiodevice.DeviceProperties) *DummyAudioSinkDevice {
	return &DummyAudioSinkDevice{
		properties: properties,
		txDone:     make(chan struct{}, 1),
	}
}

func (d *DummyAudioSinkDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}
	d.running = true
	d.quit = make(chan struct{})
	go d.transmitLoop(d.quit)
	return nil
}

func (d *DummyAudioSinkDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return nil
	}
	d.running = false
	close(d.quit)
	return nil
}

func (d *DummyAudioSinkDevice) ZeroBuffer() {}

func (d *DummyAudioSinkDevice) WriteFrame(f frame.PCMFrame) (int, error) {
	return f.ByteLen(), nil
}

func (d *DummyAudioSinkDevice) FrameTransmitted() <-chan struct{} {
	return d.txDone
}

func (d *DummyAudioSinkDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.properties
}

func (d *DummyAudioSinkDevice) transmitLoop(quit <-chan struct{}) {
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
