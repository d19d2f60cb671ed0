package device

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/google/uuid"
	"github.com/lumenboard/audiocore/pkg/audiodevice"
	"github.com/lumenboard/audiocore/pkg/frame"
)

// An AudioSinkDevice playing frames through the host's speakers via
// oto.
//
// Written frames queue in an internal byte buffer that the oto player
// drains; underrun yields silence rather than an error, matching the
// board peripheral's behaviour. Transmit events are generated by a
// ticker at the frame cadence, standing in for the DMA completion
// interrupt of real hardware.
//
// Note oto permits only one context per process, so create at most one
// of these per run.
type OtoAudioSinkDevice struct {
	logger *slog.Logger
	uuid   uuid.UUID

	properties    audiodevice.DeviceProperties
	frameDuration time.Duration

	ctx    *oto.Context
	player *oto.Player

	mu      sync.Mutex
	pending []byte
	running bool
	quit    chan struct{}

	txDone chan struct{}
}

// Create a new OtoAudioSinkDevice for the given device properties and
// frame size (in samples). Blocks until the host audio context is
// ready.
func NewOtoAudioSinkDevice(
	properties audiodevice.DeviceProperties,
	frameSize int,
) (*OtoAudioSinkDevice, error) {
	uuid := uuid.New()
	logger := slog.Default().With(
		"oto sink device uuid", uuid,
	)

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   properties.SampleRate,
		ChannelCount: properties.NumChannels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		logger.Error("could not create oto context", "err", err)
		return nil, err
	}
	<-ready

	d := &OtoAudioSinkDevice{
		logger:     logger,
		uuid:       uuid,
		properties: properties,
		frameDuration: time.Duration(frameSize) * time.Second /
			time.Duration(properties.SampleRate*properties.NumChannels),
		ctx:    ctx,
		txDone: make(chan struct{}, 1),
	}
	d.player = d.ctx.NewPlayer(otoPCMSource{d})

	logger.Debug(
		"oto sink ready",
		"sampleRate", properties.SampleRate,
		"channels", properties.NumChannels,
		"frameDuration", d.frameDuration,
	)
	return d, nil
}

func (d *OtoAudioSinkDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}
	d.running = true
	d.quit = make(chan struct{})
	d.player.Play()
	go d.clockTransmits(d.quit)
	return nil
}

func (d *OtoAudioSinkDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return nil
	}
	d.running = false
	close(d.quit)
	d.player.Pause()
	return nil
}

func (d *OtoAudioSinkDevice) ZeroBuffer() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = d.pending[:0]
}

func (d *OtoAudioSinkDevice) WriteFrame(f frame.PCMFrame) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = f.AppendBytes(d.pending)
	return f.ByteLen(), nil
}

func (d *OtoAudioSinkDevice) FrameTransmitted() <-chan struct{} {
	return d.txDone
}

func (d *OtoAudioSinkDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.properties
}

// Close stops playback and releases the oto player.
func (d *OtoAudioSinkDevice) Close() error {
	d.Stop()
	return d.player.Close()
}

// clockTransmits emits one transmit event per frame period until quit
// is closed.
func (d *OtoAudioSinkDevice) clockTransmits(quit <-chan struct{}) {
	ticker := time.NewTicker(d.frameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			select {
			case d.txDone <- struct{}{}:
			default:
			}
		case <-quit:
			return
		}
	}
}

// otoPCMSource adapts the device's pending byte queue to the io.Reader
// the oto player pulls from. Underrun is filled with silence.
type otoPCMSource struct {
	d *OtoAudioSinkDevice
}

func (s otoPCMSource) Read(p []byte) (int, error) {
	s.d.mu.Lock()
	n := copy(p, s.d.pending)
	remaining := copy(s.d.pending, s.d.pending[n:])
	s.d.pending = s.d.pending[:remaining]
	s.d.mu.Unlock()

	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}
