package device

import (
	"log/slog"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/lumenboard/audiocore/pkg/audiodevice"
	"github.com/lumenboard/audiocore/pkg/frame"
)

// An AudioSinkDevice that renders incoming frames to a .WAV file.
//
// Intended for offline rendering: the transmit clock free-runs while
// started, so playback drains as fast as frames can be produced rather
// than in real time. The resulting file is only valid once Close has
// been called.
type FileAudioSinkDevice struct {
	logger *slog.Logger
	uuid   uuid.UUID

	properties audiodevice.DeviceProperties
	encoder    *wav.Encoder
	fileHandle *os.File
	bufFormat  *audio.Format

	mu        sync.Mutex
	running   bool
	quit      chan struct{}
	txDone    chan struct{}
	closeOnce sync.Once
}

// Create a new FileAudioSinkDevice writing 16-bit PCM to a .WAV file
// at the specified path.
func NewFileAudioSinkDevice(
	audioFilePath string,
	properties audiodevice.DeviceProperties,
) (*FileAudioSinkDevice, error) {
	uuid := uuid.New()
	logger := slog.Default().With(
		"file sink device uuid", uuid,
	)

	f, err := os.Create(audioFilePath)
	if err != nil {
		logger.Error(
			"could not create audio file",
			"audioFile", audioFilePath,
			"err", err,
		)
		return nil, err
	}

	encoder := wav.NewEncoder(f, properties.SampleRate, 16, properties.NumChannels, 1)
	logger.Debug(
		"created audio file",
		"audioFile", audioFilePath,
		"sampleRate", encoder.SampleRate,
		"channels", encoder.NumChans,
	)

	return &FileAudioSinkDevice{
		logger:     logger,
		uuid:       uuid,
		properties: properties,
		encoder:    encoder,
		fileHandle: f,
		bufFormat: &audio.Format{
			SampleRate:  properties.SampleRate,
			NumChannels: properties.NumChannels,
		},
		txDone: make(chan struct{}, 1),
	}, nil
}

func (d *FileAudioSinkDevice) Start() error {
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

func (d *FileAudioSinkDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return nil
	}
	d.running = false
	close(d.quit)
	return nil
}

// ZeroBuffer is a no-op; the encoder holds no pending samples between
// writes.
func (d *FileAudioSinkDevice) ZeroBuffer() {}

func (d *FileAudioSinkDevice) WriteFrame(f frame.PCMFrame) (int, error) {
	buf := &audio.IntBuffer{
		Format:         d.bufFormat,
		Data:           make([]int, len(f)),
		SourceBitDepth: 16,
	}
	for i, sample := range f {
		buf.Data[i] = int(sample)
	}

	if err := d.encoder.Write(buf); err != nil {
		d.logger.Error("error while writing frame to file", "err", err)
		return 0, err
	}
	return f.ByteLen(), nil
}

func (d *FileAudioSinkDevice) FrameTransmitted() <-chan struct{} {
	return d.txDone
}

func (d *FileAudioSinkDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.properties
}

// Close finalises the .WAV header and closes the file.
func (d *FileAudioSinkDevice) Close() error {
	d.Stop()
	var err error
	d.closeOnce.Do(func() {
		err = d.encoder.Close()
		d.fileHandle.Sync()
		if closeErr := d.fileHandle.Close(); err == nil {
			err = closeErr
		}
	})
	return err
}

func (d *FileAudioSinkDevice) transmitLoop(quit <-chan struct{}) {
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
