package wavestream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/lumenboard/audiocore/internal/ringbuf"
	"github.com/lumenboard/audiocore/pkg/frame"
)

// The container header is a fixed 44 bytes: channel count at offset 22
// (16-bit) and sample rate at offset 24 (32-bit), both little-endian.
// Everything after it is raw 16-bit sample data.
const (
	headerLen        = 44
	channelsOffset   = 22
	sampleRateOffset = 24
)

var (
	// ErrShortHeader is returned when the file ends before a full
	// container header could be read.
	ErrShortHeader = errors.New("could not read wave file header")

	// ErrNotMono is returned for files declaring more than one channel.
	ErrNotMono = errors.New("only mono wave files are supported")

	// ErrBadSampleRate is returned when the declared sample rate does
	// not match the board's fixed output rate.
	ErrBadSampleRate = errors.New("wave file sample rate does not match output rate")
)

// ByteStream is the storage-layer surface the streamer consumes: a
// readable byte source that knows whether more data remains.
type ByteStream interface {
	// Available reports whether at least one more byte can be read.
	Available() bool
	Read(p []byte) (int, error)
	Close() error
}

// fileByteStream adapts an os.File, tracking the remaining byte count
// so Available never touches the file.
type fileByteStream struct {
	file      *os.File
	remaining int64
}

func (s *fileByteStream) Available() bool { return s.remaining > 0 }

func (s *fileByteStream) Read(p []byte) (int, error) {
	n, err := s.file.Read(p)
	s.remaining -= int64(n)
	return n, err
}

func (s *fileByteStream) Close() error { return s.file.Close() }

// Open opens a wave file and validates its header against the board's
// fixed sample rate. On any precondition failure the file is closed and
// a typed error is returned; the stream is positioned at the first
// sample byte on success.
func Open(path string, wantSampleRate int) (ByteStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var header [headerLen]byte
	n, err := f.Read(header[:])
	if n != headerLen {
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrShortHeader, err)
		}
		return nil, ErrShortHeader
	}

	if channels := binary.LittleEndian.Uint16(header[channelsOffset:]); channels != 1 {
		f.Close()
		return nil, fmt.Errorf("%w: file has %d channels", ErrNotMono, channels)
	}
	if rate := binary.LittleEndian.Uint32(header[sampleRateOffset:]); int(rate) != wantSampleRate {
		f.Close()
		return nil, fmt.Errorf("%w: file declares %d Hz, output runs at %d Hz",
			ErrBadSampleRate, rate, wantSampleRate)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileByteStream{
		file:      f,
		remaining: info.Size() - headerLen,
	}, nil
}

// Streamer copies frames from an open byte stream into the shared ring,
// one frame per scheduler step, keeping occupancy at a small buffering
// target so volume changes take effect quickly without risking underrun.
type Streamer struct {
	logger *slog.Logger

	stream       ByteStream
	ring         *ringbuf.Buffer
	bufferTarget int
	volume       int

	rawBytes []byte
	samples  []frame.Sample
}

// NewStreamer creates a Streamer feeding ring from stream. bufferTarget
// is the occupancy (in frames) above which streaming pauses; volume is
// the initial wave volume, 0 to 10.
func NewStreamer(stream ByteStream, ring *ringbuf.Buffer, bufferTarget, volume int, logger *slog.Logger) *Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{
		logger:       logger,
		stream:       stream,
		ring:         ring,
		bufferTarget: bufferTarget,
		volume:       volume,
		rawBytes:     make([]byte, 2*ring.FrameSize()),
		samples:      make([]frame.Sample, ring.FrameSize()),
	}
}

// SetVolume updates the wave volume, saturating into [0, 10].
func (s *Streamer) SetVolume(volume int) {
	if volume > 10 {
		volume = 10
	}
	if volume < 0 {
		volume = 0
	}
	s.volume = volume
}

// Exhausted reports whether the source has no more bytes to stream.
func (s *Streamer) Exhausted() bool { return !s.stream.Available() }

// StreamFrame moves at most one frame from the source into the ring.
//
// Nothing happens when the source is exhausted or the ring already
// holds bufferTarget frames. A short read discards the partial frame
// and is retried on the next step; no partial frame is ever committed.
// Returns true when a frame was committed.
func (s *Streamer) StreamFrame() bool {
	if !s.stream.Available() || s.ring.Populated() >= s.bufferTarget {
		return false
	}

	n, err := s.stream.Read(s.rawBytes)
	if n < len(s.rawBytes) {
		if err != nil {
			s.logger.Debug("short read from wave stream", "bytesRead", n, "err", err)
		}
		return false
	}
	frame.DecodeBytes(s.samples, s.rawBytes)

	// The storage sample order does not match the hardware's expected
	// order: adjacent pairs are swapped, with the volume scale applied
	// in the same pass.
	scale := float64(s.volume) / 10.0
	for i := 0; i+1 < len(s.samples); i += 2 {
		even := s.samples[i]
		s.samples[i] = frame.Sample(float64(s.samples[i+1]) * scale)
		s.samples[i+1] = frame.Sample(float64(even) * scale)
	}

	s.ring.WriteSamples(s.samples)
	return true
}

// Close releases the underlying byte stream.
func (s *Streamer) Close() error { return s.stream.Close() }
