package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lumenboard/audiocore/internal/notation"
	"github.com/lumenboard/audiocore/internal/ringbuf"
	"github.com/lumenboard/audiocore/internal/synth"
	"github.com/lumenboard/audiocore/internal/wavestream"
	"github.com/lumenboard/audiocore/pkg/audiodevice"
)

// Mode is the session's playback state. Exactly one mode is active at
// a time.
type Mode int

const (
	ModeIdle Mode = iota
	ModePlayingNotes
	ModePlayingWave
)

func (m Mode) String() string {
	switch m {
	case ModePlayingNotes:
		return "playing-notes"
	case ModePlayingWave:
		return "playing-wave"
	default:
		return "idle"
	}
}

// Config carries the board audio parameters. Zero values are replaced
// by the defaults from DefaultConfig.
type Config struct {
	// Output sample rate in Hz. Source wave files must match exactly.
	SampleRate int

	// Samples per frame, the hardware transfer granularity.
	FrameSize int

	// Ring buffer capacity in frames. Must exceed the largest
	// renderable note by at least two frames: a whole note at tempo 40
	// is 4*(60/40)*16000 = 96000 samples, 94 frames of 1024.
	BufferFrames int

	// Maximum pending notation length accepted by SubmitNotes.
	MaxPendingNotes int

	// Ring occupancy target while streaming a wave file. Larger values
	// reduce underrun risk but delay the effect of volume changes.
	WaveBufferFrames int

	// Initial wave playback volume, 0 to 10.
	WaveVolume int

	// Upper bound on how long the output task waits for a transmit
	// signal before waking to re-check for shutdown. A tunable, not a
	// correctness requirement; no frame moves on the timeout.
	PollInterval time.Duration
}

// DefaultConfig returns the stock board parameters: 16kHz mono, 1024
// sample frames, a 100 frame ring.
func DefaultConfig() Config {
	return Config{
		SampleRate:       16000,
		FrameSize:        1024,
		BufferFrames:     100,
		MaxPendingNotes:  4000,
		WaveBufferFrames: 5,
		WaveVolume:       5,
		PollInterval:     5 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.FrameSize <= 0 {
		c.FrameSize = d.FrameSize
	}
	if c.BufferFrames <= 0 {
		c.BufferFrames = d.BufferFrames
	}
	if c.MaxPendingNotes <= 0 {
		c.MaxPendingNotes = d.MaxPendingNotes
	}
	if c.WaveBufferFrames <= 0 {
		c.WaveBufferFrames = d.WaveBufferFrames
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	return c
}

// Session owns one board audio session: the shared ring buffer, the
// notation player, the tone renderer, the wave streamer, and the sink
// device, tied together by a mode state machine.
//
// The scheduler methods (SubmitNotes, PlayWaveFile, Step, Stop) are
// safe to call from one application goroutine; the output task runs on
// its own goroutine for the life of the session and shares only the
// ring buffer with the scheduler side.
type Session struct {
	logger *slog.Logger
	uuid   uuid.UUID
	cfg    Config

	sink     audiodevice.AudioSinkDevice
	ring     *ringbuf.Buffer
	player   *notation.Player
	renderer *synth.Renderer

	mu          sync.Mutex
	mode        Mode
	streamer    *wavestream.Streamer
	sinkRunning bool
	waveVolume  int
	nextNote    notation.Note
	noteParsed  bool

	// Held by the output task around each frame consume and by Stop
	// around the ring reset, so the reset can never observe a frame in
	// flight.
	outputMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

// NewSession creates a session around the given sink device and starts
// its output task. Call Close to release it.
func NewSession(sink audiodevice.AudioSinkDevice, cfg Config, logger *slog.Logger) (*Session, error) {
	uuid := uuid.New()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("audio session uuid", uuid)

	cfg = cfg.withDefaults()
	ring, err := ringbuf.New(cfg.FrameSize, cfg.BufferFrames)
	if err != nil {
		return nil, err
	}

	s := &Session{
		logger:     logger,
		uuid:       uuid,
		cfg:        cfg,
		sink:       sink,
		ring:       ring,
		player:     notation.NewPlayer(cfg.MaxPendingNotes, logger),
		renderer:   synth.NewRenderer(ring, cfg.SampleRate),
		waveVolume: cfg.WaveVolume,
		done:       make(chan struct{}),
	}

	go s.runOutputTask()

	logger.Debug(
		"audio session created",
		"sampleRate", cfg.SampleRate,
		"frameSize", cfg.FrameSize,
		"bufferFrames", cfg.BufferFrames,
	)
	return s, nil
}

// SubmitNotes queues notation text for playback.
//
// If a wave file is playing it is cut off first. If notes are already
// playing the text joins the pending queue without interrupting them.
// Returns notation.ErrBufferFull when the queue cannot accept the text;
// playback state is unaffected in that case.
func (s *Session) SubmitNotes(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == ModePlayingWave {
		s.stopLocked()
	}

	if err := s.player.Enqueue(text); err != nil {
		return err
	}
	s.mode = ModePlayingNotes

	if err := s.startSinkLocked(); err != nil {
		s.stopLocked()
		return err
	}
	return nil
}

// PlayWaveFile stops any active playback, validates the file's
// container header, and starts streaming it. Precondition failures
// (wrong channel count, wrong sample rate, unreadable header) are
// returned as start failures and leave the session idle.
func (s *Session) PlayWaveFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	stream, err := wavestream.Open(path, s.cfg.SampleRate)
	if err != nil {
		s.logger.Error("could not start wave playback", "path", path, "err", err)
		return err
	}
	s.streamer = wavestream.NewStreamer(
		stream, s.ring, s.cfg.WaveBufferFrames, s.waveVolume, s.logger)
	s.mode = ModePlayingWave

	if err := s.startSinkLocked(); err != nil {
		s.stopLocked()
		return err
	}
	return nil
}

// Step runs one cooperative scheduler step: parse and render the next
// note, or stream the next wave frame, and stop the session once the
// active source is exhausted and the ring has fully drained.
func (s *Session) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.mode {
	case ModePlayingNotes:
		s.stepNotesLocked()
	case ModePlayingWave:
		s.stepWaveLocked()
	}
}

func (s *Session) stepNotesLocked() {
	if !s.noteParsed && s.player.PendingLen() > 0 {
		note, ok, err := s.player.ParseNext()
		switch {
		case err != nil:
			// Queue already discarded; playback winds down through the
			// drain check below.
		case ok:
			s.nextNote = note
			s.noteParsed = true
		}
	}

	if s.noteParsed && s.renderer.Render(s.nextNote, s.player.Volume()) {
		s.noteParsed = false
	}

	if s.player.PendingLen() == 0 && !s.noteParsed &&
		s.ring.Populated() == 0 && s.sinkRunning {
		s.logger.Debug("notes exhausted, stopping")
		s.stopLocked()
	}
}

func (s *Session) stepWaveLocked() {
	s.streamer.StreamFrame()
	if s.streamer.Exhausted() && s.ring.Populated() == 0 {
		s.logger.Debug("wave stream exhausted, stopping")
		s.stopLocked()
	}
}

// Stop halts playback and resets all session state. Idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	if s.sinkRunning {
		if err := s.sink.Stop(); err != nil {
			s.logger.Error("error stopping sink device", "err", err)
		}
		s.sinkRunning = false
	}
	if s.streamer != nil {
		if err := s.streamer.Close(); err != nil {
			s.logger.Error("error closing wave stream", "err", err)
		}
		s.streamer = nil
	}
	s.player.Clear()
	s.noteParsed = false

	// The sink is halted above, and taking outputMu waits out any frame
	// delivery still in flight, so the zeroed sink buffer cannot pick up
	// a stale frame afterwards.
	s.outputMu.Lock()
	s.sink.ZeroBuffer()
	s.ring.Reset()
	s.outputMu.Unlock()

	s.mode = ModeIdle
}

func (s *Session) startSinkLocked() error {
	if s.sinkRunning {
		return nil
	}
	if err := s.sink.Start(); err != nil {
		s.logger.Error("failed starting sink device", "err", err)
		return err
	}
	s.sinkRunning = true
	return nil
}

// SetWaveVolume sets the wave playback volume, saturating into [0,10].
// Takes effect within the streamer's buffering depth.
func (s *Session) SetWaveVolume(volume int) {
	if volume > 10 {
		volume = 10
	}
	if volume < 0 {
		volume = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waveVolume = volume
	if s.streamer != nil {
		s.streamer.SetVolume(volume)
	}
}

// IsPlaying reports whether the sink is currently running.
func (s *Session) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sinkRunning
}

// Mode returns the current playback mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Close stops playback and shuts down the output task. The session
// must not be used afterwards.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Stop()
		close(s.done)
	})
}
