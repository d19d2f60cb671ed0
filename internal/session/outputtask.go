package session

import (
	"time"

	"github.com/lumenboard/audiocore/pkg/frame"
)

// runOutputTask is the real-time consumer: it waits for the sink's
// frame-transmitted signal and hands over the next populated frame
// from the ring, strictly one per signal. The device's transmit cadence
// is the only thing that drains the ring, so playback advances at the
// sink's real rate and back-pressure reaches the scheduler through
// ring occupancy.
//
// The wait is bounded by the configured poll interval so the task
// keeps waking on a quiet device; a tick consumes nothing. An empty
// ring at signal time is not an error either, that transmit slot
// played implicit silence and the frame is not owed later.
func (s *Session) runOutputTask() {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.sink.FrameTransmitted():
			s.consumeOneFrame()
		case <-ticker.C:
			// Bounded wait only. Frames move on transmit signals.
		}
	}
}

func (s *Session) consumeOneFrame() {
	s.outputMu.Lock()
	defer s.outputMu.Unlock()

	consumed, err := s.ring.ConsumeFrame(func(f frame.PCMFrame) error {
		_, writeErr := s.sink.WriteFrame(f)
		return writeErr
	})
	if consumed && err != nil {
		// The output task has no caller to report to; log and carry on.
		s.logger.Error("error writing frame to sink device", "err", err)
	}
}
