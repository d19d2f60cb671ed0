package notation

import (
	"errors"
	"log/slog"
	"math"
	"strconv"
)

const (
	defaultTempoBPM = 120
	defaultOctave   = 5
	defaultVolume   = 5

	minTempoBPM = 40
	maxTempoBPM = 240
	minOctave   = 4
	maxOctave   = 7
	minVolume   = 1
	maxVolume   = 10

	// Duration of the micro-rest appended after every submission to
	// keep the speaker from clicking when the queue runs dry.
	microRestDuration = 0.2

	// Explicit-frequency notes outside the audible band collapse to silence.
	minExplicitHz = 20
	maxExplicitHz = 20000

	semitone = 1.0594630943592953 // 2^(1/12)
)

var (
	// ErrBufferFull is returned by Enqueue when accepting the new text
	// would push the pending queue past its maximum length.
	ErrBufferFull = errors.New("too many pending notes in buffer")

	// ErrSyntax is returned by ParseNext on an unrecognised token. The
	// entire remaining queue has been discarded by the time it returns.
	ErrSyntax = errors.New("syntax error in notes")
)

// Base frequencies at the default octave, standard tuning. Other
// octaves scale these by powers of two.
var noteFrequencies = map[byte]float64{
	'a': 440.00,
	'b': 493.88,
	'c': 523.25,
	'd': 587.33,
	'e': 659.25,
	'f': 698.46,
	'g': 783.99,
}

// Note is one fully resolved playable unit. A zero frequency means a
// run of silence.
type Note struct {
	FrequencyHz float64
	DurationSec float64
}

// Player holds the notation player state: tempo, octave, volume, and
// the queue of unconsumed notation text. The queue is a cursor over an
// append-only buffer rather than a string repeatedly sliced from the
// front; Enqueue compacts the consumed prefix.
type Player struct {
	logger *slog.Logger

	tempoBPM int
	octave   int
	volume   int

	pending    []byte
	pos        int
	maxPending int
}

// NewPlayer creates a Player with default state and the given maximum
// pending-text length.
func NewPlayer(maxPending int, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Player{
		logger:     logger,
		maxPending: maxPending,
	}
	p.setDefaults()
	return p
}

func (p *Player) setDefaults() {
	p.tempoBPM = defaultTempoBPM
	p.octave = defaultOctave
	p.volume = defaultVolume
}

// TempoBPM returns the current tempo in beats per minute.
func (p *Player) TempoBPM() int { return p.tempoBPM }

// Octave returns the current octave, 4 to 7.
func (p *Player) Octave() int { return p.octave }

// Volume returns the current notes volume, 1 to 10.
func (p *Player) Volume() int { return p.volume }

// PendingLen returns the number of unconsumed notation bytes.
func (p *Player) PendingLen() int { return len(p.pending) - p.pos }

// Enqueue appends new notation text to the pending queue.
//
// A trailing micro-rest marker left over from the previous submission
// is removed first, and a fresh one is appended after the new text, so
// back-to-back submissions join seamlessly while playback that runs dry
// still ends on a short silence.
func (p *Player) Enqueue(text string) error {
	if p.PendingLen()+len(text) > p.maxPending {
		p.logger.Error(
			"rejecting notes submission, pending buffer full",
			"pendingLen", p.PendingLen(),
			"newLen", len(text),
			"maxPending", p.maxPending,
		)
		return ErrBufferFull
	}

	// Compact the consumed prefix before appending.
	if p.pos > 0 {
		p.pending = append(p.pending[:0], p.pending[p.pos:]...)
		p.pos = 0
	}
	if n := len(p.pending); n > 0 && p.pending[n-1] == 'z' {
		p.pending = p.pending[:n-1]
	}
	p.pending = append(p.pending, text...)
	p.pending = append(p.pending, 'z')
	return nil
}

// Clear discards all pending notation.
func (p *Player) Clear() {
	p.pending = p.pending[:0]
	p.pos = 0
}

// Reset clears pending notation and restores default tempo, octave and
// volume.
func (p *Player) Reset() {
	p.Clear()
	p.setDefaults()
}

// ParseNext consumes leading tokens from the pending queue until it has
// resolved exactly one playable note, updating player state along the
// way. It returns ok=false when the queue is exhausted without a note.
//
// An unrecognised token is a syntax error: the remaining queue is
// discarded wholesale and ErrSyntax is returned.
func (p *Player) ParseNext() (Note, bool, error) {
	for p.pos < len(p.pending) {
		c := p.pending[p.pos]

		if isSpace(c) {
			p.pos++
			continue
		}

		switch lower(c) {
		case 'o':
			// Out-of-range octaves are ignored but the token is still
			// consumed, digit present or not.
			if p.pos+1 >= len(p.pending) {
				p.pos = len(p.pending)
				continue
			}
			if o := int(p.pending[p.pos+1] - '0'); o >= minOctave && o <= maxOctave {
				p.octave = o
			}
			p.pos += 2
			continue

		case 't':
			v, next, ok := p.parseUint(p.pos + 1)
			if !ok {
				return Note{}, false, p.syntaxError()
			}
			p.pos = next
			if v >= minTempoBPM && v <= maxTempoBPM {
				p.tempoBPM = v
			}
			continue

		case 'v':
			v, next, ok := p.parseUint(p.pos + 1)
			if !ok {
				return Note{}, false, p.syntaxError()
			}
			p.pos = next
			if v >= minVolume && v <= maxVolume {
				p.volume = v
			}
			continue

		case 'x':
			return p.parseExplicitNote()
		}

		if c == '!' {
			p.setDefaults()
			p.pos++
			continue
		}

		if lc := lower(c); (lc >= 'a' && lc <= 'g') || lc == 'r' || c == 'z' {
			return p.parseLetterNote()
		}

		return Note{}, false, p.syntaxError()
	}
	return Note{}, false, nil
}

// parseLetterNote resolves an A-G note, an R rest, or the trailing
// micro-rest marker z, plus any run of modifiers that follows.
func (p *Player) parseLetterNote() (Note, bool, error) {
	c := p.pending[p.pos]
	p.pos++

	duration := 60.0 / float64(p.tempoBPM) // quarter note
	var freq float64
	switch lc := lower(c); {
	case lc >= 'a' && lc <= 'g':
		freq = noteFrequencies[lc]
	case c == 'z':
		duration = microRestDuration
	}
	// R and z are silence; scaling zero is harmless.
	freq *= math.Pow(2, float64(p.octave-defaultOctave))

	var dotIncrement float64
	for p.pos < len(p.pending) {
		m := p.pending[p.pos]

		if isDigit(m) {
			// Duration fraction: n means a 4/n scaling of the quarter
			// note, e.g. 8 is an eighth note. Out of range is ignored
			// but consumed.
			v, next, ok := p.parseUint(p.pos)
			if !ok {
				return Note{}, false, p.syntaxError()
			}
			p.pos = next
			if v >= 1 && v <= 2000 {
				duration *= 4.0 / float64(v)
			}
			continue
		}

		switch m {
		case '.':
			// Each dot extends by half the previous increment,
			// starting from the note's pre-dot duration.
			if dotIncrement == 0 {
				dotIncrement = duration
			}
			dotIncrement /= 2
			duration += dotIncrement
		case '>':
			freq *= 2
		case '<':
			freq /= 2
		case '#', '+':
			freq *= semitone
		case '-':
			freq /= semitone
		default:
			return Note{FrequencyHz: freq, DurationSec: duration}, true, nil
		}
		p.pos++
	}
	return Note{FrequencyHz: freq, DurationSec: duration}, true, nil
}

// parseExplicitNote resolves an X<freq> note with an optional
// M<milliseconds> duration suffix.
func (p *Player) parseExplicitNote() (Note, bool, error) {
	freq, next, ok := p.parseFloat(p.pos + 1)
	if !ok {
		return Note{}, false, p.syntaxError()
	}
	p.pos = next
	if !(freq >= minExplicitHz && freq <= maxExplicitHz) {
		freq = 0
	}

	duration := 60.0 / float64(p.tempoBPM)
	if p.pos < len(p.pending) && lower(p.pending[p.pos]) == 'm' {
		ms, next, ok := p.parseFloat(p.pos + 1)
		if !ok {
			return Note{}, false, p.syntaxError()
		}
		p.pos = next
		duration = ms / 1000.0
	}
	return Note{FrequencyHz: freq, DurationSec: duration}, true, nil
}

// syntaxError logs the offending tail and discards the whole queue.
func (p *Player) syntaxError() error {
	p.logger.Error("syntax error in notes", "remaining", string(p.pending[p.pos:]))
	p.Clear()
	return ErrSyntax
}

// parseUint scans a decimal integer starting at from. ok is false when
// no digits are present or the value does not fit an int.
func (p *Player) parseUint(from int) (value, next int, ok bool) {
	i := from
	for i < len(p.pending) && isDigit(p.pending[i]) {
		i++
	}
	if i == from {
		return 0, from, false
	}
	v, err := strconv.Atoi(string(p.pending[from:i]))
	if err != nil {
		return 0, from, false
	}
	return v, i, true
}

// parseFloat scans a decimal real number starting at from.
func (p *Player) parseFloat(from int) (value float64, next int, ok bool) {
	i := from
	seenDigit, seenDot := false, false
	for i < len(p.pending) {
		c := p.pending[i]
		if isDigit(c) {
			seenDigit = true
			i++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			i++
			continue
		}
		break
	}
	if !seenDigit {
		return 0, from, false
	}
	v, err := strconv.ParseFloat(string(p.pending[from:i]), 64)
	if err != nil {
		return 0, from, false
	}
	return v, i, true
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + 32
	}
	return b
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\r' || b == '\n' }
