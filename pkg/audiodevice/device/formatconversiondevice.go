package device

import (
	"log/slog"
	"math"

	"github.com/lumenboard/audiocore/pkg/audiodevice"
	"github.com/lumenboard/audiocore/pkg/frame"
	"github.com/oov/audio/resampler"
)

const (
	// To avoid reallocating for every frame, conversion stages reuse a
	// buffer with "enough size". A board frame is 1024 mono samples;
	// upsampled to 48000Hz stereo that is 6144 samples, so 2**14 =
	// 16384 is enough for anything.
	conversionBufferSize = 16384

	resampleQuality = 10
)

// Middle-man sink handling format mismatches between the board's PCM
// format and a host output device's format.
//
// e.g. the board renders 16000Hz mono but the host speakers want
// 48000Hz stereo; this device converts each frame before forwarding it
// to the wrapped sink. Lifecycle calls and transmit signalling pass
// straight through.
//
// This is host-side playback plumbing only. Source material is still
// required to match the board's fixed rate; nothing upstream of the
// ring buffer is ever resampled.
type FormatConversionSinkDevice struct {
	inner            audiodevice.AudioSinkDevice
	sourceProperties audiodevice.DeviceProperties

	conversionStages []conversionStage
	intBuf           frame.PCMFrame
}

// Create a new FormatConversionSinkDevice converting frames in the
// given source format before handing them to inner. Stages are only
// added for actual mismatches, so wrapping a matching sink is free.
func NewFormatConversionSinkDevice(
	sourceProperties audiodevice.DeviceProperties,
	inner audiodevice.AudioSinkDevice,
) *FormatConversionSinkDevice {
	sinkProperties := inner.GetDeviceProperties()
	stages := make([]conversionStage, 0)

	if sourceProperties.NumChannels == 1 && sinkProperties.NumChannels == 2 {
		slog.Debug("adding mono to stereo conversion")
		stages = append(stages, monoToStereo())
	}
	if sourceProperties.SampleRate != sinkProperties.SampleRate {
		slog.Debug(
			"adding resampler",
			"sourceRate", sourceProperties.SampleRate,
			"sinkRate", sinkProperties.SampleRate,
		)
		stages = append(stages, newResampleStage(
			sourceProperties.SampleRate,
			sinkProperties.SampleRate,
			sinkProperties.NumChannels,
		))
	}

	return &FormatConversionSinkDevice{
		inner:            inner,
		sourceProperties: sourceProperties,
		conversionStages: stages,
		intBuf:           make(frame.PCMFrame, conversionBufferSize),
	}
}

func (d *FormatConversionSinkDevice) Start() error { return d.inner.Start() }
func (d *FormatConversionSinkDevice) Stop() error  { return d.inner.Stop() }
func (d *FormatConversionSinkDevice) ZeroBuffer()  { d.inner.ZeroBuffer() }

func (d *FormatConversionSinkDevice) WriteFrame(f frame.PCMFrame) (int, error) {
	if len(d.conversionStages) == 0 {
		return d.inner.WriteFrame(f)
	}

	samples := toFloat32(f)
	for _, stage := range d.conversionStages {
		samples = stage(samples)
	}
	for i, s := range samples {
		d.intBuf[i] = frame.Sample(s * float32(math.MaxInt16))
	}
	return d.inner.WriteFrame(d.intBuf[:len(samples)])
}

func (d *FormatConversionSinkDevice) FrameTransmitted() <-chan struct{} {
	return d.inner.FrameTransmitted()
}

// GetDeviceProperties returns the properties of the ENTERING data, the
// board format, since that is the contract the session writes against.
func (d *FormatConversionSinkDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.sourceProperties
}

// --------------------------------------------------------------------------------

type conversionStage func(samples []float32) []float32

func toFloat32(f frame.PCMFrame) []float32 {
	out := make([]float32, len(f))
	for i, s := range f {
		out[i] = float32(s) / float32(math.MaxInt16)
	}
	return out
}

func monoToStereo() conversionStage {
	buf := make([]float32, conversionBufferSize)
	return func(samples []float32) []float32 {
		for i, v := range samples {
			buf[2*i] = v
			buf[2*i+1] = v
		}
		return buf[:2*len(samples)]
	}
}

func newResampleStage(sourceRate, sinkRate, numChannels int) conversionStage {
	if numChannels == 1 {
		r := resampler.New(1, sourceRate, sinkRate, resampleQuality)
		buf := make([]float32, conversionBufferSize)
		return func(samples []float32) []float32 {
			_, written := r.ProcessFloat32(0, samples, buf)
			return buf[:written]
		}
	}

	r := resampler.New(2, sourceRate, sinkRate, resampleQuality)
	leftSourceBuf := make([]float32, conversionBufferSize/2)
	rightSourceBuf := make([]float32, conversionBufferSize/2)
	leftSinkBuf := make([]float32, conversionBufferSize/2)
	rightSinkBuf := make([]float32, conversionBufferSize/2)
	buf := make([]float32, conversionBufferSize)
	return func(samples []float32) []float32 {
		if len(samples)%2 == 1 {
			samples = samples[:len(samples)-1]
		}

		// Decode to planar, samples are interleaved
		for i := range len(samples) / 2 {
			leftSourceBuf[i] = samples[2*i]
			rightSourceBuf[i] = samples[2*i+1]
		}

		// Process both channels
		_, written := r.ProcessFloat32(0, leftSourceBuf[:len(samples)/2], leftSinkBuf)
		r.ProcessFloat32(1, rightSourceBuf[:len(samples)/2], rightSinkBuf)

		// Interleave again
		for i := range written {
			buf[2*i] = leftSinkBuf[i]
			buf[2*i+1] = rightSinkBuf[i]
		}
		return buf[:2*written]
	}
}
