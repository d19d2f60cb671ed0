package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/lumenboard/audiocore/cmd/config"
	"github.com/lumenboard/audiocore/internal/session"
	"github.com/lumenboard/audiocore/internal/utils"
	"github.com/lumenboard/audiocore/pkg/audiodevice"
	"github.com/lumenboard/audiocore/pkg/audiodevice/device"
	"github.com/spf13/viper"
)

// Host output format used when playing through the speakers. The
// board's 16kHz mono PCM is converted up to this on the way out.
const (
	hostSampleRate  = 48000
	hostNumChannels = 2
)

func main() {
	configFilePath := flag.String("configFilePath", "config.yaml", "Set the file path to the config file.")
	notes := flag.String("notes", "", "Notation text to play, e.g. \"T120 O5 CDEFGAB>C\".")
	waveFile := flag.String("wave", "", "Path to a mono 16kHz wave file to play.")
	renderFile := flag.String("render", "", "Render to this .WAV file instead of the speakers.")
	waveVolume := flag.Int("wavevolume", -1, "Wave playback volume 0-10, overriding the config.")
	flag.Parse()

	config.LoadConfig(*configFilePath)
	logFilePointer, err := utils.ConfigureDefaultLogger(
		viper.GetString("loglevel"),
		viper.GetString("logfile"),
		slog.HandlerOptions{},
	)
	if err != nil {
		slog.Error("error while configuring default logger", "err", err)
		panic(err)
	}
	if logFilePointer != nil {
		defer logFilePointer.Close()
	}

	if (*notes == "") == (*waveFile == "") {
		slog.Error("exactly one of -notes or -wave must be given")
		flag.Usage()
		os.Exit(2)
	}

	// --------------------------------------------------------------------------------

	sessionConfig := config.SessionConfig()
	boardProperties := audiodevice.DeviceProperties{
		SampleRate:  sessionConfig.SampleRate,
		NumChannels: 1,
	}

	sink, cleanup, err := buildSink(boardProperties, sessionConfig, *renderFile)
	if err != nil {
		slog.Error("could not initialize audio sink", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	audioSession, err := session.NewSession(sink, sessionConfig, slog.Default())
	if err != nil {
		slog.Error("could not create audio session", "err", err)
		os.Exit(1)
	}
	defer audioSession.Close()

	if *waveVolume >= 0 {
		audioSession.SetWaveVolume(*waveVolume)
	}

	// --------------------------------------------------------------------------------

	if *notes != "" {
		err = audioSession.SubmitNotes(*notes)
	} else {
		err = audioSession.PlayWaveFile(*waveFile)
	}
	if err != nil {
		slog.Error("could not start playback", "err", err)
		os.Exit(1)
	}

	for audioSession.IsPlaying() {
		audioSession.Step()
		time.Sleep(time.Millisecond)
	}
}

// buildSink assembles the output chain: a .WAV file sink when
// rendering offline, otherwise the host speakers behind a format
// conversion from the board's PCM format.
func buildSink(
	boardProperties audiodevice.DeviceProperties,
	sessionConfig session.Config,
	renderFile string,
) (audiodevice.AudioSinkDevice, func(), error) {
	if renderFile != "" {
		fileSink, err := device.NewFileAudioSinkDevice(renderFile, boardProperties)
		if err != nil {
			return nil, nil, err
		}
		return fileSink, func() {
			if err := fileSink.Close(); err != nil {
				slog.Error("error finalizing rendered file", "err", err)
			}
		}, nil
	}

	hostProperties := audiodevice.DeviceProperties{
		SampleRate:  hostSampleRate,
		NumChannels: hostNumChannels,
	}
	// Keep the transmit cadence equal to one board frame after rate and
	// channel conversion.
	hostFrameSize := sessionConfig.FrameSize *
		(hostSampleRate / boardProperties.SampleRate) * hostNumChannels
	otoSink, err := device.NewOtoAudioSinkDevice(hostProperties, hostFrameSize)
	if err != nil {
		return nil, nil, err
	}
	converted := device.NewFormatConversionSinkDevice(boardProperties, otoSink)
	return converted, func() {
		if err := otoSink.Close(); err != nil {
			slog.Error("error closing speaker device", "err", err)
		}
	}, nil
}
