package config

import (
	"log/slog"
	"time"

	"github.com/lumenboard/audiocore/internal/session"
	"github.com/lumenboard/audiocore/internal/utils"
	"github.com/spf13/viper"
)

// LoadConfig reads the config file at configFilePath into viper,
// falling back to the stock board parameters when the file is absent.
func LoadConfig(configFilePath string) {
	utils.SetViperDefaults()

	viper.SetConfigFile(configFilePath)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Info("no config file found", "configFilePath", configFilePath)
		} else {
			slog.Warn("error during config read, using defaults", "err", err)
		}
	}
}

// SessionConfig assembles a session.Config from the loaded settings.
func SessionConfig() session.Config {
	return session.Config{
		SampleRate:       viper.GetInt("samplerate"),
		FrameSize:        viper.GetInt("framesize"),
		BufferFrames:     viper.GetInt("bufferframes"),
		MaxPendingNotes:  viper.GetInt("maxpendingnotes"),
		WaveBufferFrames: viper.GetInt("wavebufferframes"),
		WaveVolume:       viper.GetInt("wavevolume"),
		PollInterval:     time.Duration(viper.GetInt("pollintervalms")) * time.Millisecond,
	}
}
