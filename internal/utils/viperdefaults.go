package utils

import "github.com/spf13/viper"

// Set the viper defaults for the board audio subsystem.
// For use in cmd/lumenplay as well as embedding applications.
func SetViperDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")
	viper.SetDefault("samplerate", 16000)
	viper.SetDefault("framesize", 1024)
	viper.SetDefault("bufferframes", 100)
	viper.SetDefault("maxpendingnotes", 4000)
	viper.SetDefault("wavebufferframes", 5)
	viper.SetDefault("wavevolume", 5)
	viper.SetDefault("pollintervalms", 5)
}
