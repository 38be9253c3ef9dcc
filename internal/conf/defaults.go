// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"

	"github.com/tphakala/rawrecord/internal/logger"
)

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("record.device", "sysdefault")
	viper.SetDefault("record.channels", DefaultChannels)
	viper.SetDefault("record.samplerate", DefaultSampleRate)
	viper.SetDefault("record.outputdir", "")
	viper.SetDefault("record.filename", "raw.data")
	viper.SetDefault("record.prompt", false)
	viper.SetDefault("record.duration", "0s")
	viper.SetDefault("record.minfreespace", 100*1024*1024)

	viper.SetDefault("logging.level", logger.DefaultLogLevel)
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	viper.SetDefault("logging.console.level", "")
	viper.SetDefault("logging.file.enabled", false)
	viper.SetDefault("logging.file.path", logger.DefaultLogPath)
	viper.SetDefault("logging.file.maxsize", logger.DefaultMaxSize)
	viper.SetDefault("logging.file.maxage", logger.DefaultMaxAge)
	viper.SetDefault("logging.file.maxrotatedfiles", logger.DefaultMaxRotatedFiles)
	viper.SetDefault("logging.file.compress", false)
	viper.SetDefault("logging.file.level", "")

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen", DefaultListen)
}
