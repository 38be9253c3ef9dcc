// conf/consts.go hard coded constants
package conf

const (
	AppName = "rawrecord"

	// Environment variables are RAWRECORD_<SECTION>_<KEY>.
	EnvPrefix = "RAWRECORD"

	ConfigName = "config"
	ConfigType = "yaml"

	MinSampleRate = 8000
	MaxSampleRate = 384000

	DefaultSampleRate = 48000
	DefaultChannels   = 2
	DefaultListen     = "127.0.0.1:9464"
)
