// conf/config.go
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/rawrecord/internal/errors"
	"github.com/tphakala/rawrecord/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings contains all configuration options.
type Settings struct {
	Debug bool // true to enable debug logging and device diagnostics

	Record  RecordSettings       // capture session settings
	Logging logger.LoggingConfig // log output settings
	Metrics MetricsSettings      // prometheus endpoint
}

// RecordSettings configures the capture device and the capture file.
type RecordSettings struct {
	Device       string        // capture device ID or name fragment
	Channels     int           // channels per frame
	SampleRate   int           // device sample rate in Hz
	OutputDir    string        // base directory for relative file names
	FileName     string        // file name used when prompting is disabled
	Prompt       bool          // ask for the file name with a save dialog
	Duration     time.Duration // stop automatically after this long, 0 for no limit
	MinFreeSpace uint64        // warn below this many free bytes on the output volume
}

// MetricsSettings configures the prometheus metrics endpoint.
type MetricsSettings struct {
	Enabled bool   // true to serve /metrics
	Listen  string // host:port to listen on
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables. An empty
// configFile searches the default paths; a missing file there is not an error.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, binds the environment and reads the config file.
func initViper(configFile string) error {
	viper.SetConfigType(ConfigType)
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(ConfigName)
		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return err
		}
		for _, path := range configPaths {
			viper.AddConfigPath(path)
		}
	}

	setDefaultConfig()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := bindEnvVars(); err != nil {
		return err
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.New(fmt.Errorf("fatal error reading config file: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("config_file", configFile).
			Build()
	}
	return nil
}

// GetSettings returns the settings loaded last, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// ConfigFileUsed returns the path of the config file that was read, if any.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// DefaultConfig returns the annotated default configuration file.
func DefaultConfig() (string, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteDefaultConfig writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefaultConfig(path string) error {
	data, err := DefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(fmt.Errorf("error creating directories for config file: %w", err)).
			Component("conf").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return errors.New(fmt.Errorf("error writing default config file: %w", err)).
			Component("conf").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}
	if _, err := f.WriteString(data); err != nil {
		_ = f.Close()
		return errors.FileError(err, path, 0)
	}
	return f.Close()
}
