// conf/env.go environment variable bindings and validation
package conf

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding ties a config key to an environment variable.
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", EnvPrefix + "_DEBUG", validateEnvBool},

		{"record.device", EnvPrefix + "_RECORD_DEVICE", nil},
		{"record.channels", EnvPrefix + "_RECORD_CHANNELS", validateEnvChannels},
		{"record.samplerate", EnvPrefix + "_RECORD_SAMPLERATE", validateEnvSampleRate},
		{"record.outputdir", EnvPrefix + "_RECORD_OUTPUTDIR", nil},
		{"record.filename", EnvPrefix + "_RECORD_FILENAME", nil},
		{"record.prompt", EnvPrefix + "_RECORD_PROMPT", validateEnvBool},
		{"record.duration", EnvPrefix + "_RECORD_DURATION", validateEnvDuration},
		{"record.minfreespace", EnvPrefix + "_RECORD_MINFREESPACE", validateEnvUint},

		{"logging.level", EnvPrefix + "_LOGGING_LEVEL", validateEnvLogLevel},
		{"logging.file.enabled", EnvPrefix + "_LOGGING_FILE_ENABLED", validateEnvBool},
		{"logging.file.path", EnvPrefix + "_LOGGING_FILE_PATH", nil},

		{"metrics.enabled", EnvPrefix + "_METRICS_ENABLED", validateEnvBool},
		{"metrics.listen", EnvPrefix + "_METRICS_LISTEN", validateEnvListen},
	}
}

// bindEnvVars binds the environment variables and validates values that are set.
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true/false, 1/0, t/f")
	}
	return nil
}

func validateEnvUint(value string) error {
	if _, err := strconv.ParseUint(value, 10, 64); err != nil {
		return fmt.Errorf("must be a non-negative integer")
	}
	return nil
}

func validateEnvChannels(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid channel count: %w", err)
	}
	return validateChannels(n)
}

func validateEnvSampleRate(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid sample rate: %w", err)
	}
	return validateSampleRate(n)
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("duration must not be negative")
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	return validateLogLevel(value)
}

func validateEnvListen(value string) error {
	_, _, err := net.SplitHostPort(value)
	return err
}
