// conf/validate.go
package conf

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/tphakala/rawrecord/internal/recorder"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateRecordSettings(&settings.Record); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateLoggingSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMetricsSettings(&settings.Metrics); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateRecordSettings(settings *RecordSettings) error {
	if err := validateChannels(settings.Channels); err != nil {
		return err
	}
	if err := validateSampleRate(settings.SampleRate); err != nil {
		return err
	}
	if settings.Duration < 0 {
		return fmt.Errorf("record duration must not be negative, got %s", settings.Duration)
	}
	if !settings.Prompt && strings.TrimSpace(settings.FileName) == "" {
		return fmt.Errorf("record filename must be set when prompting is disabled")
	}
	return nil
}

func validateChannels(n int) error {
	if n < 1 || n > recorder.MaxChannels {
		return fmt.Errorf("record channels must be between 1 and %d, got %d", recorder.MaxChannels, n)
	}
	return nil
}

func validateSampleRate(n int) error {
	if n < MinSampleRate || n > MaxSampleRate {
		return fmt.Errorf("record sample rate must be between %d and %d, got %d", MinSampleRate, MaxSampleRate, n)
	}
	return nil
}

func validateLoggingSettings(settings *Settings) error {
	if err := validateLogLevel(settings.Logging.DefaultLevel); err != nil {
		return err
	}
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
	}
	for module, level := range settings.Logging.ModuleLevels {
		if err := validateLogLevel(level); err != nil {
			return fmt.Errorf("module %s: %w", module, err)
		}
	}
	return nil
}

func validateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("invalid log level %q", level)
	}
}

func validateMetricsSettings(settings *MetricsSettings) error {
	if !settings.Enabled {
		return nil
	}
	_, port, err := net.SplitHostPort(settings.Listen)
	if err != nil {
		return fmt.Errorf("invalid metrics listen address %q: %w", settings.Listen, err)
	}
	if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("invalid metrics port %q", port)
	}
	return nil
}
