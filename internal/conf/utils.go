// conf/utils.go helpers for locating configuration
package conf

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/tphakala/rawrecord/internal/errors"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml.
// If one of them holds a config file it is returned alone.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	var configPaths []string
	switch runtime.GOOS {
	case "windows":
		configPaths = []string{
			".",
			filepath.Join(homeDir, "AppData", "Roaming", AppName),
		}
	default:
		configPaths = []string{
			".",
			filepath.Join(homeDir, ".config", AppName),
			filepath.Join("/etc", AppName),
		}
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, ConfigName+"."+ConfigType)); err == nil {
			return []string{path}, nil
		}
	}
	return configPaths, nil
}

// UserConfigPath returns where `config init` writes by default.
func UserConfigPath() (string, error) {
	paths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	for _, p := range paths {
		if p != "." {
			return filepath.Join(p, ConfigName+"."+ConfigType), nil
		}
	}
	return filepath.Join(paths[0], ConfigName+"."+ConfigType), nil
}
