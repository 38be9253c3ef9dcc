package audiosource

import (
	"encoding/hex"
	"runtime"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/rawrecord/internal/errors"
)

// DefaultDevice selects the system default capture device.
const DefaultDevice = "sysdefault"

// DeviceInfo describes a capture device.
type DeviceInfo struct {
	Index     int
	Name      string
	ID        string
	IsDefault bool
}

// platformBackends returns the backend list for the current OS, or nil to
// let miniaudio pick.
func platformBackends() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendAlsa}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return nil
	}
}

// ListDevices returns the available capture devices.
func ListDevices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(platformBackends(), malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("audiosource").
			Category(errors.CategoryAudioSource).
			Context("operation", "init_context").
			Build()
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.New(err).
			Component("audiosource").
			Category(errors.CategoryAudioSource).
			Context("operation", "list_devices").
			Build()
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		devices = append(devices, describe(i, &infos[i]))
	}
	return devices, nil
}

func describe(index int, info *malgo.DeviceInfo) DeviceInfo {
	id, err := hexToASCII(info.ID.String())
	if err != nil {
		id = info.ID.String()
	}
	return DeviceInfo{
		Index:     index,
		Name:      info.Name(),
		ID:        id,
		IsDefault: info.IsDefault != 0,
	}
}

// matchesDevice reports whether a device matches the configured selector.
// An empty selector or "sysdefault" on platforms without such a device picks
// the default device; otherwise the decoded ID must match or the name contain it.
func matchesDevice(d DeviceInfo, selector string) bool {
	if selector == "" || (selector == DefaultDevice && runtime.GOOS != "linux") {
		return d.IsDefault
	}
	return d.ID == selector || strings.Contains(d.Name, selector)
}

// selectDevice picks the first device matching selector.
func selectDevice(devices []DeviceInfo, selector string) (DeviceInfo, error) {
	for _, d := range devices {
		if matchesDevice(d, selector) {
			return d, nil
		}
	}
	return DeviceInfo{}, errors.Newf("no capture device matches %q", selector).
		Component("audiosource").
		Category(errors.CategoryNotFound).
		Context("device", selector).
		Context("available", len(devices)).
		Build()
}

// hexToASCII decodes the hex device IDs ALSA reports into their text form.
func hexToASCII(hexStr string) (string, error) {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\x00"), nil
}
