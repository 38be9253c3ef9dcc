package audiosource

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/rawrecord/internal/errors"
)

func TestHexToASCII(t *testing.T) {
	t.Parallel()

	got, err := hexToASCII("68773a312c30000000")
	require.NoError(t, err)
	assert.Equal(t, "hw:1,0", got)

	_, err = hexToASCII("zz")
	require.Error(t, err)
}

func TestSelectDevice(t *testing.T) {
	t.Parallel()

	devices := []DeviceInfo{
		{Index: 0, Name: "HDA Intel PCH", ID: "hw:0,0"},
		{Index: 1, Name: "USB Audio Device", ID: "hw:1,0", IsDefault: true},
		{Index: 2, Name: "Loopback", ID: "sysdefault"},
	}

	tests := []struct {
		selector string
		want     int
	}{
		{"", 1},
		{"hw:0,0", 0},
		{"USB", 1},
		{"Loop", 2},
	}
	for _, tt := range tests {
		got, err := selectDevice(devices, tt.selector)
		require.NoError(t, err, tt.selector)
		assert.Equal(t, tt.want, got.Index, tt.selector)
	}

	want := 2
	if runtime.GOOS != "linux" {
		want = 1
	}
	got, err := selectDevice(devices, DefaultDevice)
	require.NoError(t, err)
	assert.Equal(t, want, got.Index)

	_, err = selectDevice(devices, "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
