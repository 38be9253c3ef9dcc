package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestWriteSettings(t *testing.T) {
	settings := map[string]any{
		"record":  map[string]any{"channels": 2, "outputdir": "takes"},
		"metrics": map[string]any{"enabled": false},
	}

	var buf bytes.Buffer
	require.NoError(t, writeSettings(&buf, settings, "/etc/rawrecord/config.yaml"))

	out := buf.String()
	assert.Contains(t, out, "# loaded from /etc/rawrecord/config.yaml\n")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 2, decoded["record"].(map[string]any)["channels"])
	assert.Equal(t, "takes", decoded["record"].(map[string]any)["outputdir"])
}
