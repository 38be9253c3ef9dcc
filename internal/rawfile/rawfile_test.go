package rawfile

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/rawrecord/internal/errors"
)

func encode(samples ...float64) []byte {
	out := make([]byte, 0, len(samples)*BytesPerSample)
	for _, s := range samples {
		out = binary.NativeEndian.AppendUint64(out, math.Float64bits(s))
	}
	return out
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "take.data", encode(0.1, -0.1, 0.2, -0.2), 0o644))

	buf, err := ReadFile(fs, "take.data", 2, 48000)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, -0.1, 0.2, -0.2}, buf.Data)
	assert.Equal(t, 2, buf.Format.NumChannels)
	assert.Equal(t, 2, buf.NumFrames())
}

func TestReadFileErrors(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	_, err := ReadFile(fs, "missing.data", 1, 48000)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))

	// Three samples do not make whole stereo frames.
	require.NoError(t, afero.WriteFile(fs, "odd.data", encode(1, 2, 3), 0o644))
	_, err = ReadFile(fs, "odd.data", 2, 48000)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
}

func TestReaderChunks(t *testing.T) {
	t.Parallel()

	samples := make([]float64, 10)
	for i := range samples {
		samples[i] = float64(i)
	}
	r := NewReader(bytes.NewReader(encode(samples...)), 2, 8000)

	buf := &audio.FloatBuffer{Data: make([]float64, 7)}
	var got []float64
	for {
		n, err := r.PCMBuffer(buf)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		assert.Zero(t, n%2, "partial frame returned")
		got = append(got, buf.Data[:n]...)
	}
	assert.Equal(t, samples, got)
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	// Left is a full-scale square wave, right is silent.
	var samples []float64
	for i := range 1000 {
		v := 1.0
		if i%2 == 1 {
			v = -1.0
		}
		samples = append(samples, v, 0)
	}
	r := NewReader(bytes.NewReader(encode(samples...)), 2, 1000)

	s, err := Analyze(r, 64)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Channels)
	assert.Equal(t, 1000, s.Frames)
	assert.Equal(t, time.Second, s.Duration)
	assert.InDelta(t, 1.0, s.Peak[0], 1e-12)
	assert.InDelta(t, 1.0, s.RMS[0], 1e-12)
	assert.Equal(t, 1000, s.Clipped[0])
	assert.Zero(t, s.Peak[1])
	assert.Zero(t, s.Clipped[1])
}

func TestDBFS(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.0, DBFS(1), 1e-9)
	assert.InDelta(t, -6.0206, DBFS(0.5), 1e-3)
	assert.True(t, math.IsInf(DBFS(0), -1))
}
