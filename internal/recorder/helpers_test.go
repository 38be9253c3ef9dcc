package recorder

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/rawrecord/internal/logger"
)

// collector records notifications for assertions.
type collector struct {
	mu  sync.Mutex
	got []Notification
}

func (c *collector) Notify(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
}

func (c *collector) all() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.got...)
}

func (c *collector) kinds() []string {
	var kinds []string
	for _, n := range c.all() {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

func (c *collector) find(kind string) (Notification, bool) {
	for _, n := range c.all() {
		if n.Kind == kind {
			return n, true
		}
	}
	return Notification{}, false
}

type flushCall struct {
	kind    string
	samples int
	err     error
}

// fakeMetrics records metric calls.
type fakeMetrics struct {
	mu      sync.Mutex
	flushes []flushCall
	fileOps map[string]int
}

func (m *fakeMetrics) RecordFlush(kind string, samples int, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes = append(m.flushes, flushCall{kind, samples, err})
}

func (m *fakeMetrics) RecordFileOperation(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fileOps == nil {
		m.fileOps = make(map[string]int)
	}
	key := operation
	if err != nil {
		key += ":error"
	}
	m.fileOps[key]++
}

// fakePrompter returns a fixed answer.
type fakePrompter struct {
	path    string
	err     error
	offered string
}

func (p *fakePrompter) SaveFile(_ context.Context, defaultName string) (string, error) {
	p.offered = defaultName
	return p.path, p.err
}

// hookFs wraps an afero.Fs and lets tests interpose on file writes.
type hookFs struct {
	afero.Fs
	write func(p []byte) error
}

func (h *hookFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f, err := h.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &hookFile{File: f, write: h.write}, nil
}

type hookFile struct {
	afero.File
	write func(p []byte) error
}

func (f *hookFile) Write(p []byte) (int, error) {
	if err := f.write(p); err != nil {
		return 0, err
	}
	return f.File.Write(p)
}

func testLogger() logger.Logger {
	return logger.NewWriterLogger(io.Discard, logger.LogLevelError).Module("recorder")
}

// newTestSession returns a session on an in-memory file system that is
// closed when the test ends.
func newTestSession(t *testing.T, channels int, opts ...Option) (*Session, afero.Fs, *collector) {
	t.Helper()

	fs := afero.NewMemMapFs()
	c := &collector{}
	all := append([]Option{WithFs(fs), WithNotifier(c), WithLogger(testLogger())}, opts...)

	s, err := NewSession(channels, all...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close(context.Background()))
	})
	return s, fs, c
}

// ramp returns a block of frames per channel whose values count up from
// first in interleaved order.
func ramp(channels, frames int, first float64) [][]float64 {
	block := make([][]float64, channels)
	for ch := range block {
		block[ch] = make([]float64, frames)
	}
	v := first
	for i := range frames {
		for ch := range channels {
			block[ch][i] = v
			v++
		}
	}
	return block
}

func decodeSamples(t *testing.T, data []byte) []float64 {
	t.Helper()
	require.Zero(t, len(data)%BytesPerSample, "file length %d is not a multiple of %d", len(data), BytesPerSample)

	out := make([]float64, len(data)/BytesPerSample)
	for i := range out {
		out[i] = math.Float64frombits(binary.NativeEndian.Uint64(data[i*BytesPerSample:]))
	}
	return out
}

func syncSession(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Sync(ctx))
}
