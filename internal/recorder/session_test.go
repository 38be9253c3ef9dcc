package recorder

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewSessionChannels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		channels int
		want     int
	}{
		{"zero means mono", 0, 1},
		{"negative uses absolute value", -2, 2},
		{"stereo", 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, _, _ := newTestSession(t, tt.channels)
			assert.Equal(t, tt.want, s.Channels())
			assert.Equal(t, uint64(BufferCapacity(tt.want)), s.Capacity())
		})
	}

	_, err := NewSession(MaxChannels+1, WithLogger(testLogger()))
	require.ErrorIs(t, err, ErrInvalidChannels)
}

func TestRecordRoundTrip(t *testing.T) {
	t.Parallel()

	metrics := &fakeMetrics{}
	s, fs, notes := newTestSession(t, 2, WithMetrics(metrics))
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, "take.data"))
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.Recording())

	block := ramp(2, 100, 0)
	s.AcceptBlock(block, 100)
	s.Stop()
	syncSession(t, s)

	assert.False(t, s.Recording())

	data, err := afero.ReadFile(fs, "take.data")
	require.NoError(t, err)
	require.Len(t, data, 1600)

	samples := decodeSamples(t, data)
	for i := range 100 {
		assert.Equal(t, block[0][i], samples[2*i], "left frame %d", i)
		assert.Equal(t, block[1][i], samples[2*i+1], "right frame %d", i)
	}

	assert.Equal(t, []Notification{
		{Tag: TagFile, Kind: KindOpen, Value: "take.data"},
		{Tag: TagFile, Kind: KindSamples, Value: uint64(200)},
		{Tag: TagFile, Kind: KindBytes, Value: uint64(1600)},
	}, notes.all())

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	require.Len(t, metrics.flushes, 1)
	assert.Equal(t, flushCall{"leftover", 200, nil}, metrics.flushes[0])
	assert.Equal(t, 1, metrics.fileOps["open"])
	assert.Equal(t, 1, metrics.fileOps["close"])
}

func TestRecordNoDataLoss(t *testing.T) {
	t.Parallel()

	s, fs, notes := newTestSession(t, 1)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, "long.data"))
	require.NoError(t, s.Start(ctx))

	// 50 blocks of 500 frames wrap the 8192 sample ring three times and put
	// half boundaries in the middle of blocks.
	const blocks, frames = 50, 500
	for i := range blocks {
		s.AcceptBlock(ramp(1, frames, float64(i*frames)), frames)
		syncSession(t, s)
	}

	stats := s.Stats()
	assert.Equal(t, uint64(blocks*frames), stats.SampleCount)
	assert.Equal(t, uint64(blocks*frames/4096), stats.Flushes)
	assert.Zero(t, stats.Overruns)

	s.Stop()
	syncSession(t, s)

	data, err := afero.ReadFile(fs, "long.data")
	require.NoError(t, err)
	samples := decodeSamples(t, data)
	require.Len(t, samples, blocks*frames)
	for i, v := range samples {
		if !assert.InDelta(t, float64(i), v, 0, "sample %d", i) {
			break
		}
	}

	n, ok := notes.find(KindBytes)
	require.True(t, ok)
	assert.Equal(t, uint64(blocks*frames*BytesPerSample), n.Value)
}

func TestStartWithoutFile(t *testing.T) {
	t.Parallel()

	s, _, notes := newTestSession(t, 1)

	err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrNoFileOpen)
	assert.Equal(t, "no file open", ErrNoFileOpen.Error())
	assert.False(t, s.Recording())
	assert.Empty(t, notes.all())
}

func TestAcceptBlockIgnoredWhenIdle(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t, 2)
	require.NoError(t, s.Open(context.Background(), "idle.data"))

	s.AcceptBlock(ramp(2, 64, 0), 64)
	assert.Zero(t, s.Stats().SampleCount)
}

func TestAcceptBlockRejectsShortBlocks(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSession(t, 2)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx, "short.data"))
	require.NoError(t, s.Start(ctx))

	s.AcceptBlock(ramp(1, 64, 0), 64)
	s.AcceptBlock([][]float64{make([]float64, 64), make([]float64, 10)}, 64)
	s.AcceptBlock(ramp(2, 64, 0), 0)

	stats := s.Stats()
	assert.Zero(t, stats.SampleCount)
	assert.Equal(t, uint64(2), stats.RejectedBlocks)
	assert.Equal(t, uint64(256), stats.DroppedSamples)
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()

	s, _, notes := newTestSession(t, 1)
	ctx := context.Background()

	s.Stop()
	require.NoError(t, s.Open(ctx, "stop.data"))
	s.Stop()
	syncSession(t, s)
	assert.Equal(t, []string{KindOpen}, notes.kinds())

	require.NoError(t, s.Start(ctx))
	s.AcceptBlock(ramp(1, 10, 0), 10)
	s.Stop()
	s.Stop()
	syncSession(t, s)

	assert.Equal(t, []string{KindOpen, KindSamples, KindBytes}, notes.kinds())
}

func TestStartResetsTake(t *testing.T) {
	t.Parallel()

	s, fs, notes := newTestSession(t, 2)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, "restart.data"))
	require.NoError(t, s.Start(ctx))
	s.AcceptBlock(ramp(2, 100, 0), 100)

	require.NoError(t, s.Start(ctx))
	second := ramp(2, 50, 1000)
	s.AcceptBlock(second, 50)
	s.Stop()
	syncSession(t, s)

	data, err := afero.ReadFile(fs, "restart.data")
	require.NoError(t, err)
	samples := decodeSamples(t, data)
	require.Len(t, samples, 100)
	assert.InDelta(t, 1000.0, samples[0], 0)
	assert.InDelta(t, 1099.0, samples[99], 0)

	n, ok := notes.find(KindSamples)
	require.True(t, ok)
	assert.Equal(t, uint64(100), n.Value)
}

func TestStartAfterStopRewindsFile(t *testing.T) {
	t.Parallel()

	s, fs, _ := newTestSession(t, 1)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, "again.data"))
	require.NoError(t, s.Start(ctx))
	s.AcceptBlock(ramp(1, 300, 0), 300)
	s.Stop()
	syncSession(t, s)

	// The file was closed by Stop, so a new take needs a new Open.
	require.ErrorIs(t, s.Start(ctx), ErrNoFileOpen)

	require.NoError(t, s.Open(ctx, "again.data"))
	require.NoError(t, s.Start(ctx))
	s.AcceptBlock(ramp(1, 20, 0), 20)
	s.Stop()
	syncSession(t, s)

	data, err := afero.ReadFile(fs, "again.data")
	require.NoError(t, err)
	assert.Len(t, data, 20*BytesPerSample)
}

func TestOpenWhileRecordingDiscardsUnflushed(t *testing.T) {
	t.Parallel()

	s, fs, notes := newTestSession(t, 2)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, "first.data"))
	require.NoError(t, s.Start(ctx))
	s.AcceptBlock(ramp(2, 100, 0), 100)

	require.NoError(t, s.Open(ctx, "second.data"))
	syncSession(t, s)

	assert.False(t, s.Recording())
	assert.True(t, s.Stats().FileOpen)

	data, err := afero.ReadFile(fs, "first.data")
	require.NoError(t, err)
	assert.Empty(t, data)

	assert.Equal(t, []Notification{
		{Tag: TagFile, Kind: KindOpen, Value: "first.data"},
		{Tag: TagFile, Kind: KindOpen, Value: "second.data"},
	}, notes.all())
}

func TestOpenResolvesAgainstOutputDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join("captures", "today")
	s, fs, notes := newTestSession(t, 1, WithOutputDir(dir))

	require.NoError(t, s.Open(context.Background(), "a.data"))

	want := filepath.Join(dir, "a.data")
	exists, err := afero.Exists(fs, want)
	require.NoError(t, err)
	assert.True(t, exists)

	n, ok := notes.find(KindOpen)
	require.True(t, ok)
	assert.Equal(t, want, n.Value)
}

func TestOpenPrompts(t *testing.T) {
	t.Parallel()

	t.Run("chosen path", func(t *testing.T) {
		t.Parallel()
		p := &fakePrompter{path: "chosen.data"}
		s, fs, _ := newTestSession(t, 1, WithPrompter(p))

		require.NoError(t, s.Open(context.Background(), ""))
		assert.Equal(t, DefaultFileName, p.offered)
		exists, err := afero.Exists(fs, "chosen.data")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("cancelled keeps current file", func(t *testing.T) {
		t.Parallel()
		p := &fakePrompter{err: ErrPromptCancelled}
		s, _, notes := newTestSession(t, 1, WithPrompter(p))
		ctx := context.Background()

		require.NoError(t, s.Open(ctx, "keep.data"))
		require.NoError(t, s.Start(ctx))

		require.ErrorIs(t, s.Open(ctx, ""), ErrPromptCancelled)
		assert.True(t, s.Recording())
		assert.Equal(t, []string{KindOpen}, notes.kinds())
	})

	t.Run("empty answer is a cancel", func(t *testing.T) {
		t.Parallel()
		s, _, _ := newTestSession(t, 1, WithPrompter(&fakePrompter{}))
		require.ErrorIs(t, s.Open(context.Background(), ""), ErrPromptCancelled)
	})

	t.Run("no prompter", func(t *testing.T) {
		t.Parallel()
		s, _, _ := newTestSession(t, 1)
		require.ErrorIs(t, s.Open(context.Background(), ""), ErrNoPrompter)
	})
}

func TestOpenCreateFailure(t *testing.T) {
	t.Parallel()

	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	s, err := NewSession(1, WithFs(fs), WithLogger(testLogger()))
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close(context.Background())) }()

	err = s.Open(context.Background(), "nope.data")
	require.ErrorIs(t, err, ErrFileCreateFailed)
	assert.False(t, s.Stats().FileOpen)
	require.ErrorIs(t, s.Start(context.Background()), ErrNoFileOpen)
}

func TestOverrunRefusesBlock(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	fs := &hookFs{Fs: afero.NewMemMapFs(), write: func([]byte) error {
		<-gate
		return nil
	}}
	notes := &collector{}
	s, err := NewSession(1, WithFs(fs), WithNotifier(notes), WithLogger(testLogger()))
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close(context.Background())) }()

	ctx := context.Background()
	require.NoError(t, s.Open(ctx, "slow.data"))
	require.NoError(t, s.Start(ctx))

	// The writer is stuck on the first half, so the ring fills after
	// eight blocks and the ninth must be refused.
	for i := range 9 {
		s.AcceptBlock(ramp(1, 1024, float64(i*1024)), 1024)
	}

	stats := s.Stats()
	assert.Equal(t, uint64(8192), stats.SampleCount)
	assert.Equal(t, uint64(1), stats.Overruns)
	assert.Equal(t, uint64(1024), stats.DroppedSamples)

	close(gate)
	s.Stop()
	syncSession(t, s)

	data, err := afero.ReadFile(fs, "slow.data")
	require.NoError(t, err)
	samples := decodeSamples(t, data)
	require.Len(t, samples, 8192)
	assert.InDelta(t, 8191.0, samples[8191], 0)

	n, ok := notes.find(KindOverruns)
	require.True(t, ok)
	assert.Equal(t, uint64(1), n.Value)
}

func TestWriteFailureAbortsTake(t *testing.T) {
	t.Parallel()

	diskFull := errors.New("no space left on device")
	fs := &hookFs{Fs: afero.NewMemMapFs(), write: func([]byte) error { return diskFull }}
	notes := &collector{}
	metrics := &fakeMetrics{}
	s, err := NewSession(1,
		WithFs(fs), WithNotifier(notes), WithMetrics(metrics), WithLogger(testLogger()))
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close(context.Background())) }()

	ctx := context.Background()
	require.NoError(t, s.Open(ctx, "full.data"))
	require.NoError(t, s.Start(ctx))

	s.AcceptBlock(ramp(1, 4096, 0), 4096)
	syncSession(t, s)

	assert.False(t, s.Recording())
	assert.False(t, s.Stats().FileOpen)

	n, ok := notes.find(KindError)
	require.True(t, ok)
	assert.Contains(t, n.Value, "error writing file")
	assert.Contains(t, n.Value, "no space left on device")

	// No samples or bytes notification for an aborted take.
	s.Stop()
	syncSession(t, s)
	assert.Equal(t, []string{KindOpen, KindError}, notes.kinds())

	require.ErrorIs(t, s.Start(ctx), ErrNoFileOpen)

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	require.Len(t, metrics.flushes, 1)
	assert.ErrorIs(t, metrics.flushes[0].err, diskFull)
}

func TestCloseFinalizesTake(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	notes := &collector{}
	s, err := NewSession(2, WithFs(fs), WithNotifier(notes), WithLogger(testLogger()))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Open(ctx, "close.data"))
	require.NoError(t, s.Start(ctx))
	s.AcceptBlock(ramp(2, 32, 0), 32)

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, s.Close(closeCtx))
	require.NoError(t, s.Close(closeCtx))

	data, err := afero.ReadFile(fs, "close.data")
	require.NoError(t, err)
	assert.Len(t, data, 64*BytesPerSample)
	assert.Equal(t, []string{KindOpen, KindSamples, KindBytes}, notes.kinds())

	require.ErrorIs(t, s.Open(ctx, "late.data"), ErrSessionClosed)
	require.ErrorIs(t, s.Start(ctx), ErrSessionClosed)
	require.ErrorIs(t, s.Sync(ctx), ErrSessionClosed)
	s.Stop()
	s.AcceptBlock(ramp(2, 32, 0), 32)
}

func TestFreeSpaceCheckDoesNotBlockOpen(t *testing.T) {
	t.Parallel()

	probed := ""
	probe := func(dir string) (uint64, error) {
		probed = dir
		return 1024, nil
	}
	s, _, _ := newTestSession(t, 1,
		WithOutputDir("out"),
		WithFreeSpaceCheck(1<<30, probe))

	require.NoError(t, s.Open(context.Background(), "low.data"))
	assert.Equal(t, "out", probed)
}
