package recorder

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/tphakala/rawrecord/internal/errors"
)

func TestDestinationResolve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	abs := filepath.Join(t.TempDir(), "abs.data")

	d := NewDestination(afero.NewMemMapFs(), "base", nil)
	got, err := d.Resolve(ctx, "rel.data")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("base", "rel.data"), got)

	got, err = d.Resolve(ctx, abs)
	require.NoError(t, err)
	assert.Equal(t, abs, got)

	_, err = d.Resolve(ctx, "")
	require.ErrorIs(t, err, ErrNoPrompter)

	noDir := NewDestination(afero.NewMemMapFs(), "", &fakePrompter{path: "picked.data"})
	got, err = noDir.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "picked.data", got)

	got, err = noDir.Resolve(ctx, "plain.data")
	require.NoError(t, err)
	assert.Equal(t, "plain.data", got)
}

func TestDestinationCreateTruncates(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	path := filepath.Join("nested", "dir", "take.data")
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, []byte("stale contents"), 0o644))

	d := NewDestination(fs, "", nil)
	f, err := d.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Empty(t, data)

	f, err = d.Create(filepath.Join("fresh", "new.data"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestDestinationFreeSpace(t *testing.T) {
	t.Parallel()

	d := NewDestination(afero.NewMemMapFs(), "", nil)
	_, ok, err := d.FreeSpace("x/y.data")
	require.NoError(t, err)
	assert.False(t, ok)

	d.freeSpace = func(string) (uint64, error) { return 0, errors.New("statfs failed") }
	_, ok, err = d.FreeSpace("x/y.data")
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, rerrors.IsCategory(err, rerrors.CategoryDiskUsage))

	d.freeSpace = func(string) (uint64, error) { return 42, nil }
	free, ok, err := d.FreeSpace("x/y.data")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), free)
}

func TestDiskFreeSpace(t *testing.T) {
	t.Parallel()

	free, err := DiskFreeSpace(t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, free)
}
