package recorder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/spf13/afero"

	"github.com/tphakala/rawrecord/internal/errors"
)

// DefaultFileName is offered by the save prompt when no name is given.
const DefaultFileName = "raw.data"

const (
	filePermissions = 0o644
	dirPermissions  = 0o755
)

// Prompter asks the user for a destination path.
type Prompter interface {
	// SaveFile returns the chosen path, or ErrPromptCancelled when the user
	// dismisses the prompt.
	SaveFile(ctx context.Context, defaultName string) (string, error)
}

// FreeSpaceFunc reports the free bytes on the volume holding dir.
type FreeSpaceFunc func(dir string) (uint64, error)

// DiskFreeSpace reports free space using the operating system's disk usage.
func DiskFreeSpace(dir string) (uint64, error) {
	usage, err := disk.Usage(dir)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// Destination resolves and creates capture files.
type Destination struct {
	fs        afero.Fs
	dir       string
	prompter  Prompter
	freeSpace FreeSpaceFunc
}

// NewDestination returns a destination creating files on fs. Relative names
// are resolved against dir when dir is not empty.
func NewDestination(fs afero.Fs, dir string, prompter Prompter) *Destination {
	return &Destination{fs: fs, dir: dir, prompter: prompter}
}

// Resolve turns a requested name into a file path. An empty name asks the
// prompter, offering DefaultFileName.
func (d *Destination) Resolve(ctx context.Context, name string) (string, error) {
	if name == "" {
		if d.prompter == nil {
			return "", ErrNoPrompter
		}
		path, err := d.prompter.SaveFile(ctx, DefaultFileName)
		if err != nil {
			return "", err
		}
		if path == "" {
			return "", ErrPromptCancelled
		}
		return path, nil
	}

	if d.dir != "" && !filepath.IsAbs(name) {
		return filepath.Join(d.dir, name), nil
	}
	return name, nil
}

// Create creates or truncates the file at path, creating parent directories.
func (d *Destination) Create(path string) (afero.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := d.fs.MkdirAll(dir, dirPermissions); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrFileCreateFailed, path, err)
		}
	}

	f, err := d.fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFileCreateFailed, path, err)
	}
	return f, nil
}

// FreeSpace returns the free bytes next to path. ok is false when no free
// space probe is configured.
func (d *Destination) FreeSpace(path string) (free uint64, ok bool, err error) {
	if d.freeSpace == nil {
		return 0, false, nil
	}
	free, err = d.freeSpace(filepath.Dir(path))
	if err != nil {
		return 0, false, errors.New(err).
			Component("recorder").
			Category(errors.CategoryDiskUsage).
			FileContext(path, 0).
			Build()
	}
	return free, true, nil
}
