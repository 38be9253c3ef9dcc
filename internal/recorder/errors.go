package recorder

import "github.com/tphakala/rawrecord/internal/errors"

// Sentinel errors reported by the capture session. Returned errors wrap these,
// so callers test them with errors.Is.
var (
	ErrNoFileOpen       = errors.NewStd("no file open")
	ErrFileCreateFailed = errors.NewStd("error creating file")
	ErrFileWriteFailed  = errors.NewStd("error writing file")
	ErrPromptCancelled  = errors.NewStd("file prompt cancelled")
	ErrNoPrompter       = errors.NewStd("no file name given and no prompt available")
	ErrSessionClosed    = errors.NewStd("capture session closed")
	ErrInvalidChannels  = errors.NewStd("invalid channel count")
	ErrUnknownCommand   = errors.NewStd("unknown command")
)
