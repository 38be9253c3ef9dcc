package recorder

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/tphakala/rawrecord/internal/errors"
	"github.com/tphakala/rawrecord/internal/logger"
)

const (
	// BlockHint is the audio block size, in frames, assumed when sizing the ring.
	BlockHint = 1024

	// blocksPerBuffer is how many hinted blocks fit in the ring, four per half.
	blocksPerBuffer = 8

	// BytesPerSample is the on-disk size of one float64 sample.
	BytesPerSample = 8

	// MaxChannels bounds the ring allocation.
	MaxChannels = 1024

	// controlQueueSize bounds queued control tasks.
	controlQueueSize = 16

	// flushQueueSize is larger than the at most two half flushes the overrun
	// guard lets the producer have outstanding.
	flushQueueSize = 4
)

// Producer states. Controllers move recording -> idle with a CAS, so once a
// halt succeeds no AcceptBlock call is in progress.
const (
	stateIdle int32 = iota
	stateRecording
	stateAccepting
	stateClosed
)

// BufferCapacity returns the ring capacity for a channel count:
// the next power of two >= 8 * BlockHint * channels.
func BufferCapacity(channels int) int {
	return int(NextPow2(uint64(blocksPerBuffer * BlockHint * channels)))
}

// Metrics receives writer-side measurements. It is never called from AcceptBlock.
type Metrics interface {
	// RecordFlush records a write of samples to the capture file.
	// kind is "half" or "leftover".
	RecordFlush(kind string, samples int, elapsed time.Duration, err error)

	// RecordFileOperation records open, truncate and close outcomes.
	RecordFileOperation(operation string, err error)
}

type noopMetrics struct{}

func (noopMetrics) RecordFlush(string, int, time.Duration, error) {}
func (noopMetrics) RecordFileOperation(string, error)             {}

// Stats is a point-in-time snapshot of a session.
type Stats struct {
	Channels       int
	Capacity       uint64
	Head           uint64
	Tail           uint64
	SampleCount    uint64
	ByteCount      uint64
	Pending        uint64 // accepted but not yet written
	Flushes        uint64
	Overruns       uint64
	RejectedBlocks uint64
	DroppedSamples uint64
	Recording      bool
	FileOpen       bool
}

// Option configures a Session.
type Option func(*Session)

// WithFs sets the file system capture files are created on. Defaults to the OS file system.
func WithFs(fs afero.Fs) Option {
	return func(s *Session) { s.fs = fs }
}

// WithOutputDir sets the directory relative file names are resolved against.
func WithOutputDir(dir string) Option {
	return func(s *Session) { s.outputDir = dir }
}

// WithPrompter sets the prompter used by Open when no name is given.
func WithPrompter(p Prompter) Option {
	return func(s *Session) { s.prompter = p }
}

// WithNotifier sets the notification receiver.
func WithNotifier(n Notifier) Option {
	return func(s *Session) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the logger. The session logs under the "recorder" module.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithFreeSpaceCheck makes Open warn when the destination volume has less
// than minFree bytes available, as reported by probe.
func WithFreeSpaceCheck(minFree uint64, probe FreeSpaceFunc) Option {
	return func(s *Session) {
		s.minFree = minFree
		s.freeSpace = probe
	}
}

// Session captures real-time sample blocks into a raw file.
//
// AcceptBlock may be called from a single real-time producer. Open, Start,
// Stop, Sync and Close may be called from any goroutine. All file I/O runs on
// the session's writer goroutine, in submission order.
type Session struct {
	channels int
	ring     *RingBuffer
	half     uint64
	mask     uint64

	state atomic.Int32

	// sampleCount is the producer's unwrapped write position since Start.
	sampleCount atomic.Uint64
	// flushed is the writer's unwrapped flush position since Start.
	flushed    atomic.Uint64
	byteCount  atomic.Uint64
	flushCount atomic.Uint64
	overruns   atomic.Uint64
	rejected   atomic.Uint64
	dropped    atomic.Uint64
	fileOpen   atomic.Bool

	tasks   chan task
	flushes chan task
	done    chan struct{}

	ctlMu  sync.Mutex
	closed bool

	fs        afero.Fs
	outputDir string
	prompter  Prompter
	minFree   uint64
	freeSpace FreeSpaceFunc
	dest      *Destination
	notifier  Notifier
	log       logger.Logger
	metrics   Metrics

	w writer
}

// NewSession allocates the ring buffer for channels and starts the writer
// goroutine. A channel count of 0 means mono and negative counts use their
// absolute value.
func NewSession(channels int, opts ...Option) (*Session, error) {
	if channels == 0 {
		channels = 1
	}
	if channels < 0 {
		channels = -channels
	}
	if channels > MaxChannels {
		return nil, errors.New(fmt.Errorf("%w: %d exceeds %d", ErrInvalidChannels, channels, MaxChannels)).
			Component("recorder").
			Category(errors.CategoryValidation).
			Build()
	}

	ring, err := NewRingBuffer(BufferCapacity(channels))
	if err != nil {
		return nil, err
	}

	s := &Session{
		channels: channels,
		ring:     ring,
		half:     ring.Half(),
		mask:     ring.Capacity() - 1,
		tasks:    make(chan task, controlQueueSize),
		flushes:  make(chan task, flushQueueSize),
		done:     make(chan struct{}),
		fs:       afero.NewOsFs(),
		notifier: discardNotifier{},
		log:      logger.Global().Module("recorder"),
		metrics:  noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.dest = NewDestination(s.fs, s.outputDir, s.prompter)
	s.dest.freeSpace = s.freeSpace
	s.w.init(s)

	s.log.Debug("capture session created",
		logger.Int("channels", channels),
		logger.Uint64("capacity", ring.Capacity()),
		logger.Int("exponent", int(ring.Exponent())))

	go s.w.run()

	return s, nil
}

// Channels returns the fixed channel count.
func (s *Session) Channels() int { return s.channels }

// Capacity returns the ring buffer capacity in samples.
func (s *Session) Capacity() uint64 { return s.ring.Capacity() }

// Recording reports whether blocks are currently accepted.
func (s *Session) Recording() bool {
	st := s.state.Load()
	return st == stateRecording || st == stateAccepting
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	flushed := s.flushed.Load()
	samples := s.sampleCount.Load()
	return Stats{
		Channels:       s.channels,
		Capacity:       s.ring.Capacity(),
		Head:           s.ring.Head(),
		Tail:           s.ring.Tail(),
		SampleCount:    samples,
		Pending:        samples - min(flushed, samples),
		ByteCount:      s.byteCount.Load(),
		Flushes:        s.flushCount.Load(),
		Overruns:       s.overruns.Load(),
		RejectedBlocks: s.rejected.Load(),
		DroppedSamples: s.dropped.Load(),
		Recording:      s.Recording(),
		FileOpen:       s.fileOpen.Load(),
	}
}

// AcceptBlock is the real-time producer path. block holds one slice per
// channel and each slice at least frames samples. It does nothing unless
// recording and never blocks, allocates or performs I/O.
//
// Samples are interleaved at the ring head. Every half boundary the block
// reaches queues a flush of the half that ends there; the producer then
// continues in the other half. A block that would overwrite samples still
// waiting for the writer is refused and counted as an overrun.
func (s *Session) AcceptBlock(block [][]float64, frames int) {
	if frames <= 0 || !s.state.CompareAndSwap(stateRecording, stateAccepting) {
		return
	}
	defer s.state.Store(stateRecording)

	n := uint64(frames) * uint64(s.channels)

	if len(block) < s.channels {
		s.rejected.Add(1)
		s.dropped.Add(n)
		return
	}
	for ch := range s.channels {
		if len(block[ch]) < frames {
			s.rejected.Add(1)
			s.dropped.Add(n)
			return
		}
	}

	start := s.sampleCount.Load()
	if start+n-s.flushed.Load() > s.ring.Capacity() {
		s.overruns.Add(1)
		s.dropped.Add(n)
		return
	}

	s.ring.WriteBlock(block[:s.channels], frames)
	end := start + n
	s.sampleCount.Store(end)

	for b := (start/s.half + 1) * s.half; b <= end; b += s.half {
		s.w.schedule(task{kind: taskFlush, offset: (b - s.half) & s.mask})
	}
}

// halt stops the producer and reports whether it was recording. It spins
// while an AcceptBlock call is in progress.
func (s *Session) halt() bool {
	for {
		switch s.state.Load() {
		case stateRecording:
			if s.state.CompareAndSwap(stateRecording, stateIdle) {
				return true
			}
		case stateAccepting:
			runtime.Gosched()
		default:
			return false
		}
	}
}

// Open closes any open file, discarding samples not yet flushed, and creates
// the capture file. An empty name asks the configured Prompter. A cancelled
// prompt returns ErrPromptCancelled and changes nothing.
//
// On success a (file, open, path) notification is emitted. On failure no file
// is open afterwards and the error wraps ErrFileCreateFailed.
func (s *Session) Open(ctx context.Context, name string) error {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	path, err := s.dest.Resolve(ctx, name)
	if err != nil {
		if errors.Is(err, ErrPromptCancelled) {
			s.log.Info("file prompt cancelled")
		} else {
			s.log.Error("failed to resolve capture file", logger.Error(err))
		}
		return err
	}

	if s.halt() {
		s.log.Warn("open while recording, buffered samples discarded",
			logger.Uint64("samples", s.sampleCount.Load()))
	}

	s.checkFreeSpace(path)

	if err := s.w.call(ctx, task{kind: taskOpen, path: path}); err != nil {
		s.log.Error("failed to create capture file", logger.String("path", path), logger.Error(err))
		return err
	}
	return nil
}

func (s *Session) checkFreeSpace(path string) {
	if s.minFree == 0 {
		return
	}
	free, ok, err := s.dest.FreeSpace(path)
	if err != nil {
		s.log.Debug("free space probe failed", logger.String("path", path), logger.Error(err))
		return
	}
	if ok && free < s.minFree {
		s.log.Warn("low free space on capture volume",
			logger.String("path", path),
			logger.Uint64("free_bytes", free),
			logger.Uint64("min_free_bytes", s.minFree))
	}
}

// Start begins a new take. It fails with ErrNoFileOpen when no file is open.
// Starting resets head, tail and both counters and rewinds the file, so a
// second Start while recording discards the first segment.
func (s *Session) Start(ctx context.Context) error {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	restarted := s.halt()
	take := uuid.NewString()

	if err := s.w.call(ctx, task{kind: taskReset, take: take}); err != nil {
		if errors.Is(err, ErrNoFileOpen) {
			s.log.Error("cannot start recording", logger.Error(err))
		} else {
			s.log.Error("failed to start recording", logger.Error(err))
		}
		return err
	}

	s.state.Store(stateRecording)
	s.log.Info("recording started",
		logger.String("take", take),
		logger.Bool("restarted", restarted))
	return nil
}

// Stop ends the take. It has no effect unless recording. The producer is
// disabled immediately; the remaining samples are written, the file is
// truncated and closed, and (file, samples, n) and (file, bytes, n) are
// emitted from the writer goroutine. Use Sync to wait for completion.
func (s *Session) Stop() {
	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()

	if s.closed || !s.halt() {
		return
	}
	s.w.submit(task{kind: taskFinalize})
}

// Sync waits until every task queued before the call has been processed.
func (s *Session) Sync(ctx context.Context) error {
	s.ctlMu.Lock()
	if s.closed {
		s.ctlMu.Unlock()
		return ErrSessionClosed
	}
	reply := s.w.enqueue(task{kind: taskBarrier})
	s.ctlMu.Unlock()

	return s.w.wait(ctx, reply)
}

// Close tears the session down. A take in progress is finalized as by Stop,
// the writer goroutine exits once its queue is drained and the ring storage
// is released. Close is idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.ctlMu.Lock()
	if s.closed {
		s.ctlMu.Unlock()
		return nil
	}
	s.closed = true

	if s.halt() {
		s.w.submit(task{kind: taskFinalize})
	}
	s.state.Store(stateClosed)
	close(s.tasks)
	s.ctlMu.Unlock()

	select {
	case <-s.done:
	case <-ctx.Done():
		return errors.New(fmt.Errorf("waiting for writer: %w", ctx.Err())).
			Component("recorder").
			Category(errors.CategoryTimeout).
			Build()
	}

	s.ring.Release()
	s.log.Debug("capture session closed")
	return nil
}
