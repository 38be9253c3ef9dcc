package recorder

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/spf13/afero"

	"github.com/tphakala/rawrecord/internal/errors"
	"github.com/tphakala/rawrecord/internal/logger"
)

type taskKind int

const (
	taskOpen taskKind = iota
	taskReset
	taskFlush
	taskFinalize
	taskBarrier
)

func (k taskKind) String() string {
	switch k {
	case taskOpen:
		return "open"
	case taskReset:
		return "reset"
	case taskFlush:
		return "flush"
	case taskFinalize:
		return "finalize"
	case taskBarrier:
		return "barrier"
	default:
		return fmt.Sprintf("task(%d)", int(k))
	}
}

// task is a unit of work for the writer goroutine.
type task struct {
	kind   taskKind
	offset uint64 // taskFlush: ring slot the half starts at
	path   string // taskOpen
	take   string // taskReset
	reply  chan error
}

// writer owns the capture file. Only the writer goroutine touches its fields.
type writer struct {
	s   *Session
	log logger.Logger

	file afero.File
	path string
	take string

	// failed is set after a write error and cleared by the next Open.
	failed bool

	scratch []byte
}

func (w *writer) init(s *Session) {
	w.s = s
	w.log = s.log.Module("writer")
	w.scratch = make([]byte, s.half*BytesPerSample)
}

// schedule queues a flush from the producer. It never blocks.
func (w *writer) schedule(t task) {
	select {
	case w.s.flushes <- t:
	default:
		w.s.overruns.Add(1)
	}
}

// submit queues a control task without waiting for it.
func (w *writer) submit(t task) {
	w.s.tasks <- t
}

// enqueue queues a control task and returns the channel its result arrives on.
func (w *writer) enqueue(t task) <-chan error {
	reply := make(chan error, 1)
	t.reply = reply
	w.s.tasks <- t
	return reply
}

// call queues a control task and waits for its result.
func (w *writer) call(ctx context.Context, t task) error {
	return w.wait(ctx, w.enqueue(t))
}

func (w *writer) wait(ctx context.Context, reply <-chan error) error {
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return errors.New(fmt.Errorf("waiting for writer: %w", ctx.Err())).
			Component("recorder").
			Category(errors.CategoryTimeout).
			Build()
	}
}

// run processes tasks until the control queue is closed. Flushes already
// queued by the producer are handled before each control task so that
// control operations observe every completed half.
func (w *writer) run() {
	defer close(w.s.done)

	for {
		select {
		case t := <-w.s.flushes:
			w.handle(t)
		case t, ok := <-w.s.tasks:
			w.drainFlushes()
			if !ok {
				w.shutdown()
				return
			}
			w.handle(t)
		}
	}
}

func (w *writer) drainFlushes() {
	for {
		select {
		case t := <-w.s.flushes:
			w.handle(t)
		default:
			return
		}
	}
}

func (w *writer) handle(t task) {
	var err error
	switch t.kind {
	case taskOpen:
		err = w.open(t.path)
	case taskReset:
		err = w.reset(t.take)
	case taskFlush:
		w.flush(t.offset)
	case taskFinalize:
		w.finalize()
	case taskBarrier:
	default:
		w.log.Warn("unknown writer task", logger.String("task", t.kind.String()))
	}

	if t.reply != nil {
		t.reply <- err
	}
}

// open closes the current file without writing pending samples and creates path.
func (w *writer) open(path string) error {
	if w.file != nil {
		w.closeFile("replace")
	}
	w.resetCounters()
	w.failed = false

	f, err := w.s.dest.Create(path)
	w.s.metrics.RecordFileOperation("open", err)
	if err != nil {
		return errors.New(err).
			Component("recorder").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Context("operation", "open").
			Build()
	}

	w.file = f
	w.path = path
	w.s.fileOpen.Store(true)

	w.log.Info("capture file opened", logger.String("path", path))
	w.s.notifier.Notify(Notification{Tag: TagFile, Kind: KindOpen, Value: path})
	return nil
}

// reset rewinds the file and all positions for a new take.
func (w *writer) reset(take string) error {
	if w.file == nil {
		return ErrNoFileOpen
	}

	err := w.file.Truncate(0)
	if err == nil {
		_, err = w.file.Seek(0, io.SeekStart)
	}
	w.s.metrics.RecordFileOperation("truncate", err)
	if err != nil {
		w.failTake("truncate", err)
		return errors.New(fmt.Errorf("%w: %w", ErrFileWriteFailed, err)).
			Component("recorder").
			Category(errors.CategoryFileIO).
			FileContext(w.path, 0).
			Build()
	}

	w.resetCounters()
	w.take = take
	return nil
}

func (w *writer) resetCounters() {
	s := w.s
	s.ring.Reset()
	s.sampleCount.Store(0)
	s.flushed.Store(0)
	s.byteCount.Store(0)
	s.flushCount.Store(0)
	s.overruns.Store(0)
	s.rejected.Store(0)
	s.dropped.Store(0)
}

// flush writes the half starting at the ring tail.
func (w *writer) flush(offset uint64) {
	if w.file == nil || w.failed {
		return
	}

	s := w.s
	tail := s.ring.Tail()
	if offset != tail {
		w.log.Warn("flush offset differs from tail",
			logger.Uint64("offset", offset),
			logger.Uint64("tail", tail))
	}

	start := time.Now()
	err := w.writeSamples(s.ring.FlushSlice(tail, s.half))
	s.metrics.RecordFlush("half", int(s.half), time.Since(start), err)
	if err != nil {
		w.failTake("flush", err)
		return
	}

	s.ring.AdvanceTail(s.half)
	s.flushed.Add(s.half)
	s.byteCount.Add(s.half * BytesPerSample)
	s.flushCount.Add(1)

	w.log.Trace("half flushed",
		logger.Uint64("offset", tail),
		logger.Uint64("bytes", s.byteCount.Load()))
}

// finalize writes the samples left after the last half, trims the file to
// the bytes written and closes it.
func (w *writer) finalize() {
	if w.file == nil {
		return
	}

	s := w.s
	leftover := s.sampleCount.Load() - s.flushed.Load()
	if leftover > 0 && !w.failed {
		start := time.Now()
		first, second := s.ring.Segments(s.ring.Tail(), leftover)
		err := w.writeSamples(first)
		if err == nil {
			err = w.writeSamples(second)
		}
		s.metrics.RecordFlush("leftover", int(leftover), time.Since(start), err)
		if err != nil {
			w.failTake("finalize", err)
			return
		}
		s.ring.AdvanceTail(leftover)
		s.flushed.Add(leftover)
		s.byteCount.Add(leftover * BytesPerSample)
	}

	samples := s.sampleCount.Load()
	written := s.byteCount.Load()
	if err := w.file.Truncate(int64(written)); err != nil {
		s.metrics.RecordFileOperation("truncate", err)
		w.failTake("truncate", err)
		return
	}
	w.closeFile("stop")

	overruns := s.overruns.Load()
	w.log.Info("recording stopped",
		logger.String("take", w.take),
		logger.String("path", w.path),
		logger.Uint64("samples", samples),
		logger.Uint64("bytes", written),
		logger.Uint64("overruns", overruns))

	s.notifier.Notify(Notification{Tag: TagFile, Kind: KindSamples, Value: samples})
	s.notifier.Notify(Notification{Tag: TagFile, Kind: KindBytes, Value: written})
	if overruns > 0 {
		s.notifier.Notify(Notification{Tag: TagFile, Kind: KindOverruns, Value: overruns})
	}
}

// writeSamples encodes samples as native-endian float64 through the scratch
// buffer and writes them to the file.
func (w *writer) writeSamples(samples []float64) error {
	per := len(w.scratch) / BytesPerSample
	for len(samples) > 0 {
		n := min(len(samples), per)
		buf := w.scratch[:n*BytesPerSample]
		for i, v := range samples[:n] {
			binary.NativeEndian.PutUint64(buf[i*BytesPerSample:], math.Float64bits(v))
		}
		if _, err := w.file.Write(buf); err != nil {
			return err
		}
		samples = samples[n:]
	}
	return nil
}

// failTake ends the take after an I/O error. The producer is halted, the file
// closed and a (file, error, message) notification emitted. A new Open is
// required before the next Start.
func (w *writer) failTake(op string, cause error) {
	s := w.s
	s.halt()
	w.failed = true

	err := errors.New(fmt.Errorf("%w: %s: %w", ErrFileWriteFailed, w.path, cause)).
		Component("recorder").
		Category(errors.CategoryWorker).
		Priority(errors.PriorityHigh).
		FileContext(w.path, int64(s.byteCount.Load())).
		Context("operation", op).
		Context("take", w.take).
		Build()

	w.log.Error("capture file write failed, take aborted",
		logger.String("operation", op),
		logger.Uint64("bytes_written", s.byteCount.Load()),
		logger.Error(err))

	w.closeFile("abort")
	s.notifier.Notify(Notification{Tag: TagFile, Kind: KindError, Value: err.Error()})
}

func (w *writer) closeFile(reason string) {
	err := w.file.Close()
	w.s.metrics.RecordFileOperation("close", err)
	if err != nil {
		w.log.Warn("failed to close capture file",
			logger.String("path", w.path),
			logger.String("reason", reason),
			logger.Error(err))
	}
	w.file = nil
	w.s.fileOpen.Store(false)
}

// shutdown closes the file if a failed or unstarted take left it open.
func (w *writer) shutdown() {
	if w.file != nil {
		w.closeFile("shutdown")
	}
}
