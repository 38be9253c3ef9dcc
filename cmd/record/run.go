package record

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/rawrecord/internal/audiosource"
	"github.com/tphakala/rawrecord/internal/conf"
	"github.com/tphakala/rawrecord/internal/errors"
	"github.com/tphakala/rawrecord/internal/logger"
	"github.com/tphakala/rawrecord/internal/observability"
	"github.com/tphakala/rawrecord/internal/recorder"
)

const closeTimeout = 10 * time.Second

// errFinished ends the errgroup when the take or the control loop is done.
var errFinished = errors.NewStd("recording finished")

// Options are the per-invocation settings of the record command.
type Options struct {
	// Name is the file to open. Empty prompts, or in interactive mode waits
	// for an open command.
	Name        string
	Interactive bool
	In          io.Reader
	Out         io.Writer
}

// Run records until ctx is cancelled, the configured duration has elapsed or
// the control loop quits.
func Run(ctx context.Context, settings *conf.Settings, opts Options) error {
	log := logger.Global().Module("record")
	out := &syncWriter{w: opts.Out}

	sessionOpts := []recorder.Option{
		recorder.WithOutputDir(settings.Record.OutputDir),
		recorder.WithNotifier(printNotifier(out)),
		recorder.WithLogger(logger.Global().Module("recorder")),
		recorder.WithFreeSpaceCheck(settings.Record.MinFreeSpace, recorder.DiskFreeSpace),
	}
	if settings.Record.Prompt {
		sessionOpts = append(sessionOpts, recorder.WithPrompter(recorder.DialogPrompter{}))
	}

	var m *observability.Metrics
	if settings.Metrics.Enabled {
		var err error
		if m, err = observability.NewMetrics(); err != nil {
			return err
		}
		defer errors.ClearErrorHooks()
		sessionOpts = append(sessionOpts, recorder.WithMetrics(m.Capture))
	}

	session, err := recorder.NewSession(settings.Record.Channels, sessionOpts...)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			log.Error("failed to close capture session", logger.Error(err))
		}
	}()

	capture, err := audiosource.New(audiosource.Config{
		Device:     settings.Record.Device,
		Channels:   session.Channels(),
		SampleRate: settings.Record.SampleRate,
		MaxFrames:  recorder.BlockHint,
		Debug:      settings.Debug,
	}, session, logger.Global().Module("audiosource"))
	if err != nil {
		return err
	}
	defer func() {
		if err := capture.Close(); err != nil {
			log.Warn("failed to close capture device", logger.Error(err))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if m != nil {
		if err := m.Capture.ObserveSession(session); err != nil {
			return err
		}
		if err := m.Capture.ObserveFrames(capture.Frames); err != nil {
			return err
		}
		endpoint, err := observability.NewEndpoint(&settings.Metrics, m, logger.Global().Module("metrics"))
		if err != nil {
			return err
		}
		g.Go(func() error { return endpoint.Run(gctx) })
	}

	if err := capture.Start(); err != nil {
		return err
	}
	source := capture.Source()
	log.Info("listening on capture source",
		logger.String("device", source.Name),
		logger.String("id", source.ID))

	if opts.Interactive {
		g.Go(func() error { return controlLoop(gctx, session, opts.In, out) })
	} else {
		g.Go(func() error { return recordTake(gctx, session, opts.Name, settings.Record.Duration) })
	}

	err = g.Wait()
	if stopErr := capture.Stop(); stopErr != nil {
		log.Warn("failed to stop capture device", logger.Error(stopErr))
	}
	if errors.Is(err, errFinished) || errors.Is(err, context.Canceled) {
		err = nil
	}

	session.Stop()
	syncCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if syncErr := session.Sync(syncCtx); syncErr != nil && err == nil {
		err = syncErr
	}

	stats := session.Stats()
	log.Info("capture session finished",
		logger.Uint64("device_frames", capture.Frames()),
		logger.Uint64("overruns", stats.Overruns),
		logger.Uint64("rejected_blocks", stats.RejectedBlocks))
	return err
}

// recordTake opens name, records until ctx ends or duration elapses, and stops.
func recordTake(ctx context.Context, session *recorder.Session, name string, duration time.Duration) error {
	if err := session.Open(ctx, name); err != nil {
		return err
	}
	if err := session.Start(ctx); err != nil {
		return err
	}

	var timeout <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
	case <-timeout:
	}
	session.Stop()
	return errFinished
}

// syncWriter serializes writes from the control loop and the session's writer goroutine.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// printNotifier prints each notification as a line, e.g. "file bytes 1600".
func printNotifier(w io.Writer) recorder.Notifier {
	return recorder.NotifierFunc(func(n recorder.Notification) {
		fmt.Fprintln(w, n.String())
	})
}
