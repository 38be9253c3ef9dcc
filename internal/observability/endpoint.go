package observability

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/tphakala/rawrecord/internal/conf"
	"github.com/tphakala/rawrecord/internal/errors"
	"github.com/tphakala/rawrecord/internal/logger"
	"github.com/tphakala/rawrecord/internal/observability/metrics"
)

const readHeaderTimeout = 5 * time.Second

// Endpoint serves the metrics over HTTP.
type Endpoint struct {
	listenAddress string
	metrics       *Metrics
	log           logger.Logger
}

// NewEndpoint returns an endpoint for settings. It fails when metrics are disabled.
func NewEndpoint(settings *conf.MetricsSettings, m *Metrics, log logger.Logger) (*Endpoint, error) {
	if !settings.Enabled {
		return nil, errors.Newf("metrics endpoint not enabled in settings").
			Component("observability").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if log == nil {
		log = logger.Global().Module("metrics")
	}
	return &Endpoint{
		listenAddress: settings.Listen,
		metrics:       m,
		log:           log,
	}, nil
}

// Run listens and serves until ctx is cancelled, then shuts the server down.
func (e *Endpoint) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return errors.New(err).
			Component("observability").
			Category(errors.CategoryHTTP).
			Context("listen", e.listenAddress).
			Build()
	}
	return e.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (e *Endpoint) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		e.log.Info("metrics endpoint starting", logger.String("address", ln.Addr().String()))
		serveErr <- server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	e.log.Info("stopping metrics endpoint")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), metrics.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		e.log.Error("metrics server shutdown error", logger.Error(err))
		return err
	}
	<-serveErr
	return nil
}
