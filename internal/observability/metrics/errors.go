package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/rawrecord/internal/errors"
)

// ErrorMetrics counts errors built through the errors package.
type ErrorMetrics struct {
	errorsTotal *prometheus.CounterVec
}

// NewErrorMetrics creates and registers the error counter.
func NewErrorMetrics(registry *prometheus.Registry) (*ErrorMetrics, error) {
	m := &ErrorMetrics{
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rawrecord_errors_total",
				Help: "Total number of errors by component and category",
			},
			[]string{"component", "category"},
		),
	}
	if err := registry.Register(m.errorsTotal); err != nil {
		return nil, err
	}
	return m, nil
}

// Hook returns an errors.ErrorHook that counts every built error.
func (m *ErrorMetrics) Hook() errors.ErrorHook {
	return func(ee *errors.EnhancedError) {
		m.errorsTotal.WithLabelValues(ee.GetComponent(), ee.GetCategory()).Inc()
	}
}
