package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/rawrecord/internal/errors"
)

func TestErrorMetricsHook(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewErrorMetrics(registry)
	require.NoError(t, err)

	errors.AddErrorHook(m.Hook())
	t.Cleanup(errors.ClearErrorHooks)

	_ = errors.Newf("ring capacity invalid").
		Component("recorder").
		Category(errors.CategoryValidation).
		Build()
	_ = errors.Newf("write failed").
		Component("recorder").
		Category(errors.CategoryWorker).
		Build()
	_ = errors.Newf("write failed again").
		Component("recorder").
		Category(errors.CategoryWorker).
		Build()

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("recorder", string(errors.CategoryValidation))), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("recorder", string(errors.CategoryWorker))), 0)
}
