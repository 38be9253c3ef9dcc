// Package metrics provides Prometheus collectors for rawrecord.
package metrics

import "time"

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Flush kinds reported by the capture writer.
const (
	FlushHalf     = "half"
	FlushLeftover = "leftover"
)

// Histogram bucket parameters.
const (
	BucketStart100us = 0.0001
	BucketFactor2    = 2
	BucketCount14    = 14 // 100us to ~1.6s
)

// ShutdownTimeout bounds the metrics server shutdown.
const ShutdownTimeout = 5 * time.Second

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
