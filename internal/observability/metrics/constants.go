// Package metrics provides the Prometheus collectors for drawpad components.
package metrics

// Operation labels for document store metrics.
const (
	OpReadDocument    = "read_document"
	OpWriteDocument   = "write_document"
	OpCreateExclusive = "create_exclusive"
	OpListDirectory   = "list_directory"
)

// Outcome labels shared by the collectors.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	// StatusDefault marks a read answered with the blank document
	StatusDefault = "default"
)

// Histogram bucket parameters.
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart100B is the starting bucket for byte size histograms (100B to ~100MB).
	BucketStart100B = 100

	BucketFactor2  = 2
	BucketFactor10 = 10

	BucketCount6  = 6
	BucketCount12 = 12
)
