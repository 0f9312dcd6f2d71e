package derive

import "errors"

// The derivation pipeline itself never returns an error from LoadL1Data or
// NextL2Attributes — malformed input is silently dropped per the pipeline's
// error-handling design, and the remaining failure modes are protocol-bug
// panics, not recoverable errors. These sentinels exist for the driver
// layer built on top of the pipeline, which talks to an L1 data source
// that can fail for ordinary operational reasons.
var (
	// ErrReset signals the driver must reset its view of L1 (e.g. a reorg
	// was detected) and resynchronize from a safe point.
	ErrReset = errors.New("pipeline needs a reset")
	// ErrTemporary signals a retryable failure, e.g. an L1 RPC hiccup.
	ErrTemporary = errors.New("temporary error in pipeline")
	// ErrCritical signals a failure the driver cannot recover from.
	ErrCritical = errors.New("critical error in pipeline")
	// NotEnoughData signals the L1 fetcher doesn't have the requested block
	// yet; the driver should retry without backing off, since new L1 data
	// is expected to arrive on its own soon.
	NotEnoughData = errors.New("not enough data")
)
