// Package series provides the bounded time-series buffer that feeds the
// power-flow chart collaborator.
//
// The buffer holds a sliding window of timestamped multi-channel samples.
// It detects discontinuities: when the wall-clock gap between consecutive
// samples exceeds a staleness threshold, the buffer is discarded so the
// chart is rebuilt from a bulk historical fetch rather than bridging the
// gap silently.
package series
