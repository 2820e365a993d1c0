// Package envelope downsamples interleaved 16-bit PCM into per-window
// minimum/maximum amplitude records for compact waveform display.
//
// The extractor is streaming: it keeps four running accumulators and a sample
// counter, emitting one Sample every window and resetting afterwards. Windows
// are combined across the two sides with the max of the minima and the min of
// the maxima; this rule is the existing export contract and is kept as is.
package envelope
