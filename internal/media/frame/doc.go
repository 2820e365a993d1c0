// Package frame defines decoded video frames and the frame difference scorer.
//
// A Frame carries two pixel representations of the same picture: packed RGB24
// used for difference scoring and channel averages, and an optional planar
// YUV 4:4:4 copy used only for background-colour averaging. The Scorer
// compares two equally sized frames and reports the absolute difference sum,
// the per-pixel normalized score, and optionally per-channel averages.
//
// Scoring is a data-parallel reduction over row bands. Each band produces
// integer partial sums that are combined only after every band finished, so
// callers always observe a fully computed score.
package frame
