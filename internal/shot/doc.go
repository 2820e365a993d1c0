// Package shot segments a decoded frame stream into shots.
//
// A Segmenter pulls frames from a FrameSource into two engine-owned buffers,
// scores each frame against its predecessor, and opens a new shot whenever
// the dual gate fires: the score and its change from the previous score must
// both exceed the threshold. Shots are finalized when the next boundary fires
// or the stream ends. Image capture, per-frame records, and progress are
// delivered synchronously through ImageHook, Sink, and Observer.
//
// A dimension mismatch, an out-of-sequence frame index, or a source failure
// aborts the run; Run still returns every shot finalized before the failure.
package shot
