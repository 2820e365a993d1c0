// Package progress derives throughput and playback position from the frame
// counter at a fixed frame interval.
//
// The reporter is purely observational. It reads the process CPU clock so
// that time spent blocked on I/O does not distort the frames-per-second
// figure, and it never fails: unknown fps or duration simply yields an
// unknown percentage.
package progress
