// Package ffmpeg decodes media through an ffmpeg subprocess.
//
// FrameSource streams packed rgb24 frames on stdout and, when requested, a
// planar yuv444p copy of the same frames on file descriptor 3. AudioSource
// streams interleaved signed 16-bit little-endian PCM. Both treat context
// cancellation as a clean end of stream so callers can finalize partial
// results, and both report a non-zero ffmpeg exit as ErrFatalStream.
package ffmpeg
