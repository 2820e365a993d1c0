package frame

import (
	"fmt"

	"shotdetect/internal/services"
)

// Channels is the number of interleaved samples per RGB pixel.
const Channels = 3

// Frame is one decoded picture from a frame source.
type Frame struct {
	// Index is the 1-based decode order position.
	Index  int
	Width  int
	Height int
	// RGB holds packed 8-bit pixels, row-major with stride 3*Width.
	RGB []byte
	// YUV holds planar 4:4:4 samples: the Y plane, then Cb, then Cr. Nil when
	// background-colour averaging is not requested.
	YUV []byte
}

// NewFrame allocates a frame with buffers sized for width x height.
func NewFrame(width, height int, withYUV bool) *Frame {
	f := &Frame{}
	f.Resize(width, height, withYUV)
	return f
}

// Resize reallocates the pixel buffers when the dimensions change. Existing
// capacity is reused when possible.
func (f *Frame) Resize(width, height int, withYUV bool) {
	f.Width = width
	f.Height = height
	n := width * height * Channels
	if n < 0 {
		n = 0
	}
	f.RGB = grow(f.RGB, n)
	if withYUV {
		f.YUV = grow(f.YUV, n)
	} else {
		f.YUV = nil
	}
}

// Pixels returns the pixel count.
func (f *Frame) Pixels() int {
	return f.Width * f.Height
}

// Stride returns the byte length of one RGB row.
func (f *Frame) Stride() int {
	return f.Width * Channels
}

// Validate reports a DimensionError when the frame has no area or its
// buffers are shorter than its dimensions require.
func (f *Frame) Validate() error {
	if f == nil {
		return &DimensionError{Reason: "frame is nil"}
	}
	if f.Width <= 0 || f.Height <= 0 {
		return &DimensionError{Width: f.Width, Height: f.Height, Reason: "width and height must be positive"}
	}
	if len(f.RGB) < f.Pixels()*Channels {
		return &DimensionError{
			Width:  f.Width,
			Height: f.Height,
			Reason: fmt.Sprintf("rgb buffer holds %d bytes, need %d", len(f.RGB), f.Pixels()*Channels),
		}
	}
	if f.YUV != nil && len(f.YUV) < f.Pixels()*Channels {
		return &DimensionError{
			Width:  f.Width,
			Height: f.Height,
			Reason: fmt.Sprintf("yuv buffer holds %d bytes, need %d", len(f.YUV), f.Pixels()*Channels),
		}
	}
	return nil
}

// DimensionError reports frames whose dimensions make scoring undefined.
type DimensionError struct {
	Width, Height         int
	PrevWidth, PrevHeight int
	Reason                string
}

func (e *DimensionError) Error() string {
	if e.PrevWidth != 0 || e.PrevHeight != 0 {
		return fmt.Sprintf("frame dimensions differ: current %dx%d, previous %dx%d",
			e.Width, e.Height, e.PrevWidth, e.PrevHeight)
	}
	return fmt.Sprintf("invalid frame dimensions %dx%d: %s", e.Width, e.Height, e.Reason)
}

// Is lets errors.Is match the shared dimension marker.
func (e *DimensionError) Is(target error) bool {
	return target == services.ErrDimension
}

func grow(buf []byte, n int) []byte {
	if cap(buf) >= n {
		return buf[:n]
	}
	return make([]byte, n)
}
