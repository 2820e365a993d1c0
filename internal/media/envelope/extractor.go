package envelope

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"shotdetect/internal/services"
)

// DefaultScaleDivisor reduces 16-bit amplitudes for display.
const DefaultScaleDivisor = 100

// Sample is one envelope window. Amplitudes are already divided by the
// extractor's scale divisor.
type Sample struct {
	Window int `json:"window" cbor:"1,keyasint"`
	Min    int `json:"min" cbor:"2,keyasint"`
	Max    int `json:"max" cbor:"3,keyasint"`
}

// Config describes the audio stream and windowing.
type Config struct {
	SampleRate   int
	Channels     int
	WindowMs     int
	ScaleDivisor int
}

// Extractor turns interleaved samples into envelope windows.
type Extractor struct {
	cfg    Config
	window int

	minLeft, maxLeft   int
	minRight, maxRight int
	count              int
	next               int
	total              int64

	scratch []int16 // Decode buffer, reused across packets
}

// NewExtractor validates cfg and returns an extractor with empty accumulators.
// The window size in sample frames is SampleRate*WindowMs/1000.
func NewExtractor(cfg Config) (*Extractor, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("envelope: sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.Channels <= 0 {
		return nil, fmt.Errorf("envelope: channel count must be positive, got %d", cfg.Channels)
	}
	if cfg.WindowMs <= 0 {
		return nil, fmt.Errorf("envelope: window must be positive, got %dms", cfg.WindowMs)
	}
	if cfg.ScaleDivisor <= 0 {
		cfg.ScaleDivisor = DefaultScaleDivisor
	}
	window := int(int64(cfg.SampleRate) * int64(cfg.WindowMs) / 1000)
	if window < 1 {
		window = 1
	}
	e := &Extractor{cfg: cfg, window: window}
	e.reset()
	return e, nil
}

// WindowSize returns the number of sample frames per envelope window.
func (e *Extractor) WindowSize() int {
	return e.window
}

// SampleFrames returns the number of sample frames consumed so far.
func (e *Extractor) SampleFrames() int64 {
	return e.total
}

// Windows returns the number of windows emitted so far.
func (e *Extractor) Windows() int {
	return e.next
}

// Pending returns the sample frames accumulated toward the next window.
func (e *Extractor) Pending() int {
	return e.count
}

// Write consumes interleaved samples. A trailing partial sample frame is an
// ErrAudioDecode; the frames before it are still consumed. Errors returned by
// emit stop processing and are returned unchanged.
func (e *Extractor) Write(samples []int16, emit func(Sample) error) error {
	ch := e.cfg.Channels
	whole := len(samples) - len(samples)%ch
	for i := 0; i < whole; i += ch {
		left := int(samples[i])
		right := left
		if ch >= 2 {
			right = int(samples[i+1])
		}
		if err := e.push(left, right, emit); err != nil {
			return err
		}
	}
	if whole != len(samples) {
		return services.Wrap(services.ErrAudioDecode, "audio", "write",
			fmt.Sprintf("%d trailing samples do not form a %d-channel frame", len(samples)-whole, ch), nil)
	}
	return nil
}

// Decode consumes a packet of little-endian signed 16-bit interleaved PCM.
// Malformed trailing bytes are reported as ErrAudioDecode and dropped; the
// extractor state stays valid for the next packet.
func (e *Extractor) Decode(packet []byte, emit func(Sample) error) error {
	frameBytes := 2 * e.cfg.Channels
	whole := len(packet) - len(packet)%frameBytes
	e.scratch = e.scratch[:0]
	for off := 0; off < whole; off += 2 {
		e.scratch = append(e.scratch, int16(binary.LittleEndian.Uint16(packet[off:])))
	}
	if err := e.Write(e.scratch, emit); err != nil {
		return err
	}
	if whole != len(packet) {
		return services.Wrap(services.ErrAudioDecode, "audio", "decode",
			fmt.Sprintf("dropped %d bytes of a partial sample frame", len(packet)-whole), nil)
	}
	return nil
}

func (e *Extractor) push(left, right int, emit func(Sample) error) error {
	e.total++
	e.minLeft = min(e.minLeft, left)
	e.maxLeft = max(e.maxLeft, left)
	e.minRight = min(e.minRight, right)
	e.maxRight = max(e.maxRight, right)

	e.count++
	if e.count < e.window {
		return nil
	}
	sample := Sample{
		Window: e.next,
		Min:    max(e.minLeft, e.minRight) / e.cfg.ScaleDivisor,
		Max:    min(e.maxLeft, e.maxRight) / e.cfg.ScaleDivisor,
	}
	e.next++
	e.reset()
	if emit == nil {
		return nil
	}
	return emit(sample)
}

func (e *Extractor) reset() {
	e.minLeft, e.minRight = math.MaxInt16, math.MaxInt16
	e.maxLeft, e.maxRight = math.MinInt16, math.MinInt16
	e.count = 0
}

// IsDecodeError reports whether err only affected a single packet.
func IsDecodeError(err error) bool {
	return errors.Is(err, services.ErrAudioDecode)
}
