package envelope

import (
	"encoding/binary"
	"errors"
	"testing"

	"shotdetect/internal/services"
)

func collect(out *[]Sample) func(Sample) error {
	return func(s Sample) error {
		*out = append(*out, s)
		return nil
	}
}

func TestConstantAmplitudeEmitsEveryWindow(t *testing.T) {
	ext, err := NewExtractor(Config{SampleRate: 8000, Channels: 1, WindowMs: 125, ScaleDivisor: 100})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	if ext.WindowSize() != 1000 {
		t.Fatalf("window size = %d, want 1000", ext.WindowSize())
	}

	samples := make([]int16, 8000)
	for i := range samples {
		samples[i] = 1000
	}
	var got []Sample
	if err := ext.Write(samples, collect(&got)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(got) != 8 {
		t.Fatalf("expected 8 windows for one second at 125ms, got %d", len(got))
	}
	for i, s := range got {
		if s.Window != i {
			t.Fatalf("window %d has index %d", i, s.Window)
		}
		if s.Min != 10 || s.Max != 10 {
			t.Fatalf("window %d = %+v, want min=max=10", i, s)
		}
	}
	if ext.Pending() != 0 {
		t.Fatalf("pending = %d, want 0", ext.Pending())
	}
	if ext.SampleFrames() != 8000 {
		t.Fatalf("sample frames = %d, want 8000", ext.SampleFrames())
	}
}

func TestStereoCombinesMaxOfMinimaAndMinOfMaxima(t *testing.T) {
	ext, err := NewExtractor(Config{SampleRate: 4, Channels: 2, WindowMs: 1000, ScaleDivisor: 1})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	// left ranges [-300, 500], right ranges [-100, 200]
	samples := []int16{
		-300, -100,
		500, 200,
		0, 50,
		10, 0,
	}
	var got []Sample
	if err := ext.Write(samples, collect(&got)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one window, got %d", len(got))
	}
	if got[0].Min != -100 {
		t.Fatalf("min = %d, want max(-300,-100) = -100", got[0].Min)
	}
	if got[0].Max != 200 {
		t.Fatalf("max = %d, want min(500,200) = 200", got[0].Max)
	}
}

func TestMonoMirrorsLeftChannel(t *testing.T) {
	ext, err := NewExtractor(Config{SampleRate: 3, Channels: 1, WindowMs: 1000, ScaleDivisor: 1})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	var got []Sample
	if err := ext.Write([]int16{-7, 3, 9}, collect(&got)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(got) != 1 || got[0].Min != -7 || got[0].Max != 9 {
		t.Fatalf("unexpected windows: %+v", got)
	}
}

func TestAccumulatorsResetBetweenWindows(t *testing.T) {
	ext, err := NewExtractor(Config{SampleRate: 2, Channels: 1, WindowMs: 1000, ScaleDivisor: 1})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	var got []Sample
	if err := ext.Write([]int16{-1000, 1000, 5, 6}, collect(&got)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(got))
	}
	if got[1].Min != 5 || got[1].Max != 6 {
		t.Fatalf("second window leaked state from the first: %+v", got[1])
	}
}

func TestDecodePartialPacketIsLocalized(t *testing.T) {
	ext, err := NewExtractor(Config{SampleRate: 2, Channels: 2, WindowMs: 1000, ScaleDivisor: 1})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	packet := make([]byte, 0, 16)
	for _, v := range []int16{100, 200, 300, 400} {
		packet = binary.LittleEndian.AppendUint16(packet, uint16(v))
	}
	packet = append(packet, 0x01, 0x02, 0x03) // partial stereo frame

	var got []Sample
	err = ext.Decode(packet, collect(&got))
	if err == nil {
		t.Fatal("expected decode error for trailing bytes")
	}
	if !errors.Is(err, services.ErrAudioDecode) || !IsDecodeError(err) {
		t.Fatalf("expected ErrAudioDecode, got %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the complete frames to still emit one window, got %d", len(got))
	}
	if got[0].Min != 200 || got[0].Max != 300 {
		t.Fatalf("unexpected window: %+v", got[0])
	}

	// The next packet continues normally.
	next := binary.LittleEndian.AppendUint16(nil, 0xFFFB) // -5
	next = binary.LittleEndian.AppendUint16(next, 0xFFFA) // -6
	if err := ext.Decode(next, collect(&got)); err != nil {
		t.Fatalf("Decode after error: %v", err)
	}
	if ext.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", ext.Pending())
	}
}

func TestWriteTrailingSamplesIsDecodeError(t *testing.T) {
	ext, err := NewExtractor(Config{SampleRate: 100, Channels: 2, WindowMs: 1000})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	if err := ext.Write([]int16{1, 2, 3}, nil); !errors.Is(err, services.ErrAudioDecode) {
		t.Fatalf("expected ErrAudioDecode, got %v", err)
	}
	if ext.SampleFrames() != 1 {
		t.Fatalf("sample frames = %d, want 1", ext.SampleFrames())
	}
	if ext.cfg.ScaleDivisor != DefaultScaleDivisor {
		t.Fatalf("scale divisor = %d, want default", ext.cfg.ScaleDivisor)
	}
}

func TestEmitErrorStopsProcessing(t *testing.T) {
	ext, err := NewExtractor(Config{SampleRate: 1, Channels: 1, WindowMs: 1000, ScaleDivisor: 1})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	boom := errors.New("sink closed")
	calls := 0
	err = ext.Write([]int16{1, 2, 3}, func(Sample) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("emit called %d times, want 1", calls)
	}
}

func TestNewExtractorValidation(t *testing.T) {
	tests := []Config{
		{SampleRate: 0, Channels: 1, WindowMs: 10},
		{SampleRate: 8000, Channels: 0, WindowMs: 10},
		{SampleRate: 8000, Channels: 1, WindowMs: 0},
	}
	for _, cfg := range tests {
		if _, err := NewExtractor(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}

	ext, err := NewExtractor(Config{SampleRate: 100, Channels: 1, WindowMs: 1})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	if ext.WindowSize() != 1 {
		t.Fatalf("window size = %d, want clamp to 1", ext.WindowSize())
	}
}

func TestDecodeNegativeSamplesMatchesWrite(t *testing.T) {
	cfg := Config{SampleRate: 4, Channels: 2, WindowMs: 1000, ScaleDivisor: 1}
	samples := []int16{-5, -6, 7, -8, -300, 12, 40, 41}

	viaWrite, err := NewExtractor(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var want []Sample
	if err := viaWrite.Write(samples, collect(&want)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var packet []byte
	for _, v := range samples {
		packet = binary.LittleEndian.AppendUint16(packet, uint16(v))
	}
	viaDecode, err := NewExtractor(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var got []Sample
	if err := viaDecode.Decode(packet, collect(&got)); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(got) != 1 || len(want) != 1 || got[0] != want[0] {
		t.Fatalf("Decode = %+v, Write = %+v", got, want)
	}
	// max(min left, min right) = max(-300, -8); min(max left, max right) = min(40, 41)
	if got[0].Min != -8 || got[0].Max != 40 {
		t.Fatalf("window = %+v, want min -8 max 40", got[0])
	}
}
