package frame

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minBandRows keeps bands large enough that goroutine overhead stays small
// relative to the pixel work.
const minBandRows = 16

// ChannelAverages holds the mean value of each of the three channels.
type ChannelAverages struct {
	C1 float64 `json:"c1" cbor:"1,keyasint"`
	C2 float64 `json:"c2" cbor:"2,keyasint"`
	C3 float64 `json:"c3" cbor:"3,keyasint"`
}

// Score is the result of comparing a frame against its predecessor.
type Score struct {
	// AbsDiffSum is the sum of absolute per-channel differences over all pixels.
	AbsDiffSum float64
	// Normalized is AbsDiffSum divided by the pixel count.
	Normalized float64
	Pixels     int
	// Averages holds the current frame's RGB channel means when requested.
	Averages *ChannelAverages
}

// Scorer computes frame differences as a parallel reduction over row bands.
// A Scorer holds no per-comparison state and is safe for concurrent use.
type Scorer struct {
	parallelism int
}

// NewScorer returns a scorer that splits each comparison into at most
// parallelism bands. Values below one use runtime.NumCPU.
func NewScorer(parallelism int) *Scorer {
	if parallelism < 1 {
		parallelism = runtime.NumCPU()
	}
	return &Scorer{parallelism: parallelism}
}

// Parallelism returns the configured band limit.
func (s *Scorer) Parallelism() int {
	return s.parallelism
}

type partial struct {
	diff uint64
	sums [Channels]uint64
}

// Score compares cur against prev. Both frames must have positive and equal
// dimensions, otherwise a *DimensionError is returned and nothing is scored.
func (s *Scorer) Score(cur, prev *Frame, withAverages bool) (Score, error) {
	if err := cur.Validate(); err != nil {
		return Score{}, err
	}
	if err := prev.Validate(); err != nil {
		return Score{}, err
	}
	if cur.Width != prev.Width || cur.Height != prev.Height {
		return Score{}, &DimensionError{
			Width:      cur.Width,
			Height:     cur.Height,
			PrevWidth:  prev.Width,
			PrevHeight: prev.Height,
		}
	}

	bands := s.bands(cur.Height)
	partials := make([]partial, len(bands))
	if len(bands) == 1 {
		partials[0] = diffRows(cur, prev, bands[0][0], bands[0][1], withAverages)
	} else {
		var g errgroup.Group
		g.SetLimit(s.parallelism)
		for i, band := range bands {
			g.Go(func() error {
				partials[i] = diffRows(cur, prev, band[0], band[1], withAverages)
				return nil
			})
		}
		_ = g.Wait()
	}

	var total partial
	for _, p := range partials {
		total.diff += p.diff
		for c := range total.sums {
			total.sums[c] += p.sums[c]
		}
	}

	pixels := cur.Pixels()
	score := Score{
		AbsDiffSum: float64(total.diff),
		Normalized: float64(total.diff) / float64(pixels),
		Pixels:     pixels,
	}
	if withAverages {
		score.Averages = averagesOf(total.sums, pixels)
	}
	return score, nil
}

// ColorAverages returns the per-plane means of the frame's YUV representation.
func (s *Scorer) ColorAverages(f *Frame) (ChannelAverages, error) {
	if err := f.Validate(); err != nil {
		return ChannelAverages{}, err
	}
	if f.YUV == nil {
		return ChannelAverages{}, fmt.Errorf("frame %d has no yuv representation", f.Index)
	}

	bands := s.bands(f.Height)
	partials := make([]partial, len(bands))
	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for i, band := range bands {
		g.Go(func() error {
			partials[i] = planeRows(f, band[0], band[1])
			return nil
		})
	}
	_ = g.Wait()

	var sums [Channels]uint64
	for _, p := range partials {
		for c := range sums {
			sums[c] += p.sums[c]
		}
	}
	return *averagesOf(sums, f.Pixels()), nil
}

func (s *Scorer) bands(height int) [][2]int {
	count := s.parallelism
	if maxBands := height / minBandRows; count > maxBands {
		count = maxBands
	}
	if count < 1 {
		count = 1
	}
	bands := make([][2]int, 0, count)
	step := height / count
	start := 0
	for i := 0; i < count; i++ {
		end := start + step
		if i == count-1 {
			end = height
		}
		bands = append(bands, [2]int{start, end})
		start = end
	}
	return bands
}

func diffRows(cur, prev *Frame, startRow, endRow int, withAverages bool) partial {
	var p partial
	stride := cur.Stride()
	for y := startRow; y < endRow; y++ {
		row := cur.RGB[y*stride : (y+1)*stride]
		prevRow := prev.RGB[y*stride : (y+1)*stride]
		for x, v := range row {
			d := int(v) - int(prevRow[x])
			if d < 0 {
				d = -d
			}
			p.diff += uint64(d)
		}
		if withAverages {
			for x := 0; x+Channels <= len(row); x += Channels {
				p.sums[0] += uint64(row[x])
				p.sums[1] += uint64(row[x+1])
				p.sums[2] += uint64(row[x+2])
			}
		}
	}
	return p
}

func planeRows(f *Frame, startRow, endRow int) partial {
	var p partial
	plane := f.Pixels()
	for c := 0; c < Channels; c++ {
		base := c * plane
		for y := startRow; y < endRow; y++ {
			for _, v := range f.YUV[base+y*f.Width : base+(y+1)*f.Width] {
				p.sums[c] += uint64(v)
			}
		}
	}
	return p
}

func averagesOf(sums [Channels]uint64, pixels int) *ChannelAverages {
	n := float64(pixels)
	return &ChannelAverages{
		C1: float64(sums[0]) / n,
		C2: float64(sums[1]) / n,
		C3: float64(sums[2]) / n,
	}
}
