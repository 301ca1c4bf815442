package dsp

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/MeKo-Christian/algo-fft"
)

const (
	MinFFTSize = 32
	MaxFFTSize = 32768
)

// Analyzer computes smoothed magnitude spectra of the most recent samples.
// It holds its FFT plan and scratch buffers and is not safe for concurrent
// use.
type Analyzer struct {
	size       int
	plan       *algofft.Plan[complex128]
	window     []float64
	windowGain float64
	in, out    []complex128

	smoothing float64
	prev      []float64
}

// NewAnalyzer builds an analyzer for a power-of-two FFT size.
func NewAnalyzer(size int, smoothing float64) (*Analyzer, error) {
	if size < MinFFTSize || size > MaxFFTSize || size&(size-1) != 0 {
		return nil, fmt.Errorf("fft size %d must be a power of two in [%d, %d]", size, MinFFTSize, MaxFFTSize)
	}

	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("init fft plan: %w", err)
	}

	win := Hann(size)
	sum := 0.0
	for _, w := range win {
		sum += w
	}

	return &Analyzer{
		size:       size,
		plan:       plan,
		window:     win,
		windowGain: sum,
		in:         make([]complex128, size),
		out:        make([]complex128, size),
		smoothing:  clamp(smoothing, 0, 0.99),
		prev:       make([]float64, size/2),
	}, nil
}

func (a *Analyzer) Size() int { return a.size }

// SetSmoothing changes the time smoothing factor without rebuilding the plan.
func (a *Analyzer) SetSmoothing(s float64) { a.smoothing = clamp(s, 0, 0.99) }

// Magnitudes returns size/2 bin magnitudes of the last size samples. A
// full-scale sine centred on a bin reads close to 1. Shorter input is
// zero-padded at the front.
func (a *Analyzer) Magnitudes(samples []float64) ([]float64, error) {
	offset := len(samples) - a.size
	for i := 0; i < a.size; i++ {
		s := 0.0
		if j := offset + i; j >= 0 {
			s = samples[j]
		}
		a.in[i] = complex(s*a.window[i], 0)
	}

	if err := a.plan.Forward(a.out, a.in); err != nil {
		return nil, fmt.Errorf("fft forward: %w", err)
	}

	mags := make([]float64, a.size/2)
	for i := range mags {
		m := 2 * cmplx.Abs(a.out[i]) / a.windowGain
		m = a.smoothing*a.prev[i] + (1-a.smoothing)*m
		a.prev[i] = m
		mags[i] = m
	}
	return mags, nil
}

// BinFrequency returns the centre frequency of bin i.
func BinFrequency(i, size, sampleRate int) float64 {
	return float64(i) * float64(sampleRate) / float64(size)
}

// BandEnergy returns the mean magnitude of bins whose centre lies in
// [lo, hi) Hz. mags holds size/2 bins.
func BandEnergy(mags []float64, sampleRate int, lo, hi float64) float64 {
	size := len(mags) * 2
	sum, n := 0.0, 0
	for i, m := range mags {
		f := BinFrequency(i, size, sampleRate)
		if f >= lo && f < hi {
			sum += m
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// PeakBin returns the index of the largest magnitude.
func PeakBin(mags []float64) int {
	best, idx := math.Inf(-1), 0
	for i, m := range mags {
		if m > best {
			best, idx = m, i
		}
	}
	return idx
}
