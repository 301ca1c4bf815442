package dsp

import (
	"math"
	"sort"
)

const (
	beatHistory     = 43
	minBeatInterval = 0.25
	maxIntervals    = 16
	minOnsetEnergy  = 1e-6
)

// BeatTracker detects onsets in a stream of window energies and estimates
// tempo from the spacing between them.
type BeatTracker struct {
	sensitivity float64
	history     []float64
	lastOnset   float64
	hasOnset    bool
	intervals   []float64
}

// NewBeatTracker creates a tracker. sensitivity in [0, 1]; higher values
// need a smaller jump above the recent average to count as an onset.
func NewBeatTracker(sensitivity float64) *BeatTracker {
	return &BeatTracker{sensitivity: clamp(sensitivity, 0, 1)}
}

func (b *BeatTracker) SetSensitivity(s float64) { b.sensitivity = clamp(s, 0, 1) }

// threshold maps sensitivity to a multiple of the average energy: 2.5 at 0
// down to 1.1 at 1.
func (b *BeatTracker) threshold() float64 {
	return 2.5 - 1.4*b.sensitivity
}

// Process feeds the energy of one analysis window ending at time t seconds
// and reports whether it starts a beat.
func (b *BeatTracker) Process(energy, t float64) bool {
	avg := 0.0
	for _, e := range b.history {
		avg += e
	}
	if len(b.history) > 0 {
		avg /= float64(len(b.history))
	}

	b.history = append(b.history, energy)
	if len(b.history) > beatHistory {
		b.history = b.history[1:]
	}

	if len(b.history) < 2 || energy < minOnsetEnergy || energy <= avg*b.threshold() {
		return false
	}
	if b.hasOnset && t-b.lastOnset < minBeatInterval {
		return false
	}

	if b.hasOnset {
		b.intervals = append(b.intervals, t-b.lastOnset)
		if len(b.intervals) > maxIntervals {
			b.intervals = b.intervals[1:]
		}
	}
	b.lastOnset = t
	b.hasOnset = true
	return true
}

// Tempo returns the median inter-onset tempo folded into [60, 200) BPM
// and a confidence from the spread of the intervals.
func (b *BeatTracker) Tempo() (bpm, confidence float64) {
	if len(b.intervals) < 2 {
		return 0, 0
	}
	sorted := append([]float64(nil), b.intervals...)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]
	if median <= 0 {
		return 0, 0
	}

	bpm = 60 / median
	for bpm < 60 {
		bpm *= 2
	}
	for bpm >= 200 {
		bpm /= 2
	}

	mean, variance := 0.0, 0.0
	for _, iv := range b.intervals {
		mean += iv
	}
	mean /= float64(len(b.intervals))
	for _, iv := range b.intervals {
		variance += (iv - mean) * (iv - mean)
	}
	cv := math.Sqrt(variance/float64(len(b.intervals))) / mean
	return bpm, clamp(1-cv, 0, 1)
}

// Reset forgets all history.
func (b *BeatTracker) Reset() {
	b.history = nil
	b.intervals = nil
	b.hasOnset = false
	b.lastOnset = 0
}
