package dsp

import (
	"fmt"
	"math"
)

// silenceRMS is the level below which no pitch is reported.
const silenceRMS = 1e-4

// DetectPitch estimates the fundamental frequency of samples by normalised
// autocorrelation over periods between 1/maxFreq and 1/minFreq. It returns
// 0 Hz with zero confidence for silence or when no period fits.
func DetectPitch(samples []float64, sampleRate int, minFreq, maxFreq float64) (freq, confidence float64) {
	if sampleRate <= 0 || minFreq <= 0 || maxFreq <= minFreq || RMS(samples) < silenceRMS {
		return 0, 0
	}

	minLag := int(math.Floor(float64(sampleRate) / maxFreq))
	maxLag := int(math.Ceil(float64(sampleRate) / minFreq))
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(samples)/2 {
		maxLag = len(samples)/2 - 1
	}
	if maxLag <= minLag {
		return 0, 0
	}

	nacf := make([]float64, maxLag+2)
	best := 0.0
	for lag := max(1, minLag-1); lag <= maxLag+1; lag++ {
		nacf[lag] = normalisedCorrelation(samples, lag)
		if lag >= minLag && lag <= maxLag && nacf[lag] > best {
			best = nacf[lag]
		}
	}
	if best <= 0 {
		return 0, 0
	}

	// The first local peak close to the best avoids octave errors from
	// multiples of the period.
	pick := -1
	for lag := minLag; lag <= maxLag; lag++ {
		if nacf[lag] >= 0.9*best && nacf[lag] > nacf[lag-1] && nacf[lag] >= nacf[lag+1] {
			pick = lag
			break
		}
	}
	if pick < 0 {
		return 0, 0
	}

	period := float64(pick)
	if pick > minLag {
		y0, y1, y2 := nacf[pick-1], nacf[pick], nacf[pick+1]
		if d := y0 - 2*y1 + y2; d != 0 {
			period += 0.5 * (y0 - y2) / d
		}
	}

	return float64(sampleRate) / period, clamp(nacf[pick], 0, 1)
}

func normalisedCorrelation(x []float64, lag int) float64 {
	var sum, e0, e1 float64
	for i := 0; i+lag < len(x); i++ {
		sum += x[i] * x[i+lag]
		e0 += x[i] * x[i]
		e1 += x[i+lag] * x[i+lag]
	}
	if e0 == 0 || e1 == 0 {
		return 0
	}
	return sum / math.Sqrt(e0*e1)
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName returns the nearest equal-tempered note, e.g. "A4" for 440 Hz.
func NoteName(freq float64) string {
	if freq <= 0 {
		return ""
	}
	midi := int(math.Round(69 + 12*math.Log2(freq/440)))
	if midi < 0 {
		return ""
	}
	return fmt.Sprintf("%s%d", noteNames[midi%12], midi/12-1)
}
