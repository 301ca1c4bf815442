package dsp

import "math"

// Krumhansl-Kessler key profiles, starting at the tonic.
var (
	majorProfile = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// Chroma folds a magnitude spectrum into 12 pitch classes, C first. Bins
// below 27.5 Hz or above 5 kHz are ignored.
func Chroma(mags []float64, sampleRate int) [12]float64 {
	var c [12]float64
	size := len(mags) * 2
	for i, m := range mags {
		f := BinFrequency(i, size, sampleRate)
		if f < 27.5 || f > 5000 {
			continue
		}
		midi := int(math.Round(69 + 12*math.Log2(f/440)))
		c[((midi%12)+12)%12] += m * m
	}
	return c
}

// EstimateKey correlates chroma against every rotation of the major and
// minor profiles and returns the best tonic, "major" or "minor", and the
// correlation as confidence.
func EstimateKey(chroma [12]float64) (key, scale string, confidence float64) {
	best := math.Inf(-1)
	for tonic := 0; tonic < 12; tonic++ {
		for _, p := range []struct {
			name    string
			profile [12]float64
		}{{"major", majorProfile}, {"minor", minorProfile}} {
			var rotated [12]float64
			for i := range rotated {
				rotated[(i+tonic)%12] = p.profile[i]
			}
			r := pearson(chroma[:], rotated[:])
			if r > best {
				best, key, scale = r, noteNames[tonic], p.name
			}
		}
	}
	if best <= 0 || math.IsNaN(best) || math.IsInf(best, 0) {
		return "", "", 0
	}
	return key, scale, clamp(best, 0, 1)
}

func pearson(x, y []float64) float64 {
	n := float64(len(x))
	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= n
	my /= n
	var sxy, sxx, syy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0
	}
	return sxy / math.Sqrt(sxx*syy)
}
