// Package dsp provides the signal analysis used by the audio nodes:
// windowed FFT magnitude spectra, band energies, autocorrelation pitch
// detection, energy-based onset and tempo tracking, and chroma key
// estimation.
//
// All functions operate on mono float64 samples in [-1, 1].
package dsp
