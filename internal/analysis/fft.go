package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Spectrum is a one-sided power spectrum.
type Spectrum struct {
	Freqs []float64
	Power []float64
}

// PowerSpectrum removes the mean from data, applies a Hann window and
// returns the magnitude of bins 0..n/2. sampleRate is in Hz.
func PowerSpectrum(data []float64, sampleRate float64) Spectrum {
	n := len(data)
	if n < 2 || sampleRate <= 0 {
		return Spectrum{}
	}

	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(n)

	w := window.Hann(n)
	x := make([]float64, n)
	for i, v := range data {
		x[i] = (v - mean) * w[i]
	}

	bins := fft.FFTReal(x)
	half := n/2 + 1
	ps := Spectrum{
		Freqs: make([]float64, half),
		Power: make([]float64, half),
	}
	for i := 0; i < half; i++ {
		ps.Freqs[i] = float64(i) * sampleRate / float64(n)
		ps.Power[i] = cmplx.Abs(bins[i])
	}
	return ps
}

// DominantFrequency returns the frequency and power of the strongest bin
// above DC. An empty spectrum yields zeros.
func DominantFrequency(s Spectrum) (float64, float64) {
	best := 0
	for i := 1; i < len(s.Power); i++ {
		if best == 0 || s.Power[i] > s.Power[best] {
			best = i
		}
	}
	if best == 0 {
		return 0, 0
	}
	return s.Freqs[best], s.Power[best]
}
