package main

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"
	"sync"

	"github.com/mjibson/go-dsp/fft"
)

// VibrationWindow keeps the most recent accelerometer magnitudes and turns
// them into a frequency spectrum. Tapping or bumping the sensor shows up as
// a peak above the gravity component in bin 0.
type VibrationWindow struct {
	mu         sync.Mutex
	samples    []float64
	writeIndex int
	sampleRate float64
}

func NewVibrationWindow(size int, sampleRate float64) *VibrationWindow {
	return &VibrationWindow{
		samples:    make([]float64, size),
		sampleRate: sampleRate,
	}
}

func (w *VibrationWindow) Add(x, y, z float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.writeIndex%len(w.samples)] = math.Sqrt(x*x + y*y + z*z)
	w.writeIndex++
}

// Spectrum returns the magnitude of the first half of the FFT of the
// window, oldest sample first. It is nil until the window has filled.
func (w *VibrationWindow) Spectrum() []float64 {
	w.mu.Lock()
	n := len(w.samples)
	if w.writeIndex < n {
		w.mu.Unlock()
		return nil
	}
	input := make([]complex128, n)
	var mean float64
	for i := 0; i < n; i++ {
		mean += w.samples[(w.writeIndex+i)%n]
	}
	mean /= float64(n)
	for i := 0; i < n; i++ {
		// Hamming window, with the mean removed so gravity does not swamp
		// the low bins.
		window := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		input[i] = complex((w.samples[(w.writeIndex+i)%n]-mean)*window, 0)
	}
	w.mu.Unlock()

	output := fft.FFT(input)
	bins := make([]float64, n/2)
	for i := range bins {
		bins[i] = cmplx.Abs(output[i])
	}
	return bins
}

// Peak returns the frequency in Hz of the strongest non-DC bin.
func (w *VibrationWindow) Peak(bins []float64) float64 {
	best := 0
	for i := 1; i < len(bins); i++ {
		if best == 0 || bins[i] > bins[best] {
			best = i
		}
	}
	return float64(best) * w.sampleRate / float64(2*len(bins))
}

// Bars renders bins as one line per band, each scaled to width.
func Bars(bins []float64, bands, width int) string {
	if len(bins) == 0 || bands == 0 {
		return ""
	}
	per := (len(bins) + bands - 1) / bands
	levels := make([]float64, 0, bands)
	var top float64
	for i := 0; i < len(bins); i += per {
		var sum float64
		for _, b := range bins[i:min(i+per, len(bins))] {
			sum += b
		}
		levels = append(levels, sum)
		top = math.Max(top, sum)
	}

	var sb strings.Builder
	for i, l := range levels {
		n := 0
		if top > 0 {
			n = int(l / top * float64(width))
		}
		fmt.Fprintf(&sb, "%3d %s\n", i, strings.Repeat("#", n))
	}
	return sb.String()
}
