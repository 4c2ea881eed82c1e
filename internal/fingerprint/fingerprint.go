// Package fingerprint implements the acoustic fingerprinting core shared
// by the Feature Extractor (which computes a Fingerprint per segment) and
// the Local Matcher (which looks one up in the in-memory Index). The
// spectrogram/peak/anchor-target-hash pipeline is Shazam-style, adapted
// from the teacher's file-based audio fingerprinter to operate directly
// on decoded PCM (spec.md §4.3, §4.4).
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"math/cmplx"
	"sort"
)

// Config tunes the spectrogram and peak-picking pipeline.
type Config struct {
	SampleRate     int
	FFTSize        int
	HopSize        int
	FreqBands      int
	PeaksPerBand   int
	TargetZoneSize int
}

// DefaultConfig mirrors the teacher's fingerprinting defaults: a low
// analysis sample rate is sufficient for recognition and keeps the FFT
// cheap enough to run per-segment on every station.
func DefaultConfig() Config {
	return Config{
		SampleRate:     8000,
		FFTSize:        1024,
		HopSize:        256,
		FreqBands:      6,
		PeaksPerBand:   3,
		TargetZoneSize: 5,
	}
}

// Fingerprint is the acoustic descriptor computed for one segment.
type Fingerprint struct {
	Hash       string   // primary hash; its short digest is stored as Fingerprint.FpHash
	Hashes     []uint32 // per anchor-target pair, used for fuzzy matching
	Timestamps []int    // frame index of each hash's anchor
	Duration   float64
	Peaks      []Peak
}

// Peak is a local maximum in one analysis frame's magnitude spectrum.
type Peak struct {
	TimeFrame int
	FreqBin   int
	Magnitude float64
}

// Fingerprinter computes a Fingerprint from decoded mono samples. It
// holds no state beyond its Config, so one instance is shared across all
// stations' Feature Extractor goroutines.
type Fingerprinter struct {
	config Config
}

func New() *Fingerprinter {
	return &Fingerprinter{config: DefaultConfig()}
}

func NewWithConfig(config Config) *Fingerprinter {
	return &Fingerprinter{config: config}
}

// Generate computes a Fingerprint from samples already decoded at the
// analysis sample rate (the caller, typically the Feature Extractor,
// resamples from the Puller's 44.1kHz canonical PCM down to
// config.SampleRate before calling this).
func (f *Fingerprinter) Generate(samples []float64) (*Fingerprint, error) {
	if len(samples) < f.config.FFTSize {
		return nil, errTooShort
	}

	spectrogram := f.computeSpectrogram(samples)
	peaks := f.findPeaks(spectrogram)
	if len(peaks) < 2 {
		return nil, errNotEnoughPeaks
	}

	hashes, timestamps := f.generateHashes(peaks)
	if len(hashes) == 0 {
		return nil, errNoHashes
	}

	return &Fingerprint{
		Hash:       f.computePrimaryHash(hashes),
		Hashes:     hashes,
		Timestamps: timestamps,
		Duration:   float64(len(samples)) / float64(f.config.SampleRate),
		Peaks:      peaks,
	}, nil
}

// MagnitudeSpectrum computes a single frame's magnitude spectrum,
// windowing and padding/truncating samples to the configured FFT size.
// Used by the Feature Extractor's spectral-flatness discriminator, which
// needs a cheap single-frame spectrum rather than a full spectrogram.
func (f *Fingerprinter) MagnitudeSpectrum(samples []float64) []float64 {
	size := f.config.FFTSize
	frame := make([]float64, size)
	copy(frame, samples)

	window := hannWindow(size)
	windowed := make([]complex128, size)
	for i := range windowed {
		windowed[i] = complex(frame[i]*window[i], 0)
	}

	spectrum := fft(windowed)
	numBins := size / 2
	magnitudes := make([]float64, numBins)
	for i := 0; i < numBins; i++ {
		magnitudes[i] = cmplx.Abs(spectrum[i])
	}
	return magnitudes
}

// ConfigSampleRate returns the analysis sample rate this fingerprinter
// was configured with, so callers can resample PCM before calling
// Generate or MagnitudeSpectrum.
func (f *Fingerprinter) ConfigSampleRate() int {
	return f.config.SampleRate
}

func (f *Fingerprinter) computeSpectrogram(samples []float64) [][]float64 {
	numFrames := (len(samples) - f.config.FFTSize) / f.config.HopSize
	if numFrames <= 0 {
		numFrames = 1
	}

	spectrogram := make([][]float64, numFrames)
	hannWindow := hannWindow(f.config.FFTSize)

	for frame := 0; frame < numFrames; frame++ {
		startIdx := frame * f.config.HopSize
		endIdx := startIdx + f.config.FFTSize
		if endIdx > len(samples) {
			break
		}

		windowed := make([]complex128, f.config.FFTSize)
		for i := 0; i < f.config.FFTSize; i++ {
			windowed[i] = complex(samples[startIdx+i]*hannWindow[i], 0)
		}

		spectrum := fft(windowed)

		numBins := f.config.FFTSize / 2
		magnitudes := make([]float64, numBins)
		for i := 0; i < numBins; i++ {
			magnitudes[i] = cmplx.Abs(spectrum[i])
		}

		spectrogram[frame] = magnitudes
	}

	return spectrogram
}

func hannWindow(size int) []float64 {
	window := make([]float64, size)
	for i := 0; i < size; i++ {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}

// fft computes the Fast Fourier Transform via an iterative Cooley-Tukey
// radix-2 algorithm, padding non-power-of-2 inputs with zeros.
func fft(x []complex128) []complex128 {
	n := len(x)
	if n <= 1 {
		return x
	}

	if n&(n-1) != 0 {
		nextPow2 := 1
		for nextPow2 < n {
			nextPow2 <<= 1
		}
		padded := make([]complex128, nextPow2)
		copy(padded, x)
		x = padded
		n = nextPow2
	}

	result := make([]complex128, n)
	bits := int(math.Log2(float64(n)))
	for i := 0; i < n; i++ {
		result[reverseBits(i, bits)] = x[i]
	}

	for s := 1; s <= bits; s++ {
		m := 1 << s
		wm := cmplx.Exp(complex(0, -2*math.Pi/float64(m)))

		for k := 0; k < n; k += m {
			w := complex(1, 0)
			for j := 0; j < m/2; j++ {
				t := w * result[k+j+m/2]
				u := result[k+j]
				result[k+j] = u + t
				result[k+j+m/2] = u - t
				w *= wm
			}
		}
	}

	return result
}

func reverseBits(num, bits int) int {
	result := 0
	for i := 0; i < bits; i++ {
		result = (result << 1) | (num & 1)
		num >>= 1
	}
	return result
}

func (f *Fingerprinter) findPeaks(spectrogram [][]float64) []Peak {
	if len(spectrogram) == 0 {
		return nil
	}

	numBins := len(spectrogram[0])
	bandSize := numBins / f.config.FreqBands
	if bandSize < 1 {
		bandSize = 1
	}

	var peaks []Peak
	for frame := 0; frame < len(spectrogram); frame++ {
		magnitudes := spectrogram[frame]
		for band := 0; band < f.config.FreqBands; band++ {
			startBin := band * bandSize
			endBin := startBin + bandSize
			if endBin > numBins {
				endBin = numBins
			}
			peaks = append(peaks, f.findBandPeaks(magnitudes, startBin, endBin, frame)...)
		}
	}
	return peaks
}

func (f *Fingerprinter) findBandPeaks(magnitudes []float64, startBin, endBin, frame int) []Peak {
	type binMag struct {
		bin int
		mag float64
	}

	var candidates []binMag
	for bin := startBin + 1; bin < endBin-1; bin++ {
		if magnitudes[bin] > magnitudes[bin-1] && magnitudes[bin] > magnitudes[bin+1] {
			candidates = append(candidates, binMag{bin: bin, mag: magnitudes[bin]})
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].mag > candidates[j].mag })

	numPeaks := f.config.PeaksPerBand
	if len(candidates) < numPeaks {
		numPeaks = len(candidates)
	}

	peaks := make([]Peak, numPeaks)
	for i := 0; i < numPeaks; i++ {
		peaks[i] = Peak{TimeFrame: frame, FreqBin: candidates[i].bin, Magnitude: candidates[i].mag}
	}
	return peaks
}

// generateHashes builds anchor-target hash pairs: [anchor_freq:9][target_freq:9][delta_time:14].
func (f *Fingerprinter) generateHashes(peaks []Peak) ([]uint32, []int) {
	sorted := make([]Peak, len(peaks))
	copy(sorted, peaks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TimeFrame < sorted[j].TimeFrame })

	var hashes []uint32
	var timestamps []int

	for i, anchor := range sorted {
		for j := i + 1; j < len(sorted) && sorted[j].TimeFrame <= anchor.TimeFrame+f.config.TargetZoneSize; j++ {
			target := sorted[j]
			deltaTime := target.TimeFrame - anchor.TimeFrame
			if deltaTime > 0 {
				hash := (uint32(anchor.FreqBin&0x1FF) << 23) |
					(uint32(target.FreqBin&0x1FF) << 14) |
					uint32(deltaTime&0x3FFF)
				hashes = append(hashes, hash)
				timestamps = append(timestamps, anchor.TimeFrame)
			}
		}
	}

	return hashes, timestamps
}

func (f *Fingerprinter) computePrimaryHash(hashes []uint32) string {
	sorted := make([]uint32, len(hashes))
	copy(sorted, hashes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	data := make([]byte, len(sorted)*4)
	for i, h := range sorted {
		binary.LittleEndian.PutUint32(data[i*4:], h)
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}
