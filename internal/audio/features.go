package audio

import (
	"crypto/sha1"
	"encoding/hex"
	"math"

	"github.com/zfogg/sidechain/backend/internal/fingerprint"
	"github.com/zfogg/sidechain/backend/internal/stream"
)

// Features is everything the Play Tracker and recognizers need from one
// Segment (spec.md §4.3). DurationS is the authoritative play-duration
// source fed into Detection rollups.
type Features struct {
	DurationS       float64
	IsMusic         bool
	Fingerprint     *fingerprint.Fingerprint
	FingerprintHash string
}

// ExtractorConfig tunes the is_music discriminator.
type ExtractorConfig struct {
	// FlatnessThreshold: spectral flatness below this looks tonal/musical;
	// white-noise-like speech sibilants and static score close to 1.0.
	FlatnessThreshold float64
	// ZCRMax: zero-crossing rate above this is typical of unvoiced speech
	// or noise rather than sustained musical tones.
	ZCRMax float64
}

func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{FlatnessThreshold: 0.55, ZCRMax: 0.15}
}

// Extractor computes Features for a Segment, including the acoustic
// Fingerprint the Local Matcher and External Recognizer both consume.
type Extractor struct {
	config        ExtractorConfig
	fingerprinter *fingerprint.Fingerprinter
}

func NewExtractor(config ExtractorConfig) *Extractor {
	return &Extractor{config: config, fingerprinter: fingerprint.New()}
}

// Extract computes duration, the is_music verdict, and (when the segment
// is music) a Fingerprint. Segments classified as non-music skip
// fingerprinting entirely — spec.md §4.3 says no recognition is
// attempted on them.
func (e *Extractor) Extract(seg Segment) Features {
	duration := seg.EndedAt - seg.StartedAt
	isMusic := e.isMusic(seg.PCM)

	features := Features{
		DurationS: duration.Seconds(),
		IsMusic:   isMusic,
	}

	if !isMusic {
		return features
	}

	resampled := downsample(seg.PCM, stream.SampleRate, e.fingerprinter.ConfigSampleRate())
	fp, err := e.fingerprinter.Generate(resampled)
	if err != nil {
		// Too short or too flat to fingerprint reliably; treat as an
		// unrecognizable music segment rather than failing the pipeline.
		return features
	}

	features.Fingerprint = fp
	features.FingerprintHash = shortDigest(fp.Hash)
	return features
}

// isMusic combines spectral flatness and zero-crossing rate into a
// cheap music/speech-or-silence discriminator (spec.md §4.3). Flat,
// high-ZCR segments (noise, unvoiced speech, dead air) classify as
// non-music; tonal, low-ZCR segments classify as music.
func (e *Extractor) isMusic(pcm []int16) bool {
	if len(pcm) == 0 {
		return false
	}
	flatness := e.spectralFlatness(pcm)
	zcr := zeroCrossingRate(pcm)
	return flatness < e.config.FlatnessThreshold && zcr < e.config.ZCRMax
}

// spectralFlatness is the ratio of the geometric mean to the arithmetic
// mean of the magnitude spectrum (Wiener entropy): near 1.0 for
// noise-like signals, near 0 for tonal ones.
func (e *Extractor) spectralFlatness(pcm []int16) float64 {
	samples := make([]float64, len(pcm))
	for i, s := range pcm {
		samples[i] = float64(s) / math.MaxInt16
	}

	spectrum := e.fingerprinter.MagnitudeSpectrum(samples)
	if len(spectrum) == 0 {
		return 1
	}

	var logSum, sum float64
	count := 0
	for _, mag := range spectrum {
		if mag <= 1e-10 {
			continue
		}
		logSum += math.Log(mag)
		sum += mag
		count++
	}
	if count == 0 || sum == 0 {
		return 1
	}

	geoMean := math.Exp(logSum / float64(count))
	arithMean := sum / float64(count)
	return geoMean / arithMean
}

func zeroCrossingRate(pcm []int16) float64 {
	if len(pcm) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(pcm); i++ {
		if (pcm[i-1] >= 0) != (pcm[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(pcm))
}

func shortDigest(hash string) string {
	sum := sha1.Sum([]byte(hash))
	return hex.EncodeToString(sum[:8])
}

// downsample decimates PCM from srcRate to dstRate by simple sample
// dropping; the fingerprinter's 8kHz analysis band doesn't need a
// high-quality resampler.
func downsample(pcm []int16, srcRate, dstRate int) []float64 {
	if dstRate <= 0 || dstRate >= srcRate {
		out := make([]float64, len(pcm))
		for i, s := range pcm {
			out[i] = float64(s) / math.MaxInt16
		}
		return out
	}

	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(float64(len(pcm)) / ratio)
	out := make([]float64, 0, outLen)
	for i := 0.0; int(i) < len(pcm); i += ratio {
		out = append(out, float64(pcm[int(i)])/math.MaxInt16)
	}
	return out
}
