// Package audio implements the Segmenter (spec.md §4.2): it consumes
// the Stream Puller's PCM chunks and slices them into variable-length
// analysis segments on silence, spectral change, or a max-length safety
// cap.
package audio

import (
	"context"
	"math"
	"time"

	"github.com/zfogg/sidechain/backend/internal/stream"
)

// SegmenterConfig mirrors spec.md §6's segmentation tunables.
type SegmenterConfig struct {
	SilenceThreshold float64       // normalized RMS amplitude floor
	SilenceHold      time.Duration // sustained silence before closing
	ChangeThreshold  float64       // spectral-flux multiple of rolling mean
	MaxSegment       time.Duration
	MinSegment       time.Duration
}

// CloseReason names which of the three boundary conditions (spec.md
// §4.2) closed a Segment.
type CloseReason string

const (
	CloseSilence        CloseReason = "silence"
	CloseSpectralChange CloseReason = "spectral_change"
	CloseMaxLength      CloseReason = "max_length"
	// CloseStreamEnd marks the final partial segment flushed when the
	// Puller's channel closes, not one of the spec's three steady-state
	// boundary conditions.
	CloseStreamEnd CloseReason = "stream_end"
)

// Segment is one variable-length analysis window handed to the Feature
// Extractor and then the Local Matcher / External Recognizer.
type Segment struct {
	StationID   string
	StartedAt   time.Duration // stream-relative, from the Puller's chunk timestamps
	EndedAt     time.Duration
	PCM         []int16
	CloseReason CloseReason
}

// Segmenter accumulates chunks for one station and emits closed
// Segments whenever a boundary condition fires.
type Segmenter struct {
	StationID string
	Config    SegmenterConfig

	buf          []int16
	segStart     time.Duration
	silenceSince time.Duration
	inSilence    bool
	fluxHistory  []float64
}

func NewSegmenter(stationID string, cfg SegmenterConfig) *Segmenter {
	return &Segmenter{StationID: stationID, Config: cfg}
}

// Run consumes chunks from in until ctx is cancelled or in is closed,
// sending each closed Segment to out. The final partial segment (if any)
// is flushed when in closes, provided it meets MinSegment.
func (s *Segmenter) Run(ctx context.Context, in <-chan stream.Chunk, out chan<- Segment) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-in:
			if !ok {
				s.flushFinal(out)
				return
			}
			s.ingest(chunk, out)
		}
	}
}

func (s *Segmenter) ingest(chunk stream.Chunk, out chan<- Segment) {
	if len(s.buf) == 0 {
		s.segStart = chunk.Timestamp
	}

	rms := rmsAmplitude(chunk.PCM)
	flux := s.spectralFlux(chunk.PCM)

	s.buf = append(s.buf, chunk.PCM...)
	chunkDur := sampleDuration(len(chunk.PCM))
	elapsed := chunk.Timestamp + chunkDur - s.segStart

	if rms < s.Config.SilenceThreshold {
		if !s.inSilence {
			s.inSilence = true
			s.silenceSince = chunk.Timestamp
		}
		if chunk.Timestamp-s.silenceSince >= s.Config.SilenceHold && elapsed >= s.Config.MinSegment {
			s.close(chunk.Timestamp+chunkDur, CloseSilence, out)
			return
		}
	} else {
		s.inSilence = false
	}

	if s.isSpectralChange(flux) && elapsed >= s.Config.MinSegment {
		s.close(chunk.Timestamp+chunkDur, CloseSpectralChange, out)
		return
	}

	if elapsed >= s.Config.MaxSegment {
		s.close(chunk.Timestamp+chunkDur, CloseMaxLength, out)
	}
}

func (s *Segmenter) close(endedAt time.Duration, reason CloseReason, out chan<- Segment) {
	if len(s.buf) == 0 {
		return
	}
	out <- Segment{
		StationID:   s.StationID,
		StartedAt:   s.segStart,
		EndedAt:     endedAt,
		PCM:         s.buf,
		CloseReason: reason,
	}
	s.buf = nil
	s.fluxHistory = nil
	s.inSilence = false
}

func (s *Segmenter) flushFinal(out chan<- Segment) {
	if len(s.buf) == 0 {
		return
	}
	elapsed := sampleDuration(len(s.buf))
	if elapsed >= s.Config.MinSegment {
		s.close(s.segStart+elapsed, CloseStreamEnd, out)
	}
}

// isSpectralChange reports whether flux exceeds ChangeThreshold times
// the rolling mean of the current segment's flux history (spec.md §4.2
// boundary condition 2), then records flux for future comparisons.
func (s *Segmenter) isSpectralChange(flux float64) bool {
	defer func() { s.fluxHistory = append(s.fluxHistory, flux) }()

	if len(s.fluxHistory) < 4 {
		return false
	}

	var sum float64
	for _, f := range s.fluxHistory {
		sum += f
	}
	mean := sum / float64(len(s.fluxHistory))
	if mean == 0 {
		return false
	}
	return flux > mean*s.Config.ChangeThreshold
}

// spectralFlux is a cheap proxy for the short-term spectral centroid
// shift: the sum of positive differences between consecutive sample
// magnitudes, normalized by chunk length.
func (s *Segmenter) spectralFlux(pcm []int16) float64 {
	if len(pcm) < 2 {
		return 0
	}
	var flux float64
	prev := math.Abs(float64(pcm[0]))
	for _, sample := range pcm[1:] {
		mag := math.Abs(float64(sample))
		if d := mag - prev; d > 0 {
			flux += d
		}
		prev = mag
	}
	return flux / float64(len(pcm))
}

func rmsAmplitude(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sumSquares float64
	for _, sample := range pcm {
		normalized := float64(sample) / math.MaxInt16
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(len(pcm)))
}

func sampleDuration(numSamples int) time.Duration {
	return time.Duration(float64(numSamples) / float64(stream.SampleRate) * float64(time.Second))
}
