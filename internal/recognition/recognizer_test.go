package recognition

import "testing"

import "github.com/stretchr/testify/assert"

func TestPreferCandidate_ISRCWinsOverConfidence(t *testing.T) {
	withISRC := Candidate{Descriptor: Descriptor{ISRC: "FR1234567890"}, Score: 0.6}
	withoutISRC := Candidate{Descriptor: Descriptor{}, Score: 0.95}

	assert.True(t, preferCandidate(withISRC, withoutISRC))
	assert.False(t, preferCandidate(withoutISRC, withISRC))
}

func TestPreferCandidate_HigherConfidenceWhenBothHaveISRC(t *testing.T) {
	a := Candidate{Descriptor: Descriptor{ISRC: "A"}, Score: 0.9}
	b := Candidate{Descriptor: Descriptor{ISRC: "B"}, Score: 0.5}
	assert.True(t, preferCandidate(a, b))
}

func TestBestCandidate_EmptyReturnsFalse(t *testing.T) {
	_, ok := bestCandidate(nil)
	assert.False(t, ok)
}

func TestOutcome_NoMatchIsNotAMatch(t *testing.T) {
	assert.False(t, NoMatchOutcome().IsMatch())
	assert.True(t, LocalMatchOutcome("track-1", 0.9).IsMatch())
}
