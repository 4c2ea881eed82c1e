package fingerprint

import "errors"

var (
	errTooShort       = errors.New("segment too short to fingerprint")
	errNotEnoughPeaks = errors.New("not enough spectral peaks detected")
	errNoHashes       = errors.New("no fingerprint hashes generated")
)
