package recognition

// Method tags which subsystem produced a match. The Track Registry and
// Stats Recorder both key their behavior off this value, never off a
// hard-coded service name (spec.md §9 open question on the "audd"
// hard-coded method bug in the source this was distilled from).
type Method string

const (
	MethodLocal     Method = "local"
	MethodExternalA Method = "external_A"
	MethodExternalB Method = "external_B"
)

// Descriptor is what a matching subsystem knows about a candidate
// recording. TrackID is set only when the match already resolves to a
// known Track (the Local Matcher's case); external matches carry
// metadata the Track Registry still has to resolve to a Track.
type Descriptor struct {
	TrackID string
	Title   string
	Artist  string
	Label   string
	Album   string
	ISRC    string
}

// Kind discriminates an Outcome's populated variant.
type Kind int

const (
	KindNoMatch Kind = iota
	KindLocalMatch
	KindExternalMatch
)

// Outcome is the tagged union spec.md §9 calls for, replacing a
// dynamically-typed detection-result dictionary: exactly one
// constructor below produces any given Outcome, so callers switch on
// Kind rather than guess which fields are meaningful from their
// zero-ness.
type Outcome struct {
	Kind       Kind
	Descriptor Descriptor
	Confidence float64
	Method     Method
}

// NoMatchOutcome is returned when neither the Local Matcher nor either
// external service produced a candidate above its confidence floor.
func NoMatchOutcome() Outcome {
	return Outcome{Kind: KindNoMatch}
}

// LocalMatchOutcome wraps a Local Matcher hit: trackID is already a
// resolved Track identity, no Track Registry work is needed.
func LocalMatchOutcome(trackID string, confidence float64) Outcome {
	return Outcome{
		Kind:       KindLocalMatch,
		Descriptor: Descriptor{TrackID: trackID},
		Confidence: confidence,
		Method:     MethodLocal,
	}
}

// ExternalMatchOutcome wraps a service A or B hit: the descriptor still
// needs the Track Registry's ISRC/fingerprint resolution chain.
func ExternalMatchOutcome(d Descriptor, confidence float64, method Method) Outcome {
	return Outcome{Kind: KindExternalMatch, Descriptor: d, Confidence: confidence, Method: method}
}

// IsMatch reports whether this Outcome carries a candidate at all.
func (o Outcome) IsMatch() bool { return o.Kind != KindNoMatch }
