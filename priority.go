package h2io

// Priority is the 5-level priority property a Message carries (§4.3 step 3).
// It is translated to a single RFC 7540 §5.3.2 weight byte (1-256) per
// stream; this transport does not build a priority dependency tree (a
// non-goal, spec.md §1), so only the weight is ever sent.
type Priority int8

const (
	PriorityVeryLow Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityVeryHigh
)

const (
	minWeight     = 1   // RFC 7540 §5.3.2 weight range is 1-256
	maxWeight     = 256
	defaultWeight = 16 // RFC 7540 §5.3.2 default stream weight
)

// Weight maps the 5 priority levels to min, half-between-min-and-default,
// default, half-between-default-and-max and max weights, per spec.md §4.3.
// The wire encoding of a PRIORITY/HEADERS weight field is zero-indexed
// (actual weight minus one, RFC 7540 §6.2), which is what http2.Framer's
// PriorityParam.Weight expects; Weight returns that already-adjusted byte.
func (p Priority) Weight() byte {
	var w int
	switch p {
	case PriorityVeryLow:
		w = minWeight
	case PriorityLow:
		w = minWeight + (defaultWeight-minWeight)/2
	case PriorityHigh:
		w = defaultWeight + (maxWeight-defaultWeight)/2
	case PriorityVeryHigh:
		w = maxWeight
	default:
		w = defaultWeight
	}
	return byte(w - 1)
}

func (p Priority) String() string {
	switch p {
	case PriorityVeryLow:
		return "very-low"
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityVeryHigh:
		return "very-high"
	default:
		return "normal"
	}
}
