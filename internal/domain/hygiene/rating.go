package hygiene

import "strconv"

// RatingUnknown is the sentinel stored when the upstream record carries no
// rating value at all. It is distinct from the scheme's own non-numeric
// states below.
const RatingUnknown = "Unknown"

// Non-numeric rating states published by the FHRS/FHIS schemes.
const (
	RatingExempt              = "Exempt"
	RatingAwaitingInspection  = "AwaitingInspection"
	RatingAwaitingPublication = "AwaitingPublication"
	RatingPass                = "Pass"
	RatingImprovementRequired = "Improvement Required"
)

// NumericTier reports whether a rating value is one of the 0-5 FHRS tiers
// and, if so, which.
func NumericTier(value string) (int, bool) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 || n > 5 {
		return 0, false
	}
	return n, true
}

// NormalizeRating maps an absent rating to the sentinel; present values
// pass through verbatim, malformed or not.
func NormalizeRating(value string) string {
	if value == "" {
		return RatingUnknown
	}
	return value
}

// TierOrder orders rating values for display: numeric tiers ascending
// (worst first), then the non-numeric states, then anything else.
func TierOrder(value string) int {
	if n, ok := NumericTier(value); ok {
		return n
	}
	switch value {
	case RatingImprovementRequired:
		return 6
	case RatingPass:
		return 7
	case RatingAwaitingInspection, RatingAwaitingPublication:
		return 8
	case RatingExempt:
		return 9
	default:
		return 10
	}
}
