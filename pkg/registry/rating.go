package registry

import "github.com/aretw0/formflow/pkg/domain"

// Default bounds of the two rating types.
const (
	DefaultRatingMin  = 1
	DefaultRatingMax  = 5
	DefaultOpinionMin = 1
	DefaultOpinionMax = 10
)

// NormalizeRatingRange applies the clamp-and-shift rule: the upper bound is
// always kept strictly greater than the lower one by moving it to min+1.
func NormalizeRatingRange(minRating, maxRating int) (int, int) {
	if maxRating <= minRating {
		maxRating = minRating + 1
	}
	return minRating, maxRating
}

// RatingBounds resolves the effective, normalised bounds of a rating field.
func RatingBounds(field domain.FieldDefinition) (int, int) {
	lo, hi := DefaultRatingMin, DefaultRatingMax
	if field.Type == domain.FieldOpinionScale {
		lo, hi = DefaultOpinionMin, DefaultOpinionMax
	}
	if v := field.Constraints.MinRating; v != nil {
		lo = *v
	}
	if v := field.Constraints.MaxRating; v != nil {
		hi = *v
	}
	return NormalizeRatingRange(lo, hi)
}

// SetMinRating edits the lower bound of a rating field, shifting the upper
// bound when the range would become empty or inverted.
func SetMinRating(field *domain.FieldDefinition, minRating int) {
	_, hi := RatingBounds(*field)
	lo, hi := NormalizeRatingRange(minRating, hi)
	field.Constraints.MinRating = &lo
	field.Constraints.MaxRating = &hi
}

// SetMaxRating edits the upper bound of a rating field. An upper bound at or
// below the lower one is replaced by min+1.
func SetMaxRating(field *domain.FieldDefinition, maxRating int) {
	lo, _ := RatingBounds(*field)
	lo, hi := NormalizeRatingRange(lo, maxRating)
	field.Constraints.MinRating = &lo
	field.Constraints.MaxRating = &hi
}
