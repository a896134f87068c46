package model

// Rating is the qualitative label derived from a composite score.
type Rating string

const (
	RatingExcellent        Rating = "excellent"
	RatingVeryGood         Rating = "very good"
	RatingGood             Rating = "good"
	RatingSatisfactory     Rating = "satisfactory"
	RatingNeedsImprovement Rating = "needs improvement"
)

// RatingOrder lists ratings from best to worst. Downgrade detection compares
// positions in this slice rather than comparing label strings.
var RatingOrder = []Rating{
	RatingExcellent,
	RatingVeryGood,
	RatingGood,
	RatingSatisfactory,
	RatingNeedsImprovement,
}

// RatingRank returns the position of r in RatingOrder (0 = best). Unknown
// ratings rank worst.
func RatingRank(r Rating) int {
	for i, candidate := range RatingOrder {
		if candidate == r {
			return i
		}
	}
	return len(RatingOrder)
}
