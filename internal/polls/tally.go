package polls

import "math"

// Percentage returns the rounded share of votes out of total, 0 when total is 0.
func Percentage(votes, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(votes) / float64(total)))
}
