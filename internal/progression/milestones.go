package progression

import "trailQuestAPI/internal/types/challenge"

// NewlyReached returns the indices of milestones whose distance threshold is
// now met and which were not previously reached. Re-logging without crossing
// a new threshold yields an empty result, so the detector is idempotent.
func NewlyReached(milestones []challenge.Milestone, previouslyReached []int, newCumulativeDistance float64) []int {
	reached := make(map[int]struct{}, len(previouslyReached))
	for _, idx := range previouslyReached {
		reached[idx] = struct{}{}
	}

	var newly []int
	for i, m := range milestones {
		if m.DistanceMiles > newCumulativeDistance {
			// Milestones are ordered ascending, nothing further can match.
			break
		}
		if _, ok := reached[i]; !ok {
			newly = append(newly, i)
		}
	}
	return newly
}
