package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"trailQuestAPI/internal/types/challenge"
)

var testMilestones = []challenge.Milestone{
	{DistanceMiles: 10, Name: "Trailhead"},
	{DistanceMiles: 25, Name: "First Summit"},
	{DistanceMiles: 50, Name: "Halfway Ridge"},
	{DistanceMiles: 100, Name: "Finish"},
}

func TestNewlyReached(t *testing.T) {
	tests := []struct {
		name     string
		reached  []int
		distance float64
		want     []int
	}{
		{name: "nothing yet", distance: 9.9, want: nil},
		{name: "exactly on threshold", distance: 10, want: []int{0}},
		{name: "crossing two at once", distance: 30, want: []int{0, 1}},
		{name: "already reached are skipped", reached: []int{0, 1}, distance: 30, want: nil},
		{name: "next after previously reached", reached: []int{0, 1}, distance: 55, want: []int{2}},
		{name: "all at once", distance: 120, want: []int{0, 1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewlyReached(testMilestones, tt.reached, tt.distance)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Re-running the detector with the same inputs yields nothing new, so a
// re-logged day cannot double-award a milestone.
func TestNewlyReachedIdempotent(t *testing.T) {
	first := NewlyReached(testMilestones, nil, 30)
	assert.Equal(t, []int{0, 1}, first)

	second := NewlyReached(testMilestones, first, 30)
	assert.Empty(t, second)
}

func TestNewlyReachedNoMilestones(t *testing.T) {
	assert.Empty(t, NewlyReached(nil, nil, 100))
}
