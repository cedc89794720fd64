package progression

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailQuestAPI/internal/locker"
	"trailQuestAPI/internal/types/challenge"
)

// N goroutines each log one mile against the same record. Serialized through
// the keyed mutex, every single log must land: the final distance is exactly
// N, with no lost updates.
func TestConcurrentLogsAllLand(t *testing.T) {
	ch := testChallenge(challenge.StreakFlexible)
	ch.Milestones = nil
	p := testProgress(ch)
	locks := locker.New()

	const n = 50
	day := date(2026, 3, 1)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(p.UserID.String() + "/" + p.ChallengeID.String())
			defer unlock()

			_, err := Apply(ch, p, ActivityLog{DistanceMiles: 1, Date: day}, day)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, float64(n), p.DistanceCompleted)
	assert.Len(t, p.DailyLogs, 1)
	assert.Equal(t, float64(n), p.DailyLogs[0].DistanceMiles)
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, n*10, p.PointsEarned)
}
