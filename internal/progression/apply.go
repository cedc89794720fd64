package progression

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"trailQuestAPI/internal/types/challenge"
	"trailQuestAPI/internal/types/progress"
)

// ActivityLog is one daily activity submission toward a challenge.
type ActivityLog struct {
	DistanceMiles float64
	ElevationFt   float64
	Date          time.Time
	WorkoutID     *uuid.UUID
}

// Outcome reports what a single applied activity produced. When Failed is
// set the record was transitioned to FAILED, the log was rejected, and the
// other fields are zero.
type Outcome struct {
	SessionPoints     PointsBreakdown `json:"session_points"`
	MilestonesReached []int           `json:"milestones_reached"`
	Completed         bool            `json:"completed"`
	Failed            bool            `json:"failed"`
}

// Apply runs one activity through the streak, milestone, and points
// calculators and mutates the progress record in place. It is pure with
// respect to storage: the caller is responsible for loading the record under
// a lock and persisting the whole of it atomically afterwards.
func Apply(ch *challenge.Challenge, p *progress.UserChallengeProgress, act ActivityLog, now time.Time) (*Outcome, error) {
	if !p.Status.CanLog() {
		return nil, &InvalidStateError{Status: p.Status}
	}
	if act.DistanceMiles <= 0 {
		return nil, fmt.Errorf("%w: distance must be positive", ErrInvalidInput)
	}
	if act.ElevationFt < 0 {
		return nil, fmt.Errorf("%w: elevation must not be negative", ErrInvalidInput)
	}
	if err := ch.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	streak, err := AdvanceStreak(p.LastActivityDate, act.Date, ch.StreakMode, p.GraceDaysUsed, p.CurrentStreak, p.LongestStreak)
	if err != nil {
		return nil, err
	}
	if streak.Failed {
		// The triggering log is rejected: distance, elevation, and daily
		// logs stay as they were. Only the status flip and the streak zero
		// are recorded.
		p.Status = progress.StatusFailed
		p.CurrentStreak = 0
		p.UpdatedAt = now
		return &Outcome{Failed: true}, nil
	}

	p.CurrentStreak = streak.CurrentStreak
	p.LongestStreak = streak.LongestStreak
	p.GraceDaysUsed = streak.GraceDaysUsed

	day := UTCDate(act.Date)
	p.LastActivityDate = &day
	mergeDailyLog(p, day, act)

	p.DistanceCompleted += act.DistanceMiles
	p.ElevationCompleted += act.ElevationFt

	newly := NewlyReached(ch.Milestones, p.MilestonesReached, p.DistanceCompleted)
	p.MilestonesReached = append(p.MilestonesReached, newly...)

	points := CalculatePoints(act.DistanceMiles, p.CurrentStreak, len(newly))
	p.StreakMultiplier = points.Multiplier

	outcome := &Outcome{
		SessionPoints:     points,
		MilestonesReached: newly,
	}

	if p.DistanceCompleted >= ch.TotalDistanceMiles {
		points.CompletionBonus = ch.CompletionPoints
		points.Total += ch.CompletionPoints
		outcome.SessionPoints = points
		outcome.Completed = true
		p.Status = progress.StatusCompleted
		completedAt := now
		p.CompletedAt = &completedAt
	}

	p.PointsEarned += points.Total
	p.UpdatedAt = now
	return outcome, nil
}

// mergeDailyLog sums the activity into the entry for its calendar date, or
// appends a new entry. One entry per distinct UTC date.
func mergeDailyLog(p *progress.UserChallengeProgress, day time.Time, act ActivityLog) {
	for i := range p.DailyLogs {
		if p.DailyLogs[i].Date.Equal(day) {
			p.DailyLogs[i].DistanceMiles += act.DistanceMiles
			p.DailyLogs[i].ElevationFt += act.ElevationFt
			if act.WorkoutID != nil {
				p.DailyLogs[i].WorkoutID = act.WorkoutID
			}
			return
		}
	}
	p.DailyLogs = append(p.DailyLogs, progress.DailyLog{
		Date:          day,
		DistanceMiles: act.DistanceMiles,
		ElevationFt:   act.ElevationFt,
		WorkoutID:     act.WorkoutID,
	})
}
