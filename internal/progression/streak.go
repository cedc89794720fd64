package progression

import (
	"fmt"
	"time"

	"trailQuestAPI/internal/types/challenge"
)

// graceDaysPerCycle is the missed-day allowance per 7-day streak cycle in
// GRACE_PERIOD mode.
const graceDaysPerCycle = 1

// StreakResult is the outcome of advancing a streak by one logged activity.
// Failed is set only in STRICT mode when the gap exceeds one day; the
// activity that triggered it must not be applied.
type StreakResult struct {
	CurrentStreak int
	LongestStreak int
	GraceDaysUsed int
	Failed        bool
}

// UTCDate truncates t to its UTC calendar date. A "day" throughout the
// engine is a UTC calendar date, so 23:50 and 00:10 the next day are one
// day apart regardless of wall-clock distance.
func UTCDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole-day difference between two UTC dates.
func DaysBetween(from, to time.Time) int {
	return int(UTCDate(to).Sub(UTCDate(from)).Hours() / 24)
}

// AdvanceStreak applies one logged activity date to a streak under the given
// mode. last is nil when no activity has been logged yet.
func AdvanceStreak(last *time.Time, today time.Time, mode challenge.StreakMode, graceDaysUsed, currentStreak, longestStreak int) (StreakResult, error) {
	if !mode.Valid() {
		return StreakResult{}, fmt.Errorf("%w: unknown streak mode %q", ErrInvalidInput, mode)
	}

	res := StreakResult{
		CurrentStreak: currentStreak,
		LongestStreak: longestStreak,
		GraceDaysUsed: graceDaysUsed,
	}

	if last == nil {
		res.CurrentStreak = 1
	} else {
		daysDiff := DaysBetween(*last, today)
		switch {
		case daysDiff < 0:
			return StreakResult{}, fmt.Errorf("%w: activity date precedes last activity", ErrInvalidInput)
		case daysDiff == 0:
			// Same-day repeat log, streak unchanged.
		case daysDiff == 1:
			res.CurrentStreak = currentStreak + 1
		case daysDiff == 2 && mode == challenge.StreakGracePeriod && graceDaysUsed < graceDaysPerCycle:
			res.CurrentStreak = currentStreak + 1
			res.GraceDaysUsed = graceDaysUsed + 1
		case mode == challenge.StreakFlexible:
			// Flexible never fails, only resets.
			res.CurrentStreak = 1
			res.GraceDaysUsed = 0
		case mode == challenge.StreakStrict:
			res.CurrentStreak = 0
			res.Failed = true
			return res, nil
		default:
			// Gap exceeds the grace tolerance.
			res.CurrentStreak = 1
			res.GraceDaysUsed = 0
		}
	}

	// A new 7-day cycle grants a fresh grace allowance.
	if res.CurrentStreak > 1 && res.CurrentStreak%7 == 1 {
		res.GraceDaysUsed = 0
	}
	if res.CurrentStreak > res.LongestStreak {
		res.LongestStreak = res.CurrentStreak
	}
	return res, nil
}
