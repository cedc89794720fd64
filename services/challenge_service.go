package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"trailQuestAPI/internal/locker"
	"trailQuestAPI/internal/progression"
	"trailQuestAPI/internal/types/badge"
	"trailQuestAPI/internal/types/challenge"
	"trailQuestAPI/internal/types/notification"
	"trailQuestAPI/internal/types/progress"
	"trailQuestAPI/internal/types/stats"
)

// maxTxRetries bounds retries of the log-activity transaction on transient
// serialization or deadlock failures before surfacing Conflict.
const maxTxRetries = 3

type ChallengeService struct {
	db            *pgxpool.Pool
	badges        *BadgeService
	notifications *NotificationService
	locks         *locker.KeyedMutex
}

func NewChallengeService(db *pgxpool.Pool, badges *BadgeService, notifications *NotificationService) *ChallengeService {
	return &ChallengeService{
		db:            db,
		badges:        badges,
		notifications: notifications,
		locks:         locker.New(),
	}
}

type LogActivityRequest struct {
	DistanceMiles float64    `json:"distance_miles"`
	ElevationFt   float64    `json:"elevation_ft"`
	Date          *time.Time `json:"date,omitempty"`
	WorkoutID     *uuid.UUID `json:"workout_id,omitempty"`
}

type LogResult struct {
	Progress          *progress.UserChallengeProgress `json:"progress"`
	SessionPoints     progression.PointsBreakdown     `json:"session_points"`
	MilestonesReached []challenge.Milestone           `json:"milestones_reached"`
	Completed         bool                            `json:"completed"`
	BadgeAwarded      *badge.UserBadge                `json:"badge_awarded,omitempty"`
}

type ProgressFilter string

const (
	FilterActive    ProgressFilter = "active"
	FilterCompleted ProgressFilter = "completed"
	FilterAll       ProgressFilter = "all"
)

func (f ProgressFilter) Valid() bool {
	return f == FilterActive || f == FilterCompleted || f == FilterAll
}

type ProgressReport struct {
	Progress []*progress.UserChallengeProgress `json:"progress"`
	Badges   []*badge.UserBadge                `json:"badges"`
	Stats    *stats.UserStats                  `json:"stats"`
}

func (s *ChallengeService) GetChallenges(ctx context.Context) ([]*challenge.Challenge, error) {
	rows, err := s.db.Query(ctx, challengeSelect+`
	WHERE is_active = true
	ORDER BY is_featured DESC, total_distance_miles ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch challenges: %w", err)
	}
	defer rows.Close()

	var challenges []*challenge.Challenge
	for rows.Next() {
		ch, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, ch)
	}
	return challenges, rows.Err()
}

func (s *ChallengeService) GetChallenge(ctx context.Context, challengeID uuid.UUID) (*challenge.Challenge, error) {
	return s.getChallenge(ctx, s.db, challengeID)
}

// JoinChallenge creates a zeroed ACTIVE progress record, or returns the
// existing one unchanged when already ACTIVE, or fully resets a FAILED or
// ABANDONED record. Joining a COMPLETED challenge is rejected.
func (s *ChallengeService) JoinChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID) (*progress.UserChallengeProgress, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}
	if _, err := s.getChallenge(ctx, s.db, challengeID); err != nil {
		return nil, err
	}

	existing, err := s.getProgressRecord(ctx, s.db, userID, challengeID, false)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		switch {
		case existing.Status == progress.StatusActive:
			return existing, nil
		case existing.Status.CanRestart():
			return s.resetProgress(ctx, existing.ID)
		default:
			return nil, &progression.InvalidStateError{Status: existing.Status}
		}
	}

	query := `
	INSERT INTO user_challenge_progress (
		id, user_id, challenge_id, status, distance_completed, elevation_completed,
		current_streak, longest_streak, last_activity_date, grace_days_used,
		milestones_reached, points_earned, streak_multiplier, daily_logs,
		started_at, completed_at, updated_at
	)
	VALUES ($1, $2, $3, 'active', 0, 0, 0, 0, NULL, 0, '{}', 0, 1.0, '[]', NOW(), NULL, NOW())
	ON CONFLICT (user_id, challenge_id) DO NOTHING
	`
	if _, err := s.db.Exec(ctx, query, uuid.New(), userID, challengeID); err != nil {
		return nil, fmt.Errorf("failed to join challenge: %w", err)
	}

	// Reselect rather than RETURNING: a concurrent join may have won the
	// insert, and either record is the single canonical one.
	joined, err := s.getProgressRecord(ctx, s.db, userID, challengeID, false)
	if err != nil {
		return nil, err
	}
	if joined == nil {
		return nil, fmt.Errorf("%w: progress record after join", progression.ErrNotFound)
	}
	return joined, nil
}

// RestartChallenge resets a FAILED or ABANDONED record back to ACTIVE with
// zeroed counters and a new start time.
func (s *ChallengeService) RestartChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID) (*progress.UserChallengeProgress, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}
	existing, err := s.getProgressRecord(ctx, s.db, userID, challengeID, false)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: join the challenge first", progression.ErrNotJoined)
	}
	if !existing.Status.CanRestart() {
		return nil, &progression.InvalidStateError{Status: existing.Status}
	}
	return s.resetProgress(ctx, existing.ID)
}

func (s *ChallengeService) AbandonChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID) (*progress.UserChallengeProgress, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}
	existing, err := s.getProgressRecord(ctx, s.db, userID, challengeID, false)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: nothing to abandon", progression.ErrNotJoined)
	}
	if !existing.Status.CanAbandon() {
		return nil, &progression.InvalidStateError{Status: existing.Status}
	}

	row := s.db.QueryRow(ctx, `
	UPDATE user_challenge_progress
	SET status = 'abandoned', updated_at = NOW()
	WHERE id = $1 AND status = 'active'
	RETURNING `+progressColumns, existing.ID)
	p, err := scanProgress(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: progress changed concurrently", progression.ErrConflict)
		}
		return nil, err
	}
	return p, nil
}

// LogActivity applies one daily activity to the user's progress. The
// read-modify-write is serialized per (user, challenge) by an in-process
// keyed mutex plus a row lock inside the transaction, and retried a bounded
// number of times on transient store conflicts.
func (s *ChallengeService) LogActivity(ctx context.Context, clerkID string, challengeID uuid.UUID, req *LogActivityRequest) (*LogResult, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(userID.String() + "/" + challengeID.String())
	defer unlock()

	var result *LogResult
	for attempt := 1; ; attempt++ {
		result, err = s.logActivityTx(ctx, userID, challengeID, req)
		if err == nil || !isRetryableTxError(err) {
			break
		}
		if attempt >= maxTxRetries {
			return nil, fmt.Errorf("%w: %v", progression.ErrConflict, err)
		}
		log.Printf("LogActivity: transient conflict for %s, retrying (attempt %d): %v", userID, attempt, err)
	}
	if err != nil {
		var failed *progression.ChallengeFailedError
		if errors.As(err, &failed) {
			challengesFailedTotal.Inc()
			s.notifyFailed(ctx, userID)
		}
		return nil, err
	}

	activitiesLoggedTotal.Inc()
	if result.Completed {
		challengesCompletedTotal.Inc()
	}
	s.notifyOutcome(ctx, userID, challengeID, result)

	// Any progress mutation can push a lifetime aggregate over a badge
	// threshold. Failure here never fails the log.
	if _, err := s.badges.CheckAndAwardBadges(ctx, userID); err != nil {
		log.Printf("LogActivity: badge check failed for %s: %v", userID, err)
	}

	return result, nil
}

func (s *ChallengeService) logActivityTx(ctx context.Context, userID, challengeID uuid.UUID, req *LogActivityRequest) (*LogResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ch, err := s.getChallenge(ctx, tx, challengeID)
	if err != nil {
		return nil, err
	}

	p, err := s.getProgressRecord(ctx, tx, userID, challengeID, true)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: join the challenge before logging", progression.ErrNotJoined)
	}

	now := time.Now()
	date := now
	if req.Date != nil {
		date = *req.Date
	}

	outcome, err := progression.Apply(ch, p, progression.ActivityLog{
		DistanceMiles: req.DistanceMiles,
		ElevationFt:   req.ElevationFt,
		Date:          date,
		WorkoutID:     req.WorkoutID,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := s.saveProgress(ctx, tx, p); err != nil {
		return nil, err
	}

	if outcome.Failed {
		// The FAILED status must be persisted; the rejected log must not.
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit failure: %w", err)
		}
		return nil, &progression.ChallengeFailedError{Progress: p}
	}

	result := &LogResult{
		Progress:          p,
		SessionPoints:     outcome.SessionPoints,
		MilestonesReached: milestonesByIndex(ch, outcome.MilestonesReached),
		Completed:         outcome.Completed,
	}

	if outcome.Completed && ch.CompletionBadgeID != nil {
		ub, err := s.badges.awardBadge(ctx, tx, userID, *ch.CompletionBadgeID, &challengeID, map[string]any{
			"challenge": ch.Name,
		})
		if err != nil {
			return nil, err
		}
		result.BadgeAwarded = ub
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit activity: %w", err)
	}
	return result, nil
}

// GetProgress returns the user's progress records filtered by status, their
// earned badges, and summary stats.
func (s *ChallengeService) GetProgress(ctx context.Context, clerkID string, filter ProgressFilter) (*ProgressReport, error) {
	if !filter.Valid() {
		return nil, fmt.Errorf("%w: unknown progress filter %q", progression.ErrInvalidInput, filter)
	}
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + progressColumns + ` FROM user_challenge_progress WHERE user_id = $1`
	switch filter {
	case FilterActive:
		query += ` AND status = 'active'`
	case FilterCompleted:
		query += ` AND status = 'completed'`
	}
	query += ` ORDER BY started_at DESC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch progress: %w", err)
	}
	defer rows.Close()

	var records []*progress.UserChallengeProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	badges, err := s.userBadges(ctx, userID)
	if err != nil {
		return nil, err
	}

	userStats, err := s.userStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	userStats.TotalBadges = len(badges)

	return &ProgressReport{Progress: records, Badges: badges, Stats: userStats}, nil
}

func (s *ChallengeService) userBadges(ctx context.Context, userID uuid.UUID) ([]*badge.UserBadge, error) {
	rows, err := s.db.Query(ctx, `
	SELECT id, user_id, badge_id, challenge_id, earned_at, metadata
	FROM user_badges
	WHERE user_id = $1
	ORDER BY earned_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user badges: %w", err)
	}
	defer rows.Close()

	var badges []*badge.UserBadge
	for rows.Next() {
		ub := &badge.UserBadge{}
		var metadataJSON []byte
		if err := rows.Scan(&ub.ID, &ub.UserID, &ub.BadgeID, &ub.ChallengeID, &ub.EarnedAt, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan user badge: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &ub.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal badge metadata: %w", err)
			}
		}
		badges = append(badges, ub)
	}
	return badges, rows.Err()
}

func (s *ChallengeService) userStats(ctx context.Context, userID uuid.UUID) (*stats.UserStats, error) {
	st := &stats.UserStats{}
	err := s.db.QueryRow(ctx, `
	SELECT
		COUNT(*) FILTER (WHERE status = 'active'),
		COUNT(*) FILTER (WHERE status = 'completed'),
		COALESCE(SUM(points_earned), 0),
		COALESCE(MAX(longest_streak), 0)
	FROM user_challenge_progress
	WHERE user_id = $1
	`, userID).Scan(&st.ActiveChallenges, &st.CompletedChallenges, &st.TotalPoints, &st.LongestStreak)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}
	return st, nil
}

func (s *ChallengeService) resetProgress(ctx context.Context, progressID uuid.UUID) (*progress.UserChallengeProgress, error) {
	row := s.db.QueryRow(ctx, `
	UPDATE user_challenge_progress
	SET status = 'active',
		distance_completed = 0,
		elevation_completed = 0,
		current_streak = 0,
		longest_streak = 0,
		last_activity_date = NULL,
		grace_days_used = 0,
		milestones_reached = '{}',
		points_earned = 0,
		streak_multiplier = 1.0,
		daily_logs = '[]',
		started_at = NOW(),
		completed_at = NULL,
		updated_at = NOW()
	WHERE id = $1
	RETURNING `+progressColumns, progressID)

	p, err := scanProgress(row)
	if err != nil {
		return nil, fmt.Errorf("failed to reset progress: %w", err)
	}
	return p, nil
}

const challengeSelect = `
	SELECT id, name, description, total_distance_miles, total_elevation_gain_ft,
		difficulty, estimated_days, max_days_allowed, streak_mode, milestones,
		completion_badge_id, completion_points, is_active, is_featured, created_at
	FROM challenges
`

func (s *ChallengeService) getChallenge(ctx context.Context, q querier, challengeID uuid.UUID) (*challenge.Challenge, error) {
	ch, err := scanChallenge(q.QueryRow(ctx, challengeSelect+` WHERE id = $1`, challengeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: challenge", progression.ErrNotFound)
		}
		return nil, err
	}
	if !ch.IsActive {
		return nil, fmt.Errorf("%w: challenge is not active", progression.ErrNotFound)
	}
	return ch, nil
}

func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	ch := &challenge.Challenge{}
	var milestonesJSON []byte
	err := row.Scan(
		&ch.ID, &ch.Name, &ch.Description, &ch.TotalDistanceMiles, &ch.TotalElevationGainFt,
		&ch.Difficulty, &ch.EstimatedDays, &ch.MaxDaysAllowed, &ch.StreakMode, &milestonesJSON,
		&ch.CompletionBadgeID, &ch.CompletionPoints, &ch.IsActive, &ch.IsFeatured, &ch.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(milestonesJSON) > 0 {
		if err := json.Unmarshal(milestonesJSON, &ch.Milestones); err != nil {
			return nil, fmt.Errorf("failed to unmarshal milestones: %w", err)
		}
	}
	return ch, nil
}

const progressColumns = `id, user_id, challenge_id, status, distance_completed, elevation_completed,
	current_streak, longest_streak, last_activity_date, grace_days_used,
	milestones_reached, points_earned, streak_multiplier, daily_logs,
	started_at, completed_at, updated_at`

// getProgressRecord returns nil without error when no record exists.
// forUpdate locks the row for the remainder of the transaction.
func (s *ChallengeService) getProgressRecord(ctx context.Context, q querier, userID, challengeID uuid.UUID, forUpdate bool) (*progress.UserChallengeProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM user_challenge_progress WHERE user_id = $1 AND challenge_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	p, err := scanProgress(q.QueryRow(ctx, query, userID, challengeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func scanProgress(row pgx.Row) (*progress.UserChallengeProgress, error) {
	p := &progress.UserChallengeProgress{}
	var milestones []int32
	var dailyLogsJSON []byte
	err := row.Scan(
		&p.ID, &p.UserID, &p.ChallengeID, &p.Status, &p.DistanceCompleted, &p.ElevationCompleted,
		&p.CurrentStreak, &p.LongestStreak, &p.LastActivityDate, &p.GraceDaysUsed,
		&milestones, &p.PointsEarned, &p.StreakMultiplier, &dailyLogsJSON,
		&p.StartedAt, &p.CompletedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	for _, idx := range milestones {
		p.MilestonesReached = append(p.MilestonesReached, int(idx))
	}
	if len(dailyLogsJSON) > 0 {
		if err := json.Unmarshal(dailyLogsJSON, &p.DailyLogs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal daily logs: %w", err)
		}
	}
	return p, nil
}

// saveProgress persists the whole record in one statement so a failed write
// leaves no partial state.
func (s *ChallengeService) saveProgress(ctx context.Context, q querier, p *progress.UserChallengeProgress) error {
	milestones := make([]int32, 0, len(p.MilestonesReached))
	for _, idx := range p.MilestonesReached {
		milestones = append(milestones, int32(idx))
	}
	dailyLogsJSON, err := json.Marshal(p.DailyLogs)
	if err != nil {
		return fmt.Errorf("failed to marshal daily logs: %w", err)
	}

	_, err = q.Exec(ctx, `
	UPDATE user_challenge_progress
	SET status = $2,
		distance_completed = $3,
		elevation_completed = $4,
		current_streak = $5,
		longest_streak = $6,
		last_activity_date = $7,
		grace_days_used = $8,
		milestones_reached = $9,
		points_earned = $10,
		streak_multiplier = $11,
		daily_logs = $12,
		completed_at = $13,
		updated_at = NOW()
	WHERE id = $1
	`, p.ID, p.Status, p.DistanceCompleted, p.ElevationCompleted, p.CurrentStreak, p.LongestStreak,
		p.LastActivityDate, p.GraceDaysUsed, milestones, p.PointsEarned, p.StreakMultiplier,
		dailyLogsJSON, p.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

func milestonesByIndex(ch *challenge.Challenge, indices []int) []challenge.Milestone {
	var reached []challenge.Milestone
	for _, idx := range indices {
		if idx >= 0 && idx < len(ch.Milestones) {
			reached = append(reached, ch.Milestones[idx])
		}
	}
	return reached
}

func (s *ChallengeService) notifyOutcome(ctx context.Context, userID, challengeID uuid.UUID, result *LogResult) {
	if s.notifications == nil {
		return
	}
	for _, m := range result.MilestonesReached {
		err := s.notifications.Notify(ctx, userID, notification.NotificationMilestoneReached,
			"Milestone reached!", fmt.Sprintf("You reached %s.", m.Name),
			map[string]any{"challenge_id": challengeID.String(), "milestone": m.Name})
		if err != nil {
			log.Printf("notifyOutcome: %v", err)
		}
	}
	if result.Completed {
		err := s.notifications.Notify(ctx, userID, notification.NotificationChallengeCompleted,
			"Challenge complete!", "You finished the challenge. Every mile counted.",
			map[string]any{"challenge_id": challengeID.String()})
		if err != nil {
			log.Printf("notifyOutcome: %v", err)
		}
	}
}

func (s *ChallengeService) notifyFailed(ctx context.Context, userID uuid.UUID) {
	if s.notifications == nil {
		return
	}
	err := s.notifications.Notify(ctx, userID, notification.NotificationChallengeFailed,
		"Streak broken", "Your strict streak ended. Restart the challenge to try again.",
		nil)
	if err != nil {
		log.Printf("notifyFailed: %v", err)
	}
}

func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
