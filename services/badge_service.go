package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"trailQuestAPI/internal/types/badge"
	"trailQuestAPI/internal/types/notification"
)

// Achievement thresholds, ordered ascending. Every satisfied threshold earns
// its badge; the scan stops at the first unmet one.
var badgeThresholds = []struct {
	Category   badge.Category
	Thresholds []float64
}{
	{badge.CategoryStreak, []float64{3, 7, 14, 30, 60, 100}},
	{badge.CategoryDistance, []float64{50, 100, 250, 500}},
	{badge.CategoryElevation, []float64{10000, 29032, 100000}},
}

type BadgeService struct {
	db            *pgxpool.Pool
	notifications *NotificationService
}

func NewBadgeService(db *pgxpool.Pool, notifications *NotificationService) *BadgeService {
	return &BadgeService{db: db, notifications: notifications}
}

// CheckAndAwardBadges scans the user's lifetime aggregates against the
// threshold tables and awards every unearned badge whose threshold is met.
// Safe to call repeatedly and concurrently: the unique (user_id, badge_id)
// constraint makes the award insert idempotent.
func (s *BadgeService) CheckAndAwardBadges(ctx context.Context, userID uuid.UUID) ([]*badge.UserBadge, error) {
	aggregates, err := s.lifetimeAggregates(ctx, userID)
	if err != nil {
		return nil, err
	}

	definitions, err := s.thresholdBadges(ctx)
	if err != nil {
		return nil, err
	}

	var awarded []*badge.UserBadge
	for _, table := range badgeThresholds {
		value := aggregates[table.Category]
		for _, threshold := range table.Thresholds {
			if value < threshold {
				break
			}
			def, ok := definitions[thresholdKey(table.Category, threshold)]
			if !ok {
				log.Printf("CheckAndAwardBadges: no badge seeded for %s threshold %.0f", table.Category, threshold)
				continue
			}
			ub, err := s.awardBadge(ctx, s.db, userID, def.ID, nil, map[string]any{
				"category":  table.Category,
				"threshold": threshold,
			})
			if err != nil {
				return nil, err
			}
			if ub != nil {
				awarded = append(awarded, ub)
				s.notifyBadge(ctx, userID, def)
			}
		}
	}

	return awarded, nil
}

func (s *BadgeService) CheckAndAwardBadgesByClerkID(ctx context.Context, clerkID string) ([]*badge.UserBadge, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}
	return s.CheckAndAwardBadges(ctx, userID)
}

// GetBadges returns every badge definition with the user's earned status.
func (s *BadgeService) GetBadges(ctx context.Context, clerkID string) ([]*badge.BadgeWithStatus, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT
		b.id, b.name, b.description, b.icon_name, b.category, b.rarity, b.threshold, b.points, b.created_at,
		CASE WHEN ub.id IS NOT NULL THEN true ELSE false END AS earned,
		ub.earned_at
	FROM badges b
	LEFT JOIN user_badges ub ON b.id = ub.badge_id AND ub.user_id = $1
	ORDER BY earned DESC, b.category ASC, b.threshold ASC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch badges: %w", err)
	}
	defer rows.Close()

	var badges []*badge.BadgeWithStatus
	for rows.Next() {
		b := &badge.BadgeWithStatus{}
		err := rows.Scan(
			&b.ID, &b.Name, &b.Description, &b.IconName, &b.Category, &b.Rarity, &b.Threshold, &b.Points, &b.CreatedAt,
			&b.Earned, &b.EarnedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		badges = append(badges, b)
	}

	return badges, rows.Err()
}

// awardBadge inserts the award record, treating an existing (user, badge)
// row as success. Returns nil when the badge was already owned.
func (s *BadgeService) awardBadge(ctx context.Context, q querier, userID, badgeID uuid.UUID, challengeID *uuid.UUID, metadata map[string]any) (*badge.UserBadge, error) {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal badge metadata: %w", err)
	}

	ub := &badge.UserBadge{
		ID:          uuid.New(),
		UserID:      userID,
		BadgeID:     badgeID,
		ChallengeID: challengeID,
		Metadata:    metadata,
	}

	query := `
	INSERT INTO user_badges (id, user_id, badge_id, challenge_id, earned_at, metadata)
	VALUES ($1, $2, $3, $4, NOW(), $5)
	ON CONFLICT (user_id, badge_id) DO NOTHING
	RETURNING id, earned_at
	`

	err = q.QueryRow(ctx, query, ub.ID, userID, badgeID, challengeID, metadataJSON).Scan(&ub.ID, &ub.EarnedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already owned; awarded at most once per user.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to award badge: %w", err)
	}

	badgesAwardedTotal.Inc()
	return ub, nil
}

func (s *BadgeService) lifetimeAggregates(ctx context.Context, userID uuid.UUID) (map[badge.Category]float64, error) {
	aggregates := make(map[badge.Category]float64, 3)

	var distance, elevation float64
	err := s.db.QueryRow(ctx, `
	SELECT COALESCE(SUM(distance_miles), 0), COALESCE(SUM(elevation_ft), 0)
	FROM workouts
	WHERE user_id = $1
	`, userID).Scan(&distance, &elevation)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate workouts: %w", err)
	}

	var longestStreak int
	err = s.db.QueryRow(ctx, `
	SELECT COALESCE(MAX(longest_streak), 0)
	FROM user_challenge_progress
	WHERE user_id = $1
	`, userID).Scan(&longestStreak)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate streaks: %w", err)
	}

	aggregates[badge.CategoryDistance] = distance
	aggregates[badge.CategoryElevation] = elevation
	aggregates[badge.CategoryStreak] = float64(longestStreak)
	return aggregates, nil
}

func (s *BadgeService) thresholdBadges(ctx context.Context) (map[string]*badge.Badge, error) {
	rows, err := s.db.Query(ctx, `
	SELECT id, name, description, icon_name, category, rarity, threshold, points, created_at
	FROM badges
	WHERE category IN ('streak', 'distance', 'elevation')
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch badge definitions: %w", err)
	}
	defer rows.Close()

	definitions := make(map[string]*badge.Badge)
	for rows.Next() {
		b := &badge.Badge{}
		err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.IconName, &b.Category, &b.Rarity, &b.Threshold, &b.Points, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan badge definition: %w", err)
		}
		definitions[thresholdKey(b.Category, b.Threshold)] = b
	}
	return definitions, rows.Err()
}

func (s *BadgeService) notifyBadge(ctx context.Context, userID uuid.UUID, def *badge.Badge) {
	if s.notifications == nil {
		return
	}
	err := s.notifications.Notify(ctx, userID, notification.NotificationBadgeEarned,
		"Badge earned!", fmt.Sprintf("You earned the %s badge.", def.Name),
		map[string]any{"badge_id": def.ID.String(), "rarity": def.Rarity})
	if err != nil {
		log.Printf("notifyBadge: %v", err)
	}
}

func thresholdKey(c badge.Category, threshold float64) string {
	return fmt.Sprintf("%s:%.0f", c, threshold)
}
