package workers

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"trailQuestAPI/services"
)

// StartBadgeSweep runs a periodic badge check over users with recent
// activity. The award insert is idempotent, so overlap with the per-request
// checks is harmless.
func StartBadgeSweep(db *pgxpool.Pool, badges *services.BadgeService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			sweep(db, badges, interval)
		}
	}()
	log.Printf("Badge sweep worker started (every %s)", interval)
}

func sweep(db *pgxpool.Pool, badges *services.BadgeService, interval time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Look back two intervals so a slow previous sweep cannot skip anyone.
	cutoff := time.Now().Add(-2 * interval)

	rows, err := db.Query(ctx, `
	SELECT user_id FROM workouts WHERE created_at > $1
	UNION
	SELECT user_id FROM user_challenge_progress WHERE updated_at > $1
	`, cutoff)
	if err != nil {
		log.Printf("Badge sweep: failed to list active users: %v", err)
		return
	}
	defer rows.Close()

	var userIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			log.Printf("Badge sweep: scan failed: %v", err)
			return
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		log.Printf("Badge sweep: %v", err)
		return
	}
	rows.Close()

	awarded := 0
	for _, userID := range userIDs {
		newBadges, err := badges.CheckAndAwardBadges(ctx, userID)
		if err != nil {
			log.Printf("Badge sweep: check failed for %s: %v", userID, err)
			continue
		}
		awarded += len(newBadges)
	}
	if awarded > 0 {
		log.Printf("Badge sweep: awarded %d badges across %d users", awarded, len(userIDs))
	}
}
