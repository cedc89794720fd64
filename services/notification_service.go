package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"trailQuestAPI/internal/types/notification"
)

// PushProvider delivers a push message to a set of device tokens. The FCM
// implementation lives in internal/notification; a nil provider disables
// push without disabling stored notifications.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

type NotificationService struct {
	db       *pgxpool.Pool
	provider PushProvider
}

func NewNotificationService(db *pgxpool.Pool) *NotificationService {
	return &NotificationService{db: db}
}

func (s *NotificationService) SetPushProvider(p PushProvider) {
	s.provider = p
}

// Notify stores a notification row and pushes it to the user's devices.
// Push delivery is best effort: a provider failure never fails the caller.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, typ notification.NotificationType, title, body string, data map[string]any) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal notification data: %w", err)
	}

	query := `
	INSERT INTO notifications (id, user_id, type, title, body, data, is_read, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, false, NOW())
	`
	_, err = s.db.Exec(ctx, query, uuid.New(), userID, typ, title, body, dataJSON)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if s.provider == nil {
		return nil
	}

	tokens, err := s.deviceTokens(ctx, userID)
	if err != nil {
		log.Printf("Notify: failed to load device tokens for %s: %v", userID, err)
		return nil
	}
	if len(tokens) == 0 {
		return nil
	}

	go func() {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.provider.SendPush(pushCtx, tokens, title, body, data); err != nil {
			log.Printf("Notify: push delivery failed for %s: %v", userID, err)
		}
	}()

	return nil
}

func (s *NotificationService) RegisterDevice(ctx context.Context, clerkID string, req *notification.RegisterDeviceRequest) error {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO user_devices (user_id, token, platform, created_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (token) DO UPDATE SET user_id = $1, platform = $3
	`
	_, err = s.db.Exec(ctx, query, userID, req.Token, req.Platform)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

func (s *NotificationService) deviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `SELECT token, platform FROM user_devices WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.Token, &t.Platform); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
