package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/bestpractice116/liminal-umbrella/internal/database/dbretry"
	"github.com/bestpractice116/liminal-umbrella/internal/database/types"
)

// GreetingModel handles database operations for greeting message
// references.
type GreetingModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewGreeting creates a new greeting model instance.
func NewGreeting(db *bun.DB, logger *zap.Logger) *GreetingModel {
	return &GreetingModel{
		db:     db,
		logger: logger.Named("db_greeting"),
	}
}

// Add records the greeting message posted for a user. A rejoin replaces
// any stale reference from a previous join.
func (m *GreetingModel) Add(ctx context.Context, userID, messageID uint64, at time.Time) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(&types.GreetingMessage{
				UserID:    userID,
				MessageID: messageID,
				CreatedAt: at,
			}).
			On("CONFLICT (user_id) DO UPDATE").
			Set("message_id = EXCLUDED.message_id").
			Set("created_at = EXCLUDED.created_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to add greeting: %w", err)
		}

		return nil
	})
}

// Remove deletes the user's greeting reference and returns the recorded
// message id, or zero when none was recorded.
func (m *GreetingModel) Remove(ctx context.Context, userID uint64) (uint64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (uint64, error) {
		greeting := new(types.GreetingMessage)

		err := m.db.NewDelete().
			Model(greeting).
			Where("user_id = ?", userID).
			Returning("message_id").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}

		if err != nil {
			return 0, fmt.Errorf("failed to remove greeting: %w", err)
		}

		m.logger.Debug("Removed greeting",
			zap.Uint64("userID", userID),
			zap.Uint64("messageID", greeting.MessageID))

		return greeting.MessageID, nil
	})
}
