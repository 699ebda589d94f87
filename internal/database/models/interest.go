package models

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/bestpractice116/liminal-umbrella/internal/database/dbretry"
	"github.com/bestpractice116/liminal-umbrella/internal/database/types"
)

// InterestModel handles database operations for scheduled-event interest.
type InterestModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewInterest creates a new interest model instance.
func NewInterest(db *bun.DB, logger *zap.Logger) *InterestModel {
	return &InterestModel{
		db:     db,
		logger: logger.Named("db_interest"),
	}
}

// Add records the user's interest in the event. It reports whether a new
// row was created; re-adding an existing subscription is a no-op.
func (m *InterestModel) Add(ctx context.Context, eventID, userID uint64, at time.Time) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		res, err := m.db.NewInsert().
			Model(&types.EventInterest{
				EventID:   eventID,
				UserID:    userID,
				CreatedAt: at,
			}).
			On("CONFLICT (event_id, user_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to add event interest: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to get affected rows: %w", err)
		}

		return affected > 0, nil
	})
}

// ForEvent returns every recorded interest row for the event.
func (m *InterestModel) ForEvent(ctx context.Context, eventID uint64) ([]*types.EventInterest, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.EventInterest, error) {
		var interests []*types.EventInterest

		err := m.db.NewSelect().
			Model(&interests).
			Where("event_id = ?", eventID).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load event interests: %w", err)
		}

		return interests, nil
	})
}

// Remove deletes the interest row for the given event and user.
func (m *InterestModel) Remove(ctx context.Context, eventID, userID uint64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewDelete().
			Model((*types.EventInterest)(nil)).
			Where("event_id = ? AND user_id = ?", eventID, userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to remove event interest: %w", err)
		}

		return nil
	})
}

// RemoveForUser deletes every interest row belonging to the user.
func (m *InterestModel) RemoveForUser(ctx context.Context, userID uint64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewDelete().
			Model((*types.EventInterest)(nil)).
			Where("user_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to remove user interests: %w", err)
		}

		if affected, err := res.RowsAffected(); err == nil && affected > 0 {
			m.logger.Debug("Removed user interests",
				zap.Uint64("userID", userID),
				zap.Int64("count", affected))
		}

		return nil
	})
}
