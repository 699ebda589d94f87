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

// SignupModel handles database operations for game-session signups.
type SignupModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewSignup creates a new signup model instance.
func NewSignup(db *bun.DB, logger *zap.Logger) *SignupModel {
	return &SignupModel{
		db:     db,
		logger: logger.Named("db_signup"),
	}
}

// Add records a signup for the given user and game session.
func (m *SignupModel) Add(ctx context.Context, userID, gameID uint64, at time.Time) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(&types.GameSignup{
				UserID:    userID,
				GameID:    gameID,
				CreatedAt: at,
			}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to add signup: %w", err)
		}

		return nil
	})
}

// RemoveForUser deletes every signup belonging to the user.
func (m *SignupModel) RemoveForUser(ctx context.Context, userID uint64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewDelete().
			Model((*types.GameSignup)(nil)).
			Where("user_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to remove user signups: %w", err)
		}

		if affected, err := res.RowsAffected(); err == nil && affected > 0 {
			m.logger.Debug("Removed user signups",
				zap.Uint64("userID", userID),
				zap.Int64("count", affected))
		}

		return nil
	})
}
