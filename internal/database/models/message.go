package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/bestpractice116/liminal-umbrella/internal/database/dbretry"
	"github.com/bestpractice116/liminal-umbrella/internal/database/types"
)

// MessageModel handles database operations for indexed messages.
type MessageModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewMessage creates a new message model instance.
func NewMessage(db *bun.DB, logger *zap.Logger) *MessageModel {
	return &MessageModel{
		db:     db,
		logger: logger.Named("db_message"),
	}
}

// Get returns the message with the given id, or nil when no row exists.
func (m *MessageModel) Get(ctx context.Context, id uint64) (*types.Message, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Message, error) {
		message := new(types.Message)

		err := m.db.NewSelect().
			Model(message).
			Where("id = ?", id).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		if err != nil {
			return nil, fmt.Errorf("failed to get message: %w", err)
		}

		return message, nil
	})
}

// Create inserts a new message row. Concurrent indexers may race on the
// same message id, so duplicate inserts are absorbed.
func (m *MessageModel) Create(ctx context.Context, message *types.Message) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(message).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}

		return nil
	})
}

// Save writes all columns of an existing message row.
func (m *MessageModel) Save(ctx context.Context, message *types.Message) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().
			Model(message).
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}

		return nil
	})
}
