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

// ThreadModel handles database operations for mirrored threads.
type ThreadModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewThread creates a new thread model instance.
func NewThread(db *bun.DB, logger *zap.Logger) *ThreadModel {
	return &ThreadModel{
		db:     db,
		logger: logger.Named("db_thread"),
	}
}

// Get returns the thread with the given id, or nil when no row exists.
func (m *ThreadModel) Get(ctx context.Context, id uint64) (*types.Thread, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Thread, error) {
		thread := new(types.Thread)

		err := m.db.NewSelect().
			Model(thread).
			Where("id = ?", id).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		if err != nil {
			return nil, fmt.Errorf("failed to get thread: %w", err)
		}

		return thread, nil
	})
}

// Create inserts a new thread row.
func (m *ThreadModel) Create(ctx context.Context, thread *types.Thread) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(thread).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create thread: %w", err)
		}

		m.logger.Debug("Created thread",
			zap.Uint64("threadID", thread.ID),
			zap.Uint64("parentID", thread.ParentID))

		return nil
	})
}

// Save writes all columns of an existing thread row.
func (m *ThreadModel) Save(ctx context.Context, thread *types.Thread) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().
			Model(thread).
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save thread: %w", err)
		}

		return nil
	})
}

// SetIndexed advances the thread's indexing cursor.
func (m *ThreadModel) SetIndexed(ctx context.Context, id uint64, indexedTo time.Time) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().
			Model((*types.Thread)(nil)).
			Set("indexed_to = ?", indexedTo).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set thread cursor: %w", err)
		}

		return nil
	})
}
