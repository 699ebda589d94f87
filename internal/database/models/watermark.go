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

// WatermarkModel handles database operations for the watermark log.
type WatermarkModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewWatermark creates a new watermark model instance.
func NewWatermark(db *bun.DB, logger *zap.Logger) *WatermarkModel {
	return &WatermarkModel{
		db:     db,
		logger: logger.Named("db_watermark"),
	}
}

// Current returns the newest committed watermark, or the zero time when
// the log is empty.
func (m *WatermarkModel) Current(ctx context.Context) (time.Time, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (time.Time, error) {
		watermark := new(types.Watermark)

		err := m.db.NewSelect().
			Model(watermark).
			Order("time DESC").
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}

		if err != nil {
			return time.Time{}, fmt.Errorf("failed to get watermark: %w", err)
		}

		return watermark.Time, nil
	})
}

// Commit appends a watermark entry and prunes strictly older rows.
func (m *WatermarkModel) Commit(ctx context.Context, at time.Time) error {
	return dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&types.Watermark{Time: at}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert watermark: %w", err)
		}

		_, err = tx.NewDelete().
			Model((*types.Watermark)(nil)).
			Where("time < ?", at).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to prune watermarks: %w", err)
		}

		m.logger.Debug("Committed watermark", zap.Time("at", at))

		return nil
	})
}
