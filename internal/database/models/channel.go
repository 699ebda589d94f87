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

// ChannelModel handles database operations for mirrored guild channels.
type ChannelModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewChannel creates a new channel model instance.
func NewChannel(db *bun.DB, logger *zap.Logger) *ChannelModel {
	return &ChannelModel{
		db:     db,
		logger: logger.Named("db_channel"),
	}
}

// Get returns the channel with the given id, or nil when no row exists.
func (m *ChannelModel) Get(ctx context.Context, id uint64) (*types.Channel, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Channel, error) {
		channel := new(types.Channel)

		err := m.db.NewSelect().
			Model(channel).
			Where("id = ?", id).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		if err != nil {
			return nil, fmt.Errorf("failed to get channel: %w", err)
		}

		return channel, nil
	})
}

// Map returns every mirrored channel keyed by id.
func (m *ChannelModel) Map(ctx context.Context) (map[uint64]*types.Channel, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (map[uint64]*types.Channel, error) {
		var channels []*types.Channel

		err := m.db.NewSelect().
			Model(&channels).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load channels: %w", err)
		}

		out := make(map[uint64]*types.Channel, len(channels))
		for _, channel := range channels {
			out[channel.ID] = channel
		}

		return out, nil
	})
}

// Create inserts a new channel row.
func (m *ChannelModel) Create(ctx context.Context, channel *types.Channel) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(channel).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create channel: %w", err)
		}

		m.logger.Debug("Created channel",
			zap.Uint64("channelID", channel.ID),
			zap.String("type", channel.Type))

		return nil
	})
}

// Save writes all columns of an existing channel row.
func (m *ChannelModel) Save(ctx context.Context, channel *types.Channel) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().
			Model(channel).
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save channel: %w", err)
		}

		return nil
	})
}

// Delete removes the channel row.
func (m *ChannelModel) Delete(ctx context.Context, id uint64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewDelete().
			Model((*types.Channel)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete channel: %w", err)
		}

		m.logger.Debug("Deleted channel", zap.Uint64("channelID", id))

		return nil
	})
}

// SetIndexed advances the channel's indexing cursor and marks it synced.
func (m *ChannelModel) SetIndexed(ctx context.Context, id uint64, indexedTo time.Time) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().
			Model((*types.Channel)(nil)).
			Set("indexed_to = ?", indexedTo).
			Set("synced = TRUE").
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set channel cursor: %w", err)
		}

		return nil
	})
}
