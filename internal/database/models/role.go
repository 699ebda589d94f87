package models

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/bestpractice116/liminal-umbrella/internal/database/dbretry"
	"github.com/bestpractice116/liminal-umbrella/internal/database/types"
)

// RoleModel handles database operations for mirrored guild roles.
type RoleModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewRole creates a new role model instance.
func NewRole(db *bun.DB, logger *zap.Logger) *RoleModel {
	return &RoleModel{
		db:     db,
		logger: logger.Named("db_role"),
	}
}

// Map returns every mirrored role keyed by id.
func (m *RoleModel) Map(ctx context.Context) (map[uint64]*types.Role, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (map[uint64]*types.Role, error) {
		var roles []*types.Role

		err := m.db.NewSelect().
			Model(&roles).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load roles: %w", err)
		}

		out := make(map[uint64]*types.Role, len(roles))
		for _, role := range roles {
			out[role.ID] = role
		}

		return out, nil
	})
}

// Create inserts a new role row.
func (m *RoleModel) Create(ctx context.Context, role *types.Role) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(role).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create role: %w", err)
		}

		m.logger.Debug("Created role", zap.Uint64("roleID", role.ID))

		return nil
	})
}

// Save writes all columns of an existing role row.
func (m *RoleModel) Save(ctx context.Context, role *types.Role) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().
			Model(role).
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save role: %w", err)
		}

		return nil
	})
}

// Delete removes the role row and any member associations pointing at it.
func (m *RoleModel) Delete(ctx context.Context, id uint64) error {
	return dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*types.MemberRole)(nil)).
			Where("role_id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear role associations: %w", err)
		}

		_, err = tx.NewDelete().
			Model((*types.Role)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}

		m.logger.Debug("Deleted role", zap.Uint64("roleID", id))

		return nil
	})
}
