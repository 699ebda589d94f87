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

// MemberModel handles database operations for mirrored guild members.
type MemberModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewMember creates a new member model instance.
func NewMember(db *bun.DB, logger *zap.Logger) *MemberModel {
	return &MemberModel{
		db:     db,
		logger: logger.Named("db_member"),
	}
}

// Get returns the member with the given id, or nil when no row exists.
func (m *MemberModel) Get(ctx context.Context, id uint64) (*types.Member, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Member, error) {
		member := new(types.Member)

		err := m.db.NewSelect().
			Model(member).
			Where("id = ?", id).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		if err != nil {
			return nil, fmt.Errorf("failed to get member: %w", err)
		}

		return member, nil
	})
}

// ActiveMap returns every member that has not left, keyed by id.
func (m *MemberModel) ActiveMap(ctx context.Context) (map[uint64]*types.Member, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (map[uint64]*types.Member, error) {
		var members []*types.Member

		err := m.db.NewSelect().
			Model(&members).
			Where(`"left" = FALSE`).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load active members: %w", err)
		}

		out := make(map[uint64]*types.Member, len(members))
		for _, member := range members {
			out[member.ID] = member
		}

		return out, nil
	})
}

// Create inserts a new member row.
func (m *MemberModel) Create(ctx context.Context, member *types.Member) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(member).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create member: %w", err)
		}

		m.logger.Debug("Created member", zap.Uint64("userID", member.ID))

		return nil
	})
}

// Save writes all columns of an existing member row.
func (m *MemberModel) Save(ctx context.Context, member *types.Member) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().
			Model(member).
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save member: %w", err)
		}

		return nil
	})
}

// RoleIDs returns the ids of the roles the member currently holds.
func (m *MemberModel) RoleIDs(ctx context.Context, memberID uint64) ([]uint64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]uint64, error) {
		var roleIDs []uint64

		err := m.db.NewSelect().
			Model((*types.MemberRole)(nil)).
			Column("role_id").
			Where("member_id = ?", memberID).
			Order("role_id ASC").
			Scan(ctx, &roleIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to get member roles: %w", err)
		}

		return roleIDs, nil
	})
}

// SetRoles replaces the member's role associations with the given set.
func (m *MemberModel) SetRoles(ctx context.Context, memberID uint64, roleIDs []uint64) error {
	return dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*types.MemberRole)(nil)).
			Where("member_id = ?", memberID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear member roles: %w", err)
		}

		if len(roleIDs) == 0 {
			return nil
		}

		rows := make([]*types.MemberRole, 0, len(roleIDs))
		for _, roleID := range roleIDs {
			rows = append(rows, &types.MemberRole{MemberID: memberID, RoleID: roleID})
		}

		_, err = tx.NewInsert().
			Model(&rows).
			On("CONFLICT (member_id, role_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set member roles: %w", err)
		}

		return nil
	})
}

// SetLastSeen advances the member's last-seen timestamp.
func (m *MemberModel) SetLastSeen(ctx context.Context, memberID uint64, seenAt time.Time) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().
			Model((*types.Member)(nil)).
			Set("last_seen_at = ?", seenAt).
			Where("id = ? AND (last_seen_at IS NULL OR last_seen_at < ?)", memberID, seenAt).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set last seen: %w", err)
		}

		return nil
	})
}
