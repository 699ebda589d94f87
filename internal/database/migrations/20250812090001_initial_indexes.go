package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			-- Message lookup indexes
			CREATE INDEX IF NOT EXISTS idx_messages_channel_created
			ON messages (channel_id, created_at DESC);

			CREATE INDEX IF NOT EXISTS idx_messages_author
			ON messages (author_id);

			-- Member role associations
			CREATE INDEX IF NOT EXISTS idx_member_roles_role
			ON member_roles (role_id);

			-- Thread discovery by parent channel
			CREATE INDEX IF NOT EXISTS idx_threads_parent
			ON threads (parent_id);

			-- Scheduled-event interest by user, for departure cascades
			CREATE INDEX IF NOT EXISTS idx_event_interests_user
			ON event_interests (user_id);

			-- Game signups by user, for departure cascades
			CREATE INDEX IF NOT EXISTS idx_game_signups_user
			ON game_signups (user_id);

			-- Watermark ordering
			CREATE INDEX IF NOT EXISTS idx_watermarks_time
			ON watermarks (time DESC);
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_watermarks_time;
			DROP INDEX IF EXISTS idx_game_signups_user;
			DROP INDEX IF EXISTS idx_event_interests_user;
			DROP INDEX IF EXISTS idx_threads_parent;
			DROP INDEX IF EXISTS idx_member_roles_role;
			DROP INDEX IF EXISTS idx_messages_author;
			DROP INDEX IF EXISTS idx_messages_channel_created;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop indexes: %w", err)
		}

		return nil
	})
}
