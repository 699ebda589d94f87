package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/bestpractice116/liminal-umbrella/internal/database/types"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.Member)(nil),
			(*types.MemberRole)(nil),
			(*types.Role)(nil),
			(*types.Channel)(nil),
			(*types.Thread)(nil),
			(*types.Message)(nil),
			(*types.Watermark)(nil),
			(*types.EventInterest)(nil),
			(*types.GreetingMessage)(nil),
			(*types.GameSignup)(nil),
		}

		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table %T: %w", model, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		// Down migration - drop all tables
		models := []any{
			(*types.GameSignup)(nil),
			(*types.GreetingMessage)(nil),
			(*types.EventInterest)(nil),
			(*types.Watermark)(nil),
			(*types.Message)(nil),
			(*types.Thread)(nil),
			(*types.Channel)(nil),
			(*types.Role)(nil),
			(*types.MemberRole)(nil),
			(*types.Member)(nil),
		}

		for _, model := range models {
			_, err := db.NewDropTable().
				Model(model).
				IfExists().
				Cascade().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table %T: %w", model, err)
			}
		}

		return nil
	})
}
