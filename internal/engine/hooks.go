package engine

import (
	"context"
	"fmt"

	"github.com/bestpractice116/liminal-umbrella/internal/remote"
)

// Live-update hooks. Gateway events arriving while a bulk sync is in
// progress reuse the same per-entity primitives as the bulk pass, queued
// behind any in-flight operation on the same user key so non-atomic
// read-modify-write sequences never interleave.

// HandleMemberJoin mirrors a member who just joined the guild.
func (e *Engine) HandleMemberJoin(ctx context.Context, member remote.Member) error {
	return e.userTasks.Do(ctx, member.ID, func(ctx context.Context) error {
		return e.memberAdd(ctx, &member)
	})
}

// HandleMemberUpdate applies a live member update. Unknown members are
// ignored; the next bulk pass will pick them up.
func (e *Engine) HandleMemberUpdate(ctx context.Context, member remote.Member) error {
	return e.userTasks.Do(ctx, member.ID, func(ctx context.Context) error {
		stored, err := e.store.Members.Get(ctx, member.ID)
		if err != nil {
			return err
		}

		if stored == nil || stored.Left {
			return nil
		}

		return e.memberUpdate(ctx, &member, stored)
	})
}

// HandleMemberLeave soft-deletes a member who just left the guild.
func (e *Engine) HandleMemberLeave(ctx context.Context, userID uint64) error {
	return e.userTasks.Do(ctx, userID, func(ctx context.Context) error {
		stored, err := e.store.Members.Get(ctx, userID)
		if err != nil {
			return err
		}

		if stored == nil || stored.Left {
			return nil
		}

		return e.memberRemove(ctx, stored)
	})
}

// HandleMessage merges a live message create or edit into the mirror.
// Keyed on the owning container so a gateway burst for the same message,
// or a live event racing the bulk crawl of the same channel, serializes
// with the in-flight merge instead of double-creating the row.
func (e *Engine) HandleMessage(ctx context.Context, message remote.Message) error {
	return e.channelTasks.Do(ctx, message.ChannelID, func(ctx context.Context) error {
		if err := e.indexMessage(ctx, &message); err != nil {
			return fmt.Errorf("index live message %d: %w", message.ID, err)
		}

		return nil
	})
}

// HandleInterestAdd records live scheduled-event interest.
func (e *Engine) HandleInterestAdd(ctx context.Context, eventID, userID uint64) error {
	return e.userTasks.Do(ctx, userID, func(ctx context.Context) error {
		return e.AddUserInterestedInEvent(ctx, eventID, userID)
	})
}

// HandleInterestRemove drops live scheduled-event interest.
func (e *Engine) HandleInterestRemove(ctx context.Context, eventID, userID uint64) error {
	return e.userTasks.Do(ctx, userID, func(ctx context.Context) error {
		return e.removeUserInterest(ctx, eventID, userID)
	})
}
