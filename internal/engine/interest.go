package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bestpractice116/liminal-umbrella/internal/events"
)

// SyncEvents reconciles scheduled-event subscriber lists against the
// locally recorded interest rows.
func (e *Engine) SyncEvents(ctx context.Context) error {
	scheduled, err := e.source.FetchScheduledEvents(ctx)
	if err != nil {
		return fmt.Errorf("fetch scheduled events: %w", err)
	}

	for _, event := range scheduled {
		subscribers, err := e.source.FetchSubscribers(ctx, event.ID)
		if err != nil {
			return fmt.Errorf("fetch subscribers for event %d: %w", event.ID, err)
		}

		live := make(map[uint64]struct{}, len(subscribers))

		for _, userID := range subscribers {
			live[userID] = struct{}{}

			if err := e.AddUserInterestedInEvent(ctx, event.ID, userID); err != nil {
				return err
			}
		}

		recorded, err := e.store.Interests.ForEvent(ctx, event.ID)
		if err != nil {
			return err
		}

		for _, interest := range recorded {
			if _, ok := live[interest.UserID]; ok {
				continue
			}

			if err := e.removeUserInterest(ctx, event.ID, interest.UserID); err != nil {
				return err
			}
		}
	}

	return nil
}

// AddUserInterestedInEvent records a user's interest in a scheduled
// event. Idempotent: an InterestGained event is emitted only when the
// record is actually created.
func (e *Engine) AddUserInterestedInEvent(ctx context.Context, eventID, userID uint64) error {
	created, err := e.store.Interests.Add(ctx, eventID, userID, e.clock())
	if err != nil {
		return fmt.Errorf("record interest (event %d, user %d): %w", eventID, userID, err)
	}

	if created {
		e.bus.Publish(events.InterestGained{EventID: eventID, UserID: userID})
	}

	return nil
}

// removeUserInterest drops a stale interest record. When the user is
// still resolvable as a guild member an InterestLost event is emitted;
// a fully departed user is cleaned up silently because the user-left
// path already handled notification.
func (e *Engine) removeUserInterest(ctx context.Context, eventID, userID uint64) error {
	member, err := e.store.Members.Get(ctx, userID)
	if err != nil {
		return err
	}

	if member != nil && !member.Left {
		e.bus.Publish(events.InterestLost{EventID: eventID, UserID: userID})
	} else {
		e.logger.Debug("Dropping interest for departed user",
			zap.Uint64("eventID", eventID),
			zap.Uint64("userID", userID))
	}

	return e.store.Interests.Remove(ctx, eventID, userID)
}
