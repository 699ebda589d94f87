package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/bestpractice116/liminal-umbrella/internal/database/types"
	"github.com/bestpractice116/liminal-umbrella/internal/events"
	"github.com/bestpractice116/liminal-umbrella/internal/remote"
)

// IndexChannels walks every mirrored channel that can carry messages or
// threads and brings its index up to date. Channels are pipelined across
// a bounded worker pool; each individual channel remains serialized by
// the per-key queue inside SyncChannel. A failure on one channel is
// logged and does not abort the others, since each channel resumes from
// its own persisted cursor on the next pass.
func (e *Engine) IndexChannels(ctx context.Context) error {
	channels, err := e.store.Channels.Map(ctx)
	if err != nil {
		return fmt.Errorf("load mirrored channels: %w", err)
	}

	p := pool.New().WithContext(ctx).WithMaxGoroutines(e.indexWorkers)

	for id, channel := range channels {
		ctype := remote.ChannelType(channel.Type)
		if !ctype.HostsMessages() && !ctype.HostsThreads() {
			continue
		}

		p.Go(func(ctx context.Context) error {
			if err := e.SyncChannel(ctx, id); err != nil {
				if remote.IsTransient(err) {
					e.logger.Warn("Channel indexing rate limited, will resume next pass",
						zap.Uint64("channelID", id),
						zap.Error(err))

					return nil
				}

				e.logger.Error("Channel indexing failed",
					zap.Uint64("channelID", id),
					zap.Error(err))
			}

			return nil
		})
	}

	return p.Wait()
}

// fetchAndStoreMessages crawls a channel's or thread's history backwards
// in pages of pageSize, merging every message into the mirror, until the
// remote is exhausted or the crawl reaches earliest. Returns the maximum
// creation timestamp observed, which becomes the new resumption cursor.
// The cursor only ever covers durably indexed pages: a failure mid-crawl
// loses nothing that was already stored.
func (e *Engine) fetchAndStoreMessages(ctx context.Context, containerID uint64, earliest time.Time) (time.Time, error) {
	var (
		latest time.Time
		before uint64
	)

	for {
		page, err := e.source.FetchMessages(ctx, containerID, pageSize, before)
		if err != nil {
			return latest, fmt.Errorf("fetch messages for %d: %w", containerID, err)
		}

		var (
			oldest   time.Time
			oldestID uint64
		)

		for i := range page {
			msg := &page[i]

			if oldestID == 0 || msg.CreatedAt.Before(oldest) {
				oldest = msg.CreatedAt
				oldestID = msg.ID
			}

			if msg.CreatedAt.After(latest) {
				latest = msg.CreatedAt
			}

			if err := e.indexMessage(ctx, msg); err != nil {
				return latest, fmt.Errorf("index message %d: %w", msg.ID, err)
			}
		}

		if len(page) < pageSize {
			break // remote exhausted
		}

		if !oldest.After(earliest) {
			break // resumption point reached
		}

		before = oldestID

		if err := e.sleep(ctx); err != nil {
			return latest, err
		}
	}

	return latest, nil
}

// indexMessage merges one remote message into the mirror. Unchanged
// messages produce no write; a stored message is overwritten only when
// its edit timestamp advanced or its thread/pin state changed. The
// author's last-seen time advances in either case.
func (e *Engine) indexMessage(ctx context.Context, rm *remote.Message) error {
	e.touchLastSeen(ctx, rm)

	tracked, err := e.containerTracked(ctx, rm.ChannelID)
	if err != nil {
		return err
	}

	if !tracked {
		// The owning channel is not mirrored for indexing. Soft skip: the
		// last-seen cache above still advanced.
		e.logger.Debug("Skipping message for untracked channel",
			zap.Uint64("channelID", rm.ChannelID),
			zap.Uint64("messageID", rm.ID))

		return nil
	}

	stored, err := e.store.Messages.Get(ctx, rm.ID)
	if err != nil {
		return err
	}

	if stored == nil {
		if err := e.store.Messages.Create(ctx, messageRow(rm)); err != nil {
			return err
		}

		e.bus.Publish(events.MessageAdded{
			MessageID: rm.ID,
			ChannelID: rm.ChannelID,
			AuthorID:  rm.AuthorID,
		})

		return e.MaybeSetHighestWatermark(ctx, e.clock())
	}

	editAdvanced := rm.EditedAt != nil && (stored.EditedAt == nil || stored.EditedAt.Before(*rm.EditedAt))
	if !editAdvanced && stored.HasThread == rm.HasThread && stored.Pinned == rm.Pinned {
		return nil
	}

	stored.Content = rm.Content
	stored.EditedAt = rm.EditedAt
	stored.HasThread = rm.HasThread
	stored.EmbedCount = rm.EmbedCount
	stored.Pinned = rm.Pinned

	// The thread may not have existed when the message was first indexed.
	if stored.HasThread {
		stored.ThreadID = rm.ThreadID
	}

	if err := e.store.Messages.Save(ctx, stored); err != nil {
		return err
	}

	e.bus.Publish(events.MessageUpdated{
		MessageID: rm.ID,
		ChannelID: rm.ChannelID,
		AuthorID:  rm.AuthorID,
	})

	return e.MaybeSetHighestWatermark(ctx, e.clock())
}

// containerTracked reports whether messages for this container id can be
// persisted: the id must resolve to a mirrored channel or thread.
func (e *Engine) containerTracked(ctx context.Context, id uint64) (bool, error) {
	channel, err := e.store.Channels.Get(ctx, id)
	if err != nil {
		return false, err
	}

	if channel != nil {
		return true, nil
	}

	thread, err := e.store.Threads.Get(ctx, id)
	if err != nil {
		return false, err
	}

	return thread != nil, nil
}

// touchLastSeen advances the author's last-seen timestamp when the
// message is newer than anything previously recorded for them. The
// in-memory cache throttles the store write so a burst of old history
// pages does not rewrite the member row once per message.
func (e *Engine) touchLastSeen(ctx context.Context, rm *remote.Message) {
	if rm.AuthorBot {
		return
	}

	e.mu.Lock()

	if prev, ok := e.usersLastSeen[rm.AuthorID]; ok && !rm.CreatedAt.After(prev) {
		e.mu.Unlock()
		return
	}

	e.usersLastSeen[rm.AuthorID] = rm.CreatedAt

	e.mu.Unlock()

	member, err := e.store.Members.Get(ctx, rm.AuthorID)
	if err != nil {
		e.logger.Warn("Failed to resolve message author",
			zap.Uint64("userID", rm.AuthorID),
			zap.Error(err))

		return
	}

	if member == nil || member.Left || member.Bot {
		return
	}

	if !rm.CreatedAt.After(member.LastSeenAt) {
		return
	}

	if err := e.store.Members.SetLastSeen(ctx, rm.AuthorID, rm.CreatedAt); err != nil {
		e.logger.Warn("Failed to advance last-seen timestamp",
			zap.Uint64("userID", rm.AuthorID),
			zap.Error(err))
	}
}

func messageRow(rm *remote.Message) *types.Message {
	return &types.Message{
		ID:            rm.ID,
		AuthorID:      rm.AuthorID,
		ChannelID:     rm.ChannelID,
		ApplicationID: rm.ApplicationID,
		Type:          rm.Type,
		Content:       rm.Content,
		CreatedAt:     rm.CreatedAt,
		EditedAt:      rm.EditedAt,
		HasThread:     rm.HasThread,
		ThreadID:      rm.ThreadID,
		EmbedCount:    rm.EmbedCount,
		Pinned:        rm.Pinned,
	}
}
