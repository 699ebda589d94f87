package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bestpractice116/liminal-umbrella/internal/database/types"
	"github.com/bestpractice116/liminal-umbrella/internal/remote"
)

// SyncChannel brings one mirrored channel's message index and thread set
// up to date. The call is serialized per channel key and idempotent per
// process run: a channel already handled this run is skipped, which
// prevents double-processing when both direct calls and recursive thread
// discovery reach the same id.
func (e *Engine) SyncChannel(ctx context.Context, channelID uint64) error {
	return e.channelTasks.Do(ctx, channelID, func(ctx context.Context) error {
		return e.syncChannel(ctx, channelID)
	})
}

func (e *Engine) syncChannel(ctx context.Context, channelID uint64) error {
	if !e.markSynced(channelID) {
		return nil
	}

	channel, err := e.store.Channels.Get(ctx, channelID)
	if err != nil {
		return err
	}

	if channel == nil {
		return fmt.Errorf("%w: %d", ErrChannelNotTracked, channelID)
	}

	ctype := remote.ChannelType(channel.Type)

	if ctype.HostsMessages() && e.markIndexed(channelID) {
		earliest := channel.IndexedTo

		latest, err := e.fetchAndStoreMessages(ctx, channelID, earliest)
		if err != nil {
			return err
		}

		cursor := earliest
		if latest.After(earliest) {
			cursor = latest
		}

		if !channel.Synced || cursor.After(earliest) {
			if err := e.store.Channels.SetIndexed(ctx, channelID, cursor); err != nil {
				return err
			}
		}
	}

	if ctype.HostsThreads() {
		if err := e.syncChannelThreads(ctx, channel); err != nil {
			return err
		}
	}

	return nil
}

// syncChannelThreads discovers the channel's archived and active threads
// and hands each to syncThread. Archived threads are paged backwards,
// cursor = oldest thread id seen, until the adapter reports no more.
func (e *Engine) syncChannelThreads(ctx context.Context, channel *types.Channel) error {
	var before uint64

	for {
		threads, more, err := e.source.FetchArchivedThreads(ctx, channel.ID, before, pageSize)
		if err != nil {
			return fmt.Errorf("fetch archived threads for %d: %w", channel.ID, err)
		}

		for i := range threads {
			rt := &threads[i]

			if before == 0 || rt.ID < before {
				before = rt.ID
			}

			if err := e.syncThread(ctx, rt); err != nil {
				return err
			}
		}

		if !more || len(threads) == 0 {
			break
		}

		if err := e.sleep(ctx); err != nil {
			return err
		}
	}

	active, err := e.source.FetchActiveThreads(ctx, channel.ID)
	if err != nil {
		return fmt.Errorf("fetch active threads for %d: %w", channel.ID, err)
	}

	for i := range active {
		if err := e.syncThread(ctx, &active[i]); err != nil {
			return err
		}
	}

	return nil
}

// syncThread merges one discovered thread. When the stored record
// already agrees with the remote on every tracked field nothing happens.
// Indexing re-runs from the stored cursor when the archive timestamp or
// last message id drifted; metadata is written only when at least one
// tracked field actually differs.
func (e *Engine) syncThread(ctx context.Context, rt *remote.Thread) error {
	if !e.markSynced(rt.ID) {
		return nil
	}

	stored, err := e.store.Threads.Get(ctx, rt.ID)
	if err != nil {
		return err
	}

	if stored != nil &&
		stored.Archived == rt.Archived &&
		stored.Locked == rt.Locked &&
		stored.ArchiveTimestamp.Equal(rt.ArchiveTimestamp) &&
		stored.LastMessageID == rt.LastMessageID {
		return nil
	}

	if stored == nil {
		// The row must exist before indexing so the message merge can
		// resolve the thread as a tracked container.
		stored = threadRow(rt)
		if err := e.store.Threads.Create(ctx, stored); err != nil {
			return err
		}

		if err := e.indexThread(ctx, rt, stored); err != nil {
			return err
		}

		return nil
	}

	needIndex := !stored.ArchiveTimestamp.Equal(rt.ArchiveTimestamp) ||
		stored.LastMessageID != rt.LastMessageID

	if needIndex {
		if err := e.indexThread(ctx, rt, stored); err != nil {
			return err
		}
	}

	if copyThreadFields(stored, rt) {
		if err := e.store.Threads.Save(ctx, stored); err != nil {
			return err
		}
	}

	return nil
}

// indexThread runs the message indexer over a thread from its stored
// cursor and persists the advanced cursor.
func (e *Engine) indexThread(ctx context.Context, rt *remote.Thread, stored *types.Thread) error {
	if !e.markIndexed(rt.ID) {
		return nil
	}

	e.logger.Debug("Indexing thread",
		zap.Uint64("threadID", rt.ID),
		zap.Uint64("parentID", rt.ParentID),
		zap.Time("cursor", stored.IndexedTo))

	latest, err := e.fetchAndStoreMessages(ctx, rt.ID, stored.IndexedTo)
	if err != nil {
		return err
	}

	if latest.After(stored.IndexedTo) {
		stored.IndexedTo = latest

		return e.store.Threads.SetIndexed(ctx, rt.ID, latest)
	}

	return nil
}

func threadRow(rt *remote.Thread) *types.Thread {
	row := &types.Thread{ID: rt.ID, CreatedAt: rt.CreatedAt}
	copyThreadFields(row, rt)

	return row
}

// copyThreadFields applies the remote snapshot and reports whether any
// tracked field changed. IndexedTo is cursor state owned by indexThread.
func copyThreadFields(row *types.Thread, rt *remote.Thread) bool {
	changed := row.Name != rt.Name ||
		row.ParentID != rt.ParentID ||
		row.Archived != rt.Archived ||
		!row.ArchiveTimestamp.Equal(rt.ArchiveTimestamp) ||
		row.Locked != rt.Locked ||
		row.LastMessageID != rt.LastMessageID

	row.Name = rt.Name
	row.ParentID = rt.ParentID
	row.Archived = rt.Archived
	row.ArchiveTimestamp = rt.ArchiveTimestamp
	row.Locked = rt.Locked
	row.LastMessageID = rt.LastMessageID

	return changed
}
