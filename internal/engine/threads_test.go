package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestpractice116/liminal-umbrella/internal/database/types"
	"github.com/bestpractice116/liminal-umbrella/internal/engine"
	"github.com/bestpractice116/liminal-umbrella/internal/remote"
)

func TestSyncChannelThreads(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("discovers and indexes active and archived threads", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		source := newFakeSource()
		eng, recorder, clock := newTestEngine(t, store, source)
		seedWatermark(store, clock)

		seedChannel(store, source, 100, "general")

		source.activeThreads[100] = []remote.Thread{
			{ID: 500, Name: "open discussion", ParentID: 100, CreatedAt: base},
		}
		source.archivedThreads[100] = []remote.Thread{
			{ID: 400, Name: "old discussion", ParentID: 100, Archived: true, ArchiveTimestamp: base.Add(time.Hour), CreatedAt: base},
		}
		source.messages[500] = []remote.Message{
			{ID: 501, AuthorID: 10, ChannelID: 500, CreatedAt: base.Add(2 * time.Hour)},
		}
		source.messages[400] = []remote.Message{
			{ID: 401, AuthorID: 10, ChannelID: 400, CreatedAt: base.Add(time.Minute)},
		}

		require.NoError(t, eng.SyncChannel(context.Background(), 100))

		require.Len(t, store.threads, 2)
		assert.False(t, store.threads[500].Archived)
		assert.True(t, store.threads[400].Archived)

		// Thread messages landed because the thread row was created
		// before its history was crawled.
		require.Contains(t, store.messages, uint64(501))
		require.Contains(t, store.messages, uint64(401))
		assert.Equal(t, base.Add(2*time.Hour), store.threads[500].IndexedTo)
		require.Len(t, recorder.Named("messageAdded"), 2)
	})

	t.Run("unchanged threads short-circuit", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		source := newFakeSource()
		eng, _, _ := newTestEngine(t, store, source)

		seedChannel(store, source, 100, "general")
		source.activeThreads[100] = []remote.Thread{
			{ID: 500, Name: "chat", ParentID: 100, LastMessageID: 501, CreatedAt: base},
		}
		source.messages[500] = []remote.Message{
			{ID: 501, AuthorID: 10, ChannelID: 500, CreatedAt: base.Add(time.Minute)},
		}

		require.NoError(t, eng.SyncChannel(context.Background(), 100))

		eng.ResetRun()
		fetches := source.fetches(500)

		require.NoError(t, eng.SyncChannel(context.Background(), 100))

		assert.Zero(t, store.threadSaves)
		assert.Equal(t, fetches, source.fetches(500))
	})

	t.Run("last message drift re-runs the indexer from the cursor", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		source := newFakeSource()
		eng, _, _ := newTestEngine(t, store, source)

		seedChannel(store, source, 100, "general")
		source.activeThreads[100] = []remote.Thread{
			{ID: 500, Name: "chat", ParentID: 100, LastMessageID: 501, CreatedAt: base},
		}
		source.messages[500] = []remote.Message{
			{ID: 501, AuthorID: 10, ChannelID: 500, CreatedAt: base.Add(time.Minute)},
		}

		require.NoError(t, eng.SyncChannel(context.Background(), 100))
		require.Equal(t, base.Add(time.Minute), store.threads[500].IndexedTo)

		// A new message arrives in the thread.
		source.activeThreads[100][0].LastMessageID = 502
		source.messages[500] = []remote.Message{
			{ID: 502, AuthorID: 10, ChannelID: 500, CreatedAt: base.Add(2 * time.Minute)},
			{ID: 501, AuthorID: 10, ChannelID: 500, CreatedAt: base.Add(time.Minute)},
		}

		eng.ResetRun()
		require.NoError(t, eng.SyncChannel(context.Background(), 100))

		require.Contains(t, store.messages, uint64(502))
		assert.Equal(t, base.Add(2*time.Minute), store.threads[500].IndexedTo)
		assert.Equal(t, uint64(502), store.threads[500].LastMessageID)
		assert.Equal(t, 1, store.threadSaves)
	})

	t.Run("archive transition updates the stored record", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		source := newFakeSource()
		eng, _, _ := newTestEngine(t, store, source)

		seedChannel(store, source, 100, "general")
		source.activeThreads[100] = []remote.Thread{
			{ID: 500, Name: "chat", ParentID: 100, CreatedAt: base},
		}

		require.NoError(t, eng.SyncChannel(context.Background(), 100))
		require.False(t, store.threads[500].Archived)

		source.activeThreads[100] = nil
		source.archivedThreads[100] = []remote.Thread{
			{ID: 500, Name: "chat", ParentID: 100, Archived: true, ArchiveTimestamp: base.Add(time.Hour), CreatedAt: base},
		}

		eng.ResetRun()
		require.NoError(t, eng.SyncChannel(context.Background(), 100))

		assert.True(t, store.threads[500].Archived)
		assert.Equal(t, base.Add(time.Hour), store.threads[500].ArchiveTimestamp)
	})

	t.Run("forum channels track threads without a message index", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		source := newFakeSource()
		eng, _, _ := newTestEngine(t, store, source)

		store.channels[300] = &types.Channel{ID: 300, Name: "help", Type: "forum"}
		source.activeThreads[300] = []remote.Thread{
			{ID: 600, Name: "question", ParentID: 300, CreatedAt: base},
		}

		require.NoError(t, eng.SyncChannel(context.Background(), 300))

		// Threads were discovered but the forum container itself was
		// never crawled for messages.
		require.Len(t, store.threads, 1)
		assert.Zero(t, source.fetches(300))
		assert.Zero(t, store.setIndexedCalls)
	})
}

func TestSyncChannelUnknown(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	source := newFakeSource()
	eng, _, _ := newTestEngine(t, store, source)

	err := eng.SyncChannel(context.Background(), 12345)
	require.ErrorIs(t, err, engine.ErrChannelNotTracked)
}
