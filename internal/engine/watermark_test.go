package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetHighestWatermark(t *testing.T) {
	t.Parallel()

	t.Run("commits forward movement only", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		source := newFakeSource()
		eng, _, clock := newTestEngine(t, store, source)

		now := clock.Now()

		require.NoError(t, eng.SetHighestWatermark(context.Background(), now))
		assert.Equal(t, now, eng.Watermark())
		assert.Equal(t, 1, store.watermarkCommits)

		// Older and equal values are dropped without a store write.
		require.NoError(t, eng.SetHighestWatermark(context.Background(), now.Add(-time.Minute)))
		require.NoError(t, eng.SetHighestWatermark(context.Background(), now))

		assert.Equal(t, now, eng.Watermark())
		assert.Equal(t, 1, store.watermarkCommits)
	})
}

func TestTickWatermark(t *testing.T) {
	t.Parallel()

	t.Run("establishes the first watermark behind the clock", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		source := newFakeSource()
		eng, _, clock := newTestEngine(t, store, source)

		require.True(t, eng.Watermark().IsZero())
		require.NoError(t, eng.TickWatermark(context.Background()))

		assert.Equal(t, clock.Now().Add(-5*time.Second), eng.Watermark())
		assert.Equal(t, store.watermark, eng.Watermark())
	})

	t.Run("advances with the clock across passes", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		source := newFakeSource()
		eng, _, clock := newTestEngine(t, store, source)

		require.NoError(t, eng.TickWatermark(context.Background()))
		first := eng.Watermark()

		clock.Advance(15 * time.Minute)
		require.NoError(t, eng.TickWatermark(context.Background()))

		assert.Equal(t, first.Add(15*time.Minute), eng.Watermark())
	})
}

func TestMaybeSetHighestWatermark(t *testing.T) {
	t.Parallel()

	t.Run("never writes while bootstrapping", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		source := newFakeSource()
		eng, _, clock := newTestEngine(t, store, source)

		require.NoError(t, eng.MaybeSetHighestWatermark(context.Background(), clock.Now()))

		assert.True(t, eng.Watermark().IsZero())
		assert.Zero(t, store.watermarkCommits)
	})

	t.Run("debounces a burst of mutations into one commit", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		source := newFakeSource()
		eng, _, clock := newTestEngine(t, store, source)

		require.NoError(t, eng.TickWatermark(context.Background()))
		require.Equal(t, 1, store.watermarkCommits)

		// Mutations within the debounce window leave the stored value alone.
		clock.Advance(2 * time.Second)
		require.NoError(t, eng.MaybeSetHighestWatermark(context.Background(), clock.Now()))
		clock.Advance(2 * time.Second)
		require.NoError(t, eng.MaybeSetHighestWatermark(context.Background(), clock.Now()))

		assert.Equal(t, 1, store.watermarkCommits)

		// Once the watermark ages past the window the next mutation commits.
		clock.Advance(10 * time.Second)
		require.NoError(t, eng.MaybeSetHighestWatermark(context.Background(), clock.Now()))

		assert.Equal(t, 2, store.watermarkCommits)
		assert.Equal(t, clock.Now().Add(-5*time.Second), eng.Watermark())
	})
}
