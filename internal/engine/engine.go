// Package engine implements guild-state synchronization and incremental
// message indexing against a relational mirror. A single Engine owns the
// run-scoped guard sets and the per-key serialization discipline; bulk
// sync passes and live gateway hooks share the same per-entity
// primitives so both paths converge on identical mirror state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bestpractice116/liminal-umbrella/internal/database/types"
	"github.com/bestpractice116/liminal-umbrella/internal/events"
	"github.com/bestpractice116/liminal-umbrella/internal/remote"
	"github.com/bestpractice116/liminal-umbrella/internal/serial"
)

const (
	// pageSize is the fixed message/thread page size for remote fetches.
	pageSize = 100

	defaultPace         = 1 * time.Second
	defaultIndexWorkers = 4
)

// ErrChannelNotTracked is returned when an operation names a channel the
// mirror has no record of. This is configuration drift, not a transient
// condition, and is surfaced as a hard failure.
var ErrChannelNotTracked = errors.New("channel is not tracked in the mirror")

// MemberStore is the mirror surface for Member rows. Get returns
// (nil, nil) when no row exists.
type MemberStore interface {
	Get(ctx context.Context, id uint64) (*types.Member, error)
	ActiveMap(ctx context.Context) (map[uint64]*types.Member, error)
	Create(ctx context.Context, member *types.Member) error
	Save(ctx context.Context, member *types.Member) error
	RoleIDs(ctx context.Context, memberID uint64) ([]uint64, error)
	SetRoles(ctx context.Context, memberID uint64, roleIDs []uint64) error
	SetLastSeen(ctx context.Context, memberID uint64, seenAt time.Time) error
}

// RoleStore is the mirror surface for Role rows.
type RoleStore interface {
	Map(ctx context.Context) (map[uint64]*types.Role, error)
	Create(ctx context.Context, role *types.Role) error
	Save(ctx context.Context, role *types.Role) error
	Delete(ctx context.Context, id uint64) error
}

// ChannelStore is the mirror surface for Channel rows. SetIndexed
// persists the resumption cursor and marks the channel synced.
type ChannelStore interface {
	Get(ctx context.Context, id uint64) (*types.Channel, error)
	Map(ctx context.Context) (map[uint64]*types.Channel, error)
	Create(ctx context.Context, channel *types.Channel) error
	Save(ctx context.Context, channel *types.Channel) error
	Delete(ctx context.Context, id uint64) error
	SetIndexed(ctx context.Context, id uint64, indexedTo time.Time) error
}

// ThreadStore is the mirror surface for Thread rows.
type ThreadStore interface {
	Get(ctx context.Context, id uint64) (*types.Thread, error)
	Create(ctx context.Context, thread *types.Thread) error
	Save(ctx context.Context, thread *types.Thread) error
	SetIndexed(ctx context.Context, id uint64, indexedTo time.Time) error
}

// MessageStore is the mirror surface for Message rows.
type MessageStore interface {
	Get(ctx context.Context, id uint64) (*types.Message, error)
	Create(ctx context.Context, message *types.Message) error
	Save(ctx context.Context, message *types.Message) error
}

// WatermarkStore persists the append-only watermark log. Current returns
// the zero time when no watermark has ever been committed. Commit
// appends the value and prunes strictly older rows.
type WatermarkStore interface {
	Current(ctx context.Context) (time.Time, error)
	Commit(ctx context.Context, at time.Time) error
}

// InterestStore is the mirror surface for EventInterest rows. Add
// reports whether a new row was created.
type InterestStore interface {
	Add(ctx context.Context, eventID, userID uint64, at time.Time) (bool, error)
	ForEvent(ctx context.Context, eventID uint64) ([]*types.EventInterest, error)
	Remove(ctx context.Context, eventID, userID uint64) error
	RemoveForUser(ctx context.Context, userID uint64) error
}

// GreetingStore tracks pending greeting message references. Remove
// returns the removed message id, or zero when none was recorded.
type GreetingStore interface {
	Add(ctx context.Context, userID, messageID uint64, at time.Time) error
	Remove(ctx context.Context, userID uint64) (uint64, error)
}

// SignupStore removes pending game-session signups on member departure.
type SignupStore interface {
	RemoveForUser(ctx context.Context, userID uint64) error
}

// Store bundles the mirror surfaces the engine writes through. Every
// call on a store is atomic; there is no multi-entity transaction
// spanning pagination loops, which keeps resumability granular at the
// page level.
type Store struct {
	Members    MemberStore
	Roles      RoleStore
	Channels   ChannelStore
	Threads    ThreadStore
	Messages   MessageStore
	Watermarks WatermarkStore
	Interests  InterestStore
	Greetings  GreetingStore
	Signups    SignupStore
}

// Engine reconciles remote guild state into the mirror and incrementally
// indexes message history.
type Engine struct {
	store  Store
	source remote.Source
	bus    events.Bus
	logger *zap.Logger

	clock        func() time.Time
	pace         time.Duration
	indexWorkers int

	channelTasks *serial.Keyed
	userTasks    *serial.Keyed

	mu              sync.Mutex
	highwater       time.Time
	syncedChannels  map[uint64]struct{}
	indexedChannels map[uint64]struct{}
	usersLastSeen   map[uint64]time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock substitutes the wall clock, letting tests drive watermark
// decisions deterministically.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithPace sets the fixed delay between remote message pages.
func WithPace(pace time.Duration) Option {
	return func(e *Engine) { e.pace = pace }
}

// WithIndexWorkers bounds how many channels may be indexed in parallel.
func WithIndexWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.indexWorkers = n
		}
	}
}

// New creates an engine over the given mirror store, remote source and
// event bus.
func New(store Store, source remote.Source, bus events.Bus, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		source:          source,
		bus:             bus,
		logger:          logger.Named("engine"),
		clock:           time.Now,
		pace:            defaultPace,
		indexWorkers:    defaultIndexWorkers,
		channelTasks:    serial.NewKeyed(),
		userTasks:       serial.NewKeyed(),
		syncedChannels:  make(map[uint64]struct{}),
		indexedChannels: make(map[uint64]struct{}),
		usersLastSeen:   make(map[uint64]time.Time),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Sync performs one full reconciliation pass: roles, members, channels,
// then scheduled-event interest. Any remote failure aborts the pass;
// work already committed stays committed.
func (e *Engine) Sync(ctx context.Context) error {
	if err := e.refreshWatermark(ctx); err != nil {
		return fmt.Errorf("refresh watermark: %w", err)
	}

	if err := e.SyncRoles(ctx); err != nil {
		return fmt.Errorf("sync roles: %w", err)
	}

	if err := e.SyncMembers(ctx); err != nil {
		return fmt.Errorf("sync members: %w", err)
	}

	if err := e.SyncChannels(ctx); err != nil {
		return fmt.Errorf("sync channels: %w", err)
	}

	if err := e.SyncEvents(ctx); err != nil {
		return fmt.Errorf("sync events: %w", err)
	}

	return nil
}

// ResetRun clears the run-scoped guard sets so the next pass revisits
// every channel and thread.
func (e *Engine) ResetRun() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.syncedChannels = make(map[uint64]struct{})
	e.indexedChannels = make(map[uint64]struct{})
}

// refreshWatermark loads the persisted watermark into the in-memory
// copy used for bootstrap suppression.
func (e *Engine) refreshWatermark(ctx context.Context) error {
	current, err := e.store.Watermarks.Current(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if current.After(e.highwater) {
		e.highwater = current
	}

	return nil
}

// eventsEnabled reports whether membership events should be emitted.
// While the watermark is zero the mirror is bootstrapping from empty
// state, and replaying "N users joined" for the whole guild would be
// noise rather than news.
func (e *Engine) eventsEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return !e.highwater.IsZero()
}

// markSynced records the channel or thread as handled this run and
// reports whether the caller is the first to handle it.
func (e *Engine) markSynced(id uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.syncedChannels[id]; ok {
		return false
	}

	e.syncedChannels[id] = struct{}{}

	return true
}

// markIndexed records the channel or thread as indexed this run and
// reports whether the caller is the first to index it.
func (e *Engine) markIndexed(id uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.indexedChannels[id]; ok {
		return false
	}

	e.indexedChannels[id] = struct{}{}

	return true
}

// sleep waits for the configured pacing delay or until the context is
// cancelled.
func (e *Engine) sleep(ctx context.Context) error {
	if e.pace <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(e.pace)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
