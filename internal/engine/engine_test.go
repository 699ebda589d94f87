package engine_test

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bestpractice116/liminal-umbrella/internal/database/types"
	"github.com/bestpractice116/liminal-umbrella/internal/engine"
	"github.com/bestpractice116/liminal-umbrella/internal/events"
	"github.com/bestpractice116/liminal-umbrella/internal/remote"
)

// memStore is an in-memory stand-in for the database-backed store. It
// counts writes so tests can assert on idempotence.
type memStore struct {
	mu sync.Mutex

	members     map[uint64]*types.Member
	memberRoles map[uint64][]uint64
	roles       map[uint64]*types.Role
	channels    map[uint64]*types.Channel
	threads     map[uint64]*types.Thread
	messages    map[uint64]*types.Message
	watermark   time.Time
	interests   map[uint64]map[uint64]bool
	greetings   map[uint64]uint64
	signups     map[uint64]int

	messageGetDelay time.Duration

	memberSaves      int
	roleSaves        int
	channelSaves     int
	threadSaves      int
	messageSaves     int
	roleDeletes      int
	channelDeletes   int
	watermarkCommits int
	setRolesCalls    int
	lastSeenCalls    int
	setIndexedCalls  int
	signupRemovals   int
}

func newMemStore() *memStore {
	return &memStore{
		members:     make(map[uint64]*types.Member),
		memberRoles: make(map[uint64][]uint64),
		roles:       make(map[uint64]*types.Role),
		channels:    make(map[uint64]*types.Channel),
		threads:     make(map[uint64]*types.Thread),
		messages:    make(map[uint64]*types.Message),
		interests:   make(map[uint64]map[uint64]bool),
		greetings:   make(map[uint64]uint64),
		signups:     make(map[uint64]int),
	}
}

// Store bundles the per-entity views into the engine's store surface.
func (s *memStore) Store() engine.Store {
	return engine.Store{
		Members:    (*memMembers)(s),
		Roles:      (*memRoles)(s),
		Channels:   (*memChannels)(s),
		Threads:    (*memThreads)(s),
		Messages:   (*memMessages)(s),
		Watermarks: (*memWatermarks)(s),
		Interests:  (*memInterests)(s),
		Greetings:  (*memGreetings)(s),
		Signups:    (*memSignups)(s),
	}
}

type memMembers memStore

func (s *memMembers) Get(_ context.Context, id uint64) (*types.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, ok := s.members[id]
	if !ok {
		return nil, nil
	}

	clone := *member

	return &clone, nil
}

func (s *memMembers) ActiveMap(context.Context) (map[uint64]*types.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[uint64]*types.Member)

	for id, member := range s.members {
		if member.Left {
			continue
		}

		clone := *member
		out[id] = &clone
	}

	return out, nil
}

func (s *memMembers) Create(_ context.Context, member *types.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *member
	s.members[member.ID] = &clone

	return nil
}

func (s *memMembers) Save(_ context.Context, member *types.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *member
	s.members[member.ID] = &clone
	s.memberSaves++

	return nil
}

func (s *memMembers) RoleIDs(_ context.Context, memberID uint64) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.memberRoles[memberID]), nil
}

func (s *memMembers) SetRoles(_ context.Context, memberID uint64, roleIDs []uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(roleIDs) == 0 {
		delete(s.memberRoles, memberID)
	} else {
		s.memberRoles[memberID] = slices.Clone(roleIDs)
	}

	s.setRolesCalls++

	return nil
}

func (s *memMembers) SetLastSeen(_ context.Context, memberID uint64, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if member, ok := s.members[memberID]; ok && seenAt.After(member.LastSeenAt) {
		member.LastSeenAt = seenAt
	}

	s.lastSeenCalls++

	return nil
}

type memRoles memStore

func (s *memRoles) Map(context.Context) (map[uint64]*types.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[uint64]*types.Role, len(s.roles))

	for id, role := range s.roles {
		clone := *role
		out[id] = &clone
	}

	return out, nil
}

func (s *memRoles) Create(_ context.Context, role *types.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *role
	s.roles[role.ID] = &clone

	return nil
}

func (s *memRoles) Save(_ context.Context, role *types.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *role
	s.roles[role.ID] = &clone
	s.roleSaves++

	return nil
}

func (s *memRoles) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.roles, id)
	s.roleDeletes++

	return nil
}

type memChannels memStore

func (s *memChannels) Get(_ context.Context, id uint64) (*types.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, ok := s.channels[id]
	if !ok {
		return nil, nil
	}

	clone := *channel

	return &clone, nil
}

func (s *memChannels) Map(context.Context) (map[uint64]*types.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[uint64]*types.Channel, len(s.channels))

	for id, channel := range s.channels {
		clone := *channel
		out[id] = &clone
	}

	return out, nil
}

func (s *memChannels) Create(_ context.Context, channel *types.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *channel
	s.channels[channel.ID] = &clone

	return nil
}

func (s *memChannels) Save(_ context.Context, channel *types.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.channels[channel.ID]
	if ok {
		// Indexing state is owned by SetIndexed, as in the SQL model.
		channel.Synced = existing.Synced
		channel.IndexedTo = existing.IndexedTo
	}

	clone := *channel
	s.channels[channel.ID] = &clone
	s.channelSaves++

	return nil
}

func (s *memChannels) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.channels, id)
	s.channelDeletes++

	return nil
}

func (s *memChannels) SetIndexed(_ context.Context, id uint64, indexedTo time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if channel, ok := s.channels[id]; ok {
		channel.IndexedTo = indexedTo
		channel.Synced = true
	}

	s.setIndexedCalls++

	return nil
}

type memThreads memStore

func (s *memThreads) Get(_ context.Context, id uint64) (*types.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, ok := s.threads[id]
	if !ok {
		return nil, nil
	}

	clone := *thread

	return &clone, nil
}

func (s *memThreads) Create(_ context.Context, thread *types.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *thread
	s.threads[thread.ID] = &clone

	return nil
}

func (s *memThreads) Save(_ context.Context, thread *types.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.threads[thread.ID]
	if ok {
		thread.IndexedTo = existing.IndexedTo
	}

	clone := *thread
	s.threads[thread.ID] = &clone
	s.threadSaves++

	return nil
}

func (s *memThreads) SetIndexed(_ context.Context, id uint64, indexedTo time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if thread, ok := s.threads[id]; ok {
		thread.IndexedTo = indexedTo
	}

	return nil
}

type memMessages memStore

func (s *memMessages) Get(_ context.Context, id uint64) (*types.Message, error) {
	// Widens the window between the existence check and the write so
	// races between concurrent merges are observable.
	if s.messageGetDelay > 0 {
		time.Sleep(s.messageGetDelay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	message, ok := s.messages[id]
	if !ok {
		return nil, nil
	}

	clone := *message

	return &clone, nil
}

func (s *memMessages) Create(_ context.Context, message *types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *message
	s.messages[message.ID] = &clone

	return nil
}

func (s *memMessages) Save(_ context.Context, message *types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *message
	s.messages[message.ID] = &clone
	s.messageSaves++

	return nil
}

type memWatermarks memStore

func (s *memWatermarks) Current(context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.watermark, nil
}

func (s *memWatermarks) Commit(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if at.After(s.watermark) {
		s.watermark = at
	}

	s.watermarkCommits++

	return nil
}

type memInterests memStore

func (s *memInterests) Add(_ context.Context, eventID, userID uint64, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interests[eventID] == nil {
		s.interests[eventID] = make(map[uint64]bool)
	}

	if s.interests[eventID][userID] {
		return false, nil
	}

	s.interests[eventID][userID] = true

	return true, nil
}

func (s *memInterests) ForEvent(_ context.Context, eventID uint64) ([]*types.EventInterest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.EventInterest

	for userID := range s.interests[eventID] {
		out = append(out, &types.EventInterest{EventID: eventID, UserID: userID})
	}

	return out, nil
}

func (s *memInterests) Remove(_ context.Context, eventID, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.interests[eventID], userID)

	return nil
}

func (s *memInterests) RemoveForUser(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, users := range s.interests {
		delete(users, userID)
	}

	return nil
}

type memGreetings memStore

func (s *memGreetings) Add(_ context.Context, userID, messageID uint64, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.greetings[userID] = messageID

	return nil
}

func (s *memGreetings) Remove(_ context.Context, userID uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messageID := s.greetings[userID]
	delete(s.greetings, userID)

	return messageID, nil
}

type memSignups memStore

func (s *memSignups) RemoveForUser(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.signups, userID)
	s.signupRemovals++

	return nil
}

// fakeSource serves canned remote snapshots and counts message fetches.
type fakeSource struct {
	mu sync.Mutex

	roles           []remote.Role
	members         []remote.Member
	channels        []remote.Channel
	messages        map[uint64][]remote.Message // container id, newest first
	activeThreads   map[uint64][]remote.Thread
	archivedThreads map[uint64][]remote.Thread
	scheduled       []remote.ScheduledEvent
	subscribers     map[uint64][]uint64

	messageFetches map[uint64]int

	rolesErr   error
	membersErr error

	// messageErr fails any message fetch numbered beyond
	// messageErrAfter, counting across the container's lifetime.
	messageErr      error
	messageErrAfter int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		messages:        make(map[uint64][]remote.Message),
		activeThreads:   make(map[uint64][]remote.Thread),
		archivedThreads: make(map[uint64][]remote.Thread),
		subscribers:     make(map[uint64][]uint64),
		messageFetches:  make(map[uint64]int),
	}
}

func (f *fakeSource) FetchRoles(context.Context) ([]remote.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rolesErr != nil {
		return nil, f.rolesErr
	}

	return slices.Clone(f.roles), nil
}

func (f *fakeSource) FetchMembers(context.Context) ([]remote.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.membersErr != nil {
		return nil, f.membersErr
	}

	return slices.Clone(f.members), nil
}

func (f *fakeSource) FetchChannels(_ context.Context, channelTypes ...remote.ChannelType) ([]remote.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(channelTypes) == 0 {
		return slices.Clone(f.channels), nil
	}

	var out []remote.Channel

	for _, channel := range f.channels {
		if slices.Contains(channelTypes, channel.Type) {
			out = append(out, channel)
		}
	}

	return out, nil
}

func (f *fakeSource) FetchMessages(_ context.Context, channelID uint64, limit int, before uint64) ([]remote.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.messageFetches[channelID]++

	if f.messageErr != nil && f.messageFetches[channelID] > f.messageErrAfter {
		return nil, f.messageErr
	}

	var out []remote.Message

	for _, msg := range f.messages[channelID] {
		if before != 0 && msg.ID >= before {
			continue
		}

		out = append(out, msg)
		if len(out) == limit {
			break
		}
	}

	return out, nil
}

func (f *fakeSource) FetchActiveThreads(_ context.Context, parentID uint64) ([]remote.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.activeThreads[parentID]), nil
}

func (f *fakeSource) FetchArchivedThreads(_ context.Context, parentID uint64, before uint64, _ int) ([]remote.Thread, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []remote.Thread

	for _, thread := range f.archivedThreads[parentID] {
		if before != 0 && thread.ID >= before {
			continue
		}

		out = append(out, thread)
	}

	return out, false, nil
}

func (f *fakeSource) FetchScheduledEvents(context.Context) ([]remote.ScheduledEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.scheduled), nil
}

func (f *fakeSource) FetchSubscribers(_ context.Context, eventID uint64) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.subscribers[eventID]), nil
}

func (f *fakeSource) fetches(channelID uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.messageFetches[channelID]
}

// testClock is a controllable wall clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// newTestEngine wires an engine over in-memory fakes.
func newTestEngine(t *testing.T, store *memStore, source *fakeSource) (*engine.Engine, *events.Recorder, *testClock) {
	t.Helper()

	clock := newTestClock()
	recorder := events.NewRecorder()

	eng := engine.New(store.Store(), source, recorder, zap.NewNop(),
		engine.WithClock(clock.Now),
		engine.WithPace(0),
		engine.WithIndexWorkers(1),
	)

	return eng, recorder, clock
}

// seedWatermark marks the mirror as past bootstrap so events flow.
func seedWatermark(store *memStore, clock *testClock) {
	store.watermark = clock.Now().Add(-time.Hour)
}
