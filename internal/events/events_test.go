package events_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bestpractice116/liminal-umbrella/internal/events"
)

func TestDispatcherFansOutInSubscriptionOrder(t *testing.T) {
	t.Parallel()

	dispatcher := events.NewDispatcher()

	var calls []string

	dispatcher.Subscribe(func(events.Event) { calls = append(calls, "first") })
	dispatcher.Subscribe(func(events.Event) { calls = append(calls, "second") })

	dispatcher.Publish(events.UserJoined{UserID: 10})

	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestDispatcherDeliversTheEventValue(t *testing.T) {
	t.Parallel()

	dispatcher := events.NewDispatcher()

	var got events.Event

	dispatcher.Subscribe(func(e events.Event) { got = e })

	want := events.UserLeft{UserID: 10, Username: "alice", GreetingMessageID: 5}
	dispatcher.Publish(want)

	assert.Equal(t, want, got)
}

func TestDispatcherWithoutSubscribers(t *testing.T) {
	t.Parallel()

	dispatcher := events.NewDispatcher()

	assert.NotPanics(t, func() {
		dispatcher.Publish(events.MessageAdded{MessageID: 1})
	})
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	recorder := events.NewRecorder()

	recorder.Publish(events.UserJoined{UserID: 10})
	recorder.Publish(events.MessageAdded{MessageID: 1})
	recorder.Publish(events.UserJoined{UserID: 11, Rejoin: true})

	require.Len(t, recorder.Events(), 3)

	joined := recorder.Named("userJoined")
	require.Len(t, joined, 2)
	assert.Equal(t, events.UserJoined{UserID: 10}, joined[0])
	assert.Equal(t, events.UserJoined{UserID: 11, Rejoin: true}, joined[1])

	recorder.Reset()
	assert.Empty(t, recorder.Events())
}

func TestLogHandler(t *testing.T) {
	t.Parallel()

	zapCore, logs := observer.New(zap.DebugLevel)
	dispatcher := events.NewDispatcher()
	dispatcher.Subscribe(events.LogHandler(zap.New(zapCore)))

	dispatcher.Publish(events.UserJoined{UserID: 10, Username: "alice"})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Domain event", entries[0].Message)
	assert.Equal(t, "userJoined", entries[0].ContextMap()["event"])
}

func TestEventNames(t *testing.T) {
	t.Parallel()

	cases := []struct {
		event events.Event
		name  string
	}{
		{events.UserJoined{}, "userJoined"},
		{events.UserLeft{}, "userLeft"},
		{events.UserChangedNickname{}, "userChangedNickname"},
		{events.MessageAdded{}, "messageAdded"},
		{events.MessageUpdated{}, "messageUpdated"},
		{events.InterestGained{}, "interestGained"},
		{events.InterestLost{}, "interestLost"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.name, tc.event.EventName())
	}
}
