package discord_test

import (
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	discordsource "github.com/bestpractice116/liminal-umbrella/internal/remote/discord"
)

func TestMemberSnapshot(t *testing.T) {
	t.Parallel()

	joined := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	globalName := "Alice"
	nick := "Al"

	member := discord.Member{
		User: discord.User{
			ID:         snowflake.New(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
			Username:   "alice",
			GlobalName: &globalName,
		},
		Nick:     &nick,
		JoinedAt: joined,
		RoleIDs:  []snowflake.ID{1, 2},
	}

	snapshot := discordsource.MemberSnapshot(member)

	assert.Equal(t, uint64(member.User.ID), snapshot.ID)
	assert.Equal(t, "alice", snapshot.Username)
	assert.Equal(t, "Alice", snapshot.DisplayName)
	assert.Equal(t, "Al", snapshot.Nickname)
	assert.False(t, snapshot.Bot)
	assert.Equal(t, joined, snapshot.JoinedGuildAt)
	assert.WithinDuration(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), snapshot.JoinedDiscordAt, time.Second)
	assert.Equal(t, []uint64{1, 2}, snapshot.RoleIDs)
	assert.NotEmpty(t, snapshot.AvatarURL)
}

func TestMemberSnapshotMinimalUser(t *testing.T) {
	t.Parallel()

	member := discord.Member{
		User: discord.User{ID: 42, Username: "robot", Bot: true},
	}

	snapshot := discordsource.MemberSnapshot(member)

	assert.Equal(t, uint64(42), snapshot.ID)
	assert.Empty(t, snapshot.DisplayName)
	assert.Empty(t, snapshot.Nickname)
	assert.True(t, snapshot.Bot)
	assert.Equal(t, "robot", snapshot.BestName())
}

func TestMessageSnapshot(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	edited := created.Add(time.Minute)
	appID := snowflake.ID(900)

	msg := discord.Message{
		ID:              snowflake.New(created),
		ChannelID:       100,
		Author:          discord.User{ID: 10, Username: "alice"},
		Type:            discord.MessageTypeReply,
		Content:         "hello",
		EditedTimestamp: &edited,
		Embeds:          []discord.Embed{{Title: "link"}},
		Pinned:          true,
		ApplicationID:   &appID,
	}

	snapshot := discordsource.MessageSnapshot(&msg)

	assert.Equal(t, uint64(msg.ID), snapshot.ID)
	assert.Equal(t, uint64(10), snapshot.AuthorID)
	assert.Equal(t, uint64(100), snapshot.ChannelID)
	assert.Equal(t, uint64(900), snapshot.ApplicationID)
	assert.Equal(t, "reply", snapshot.Type)
	assert.Equal(t, "hello", snapshot.Content)
	assert.WithinDuration(t, created, snapshot.CreatedAt, time.Second)
	require.NotNil(t, snapshot.EditedAt)
	assert.True(t, snapshot.EditedAt.Equal(edited))
	assert.Equal(t, 1, snapshot.EmbedCount)
	assert.True(t, snapshot.Pinned)
	assert.False(t, snapshot.HasThread)
}

func TestMessageSnapshotDefaults(t *testing.T) {
	t.Parallel()

	msg := discord.Message{
		ID:        snowflake.New(time.Now()),
		ChannelID: 100,
		Author:    discord.User{ID: 10},
		Type:      discord.MessageTypeDefault,
	}

	snapshot := discordsource.MessageSnapshot(&msg)

	assert.Equal(t, "default", snapshot.Type)
	assert.Nil(t, snapshot.EditedAt)
	assert.Zero(t, snapshot.ApplicationID)
	assert.Zero(t, snapshot.EmbedCount)
}
