// Package discord adapts the Discord REST API to the remote.Source
// interface consumed by the sync engine.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/bestpractice116/liminal-umbrella/internal/remote"
)

// memberPageSize is the maximum member page size the API allows.
const memberPageSize = 1000

// Source implements remote.Source over the Discord REST API for a
// single guild.
type Source struct {
	rest    rest.Rest
	guildID snowflake.ID
	logger  *zap.Logger
}

// NewSource creates a source bound to the given guild.
func NewSource(restClient rest.Rest, guildID uint64, logger *zap.Logger) *Source {
	return &Source{
		rest:    restClient,
		guildID: snowflake.ID(guildID),
		logger:  logger.Named("discord_source"),
	}
}

// FetchRoles returns a snapshot of every role in the guild.
func (s *Source) FetchRoles(ctx context.Context) ([]remote.Role, error) {
	roles, err := s.rest.GetRoles(s.guildID, rest.WithCtx(ctx))
	if err != nil {
		return nil, wrapError("get roles", err)
	}

	out := make([]remote.Role, 0, len(roles))
	for i, role := range roles {
		out = append(out, remote.Role{
			ID:           uint64(role.ID),
			Name:         role.Name,
			Mentionable:  role.Mentionable,
			Tags:         roleTags(role),
			Position:     i,
			RawPosition:  role.Position,
			Color:        role.Color,
			UnicodeEmoji: stringValue(role.Emoji),
			Permissions:  strconv.FormatUint(uint64(role.Permissions), 10),
		})
	}

	return out, nil
}

// FetchMembers pages through the full member list of the guild.
func (s *Source) FetchMembers(ctx context.Context) ([]remote.Member, error) {
	var (
		out   []remote.Member
		after snowflake.ID
	)

	for {
		chunk, err := s.rest.GetMembers(s.guildID, memberPageSize, after, rest.WithCtx(ctx))
		if err != nil {
			return nil, wrapError("get members", err)
		}

		for i := range chunk {
			out = append(out, MemberSnapshot(chunk[i]))
		}

		// Check if we got less than a full page (last page)
		if len(chunk) < memberPageSize {
			return out, nil
		}

		after = chunk[len(chunk)-1].User.ID
	}
}

// FetchChannels returns the guild channels matching the given types, or
// all trackable channels when no types are given.
func (s *Source) FetchChannels(ctx context.Context, types ...remote.ChannelType) ([]remote.Channel, error) {
	channels, err := s.rest.GetGuildChannels(s.guildID, rest.WithCtx(ctx))
	if err != nil {
		return nil, wrapError("get channels", err)
	}

	wanted := make(map[remote.ChannelType]struct{}, len(types))
	for _, t := range types {
		wanted[t] = struct{}{}
	}

	out := make([]remote.Channel, 0, len(channels))

	for i, channel := range channels {
		channelType, ok := channelType(channel.Type())
		if !ok {
			continue
		}

		if len(wanted) > 0 {
			if _, ok := wanted[channelType]; !ok {
				continue
			}
		}

		snapshot := remote.Channel{
			ID:          uint64(channel.ID()),
			Name:        channel.Name(),
			Type:        channelType,
			Position:    i,
			RawPosition: channel.Position(),
			CreatedAt:   channel.ID().Time(),
		}

		if parentID := channel.ParentID(); parentID != nil {
			snapshot.ParentID = uint64(*parentID)
		}

		if msgChannel, ok := channel.(discord.GuildMessageChannel); ok {
			snapshot.NSFW = msgChannel.NSFW()
			snapshot.Topic = stringValue(msgChannel.Topic())
			snapshot.RateLimitPerUser = msgChannel.RateLimitPerUser()

			if lastMessageID := msgChannel.LastMessageID(); lastMessageID != nil {
				snapshot.LastMessageID = uint64(*lastMessageID)
			}
		}

		out = append(out, snapshot)
	}

	return out, nil
}

// FetchMessages returns up to limit messages older than before, newest
// first. A zero before starts from the newest message.
func (s *Source) FetchMessages(ctx context.Context, channelID uint64, limit int, before uint64) ([]remote.Message, error) {
	messages, err := s.rest.GetMessages(
		snowflake.ID(channelID), 0, snowflake.ID(before), 0, limit, rest.WithCtx(ctx))
	if err != nil {
		return nil, wrapError("get messages", err)
	}

	out := make([]remote.Message, 0, len(messages))
	for i := range messages {
		out = append(out, MessageSnapshot(&messages[i]))
	}

	return out, nil
}

// FetchActiveThreads returns the active threads under the given channel.
// The API only exposes active threads guild-wide, so the result is
// filtered down to the requested parent.
func (s *Source) FetchActiveThreads(ctx context.Context, parentID uint64) ([]remote.Thread, error) {
	result, err := s.rest.GetActiveGuildThreads(s.guildID, rest.WithCtx(ctx))
	if err != nil {
		return nil, wrapError("get active threads", err)
	}

	var out []remote.Thread

	for i := range result.Threads {
		thread := threadSnapshot(&result.Threads[i])
		if thread.ParentID == parentID {
			out = append(out, thread)
		}
	}

	return out, nil
}

// FetchArchivedThreads pages backwards through public archived threads.
// The API cursor is a timestamp, so the thread-id cursor is converted to
// the corresponding creation time.
func (s *Source) FetchArchivedThreads(ctx context.Context, parentID uint64, before uint64, limit int) ([]remote.Thread, bool, error) {
	var cursor time.Time
	if before != 0 {
		cursor = snowflake.ID(before).Time()
	}

	result, err := s.rest.GetPublicArchivedThreads(
		snowflake.ID(parentID), cursor, limit, rest.WithCtx(ctx))
	if err != nil {
		return nil, false, wrapError("get archived threads", err)
	}

	out := make([]remote.Thread, 0, len(result.Threads))
	for i := range result.Threads {
		out = append(out, threadSnapshot(&result.Threads[i]))
	}

	return out, result.HasMore, nil
}

// FetchScheduledEvents returns the guild's scheduled events.
func (s *Source) FetchScheduledEvents(ctx context.Context) ([]remote.ScheduledEvent, error) {
	events, err := s.rest.GetGuildScheduledEvents(s.guildID, false, rest.WithCtx(ctx))
	if err != nil {
		return nil, wrapError("get scheduled events", err)
	}

	out := make([]remote.ScheduledEvent, 0, len(events))
	for _, event := range events {
		out = append(out, remote.ScheduledEvent{
			ID:   uint64(event.ID),
			Name: event.Name,
		})
	}

	return out, nil
}

// FetchSubscribers returns the ids of the users subscribed to the given
// scheduled event.
func (s *Source) FetchSubscribers(ctx context.Context, eventID uint64) ([]uint64, error) {
	var (
		out   []uint64
		after snowflake.ID
	)

	for {
		chunk, err := s.rest.GetGuildScheduledEventUsers(
			s.guildID, snowflake.ID(eventID), false, 0, after, 100, rest.WithCtx(ctx))
		if err != nil {
			return nil, wrapError("get event subscribers", err)
		}

		for _, user := range chunk {
			out = append(out, uint64(user.User.ID))
		}

		if len(chunk) < 100 {
			return out, nil
		}

		after = chunk[len(chunk)-1].User.ID
	}
}

// MemberSnapshot converts an API member into a snapshot. Shared with
// the gateway handlers so live updates and bulk fetches agree.
func MemberSnapshot(member discord.Member) remote.Member {
	return remote.Member{
		ID:              uint64(member.User.ID),
		Username:        member.User.Username,
		DisplayName:     stringValue(member.User.GlobalName),
		Nickname:        stringValue(member.Nick),
		AvatarURL:       member.User.EffectiveAvatarURL(),
		Bot:             member.User.Bot,
		JoinedDiscordAt: member.User.ID.Time(),
		JoinedGuildAt:   member.JoinedAt,
		RoleIDs:         snowflakesToIDs(member.RoleIDs),
	}
}

// MessageSnapshot converts an API message into a snapshot.
func MessageSnapshot(msg *discord.Message) remote.Message {
	snapshot := remote.Message{
		ID:         uint64(msg.ID),
		AuthorID:   uint64(msg.Author.ID),
		AuthorBot:  msg.Author.Bot,
		ChannelID:  uint64(msg.ChannelID),
		Type:       messageTypeName(msg.Type),
		Content:    msg.Content,
		CreatedAt:  msg.ID.Time(),
		EditedAt:   msg.EditedTimestamp,
		EmbedCount: len(msg.Embeds),
		Pinned:     msg.Pinned,
	}

	if msg.ApplicationID != nil {
		snapshot.ApplicationID = uint64(*msg.ApplicationID)
	}

	if msg.Thread != nil {
		snapshot.HasThread = true
		snapshot.ThreadID = uint64(msg.Thread.ID())
	}

	return snapshot
}

// threadSnapshot converts an API thread into a snapshot.
func threadSnapshot(thread *discord.GuildThread) remote.Thread {
	snapshot := remote.Thread{
		ID:               uint64(thread.ID()),
		Name:             thread.Name(),
		Archived:         thread.ThreadMetadata.Archived,
		ArchiveTimestamp: thread.ThreadMetadata.ArchiveTimestamp,
		Locked:           thread.ThreadMetadata.Locked,
		CreatedAt:        thread.ID().Time(),
	}

	if parentID := thread.ParentID(); parentID != nil {
		snapshot.ParentID = uint64(*parentID)
	}

	if lastMessageID := thread.LastMessageID(); lastMessageID != nil {
		snapshot.LastMessageID = uint64(*lastMessageID)
	}

	return snapshot
}

// channelType maps an API channel type onto the tracked channel kinds.
func channelType(t discord.ChannelType) (remote.ChannelType, bool) {
	switch t {
	case discord.ChannelTypeGuildText:
		return remote.ChannelText, true
	case discord.ChannelTypeGuildCategory:
		return remote.ChannelCategory, true
	case discord.ChannelTypeGuildNews:
		return remote.ChannelAnnouncement, true
	case discord.ChannelTypeGuildForum:
		return remote.ChannelForum, true
	default:
		return "", false
	}
}

// messageTypeName names the message types the mirror cares about;
// anything else keeps its numeric identifier.
func messageTypeName(t discord.MessageType) string {
	switch t {
	case discord.MessageTypeDefault:
		return "default"
	case discord.MessageTypeReply:
		return "reply"
	case discord.MessageTypeThreadCreated:
		return "thread_created"
	case discord.MessageTypeThreadStarterMessage:
		return "thread_starter"
	case discord.MessageTypeSlashCommand:
		return "slash_command"
	case discord.MessageTypeUserJoin:
		return "user_join"
	case discord.MessageTypeChannelPinnedMessage:
		return "pinned"
	default:
		return strconv.Itoa(int(t))
	}
}

// wrapError maps API failures onto the remote error vocabulary.
func wrapError(op string, err error) error {
	var restErr *rest.Error
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w", op, remote.ErrRateLimited)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, remote.ErrChannelNotFound)
		}
	}

	return fmt.Errorf("failed to %s: %w", op, err)
}

// roleTags flattens the role tag markers into strings.
func roleTags(role discord.Role) []string {
	if role.Tags == nil {
		return nil
	}

	var tags []string

	if role.Tags.BotID != nil {
		tags = append(tags, "bot")
	}

	if role.Tags.IntegrationID != nil {
		tags = append(tags, "integration")
	}

	if role.Tags.PremiumSubscriber {
		tags = append(tags, "premium_subscriber")
	}

	return tags
}

func snowflakesToIDs(ids []snowflake.ID) []uint64 {
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		out = append(out, uint64(id))
	}

	return out
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
