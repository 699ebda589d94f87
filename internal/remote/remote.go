// Package remote defines the read-only view of the live guild that the
// sync engine consumes. Implementations page through the remote API and
// surface rate limiting as a transient error without retrying; retry
// policy belongs to the scheduling layer above the engine.
package remote

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRateLimited marks a transient remote failure. Callers abandon the
	// current unit of work and resume later from persisted cursors.
	ErrRateLimited = errors.New("remote rate limited")

	// ErrChannelNotFound is returned when a channel that is expected to
	// exist cannot be resolved. This indicates configuration drift and is
	// fatal for the requesting operation.
	ErrChannelNotFound = errors.New("channel not found")
)

// IsTransient reports whether err represents a retryable remote failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// ChannelType enumerates the channel kinds the mirror tracks.
type ChannelType string

const (
	ChannelText         ChannelType = "text"
	ChannelCategory     ChannelType = "category"
	ChannelAnnouncement ChannelType = "announcement"
	ChannelForum        ChannelType = "forum"
)

// HostsMessages reports whether channels of this type carry an indexable
// message history of their own.
func (t ChannelType) HostsMessages() bool {
	return t == ChannelText || t == ChannelAnnouncement
}

// HostsThreads reports whether channels of this type can own threads.
func (t ChannelType) HostsThreads() bool {
	return t == ChannelText || t == ChannelAnnouncement || t == ChannelForum
}

// Role is a point-in-time snapshot of a remote guild role.
type Role struct {
	ID           uint64
	Name         string
	Mentionable  bool
	Tags         []string
	Position     int
	RawPosition  int
	Color        int
	UnicodeEmoji string
	Permissions  string
}

// Member is a point-in-time snapshot of a remote guild member.
type Member struct {
	ID              uint64
	Username        string
	DisplayName     string
	Nickname        string
	AvatarURL       string
	Bot             bool
	JoinedDiscordAt time.Time
	JoinedGuildAt   time.Time
	RoleIDs         []uint64
}

// BestName resolves the best available display name for a member using
// the ordered fallback nickname, global display name, account username.
func (m Member) BestName() string {
	return BestName(m.Nickname, m.DisplayName, m.Username)
}

// BestName picks the first non-empty candidate from the ordered fallback
// chain used everywhere a member needs a human-readable name.
func BestName(nickname, displayName, username string) string {
	if nickname != "" {
		return nickname
	}

	if displayName != "" {
		return displayName
	}

	return username
}

// Channel is a point-in-time snapshot of a remote guild channel.
type Channel struct {
	ID               uint64
	Name             string
	Type             ChannelType
	ParentID         uint64
	Position         int
	RawPosition      int
	CreatedAt        time.Time
	NSFW             bool
	LastMessageID    uint64
	Topic            string
	RateLimitPerUser int
}

// Thread is a point-in-time snapshot of a thread under a channel.
type Thread struct {
	ID               uint64
	Name             string
	ParentID         uint64
	Archived         bool
	ArchiveTimestamp time.Time
	Locked           bool
	CreatedAt        time.Time
	LastMessageID    uint64
}

// Message is a point-in-time snapshot of a remote message.
type Message struct {
	ID            uint64
	AuthorID      uint64
	AuthorBot     bool
	ChannelID     uint64
	ApplicationID uint64
	Type          string
	Content       string
	CreatedAt     time.Time
	EditedAt      *time.Time
	HasThread     bool
	ThreadID      uint64
	EmbedCount    int
	Pinned        bool
}

// ScheduledEvent is a point-in-time snapshot of a guild scheduled event.
type ScheduledEvent struct {
	ID   uint64
	Name string
}

// Source provides paginated read access to remote guild state. Every
// method may fail with an error wrapping ErrRateLimited; implementations
// must distinguish a failed fetch from a successful empty one, because
// the reconciler treats an empty successful fetch as "the guild now has
// zero entities".
type Source interface {
	FetchRoles(ctx context.Context) ([]Role, error)
	FetchMembers(ctx context.Context) ([]Member, error)
	FetchChannels(ctx context.Context, types ...ChannelType) ([]Channel, error)

	// FetchMessages returns up to limit messages older than before, newest
	// first. A zero before means "start from the newest message".
	FetchMessages(ctx context.Context, channelID uint64, limit int, before uint64) ([]Message, error)

	FetchActiveThreads(ctx context.Context, parentID uint64) ([]Thread, error)

	// FetchArchivedThreads pages backwards through archived threads. The
	// returned flag reports whether more pages remain.
	FetchArchivedThreads(ctx context.Context, parentID uint64, before uint64, limit int) ([]Thread, bool, error)

	FetchScheduledEvents(ctx context.Context) ([]ScheduledEvent, error)
	FetchSubscribers(ctx context.Context, eventID uint64) ([]uint64, error)
}
