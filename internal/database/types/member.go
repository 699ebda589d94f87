package types

import "time"

// Member represents a guild member mirrored from Discord.
// Members are never hard-deleted; departures flip the Left flag so that
// message history keeps resolving to an author.
type Member struct {
	ID              uint64    `bun:",pk"                json:"id"`              // Discord user ID
	Username        string    `bun:",notnull"           json:"username"`        // Account username
	DisplayName     string    `bun:",notnull"           json:"displayName"`     // Global display name
	Nickname        string    `bun:",notnull"           json:"nickname"`        // Guild nickname (best-available name)
	AvatarURL       string    `bun:",notnull"           json:"avatarUrl"`       // Avatar reference
	Bot             bool      `bun:",notnull"           json:"bot"`             // Whether the account is a bot
	Left            bool      `bun:",notnull"           json:"left"`            // Soft-delete marker
	JoinedDiscordAt time.Time `bun:",nullzero"          json:"joinedDiscordAt"` // Account creation time
	JoinedGuildAt   time.Time `bun:",nullzero"          json:"joinedGuildAt"`   // When the user joined the guild
	LastSeenAt      time.Time `bun:",nullzero"          json:"lastSeenAt"`      // Most recent message activity
	PreviousRoles   []uint64  `bun:",type:jsonb"        json:"previousRoles"`   // Role snapshot taken on departure
	UpdatedAt       time.Time `bun:",notnull"           json:"updatedAt"`       // Last mirror write
}

// MemberRole associates a member with a role they currently hold.
type MemberRole struct {
	MemberID uint64 `bun:",pk" json:"memberId"` // Discord user ID
	RoleID   uint64 `bun:",pk" json:"roleId"`   // Discord role ID
}
