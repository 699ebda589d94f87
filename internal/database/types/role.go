package types

import "time"

// Role represents a guild role mirrored from Discord.
// Role rows mirror the remote 1:1 and are hard-deleted when the remote
// role disappears.
type Role struct {
	ID           uint64    `bun:",pk"         json:"id"`           // Discord role ID
	Name         string    `bun:",notnull"    json:"name"`         // Role name
	Mentionable  bool      `bun:",notnull"    json:"mentionable"`  // Whether the role can be mentioned
	Tags         []string  `bun:",type:jsonb" json:"tags"`         // Role tag markers
	Position     int       `bun:",notnull"    json:"position"`     // Sorted position
	RawPosition  int       `bun:",notnull"    json:"rawPosition"`  // Raw gateway position
	Color        int       `bun:",notnull"    json:"color"`        // RGB color value
	UnicodeEmoji string    `bun:",notnull"    json:"unicodeEmoji"` // Unicode emoji marker
	Permissions  string    `bun:",type:text"  json:"permissions"`  // Serialized permission set
	UpdatedAt    time.Time `bun:",notnull"    json:"updatedAt"`    // Last mirror write
}
