package types

import "time"

// Channel represents a guild channel mirrored from Discord.
// Channel rows are hard-deleted when the remote channel disappears.
// IndexedTo is the message-indexing resumption cursor: indexing restarts
// from this point instead of re-scanning the whole history.
type Channel struct {
	ID               uint64    `bun:",pk"        json:"id"`               // Discord channel ID
	Name             string    `bun:",notnull"   json:"name"`             // Channel name
	Type             string    `bun:",notnull"   json:"type"`             // Channel type (text, category, announcement, forum)
	ParentID         uint64    `bun:",nullzero"  json:"parentId"`         // Parent category ID
	Position         int       `bun:",notnull"   json:"position"`         // Sorted position
	RawPosition      int       `bun:",notnull"   json:"rawPosition"`      // Raw gateway position
	CreatedAt        time.Time `bun:",nullzero"  json:"createdAt"`        // Channel creation time
	NSFW             bool      `bun:",notnull"   json:"nsfw"`             // Text channels only
	LastMessageID    uint64    `bun:",nullzero"  json:"lastMessageId"`    // Text channels only
	Topic            string    `bun:",type:text" json:"topic"`            // Text channels only
	RateLimitPerUser int       `bun:",notnull"   json:"rateLimitPerUser"` // Slowmode seconds
	Synced           bool      `bun:",notnull"   json:"synced"`           // Whether a full index pass has completed
	IndexedTo        time.Time `bun:",nullzero"  json:"indexedTo"`        // Resumption cursor for message indexing
	UpdatedAt        time.Time `bun:",notnull"   json:"updatedAt"`        // Last mirror write
}

// Thread represents a thread under a text or forum channel.
// Thread rows are written only when a tracked field actually differs to
// keep write volume down during repeated discovery passes.
type Thread struct {
	ID               uint64    `bun:",pk"       json:"id"`               // Discord thread ID
	Name             string    `bun:",notnull"  json:"name"`             // Thread name
	ParentID         uint64    `bun:",notnull"  json:"parentId"`         // Owning channel ID
	Archived         bool      `bun:",notnull"  json:"archived"`         // Archive state
	ArchiveTimestamp time.Time `bun:",nullzero" json:"archiveTimestamp"` // When the archive state last changed
	Locked           bool      `bun:",notnull"  json:"locked"`           // Lock state
	CreatedAt        time.Time `bun:",nullzero" json:"createdAt"`        // Thread creation time
	LastMessageID    uint64    `bun:",nullzero" json:"lastMessageId"`    // Most recent message ID
	IndexedTo        time.Time `bun:",nullzero" json:"indexedTo"`        // Resumption cursor for message indexing
}
