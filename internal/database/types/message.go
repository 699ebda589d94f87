package types

import "time"

// Message represents an indexed guild message.
// A row is created once and overwritten only when the edit timestamp
// advances or the thread/pin state changes, so re-indexing an unchanged
// message is a no-op.
type Message struct {
	ID            uint64     `bun:",pk"        json:"id"`            // Discord message ID
	AuthorID      uint64     `bun:",notnull"   json:"authorId"`      // Author user ID
	ChannelID     uint64     `bun:",notnull"   json:"channelId"`     // Owning channel or thread ID
	ApplicationID uint64     `bun:",nullzero"  json:"applicationId"` // Originating application, if any
	Type          string     `bun:",notnull"   json:"type"`          // Message type name
	Content       string     `bun:",type:text" json:"content"`      // Message body
	CreatedAt     time.Time  `bun:",notnull"   json:"createdAt"`     // Creation time
	EditedAt      *time.Time `bun:",nullzero"  json:"editedAt"`      // Last edit time (null when never edited)
	HasThread     bool       `bun:",notnull"   json:"hasThread"`     // Whether a thread hangs off this message
	ThreadID      uint64     `bun:",nullzero"  json:"threadId"`      // Thread ID when HasThread is set
	EmbedCount    int        `bun:",notnull"   json:"embedCount"`    // Number of embeds
	Pinned        bool       `bun:",notnull"   json:"pinned"`        // Pin state
}
