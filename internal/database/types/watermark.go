package types

import "time"

// Watermark is one entry in the append-only watermark log. The current
// watermark is the maximum Time across rows; older rows are pruned once
// a newer one is committed. The watermark marks the most recent point in
// time the mirror is known to be safely caught up to, bounding how far
// back event-driven catch-up must look after a restart.
type Watermark struct {
	ID   int64     `bun:",pk,autoincrement" json:"id"`
	Time time.Time `bun:",notnull"          json:"time"`
}

// EventInterest records that a user is subscribed to a scheduled event.
// Created when the subscription is first observed, destroyed when the
// user unsubscribes or leaves the guild.
type EventInterest struct {
	EventID   uint64    `bun:",pk"      json:"eventId"`   // Scheduled event ID
	UserID    uint64    `bun:",pk"      json:"userId"`    // Subscribed user ID
	CreatedAt time.Time `bun:",notnull" json:"createdAt"` // When the interest was first observed
}

// GreetingMessage tracks the welcome message posted for a newly joined
// user so it can be cleaned up if they leave again.
type GreetingMessage struct {
	UserID    uint64    `bun:",pk"      json:"userId"`    // Greeted user ID
	MessageID uint64    `bun:",notnull" json:"messageId"` // Posted greeting message ID
	CreatedAt time.Time `bun:",notnull" json:"createdAt"` // When the greeting was posted
}

// GameSignup records a pending game-session signup for a member. Signups
// are cascade-deleted when the member leaves the guild.
type GameSignup struct {
	ID        int64     `bun:",pk,autoincrement" json:"id"`
	UserID    uint64    `bun:",notnull"          json:"userId"` // Signed-up user ID
	GameID    uint64    `bun:",notnull"          json:"gameId"` // Game session ID
	CreatedAt time.Time `bun:",notnull"          json:"createdAt"`
}
