package mirror

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/bestpractice116/liminal-umbrella/internal/database/models"
	"github.com/bestpractice116/liminal-umbrella/internal/events"
	"github.com/bestpractice116/liminal-umbrella/internal/remote"
)

// Greeter posts a welcome message when a user joins and removes it again
// if they leave. The posted message id is persisted so cleanup survives
// restarts; the engine surfaces it back on the departure event.
type Greeter struct {
	rest      rest.Rest
	greetings *models.GreetingModel
	channelID uint64
	logger    *zap.Logger
}

// NewGreeter creates a greeter posting into the given channel. A zero
// channel id disables greeting entirely.
func NewGreeter(restClient rest.Rest, greetings *models.GreetingModel, channelID uint64, logger *zap.Logger) *Greeter {
	return &Greeter{
		rest:      restClient,
		greetings: greetings,
		channelID: channelID,
		logger:    logger.Named("greeter"),
	}
}

// Subscribe attaches the greeter to the event bus.
func (g *Greeter) Subscribe(bus *events.Dispatcher) {
	if g.channelID == 0 {
		return
	}

	bus.Subscribe(func(event events.Event) {
		switch e := event.(type) {
		case events.UserJoined:
			g.greet(e)
		case events.UserLeft:
			g.cleanup(e)
		}
	})
}

// greet posts the welcome message and records its id.
func (g *Greeter) greet(event events.UserJoined) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	name := remote.BestName(event.Nickname, "", event.Username)

	message, err := g.rest.CreateMessage(snowflake.ID(g.channelID),
		discord.NewMessageCreateBuilder().
			SetContentf("Welcome to the server, <@%d>! Good to have you here, %s.", event.UserID, name).
			Build(),
		rest.WithCtx(ctx))
	if err != nil {
		g.logger.Error("Failed to post greeting",
			zap.Uint64("userID", event.UserID),
			zap.Error(err))

		return
	}

	if err := g.greetings.Add(ctx, event.UserID, uint64(message.ID), time.Now()); err != nil {
		g.logger.Error("Failed to record greeting",
			zap.Uint64("userID", event.UserID),
			zap.Uint64("messageID", uint64(message.ID)),
			zap.Error(err))
	}
}

// cleanup deletes the pending greeting message, if one was recorded.
func (g *Greeter) cleanup(event events.UserLeft) {
	if event.GreetingMessageID == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	err := g.rest.DeleteMessage(snowflake.ID(g.channelID), snowflake.ID(event.GreetingMessageID), rest.WithCtx(ctx))
	if err != nil {
		g.logger.Warn("Failed to delete greeting",
			zap.Uint64("userID", event.UserID),
			zap.Uint64("messageID", event.GreetingMessageID),
			zap.Error(err))
	}
}
