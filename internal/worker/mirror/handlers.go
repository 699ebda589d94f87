package mirror

import (
	"context"
	"time"

	disgoevents "github.com/disgoorg/disgo/events"
	"go.uber.org/zap"

	discordsource "github.com/bestpractice116/liminal-umbrella/internal/remote/discord"
)

// handlerTimeout bounds how long a single gateway event may hold a
// database connection.
const handlerTimeout = 30 * time.Second

// listeners wires the gateway events the mirror consumes to the engine's
// live-update hooks. Events for other guilds are dropped at the door.
func (w *Worker) listeners() *disgoevents.ListenerAdapter {
	return &disgoevents.ListenerAdapter{
		OnGuildMemberJoin:               w.onMemberJoin,
		OnGuildMemberUpdate:             w.onMemberUpdate,
		OnGuildMemberLeave:              w.onMemberLeave,
		OnGuildMessageCreate:            w.onMessageCreate,
		OnGuildMessageUpdate:            w.onMessageUpdate,
		OnGuildScheduledEventUserAdd:    w.onEventUserAdd,
		OnGuildScheduledEventUserRemove: w.onEventUserRemove,
	}
}

func (w *Worker) ownGuild(guildID uint64) bool {
	return guildID == w.app.Config.Discord.GuildID
}

func (w *Worker) onMemberJoin(event *disgoevents.GuildMemberJoin) {
	if !w.ownGuild(uint64(event.GuildID)) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := w.engine.HandleMemberJoin(ctx, discordsource.MemberSnapshot(event.Member)); err != nil {
		w.logger.Error("Failed to handle member join",
			zap.Uint64("userID", uint64(event.Member.User.ID)),
			zap.Error(err))
	}
}

func (w *Worker) onMemberUpdate(event *disgoevents.GuildMemberUpdate) {
	if !w.ownGuild(uint64(event.GuildID)) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := w.engine.HandleMemberUpdate(ctx, discordsource.MemberSnapshot(event.Member)); err != nil {
		w.logger.Error("Failed to handle member update",
			zap.Uint64("userID", uint64(event.Member.User.ID)),
			zap.Error(err))
	}
}

func (w *Worker) onMemberLeave(event *disgoevents.GuildMemberLeave) {
	if !w.ownGuild(uint64(event.GuildID)) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := w.engine.HandleMemberLeave(ctx, uint64(event.User.ID)); err != nil {
		w.logger.Error("Failed to handle member leave",
			zap.Uint64("userID", uint64(event.User.ID)),
			zap.Error(err))
	}
}

func (w *Worker) onMessageCreate(event *disgoevents.GuildMessageCreate) {
	if !w.ownGuild(uint64(event.GuildID)) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := w.engine.HandleMessage(ctx, discordsource.MessageSnapshot(&event.Message)); err != nil {
		w.logger.Error("Failed to handle message create",
			zap.Uint64("messageID", uint64(event.MessageID)),
			zap.Error(err))
	}
}

func (w *Worker) onMessageUpdate(event *disgoevents.GuildMessageUpdate) {
	if !w.ownGuild(uint64(event.GuildID)) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := w.engine.HandleMessage(ctx, discordsource.MessageSnapshot(&event.Message)); err != nil {
		w.logger.Error("Failed to handle message update",
			zap.Uint64("messageID", uint64(event.MessageID)),
			zap.Error(err))
	}
}

func (w *Worker) onEventUserAdd(event *disgoevents.GuildScheduledEventUserAdd) {
	if !w.ownGuild(uint64(event.GuildID)) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	err := w.engine.HandleInterestAdd(ctx, uint64(event.GuildScheduledEventID), uint64(event.UserID))
	if err != nil {
		w.logger.Error("Failed to handle event interest add",
			zap.Uint64("eventID", uint64(event.GuildScheduledEventID)),
			zap.Uint64("userID", uint64(event.UserID)),
			zap.Error(err))
	}
}

func (w *Worker) onEventUserRemove(event *disgoevents.GuildScheduledEventUserRemove) {
	if !w.ownGuild(uint64(event.GuildID)) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	err := w.engine.HandleInterestRemove(ctx, uint64(event.GuildScheduledEventID), uint64(event.UserID))
	if err != nil {
		w.logger.Error("Failed to handle event interest remove",
			zap.Uint64("eventID", uint64(event.GuildScheduledEventID)),
			zap.Uint64("userID", uint64(event.UserID)),
			zap.Error(err))
	}
}
