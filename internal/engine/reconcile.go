package engine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/bestpractice116/liminal-umbrella/internal/database/types"
	"github.com/bestpractice116/liminal-umbrella/internal/events"
	"github.com/bestpractice116/liminal-umbrella/internal/remote"
)

// SyncRoles reconciles the remote role collection against the mirror.
// Roles mirror the remote 1:1: roles absent remotely are hard-deleted.
func (e *Engine) SyncRoles(ctx context.Context) error {
	remoteRoles, err := e.source.FetchRoles(ctx)
	if err != nil {
		return fmt.Errorf("fetch roles: %w", err)
	}

	local, err := e.store.Roles.Map(ctx)
	if err != nil {
		return fmt.Errorf("load mirrored roles: %w", err)
	}

	var created, updated int

	for i := range remoteRoles {
		rr := &remoteRoles[i]

		existing, ok := local[rr.ID]
		if !ok {
			row := roleRow(rr, e.clock())
			if err := e.store.Roles.Create(ctx, row); err != nil {
				return fmt.Errorf("create role %d: %w", rr.ID, err)
			}

			created++

			continue
		}

		delete(local, rr.ID)

		if copyRoleFields(existing, rr) {
			existing.UpdatedAt = e.clock()
			if err := e.store.Roles.Save(ctx, existing); err != nil {
				return fmt.Errorf("update role %d: %w", rr.ID, err)
			}

			updated++
		}
	}

	// Every key left over had no remote counterpart.
	for id := range local {
		if err := e.store.Roles.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete role %d: %w", id, err)
		}
	}

	e.logger.Debug("Reconciled roles",
		zap.Int("remote", len(remoteRoles)),
		zap.Int("created", created),
		zap.Int("updated", updated),
		zap.Int("deleted", len(local)))

	return nil
}

// SyncMembers reconciles remote guild membership against the mirror.
// Members absent remotely are soft-deleted and their departure cascades
// through interests, signups and the pending greeting reference.
func (e *Engine) SyncMembers(ctx context.Context) error {
	remoteMembers, err := e.source.FetchMembers(ctx)
	if err != nil {
		return fmt.Errorf("fetch members: %w", err)
	}

	local, err := e.store.Members.ActiveMap(ctx)
	if err != nil {
		return fmt.Errorf("load mirrored members: %w", err)
	}

	for i := range remoteMembers {
		rm := &remoteMembers[i]

		existing, ok := local[rm.ID]
		if !ok {
			if err := e.memberAdd(ctx, rm); err != nil {
				return fmt.Errorf("add member %d: %w", rm.ID, err)
			}

			continue
		}

		delete(local, rm.ID)

		if err := e.memberUpdate(ctx, rm, existing); err != nil {
			return fmt.Errorf("update member %d: %w", rm.ID, err)
		}
	}

	for _, member := range local {
		if err := e.memberRemove(ctx, member); err != nil {
			return fmt.Errorf("remove member %d: %w", member.ID, err)
		}
	}

	return nil
}

// memberAdd mirrors a newly seen member. A previously departed member
// rejoining reuses their old row, preserving history.
func (e *Engine) memberAdd(ctx context.Context, rm *remote.Member) error {
	existing, err := e.store.Members.Get(ctx, rm.ID)
	if err != nil {
		return err
	}

	rejoin := existing != nil

	if existing == nil {
		existing = memberRow(rm, e.clock())
		if err := e.store.Members.Create(ctx, existing); err != nil {
			return err
		}
	} else {
		copyMemberFields(existing, rm)
		existing.Left = false
		existing.UpdatedAt = e.clock()

		if err := e.store.Members.Save(ctx, existing); err != nil {
			return err
		}
	}

	if err := e.store.Members.SetRoles(ctx, rm.ID, rm.RoleIDs); err != nil {
		return err
	}

	if e.eventsEnabled() {
		e.bus.Publish(events.UserJoined{
			UserID:   rm.ID,
			Username: remote.BestName("", rm.DisplayName, rm.Username),
			Nickname: rm.BestName(),
			Rejoin:   rejoin,
		})
	}

	return e.MaybeSetHighestWatermark(ctx, e.clock())
}

// memberUpdate applies remote member state onto an existing mirrored
// row, writing only when something actually changed.
func (e *Engine) memberUpdate(ctx context.Context, rm *remote.Member, member *types.Member) error {
	newNick := rm.BestName()
	if newNick != member.Nickname && e.eventsEnabled() {
		e.bus.Publish(events.UserChangedNickname{
			UserID:      rm.ID,
			OldNickname: member.Nickname,
			NewNickname: newNick,
		})
	}

	if copyMemberFields(member, rm) {
		member.UpdatedAt = e.clock()
		if err := e.store.Members.Save(ctx, member); err != nil {
			return err
		}

		if err := e.MaybeSetHighestWatermark(ctx, e.clock()); err != nil {
			return err
		}
	}

	current, err := e.store.Members.RoleIDs(ctx, rm.ID)
	if err != nil {
		return err
	}

	if !sameIDSet(current, rm.RoleIDs) {
		if err := e.store.Members.SetRoles(ctx, rm.ID, rm.RoleIDs); err != nil {
			return err
		}
	}

	return nil
}

// memberRemove soft-deletes a departed member: the row survives with
// left=true and a snapshot of the roles held at departure, while the
// member's interests, signups and pending greeting reference are
// removed. The greeting message id travels on the UserLeft event so the
// consumer can clean up the posted message.
func (e *Engine) memberRemove(ctx context.Context, member *types.Member) error {
	roleIDs, err := e.store.Members.RoleIDs(ctx, member.ID)
	if err != nil {
		return err
	}

	member.PreviousRoles = roleIDs
	member.Left = true
	member.UpdatedAt = e.clock()

	if err := e.store.Members.Save(ctx, member); err != nil {
		return err
	}

	if err := e.store.Members.SetRoles(ctx, member.ID, nil); err != nil {
		return err
	}

	if err := e.store.Interests.RemoveForUser(ctx, member.ID); err != nil {
		return err
	}

	if err := e.store.Signups.RemoveForUser(ctx, member.ID); err != nil {
		return err
	}

	greetingID, err := e.store.Greetings.Remove(ctx, member.ID)
	if err != nil {
		return err
	}

	if e.eventsEnabled() {
		e.bus.Publish(events.UserLeft{
			UserID:            member.ID,
			Username:          member.Username,
			Nickname:          member.Nickname,
			GreetingMessageID: greetingID,
		})
	}

	return e.MaybeSetHighestWatermark(ctx, e.clock())
}

// SyncChannels reconciles the remote channel collection against the
// mirror. Channels absent remotely are hard-deleted.
func (e *Engine) SyncChannels(ctx context.Context) error {
	remoteChannels, err := e.source.FetchChannels(ctx,
		remote.ChannelText, remote.ChannelCategory, remote.ChannelAnnouncement, remote.ChannelForum)
	if err != nil {
		return fmt.Errorf("fetch channels: %w", err)
	}

	local, err := e.store.Channels.Map(ctx)
	if err != nil {
		return fmt.Errorf("load mirrored channels: %w", err)
	}

	for i := range remoteChannels {
		rc := &remoteChannels[i]

		existing, ok := local[rc.ID]
		if !ok {
			row := channelRow(rc, e.clock())
			if err := e.store.Channels.Create(ctx, row); err != nil {
				return fmt.Errorf("create channel %d: %w", rc.ID, err)
			}

			continue
		}

		delete(local, rc.ID)

		if copyChannelFields(existing, rc) {
			existing.UpdatedAt = e.clock()
			if err := e.store.Channels.Save(ctx, existing); err != nil {
				return fmt.Errorf("update channel %d: %w", rc.ID, err)
			}
		}
	}

	for id := range local {
		if err := e.store.Channels.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete channel %d: %w", id, err)
		}
	}

	return nil
}

func roleRow(rr *remote.Role, now time.Time) *types.Role {
	row := &types.Role{ID: rr.ID}
	copyRoleFields(row, rr)
	row.UpdatedAt = now

	return row
}

// copyRoleFields applies the remote snapshot and reports whether any
// mirrored field changed.
func copyRoleFields(row *types.Role, rr *remote.Role) bool {
	changed := row.Name != rr.Name ||
		row.Mentionable != rr.Mentionable ||
		!slices.Equal(row.Tags, rr.Tags) ||
		row.Position != rr.Position ||
		row.RawPosition != rr.RawPosition ||
		row.Color != rr.Color ||
		row.UnicodeEmoji != rr.UnicodeEmoji ||
		row.Permissions != rr.Permissions

	row.Name = rr.Name
	row.Mentionable = rr.Mentionable
	row.Tags = rr.Tags
	row.Position = rr.Position
	row.RawPosition = rr.RawPosition
	row.Color = rr.Color
	row.UnicodeEmoji = rr.UnicodeEmoji
	row.Permissions = rr.Permissions

	return changed
}

func memberRow(rm *remote.Member, now time.Time) *types.Member {
	row := &types.Member{ID: rm.ID}
	copyMemberFields(row, rm)
	row.UpdatedAt = now

	return row
}

// copyMemberFields applies the remote snapshot and reports whether any
// mirrored field changed. Left and PreviousRoles are lifecycle state
// owned by the add/remove paths, not snapshot state.
func copyMemberFields(row *types.Member, rm *remote.Member) bool {
	nickname := rm.BestName()
	username := remote.BestName("", rm.DisplayName, rm.Username)

	changed := row.Username != username ||
		row.DisplayName != rm.DisplayName ||
		row.Nickname != nickname ||
		row.AvatarURL != rm.AvatarURL ||
		row.Bot != rm.Bot ||
		!row.JoinedDiscordAt.Equal(rm.JoinedDiscordAt) ||
		!row.JoinedGuildAt.Equal(rm.JoinedGuildAt)

	row.Username = username
	row.DisplayName = rm.DisplayName
	row.Nickname = nickname
	row.AvatarURL = rm.AvatarURL
	row.Bot = rm.Bot
	row.JoinedDiscordAt = rm.JoinedDiscordAt
	row.JoinedGuildAt = rm.JoinedGuildAt

	return changed
}

func channelRow(rc *remote.Channel, now time.Time) *types.Channel {
	row := &types.Channel{ID: rc.ID}
	copyChannelFields(row, rc)
	row.UpdatedAt = now

	return row
}

// copyChannelFields applies the remote snapshot and reports whether any
// mirrored field changed. Synced and IndexedTo are indexing state owned
// by the thread tracker, never touched by reconciliation.
func copyChannelFields(row *types.Channel, rc *remote.Channel) bool {
	changed := row.Name != rc.Name ||
		row.Type != string(rc.Type) ||
		row.ParentID != rc.ParentID ||
		row.Position != rc.Position ||
		row.RawPosition != rc.RawPosition ||
		!row.CreatedAt.Equal(rc.CreatedAt) ||
		row.NSFW != rc.NSFW ||
		row.LastMessageID != rc.LastMessageID ||
		row.Topic != rc.Topic ||
		row.RateLimitPerUser != rc.RateLimitPerUser

	row.Name = rc.Name
	row.Type = string(rc.Type)
	row.ParentID = rc.ParentID
	row.Position = rc.Position
	row.RawPosition = rc.RawPosition
	row.CreatedAt = rc.CreatedAt
	row.NSFW = rc.NSFW
	row.LastMessageID = rc.LastMessageID
	row.Topic = rc.Topic
	row.RateLimitPerUser = rc.RateLimitPerUser

	return changed
}

// sameIDSet compares two id slices ignoring order.
func sameIDSet(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}

	as := slices.Clone(a)
	bs := slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)

	return slices.Equal(as, bs)
}
