package discord

import (
	"errors"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/ericfisherdev/forumbridge/internal/domain/model"
)

var (
	errNotMessageCommand = errors.New("interaction is not a message command")
	errUnknownCommand    = errors.New("unknown command")
	errNoTargetMessage   = errors.New("target message missing from resolved data")
	errNotGuildMember    = errors.New("interaction was not invoked by a guild member")
)

// toCommandRequest maps a message command interaction to a CommandRequest.
// channel is the channel the command was invoked in; parent is the channel's
// parent and is only consulted when channel is a thread. Invocations outside a
// thread yield a request with no parent, which the engine rejects.
func toCommandRequest(i *discordgo.Interaction, channel, parent *discordgo.Channel) (model.CommandRequest, error) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return model.CommandRequest{}, errNotMessageCommand
	}

	data := i.ApplicationCommandData()
	action, ok := commandActions[data.Name]
	if !ok {
		return model.CommandRequest{}, errUnknownCommand
	}

	if data.Resolved == nil || data.Resolved.Messages[data.TargetID] == nil {
		return model.CommandRequest{}, errNoTargetMessage
	}
	target := data.Resolved.Messages[data.TargetID]

	if i.Member == nil || i.Member.User == nil {
		return model.CommandRequest{}, errNotGuildMember
	}

	return model.CommandRequest{
		ID:      uuid.NewString(),
		Action:  action,
		GuildID: parseSnowflake(i.GuildID),
		Thread:  toThread(i.ChannelID, channel, parent),
		Message: toMessage(data.TargetID, target),
		User:    toUser(i.Member),
	}, nil
}

func toThread(channelID string, channel, parent *discordgo.Channel) model.Thread {
	thread := model.Thread{ID: parseSnowflake(channelID)}
	if channel == nil {
		return thread
	}

	thread.Name = channel.Name
	if !channel.IsThread() || parent == nil {
		return thread
	}

	thread.ParentID = parseSnowflake(parent.ID)
	thread.ParentKind = channelKind(parent.Type)
	return thread
}

func channelKind(t discordgo.ChannelType) model.ChannelKind {
	switch t {
	case discordgo.ChannelTypeGuildForum:
		return model.ChannelKindForum
	case discordgo.ChannelTypeGuildText:
		return model.ChannelKindText
	default:
		return model.ChannelKindOther
	}
}

func toMessage(targetID string, m *discordgo.Message) model.Message {
	msg := model.Message{
		ID:      parseSnowflake(targetID),
		Content: m.Content,
	}
	if m.Author != nil {
		msg.AuthorName = m.Author.Username
	}

	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, model.Attachment{URL: a.URL, ContentType: a.ContentType})
	}
	return msg
}

func toUser(member *discordgo.Member) model.User {
	roles := make([]uint64, 0, len(member.Roles))
	for _, r := range member.Roles {
		if id := parseSnowflake(r); id != 0 {
			roles = append(roles, id)
		}
	}

	return model.User{
		ID:      parseSnowflake(member.User.ID),
		Name:    member.User.Username,
		RoleIDs: roles,
		IsAdmin: member.Permissions&discordgo.PermissionAdministrator != 0,
	}
}
