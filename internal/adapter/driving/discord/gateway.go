// Package discord is the chat driving adapter. It turns message command
// interactions into CommandRequests and implements the ChatGateway port.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/ericfisherdev/forumbridge/internal/domain/model"
	"github.com/ericfisherdev/forumbridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ChatGateway = (*Gateway)(nil)

// Dispatcher accepts a command for asynchronous execution.
type Dispatcher interface {
	Dispatch(ctx context.Context, req model.CommandRequest, responder driven.Responder)
}

// Gateway owns the Discord session for a single guild.
type Gateway struct {
	session *discordgo.Session
	guildID string
	logger  *slog.Logger
}

// NewGateway creates a Gateway for the bot token. No connection is made until Run.
func NewGateway(token string, guildID uint64, logger *slog.Logger) (*Gateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	return &Gateway{
		session: session,
		guildID: formatSnowflake(guildID),
		logger:  logger,
	}, nil
}

// Run connects to Discord, checks the configured guild is reachable and hands
// every message command to dispatcher until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context, dispatcher Dispatcher) error {
	remove := g.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		g.handleInteraction(ctx, dispatcher, ic.Interaction)
	})
	defer remove()

	if err := g.session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	defer func() {
		if err := g.session.Close(); err != nil {
			g.logger.Error("error closing discord session", "error", err)
		}
	}()

	guild, err := g.session.Guild(g.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("guild %s not reachable, check the guild id: %w", g.guildID, err)
	}
	g.logger.Info("discord gateway connected", "guild_id", g.guildID, "guild", guild.Name)

	<-ctx.Done()
	g.logger.Info("discord gateway stopping")
	return nil
}

// PostThreadMessage posts content into the thread with link previews suppressed.
func (g *Gateway) PostThreadMessage(ctx context.Context, threadID uint64, content string) error {
	_, err := g.session.ChannelMessageSendComplex(formatSnowflake(threadID), &discordgo.MessageSend{
		Content: content,
		Flags:   discordgo.MessageFlagsSuppressEmbeds,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("posting to thread %d: %w", threadID, err)
	}
	return nil
}

func (g *Gateway) handleInteraction(ctx context.Context, dispatcher Dispatcher, i *discordgo.Interaction) {
	if i.Type != discordgo.InteractionApplicationCommand || i.GuildID != g.guildID {
		return
	}
	if _, ok := commandActions[i.ApplicationCommandData().Name]; !ok {
		return
	}

	channel, parent := g.resolveChannels(ctx, i.ChannelID)

	req, err := toCommandRequest(i, channel, parent)
	if err != nil {
		g.logger.Warn("ignoring interaction", "interaction_id", i.ID, "error", err)
		return
	}

	dispatcher.Dispatch(ctx, req, &interactionResponder{session: g.session, interaction: i})
}

// resolveChannels looks up the invoking channel and, for threads, its parent.
// Lookup failures leave the result nil so the engine rejects the command.
func (g *Gateway) resolveChannels(ctx context.Context, channelID string) (channel, parent *discordgo.Channel) {
	channel, err := g.channel(ctx, channelID)
	if err != nil {
		g.logger.Warn("resolving channel failed", "channel_id", channelID, "error", err)
		return nil, nil
	}
	if !channel.IsThread() {
		return channel, nil
	}

	parent, err = g.channel(ctx, channel.ParentID)
	if err != nil {
		g.logger.Warn("resolving parent channel failed", "channel_id", channel.ParentID, "error", err)
		return channel, nil
	}
	return channel, parent
}

// channel reads from the state cache and falls back to the REST API.
func (g *Gateway) channel(ctx context.Context, id string) (*discordgo.Channel, error) {
	if id == "" {
		return nil, errors.New("empty channel id")
	}
	if c, err := g.session.State.Channel(id); err == nil {
		return c, nil
	}
	return g.session.Channel(id, discordgo.WithContext(ctx))
}
