package discord

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/ericfisherdev/forumbridge/internal/domain/model"
)

// Message command names as shown in the Discord context menu.
const (
	CommandCreateReport = "Create Bug Report"
	CommandUpdateReport = "Update Bug Report"
	CommandAddComment   = "Add Report Comment"
)

// commandActions maps each registered message command to its pipeline.
var commandActions = map[string]model.Action{
	CommandCreateReport: model.ActionCreate,
	CommandUpdateReport: model.ActionUpdate,
	CommandAddComment:   model.ActionComment,
}

// Commands returns the guild message commands the bot serves.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{Name: CommandCreateReport, Type: discordgo.MessageApplicationCommand},
		{Name: CommandUpdateReport, Type: discordgo.MessageApplicationCommand},
		{Name: CommandAddComment, Type: discordgo.MessageApplicationCommand},
	}
}

// RegisterCommands replaces the guild's commands with Commands. It only uses
// the REST API, so the gateway connection does not need to be open.
func (g *Gateway) RegisterCommands(ctx context.Context) error {
	app, err := g.session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("resolving bot user: %w", err)
	}

	registered, err := g.session.ApplicationCommandBulkOverwrite(app.ID, g.guildID, Commands(), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("registering commands in guild %s: %w", g.guildID, err)
	}

	g.logger.Info("message commands registered", "guild_id", g.guildID, "count", len(registered))
	return nil
}

func formatSnowflake(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// parseSnowflake returns 0 for anything that is not a valid snowflake.
func parseSnowflake(s string) uint64 {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
