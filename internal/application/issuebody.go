package application

import (
	"fmt"
	"strings"

	"github.com/ericfisherdev/forumbridge/internal/domain/model"
)

const discordChannelsURL = "https://discord.com/channels"

// BuildIssueBody renders the issue body for the thread's opening message. The
// permalink targets the thread itself, whose ID is also the opening message's.
func BuildIssueBody(req model.CommandRequest) string {
	return buildBody("Reported by", "in", req, req.Thread.ID)
}

// BuildCommentBody renders a comment body for a reply inside the thread.
func BuildCommentBody(req model.CommandRequest) string {
	return buildBody("Comment from", "from", req, req.Message.ID)
}

func buildBody(relation, link string, req model.CommandRequest, targetMessageID uint64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s Discord User: %s %s [Discord Message](%s)\n\n",
		relation, req.Message.AuthorName, link, MessageLink(req.GuildID, req.Thread.ID, targetMessageID))
	b.WriteString(req.Message.Content)

	if len(req.Message.Attachments) > 0 {
		b.WriteString("\n\nAttachments:\n")
		lines := make([]string, 0, len(req.Message.Attachments))
		for _, a := range req.Message.Attachments {
			lines = append(lines, renderAttachment(a))
		}
		b.WriteString(strings.Join(lines, "\n"))
	}

	return b.String()
}

// MessageLink returns the deep link to a message inside a guild thread.
func MessageLink(guildID, threadID, messageID uint64) string {
	return fmt.Sprintf("%s/%d/%d/%d", discordChannelsURL, guildID, threadID, messageID)
}

// renderAttachment embeds images and links everything else.
func renderAttachment(a model.Attachment) string {
	if strings.Contains(a.ContentType, "image") {
		return fmt.Sprintf("![image](%s)", a.URL)
	}
	return a.URL
}
