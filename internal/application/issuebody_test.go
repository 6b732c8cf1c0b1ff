package application_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/forumbridge/internal/application"
	"github.com/ericfisherdev/forumbridge/internal/domain/model"
)

func TestBuildIssueBody(t *testing.T) {
	req := model.CommandRequest{
		GuildID: 1,
		Thread:  model.Thread{ID: 42, Name: "Crash on startup"},
		Message: model.Message{ID: 42, AuthorName: "Alice", Content: "It crashes"},
	}

	got := application.BuildIssueBody(req)

	assert.Equal(t,
		"Reported by Discord User: Alice in [Discord Message](https://discord.com/channels/1/42/42)\n\nIt crashes",
		got)
}

func TestBuildCommentBody_WithAttachments(t *testing.T) {
	req := model.CommandRequest{
		GuildID: 1,
		Thread:  model.Thread{ID: 42},
		Message: model.Message{
			ID:         43,
			AuthorName: "Bob",
			Content:    "Also on Linux",
			Attachments: []model.Attachment{
				{URL: "https://cdn.example/a.png", ContentType: "image/png"},
				{URL: "https://cdn.example/log.txt", ContentType: "text/plain"},
			},
		},
	}

	got := application.BuildCommentBody(req)

	assert.Equal(t,
		"Comment from Discord User: Bob from [Discord Message](https://discord.com/channels/1/42/43)\n\n"+
			"Also on Linux\n\nAttachments:\n"+
			"![image](https://cdn.example/a.png)\n"+
			"https://cdn.example/log.txt",
		got)
}

func TestBuildIssueBody_AttachmentWithoutContentType(t *testing.T) {
	req := model.CommandRequest{
		GuildID: 1,
		Thread:  model.Thread{ID: 42},
		Message: model.Message{
			ID:          42,
			AuthorName:  "Alice",
			Attachments: []model.Attachment{{URL: "https://cdn.example/blob"}},
		},
	}

	got := application.BuildIssueBody(req)

	assert.Contains(t, got, "\n\nAttachments:\nhttps://cdn.example/blob")
}

func TestMessageLink(t *testing.T) {
	assert.Equal(t,
		"https://discord.com/channels/1098765432109876543/2/3",
		application.MessageLink(1098765432109876543, 2, 3))
}
