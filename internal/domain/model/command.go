package model

// Attachment is a file attached to a chat message.
type Attachment struct {
	URL         string
	ContentType string
}

// Thread is the chat thread a command was invoked in. In a forum channel the
// opening message of a thread shares the thread's ID.
type Thread struct {
	ID         uint64
	Name       string
	ParentID   uint64 // Zero when the command was not invoked inside a thread.
	ParentKind ChannelKind
}

// Message is the chat message a command targets.
type Message struct {
	ID          uint64
	AuthorName  string
	Content     string
	Attachments []Attachment
}

// User is the member who invoked a command.
type User struct {
	ID      uint64
	Name    string
	RoleIDs []uint64
	IsAdmin bool
}

// CommandRequest is one inbound command invocation. It is built by the chat
// adapter and lives only for the duration of a single pipeline run.
type CommandRequest struct {
	ID      string // Correlation ID for logs.
	Action  Action
	GuildID uint64
	Thread  Thread
	Message Message
	User    User
}

// IsOpeningMessage reports whether the targeted message is the first message
// of the thread.
func (r CommandRequest) IsOpeningMessage() bool {
	return r.Message.ID == r.Thread.ID
}
