package model

// Action identifies which of the three message commands was invoked.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionComment Action = "comment"
)

// ChannelKind classifies the parent channel of a thread.
type ChannelKind string

const (
	ChannelKindForum ChannelKind = "forum" // Structured discussion forum; every post is a thread.
	ChannelKindText  ChannelKind = "text"
	ChannelKindOther ChannelKind = "other"
)
