package driven

import "context"

// ChatGateway defines the driven port for posting into chat threads.
type ChatGateway interface {
	// PostThreadMessage posts a public message into the thread. Link previews
	// are suppressed.
	PostThreadMessage(ctx context.Context, threadID uint64, content string) error
}

// Responder answers the user who invoked a single command. It is bound to one
// invocation by the chat adapter.
type Responder interface {
	// Respond replies to the invoking user. Ephemeral replies are visible to
	// that user only.
	Respond(ctx context.Context, content string, ephemeral bool) error
}
