package notify

import "context"

// Target identifies a chat destination, optionally inside a forum topic.
type Target struct {
	ChatID   int64
	ThreadID int
}

// Sink delivers messages to the chat surface. Both the onboarding flow and
// the webhook handler send through it, so implementations must be safe for
// concurrent use.
type Sink interface {
	Send(ctx context.Context, target Target, text string) error
}
