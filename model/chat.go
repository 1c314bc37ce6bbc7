package model

import "context"

// ChatMessage is one turn handed to a provider.
type ChatMessage struct {
	Role    string
	Content string
}

// TokenStream yields generation output incrementally. Next reports whether
// another token is available; after Next returns false, Err distinguishes a
// drained stream (nil) from a mid-stream failure.
type TokenStream interface {
	Next() bool
	Current() string
	Err() error
	Close() error
}

// ChatClient is a chat model bound to one provider and one model id.
// Complete blocks for the full text; Stream returns tokens as they arrive.
type ChatClient interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
	Stream(ctx context.Context, messages []ChatMessage) (TokenStream, error)
	ModelName() string
}
