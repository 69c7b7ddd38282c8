// Package anthropic wraps the Anthropic Messages API behind a small
// interface used by the census Q&A chat.
package anthropic

import (
	"context"
	"strings"
)

// Conversation roles accepted in Message.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client sends Messages API requests.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
	// StreamMessage sends req and calls onText with each text delta as it
	// arrives. It returns the whole reply once the stream ends. An error from
	// onText stops the stream and is returned.
	StreamMessage(ctx context.Context, req MessageRequest, onText TextHandler) (*MessageResponse, error)
}

// TextHandler receives streamed reply text.
type TextHandler func(text string) error

// MessageRequest is a conversation turn: system context, prior messages
// ending with the new user message, and the model limits.
type MessageRequest struct {
	Model     string
	MaxTokens int64
	System    []SystemBlock
	Messages  []Message
}

// SystemBlock is one piece of system prompt. A non-nil CacheControl marks a
// prompt cache breakpoint after the block.
type SystemBlock struct {
	Text         string
	CacheControl *CacheControl
}

// CacheControl sets the cache lifetime, "5m" or "1h".
type CacheControl struct {
	TTL string
}

// Message is a plain-text conversation message.
type Message struct {
	Role    string
	Content string
}

// MessageResponse is the part of an API reply the chat service reads.
type MessageResponse struct {
	ID         string
	Model      string
	Content    []ContentBlock
	StopReason string
	Usage      TokenUsage
}

// ContentBlock is one typed block of a reply.
type ContentBlock struct {
	Type string
	Text string
}

// Text joins the non-empty text blocks of the reply, trimmed.
func (r *MessageResponse) Text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type != "text" || c.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c.Text)
	}
	return strings.TrimSpace(b.String())
}
