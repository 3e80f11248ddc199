package model

import "time"

// MessageTypeText is the type given to plain conversational messages when the
// client does not name one. Message.Type itself is free-form.
const MessageTypeText = "text"

// MessageTypeError marks an assistant message whose reply failed before any
// content was produced. Its content holds the failure text.
const MessageTypeError = "error"

// Chat stores metadata about a conversation.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullChat includes the chat metadata and its transcript in order.
type FullChat struct {
	Chat
	Messages []Message `json:"messages"`
}

// StreamEvent is a single Server-Sent Event emitted while a reply is produced.
// Message carries a snapshot whenever the transcript entry changed shape
// (created, search progressed, completed); Delta carries streamed text.
type StreamEvent struct {
	ChatID  string   `json:"chatId,omitempty"`
	Message *Message `json:"message,omitempty"`
	Delta   string   `json:"delta,omitempty"`
	Done    bool     `json:"done"`
	Error   string   `json:"error,omitempty"`
}
