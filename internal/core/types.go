package core

import (
	"context"
)

// Transport moves messages between a chat system and the runner.
type Transport interface {
	// ID returns a stable identifier (e.g., "discord", "nostr-dm").
	ID() string
	// Start begins receiving inbound messages and pushing them into the provided channel.
	// It should return when ctx is canceled or a fatal error occurs.
	Start(ctx context.Context, inbound chan<- InboundMessage) error
	// Send delivers an outbound message back to the chat system.
	Send(ctx context.Context, msg OutboundMessage) error
}

// InboundMessage represents a message entering the runner.
type InboundMessage struct {
	Transport  string         `json:"transport"`
	Sender     string         `json:"sender"`
	SenderName string         `json:"sender_name,omitempty"`
	Channel    string         `json:"channel"`
	MessageID  string         `json:"message_id,omitempty"`
	ThreadID   string         `json:"thread_id,omitempty"`
	Text       string         `json:"text"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ReplyKind tells a transport how an outbound message was produced, so it
// can render failures and notices differently if it wants to.
type ReplyKind string

const (
	KindText    ReplyKind = "text"
	KindFailure ReplyKind = "failure"
	KindInfo    ReplyKind = "info"
	KindFiles   ReplyKind = "files"
)

// Attachment is a file carried by an outbound message.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"-"`
}

// OutboundMessage represents a message leaving the runner. Direct messages
// go to Recipient privately; everything else goes to Channel.
type OutboundMessage struct {
	Transport   string         `json:"transport"`
	Recipient   string         `json:"recipient"`
	Channel     string         `json:"channel"`
	ThreadID    string         `json:"thread_id,omitempty"`
	ReplyTo     string         `json:"reply_to,omitempty"`
	Direct      bool           `json:"direct,omitempty"`
	Kind        ReplyKind      `json:"kind"`
	Text        string         `json:"text,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}
