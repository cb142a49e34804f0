// Package transport defines the messaging-transport collaborator boundary.
// The dispatcher depends only on these types; the concrete wire client
// lives in an adapter package behind the Client interface.
package transport

import (
	"context"
	"time"
)

// MessageKind classifies the payload of an inbound message.
type MessageKind string

// Message kinds observed on the wire.
const (
	KindText     MessageKind = "text"
	KindPhoto    MessageKind = "photo"
	KindVoice    MessageKind = "voice"
	KindVideo    MessageKind = "video"
	KindDocument MessageKind = "document"
	KindOther    MessageKind = "other"
)

// Event is one inbound chat message, normalized by the adapter.
type Event struct {
	ChatID    int64
	MessageID int64

	// SenderID is 0 for channel posts and other senderless messages.
	SenderID        int64
	SenderUsername  string
	SenderFirstName string
	SenderLastName  string

	Text string
	Kind MessageKind

	// MediaID is an opaque handle usable with Client.Download, empty when
	// the message carries no media.
	MediaID string

	// ReplyTo is a snapshot of the replied-to message, nil when the event
	// is not a reply.
	ReplyTo *Event

	// Outgoing marks self-originated messages (sent by the account owner).
	Outgoing bool
	// FromBot marks automated senders.
	FromBot bool

	Timestamp time.Time
}

// Client is the minimal surface the dispatcher needs from the messaging
// transport. Implementations must be safe for concurrent use.
type Client interface {
	// SendMessage sends text to a chat and returns the new message id.
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)

	// EditMessage replaces the text of an existing message.
	EditMessage(ctx context.Context, chatID int64, messageID int64, text string) error

	// DeleteMessage removes a message from a chat.
	DeleteMessage(ctx context.Context, chatID int64, messageID int64) error

	// Download fetches the media behind an opaque handle into a temporary
	// file and returns its path. The caller owns deletion of the file.
	Download(ctx context.Context, mediaID string) (string, error)
}
