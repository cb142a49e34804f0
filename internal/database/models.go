package database

import (
	"database/sql"
	"strings"
	"time"
)

// Message kinds, mirroring the media classes observed on the transport.
const (
	KindText     = "text"
	KindPhoto    = "photo"
	KindVoice    = "voice"
	KindVideo    = "video"
	KindDocument = "document"
	KindOther    = "other"
)

// Invocation statuses for the command audit table.
const (
	InvocationPending    = "pending"
	InvocationProcessing = "processing"
	InvocationCompleted  = "completed"
	InvocationFailed     = "failed"
)

// Message is one observed chat message, written once at ingestion and never
// mutated. (ChatID, MessageID) is unique; a duplicate insert is a no-op.
type Message struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	ChatID    int64 `db:"chat_id"`
	MessageID int64 `db:"message_id"`
	// UserID is 0 for channel posts and other senderless messages.
	UserID    int64  `db:"user_id"`
	Username  string `db:"username"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	// Body is empty for pure-media messages.
	Body string `db:"body"`
	Kind string `db:"kind"`
	// FileID is an opaque transport media handle, empty when none.
	FileID           string `db:"file_id"`
	ReplyToMessageID int64  `db:"reply_to_message_id"`
}

// DisplayName returns the attribution name for context rendering,
// falling back first name -> username -> a generic placeholder.
func (m *Message) DisplayName() string {
	if strings.TrimSpace(m.FirstName) != "" {
		return m.FirstName
	}
	if strings.TrimSpace(m.Username) != "" {
		return m.Username
	}
	return "User"
}

// UserSession holds per-user persona state. At most one row per user.
// Cleared (persona and context emptied) by the clear command; removed
// only by the retention sweep.
type UserSession struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	UserID  int64  `db:"user_id"`
	Persona string `db:"persona"`
	Context string `db:"context"`
}

// CommandInvocation is an audit row for one dispatch cycle, used for
// observability and the soft rate limit. It carries no delivery guarantee.
type CommandInvocation struct {
	ID        string    `db:"id"`
	ChatID    int64     `db:"chat_id"`
	UserID    int64     `db:"user_id"`
	Command   string    `db:"command"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`

	ProcessedAt sql.NullTime `db:"processed_at"`
}
