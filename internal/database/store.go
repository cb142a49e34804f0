package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the persistence operations used by the dispatcher and
// supervisor. All methods accept a context for cancellation and timeouts,
// and every access runs in its own short-lived transactional scope.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveMessage inserts a new message record. A record with the same
	// (chat_id, message_id) already present makes the insert a no-op:
	// records are immutable, never replaced.
	SaveMessage(ctx context.Context, message *Message) error

	// GetRecentMessages retrieves the most recent 'limit' messages with a
	// non-empty body for a chat, newest first, excluding bodies that begin
	// with excludePrefix (pass "" to disable the exclusion).
	GetRecentMessages(ctx context.Context, chatID int64, limit int, excludePrefix string) ([]Message, error)

	// SearchMessages returns messages in the chat whose body contains the
	// query as a case-insensitive substring, newest first, capped at limit.
	SearchMessages(ctx context.Context, chatID int64, query string, limit int) ([]Message, error)

	// GetUserSession retrieves a user's session row. Returns nil, nil when absent.
	GetUserSession(ctx context.Context, userID int64) (*UserSession, error)

	// SaveUserSession inserts or updates the session row for session.UserID.
	SaveUserSession(ctx context.Context, session *UserSession) error

	// ClearUserSession empties the persona and context fields, keeping the row.
	ClearUserSession(ctx context.Context, userID int64) error

	// SaveInvocation records a command invocation audit row.
	SaveInvocation(ctx context.Context, inv *CommandInvocation) error

	// FinishInvocation marks an invocation completed or failed.
	FinishInvocation(ctx context.Context, id, status string) error

	// CountRecentInvocations counts a user's invocations since the given time.
	CountRecentInvocations(ctx context.Context, userID int64, since time.Time) (int, error)

	// PurgeOldData deletes messages and stale sessions older than
	// messageHorizon and finished invocations older than invocationHorizon.
	PurgeOldData(ctx context.Context, messageHorizon, invocationHorizon time.Time) error

	// RunSQLMaintenance performs database maintenance (VACUUM).
	RunSQLMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store backed by sqlx over the given connection.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// inTx runs fn inside a transaction with commit-or-rollback semantics.
func (s *sqlxStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil
	return nil
}

func (s *sqlxStore) SaveMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return fmt.Errorf("cannot save nil message")
	}
	if message.ChatID == 0 {
		return fmt.Errorf("message must have a non-zero chat_id")
	}
	if message.MessageID == 0 {
		return fmt.Errorf("message must have a non-zero message_id")
	}
	if message.Kind == "" {
		message.Kind = KindText
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO messages (chat_id, message_id, user_id, username, first_name, last_name,
                              body, kind, file_id, reply_to_message_id, created_at)
        VALUES (:chat_id, :message_id, :user_id, :username, :first_name, :last_name,
                :body, :kind, :file_id, :reply_to_message_id, :created_at)
        ON CONFLICT (chat_id, message_id) DO NOTHING;
    `

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.NamedExecContext(ctx, query, message)
		if err != nil {
			return fmt.Errorf("failed to save message (chat %d, msg %d): %w", message.ChatID, message.MessageID, err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			s.logger.DebugContext(ctx, "Duplicate message ignored",
				"chat_id", message.ChatID, "message_id", message.MessageID)
			return nil
		}
		if id, err := result.LastInsertId(); err == nil {
			message.ID = uint(id) //nolint:gosec // sqlite rowids fit
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message",
			"chat_id", message.ChatID, "message_id", message.MessageID, "error", err)
		return err
	}

	s.logger.DebugContext(ctx, "Message saved",
		"chat_id", message.ChatID, "message_id", message.MessageID)
	return nil
}

func (s *sqlxStore) GetRecentMessages(ctx context.Context, chatID int64, limit int, excludePrefix string) ([]Message, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("chat_id cannot be zero")
	}
	if limit <= 0 {
		limit = 5
	} else if limit > 100 {
		limit = 100
	}

	var messages []Message
	var err error
	if excludePrefix == "" {
		query := `
            SELECT * FROM messages
            WHERE chat_id = ? AND body != ''
            ORDER BY created_at DESC, id DESC
            LIMIT ?;
        `
		err = s.db.SelectContext(ctx, &messages, query, chatID, limit)
	} else {
		query := `
            SELECT * FROM messages
            WHERE chat_id = ? AND body != '' AND substr(body, 1, length(?)) != ?
            ORDER BY created_at DESC, id DESC
            LIMIT ?;
        `
		err = s.db.SelectContext(ctx, &messages, query, chatID, excludePrefix, excludePrefix, limit)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting recent messages", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to get recent messages for chat %d: %w", chatID, err)
	}

	return messages, nil
}

func (s *sqlxStore) SearchMessages(ctx context.Context, chatID int64, query string, limit int) ([]Message, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("chat_id cannot be zero")
	}
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if limit <= 0 {
		limit = 5
	}

	// instr avoids LIKE wildcard handling; lower() gives the
	// case-insensitive substring match.
	stmt := `
        SELECT * FROM messages
        WHERE chat_id = ? AND body != '' AND instr(lower(body), lower(?)) > 0
        ORDER BY created_at DESC, id DESC
        LIMIT ?;
    `

	var messages []Message
	if err := s.db.SelectContext(ctx, &messages, stmt, chatID, query, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error searching messages", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to search messages in chat %d: %w", chatID, err)
	}

	return messages, nil
}

func (s *sqlxStore) GetUserSession(ctx context.Context, userID int64) (*UserSession, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}

	var session UserSession
	err := s.db.GetContext(ctx, &session,
		`SELECT * FROM user_sessions WHERE user_id = ?`, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user session", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get session for user %d: %w", userID, err)
	}

	return &session, nil
}

func (s *sqlxStore) SaveUserSession(ctx context.Context, session *UserSession) error {
	if session == nil {
		return fmt.Errorf("cannot save nil session")
	}
	if session.UserID == 0 {
		return fmt.Errorf("session must have a non-zero user_id")
	}

	now := time.Now().UTC()
	session.UpdatedAt = now
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}

	query := `
        INSERT INTO user_sessions (user_id, persona, context, created_at, updated_at)
        VALUES (:user_id, :persona, :context, :created_at, :updated_at)
        ON CONFLICT (user_id) DO UPDATE SET
            persona    = excluded.persona,
            context    = excluded.context,
            updated_at = excluded.updated_at;
    `

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, query, session)
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving user session", "user_id", session.UserID, "error", err)
		return fmt.Errorf("failed to save session for user %d: %w", session.UserID, err)
	}

	s.logger.DebugContext(ctx, "User session saved", "user_id", session.UserID)
	return nil
}

func (s *sqlxStore) ClearUserSession(ctx context.Context, userID int64) error {
	if userID == 0 {
		return fmt.Errorf("user_id cannot be zero")
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE user_sessions SET persona = '', context = '', updated_at = ? WHERE user_id = ?`,
			time.Now().UTC(), userID)
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error clearing user session", "user_id", userID, "error", err)
		return fmt.Errorf("failed to clear session for user %d: %w", userID, err)
	}

	s.logger.DebugContext(ctx, "User session cleared", "user_id", userID)
	return nil
}

func (s *sqlxStore) SaveInvocation(ctx context.Context, inv *CommandInvocation) error {
	if inv == nil {
		return fmt.Errorf("cannot save nil invocation")
	}
	if inv.ID == "" {
		return fmt.Errorf("invocation must have an id")
	}
	if inv.Status == "" {
		inv.Status = InvocationPending
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO command_invocations (id, chat_id, user_id, command, status, created_at, processed_at)
        VALUES (:id, :chat_id, :user_id, :command, :status, :created_at, :processed_at);
    `

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, query, inv)
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving invocation", "command", inv.Command, "error", err)
		return fmt.Errorf("failed to save invocation %s: %w", inv.ID, err)
	}

	return nil
}

func (s *sqlxStore) FinishInvocation(ctx context.Context, id, status string) error {
	if id == "" {
		return fmt.Errorf("invocation id cannot be empty")
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE command_invocations SET status = ?, processed_at = ? WHERE id = ?`,
			status, time.Now().UTC(), id)
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error finishing invocation", "id", id, "error", err)
		return fmt.Errorf("failed to finish invocation %s: %w", id, err)
	}

	return nil
}

func (s *sqlxStore) CountRecentInvocations(ctx context.Context, userID int64, since time.Time) (int, error) {
	if userID == 0 {
		return 0, fmt.Errorf("user_id cannot be zero")
	}

	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM command_invocations WHERE user_id = ? AND created_at > ?`,
		userID, since)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error counting invocations", "user_id", userID, "error", err)
		return 0, fmt.Errorf("failed to count invocations for user %d: %w", userID, err)
	}

	return count, nil
}

func (s *sqlxStore) PurgeOldData(ctx context.Context, messageHorizon, invocationHorizon time.Time) error {
	var msgCount, sessCount, invCount int64

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE created_at < ?`, messageHorizon)
		if err != nil {
			return fmt.Errorf("failed to purge messages: %w", err)
		}
		msgCount, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx, `DELETE FROM user_sessions WHERE updated_at < ?`, messageHorizon)
		if err != nil {
			return fmt.Errorf("failed to purge sessions: %w", err)
		}
		sessCount, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx,
			`DELETE FROM command_invocations WHERE created_at < ? AND status IN (?, ?)`,
			invocationHorizon, InvocationCompleted, InvocationFailed)
		if err != nil {
			return fmt.Errorf("failed to purge invocations: %w", err)
		}
		invCount, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Retention purge failed", "error", err)
		return err
	}

	s.logger.InfoContext(ctx, "Retention purge completed",
		"messages_deleted", msgCount, "sessions_deleted", sessCount, "invocations_deleted", invCount)
	return nil
}

func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)")

	// VACUUM must run outside a transaction in SQLite.
	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		s.logger.ErrorContext(ctx, "Database maintenance failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance completed")
	return nil
}
