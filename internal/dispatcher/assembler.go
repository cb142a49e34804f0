package dispatcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/envologia/envo/internal/database"
)

// AssembleContext produces a bounded chronological digest of recent chat
// history: the newest 'limit' stored messages for the chat, reversed to
// oldest-first, rendered as "name: body" lines. Command-prefixed bodies
// are excluded at the source query so instruction text never reaches a
// prompt. Returns "" when no qualifying records exist.
func (d *Dispatcher) AssembleContext(ctx context.Context, chatID int64, limit int) (string, error) {
	dbCtx, cancel := context.WithTimeout(ctx, d.cfg.Database.OpTimeout)
	defer cancel()

	messages, err := d.store.GetRecentMessages(dbCtx, chatID, limit, d.cfg.Commands.Prefix)
	if err != nil {
		return "", fmt.Errorf("failed to load chat history: %w", err)
	}

	return RenderContext(messages), nil
}

// RenderContext renders store rows (newest first, as queried) into the
// chronological context digest. Pure: deterministic for the same rows.
func RenderContext(messages []database.Message) string {
	if len(messages) == 0 {
		return ""
	}

	lines := make([]string, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		m := &messages[i]
		lines = append(lines, fmt.Sprintf("%s: %s", m.DisplayName(), m.Body))
	}

	return strings.Join(lines, "\n")
}
