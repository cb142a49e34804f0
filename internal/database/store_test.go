package database_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envologia/envo/internal/database"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.NewDB(":memory:")
	require.NoError(t, err, "opening in-memory database")
	t.Cleanup(func() { database.CloseDB(db) })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return database.NewStore(db, log)
}

func testMessage(chatID, messageID int64, body string) *database.Message {
	return &database.Message{
		ChatID:    chatID,
		MessageID: messageID,
		UserID:    100,
		FirstName: "Alice",
		Body:      body,
		Kind:      database.KindText,
		CreatedAt: time.Now().UTC(),
	}
}

func TestSaveMessage_DuplicateIsNoOp(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	first := testMessage(1, 10, "original body")
	require.NoError(t, store.SaveMessage(ctx, first))

	dup := testMessage(1, 10, "replacement body")
	require.NoError(t, store.SaveMessage(ctx, dup), "duplicate insert must not error")

	got, err := store.GetRecentMessages(ctx, 1, 10, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "original body", got[0].Body, "original record must survive a duplicate insert")
}

func TestSaveMessage_Validation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		msg  *database.Message
	}{
		{name: "nil message", msg: nil},
		{name: "zero chat_id", msg: testMessage(0, 10, "x")},
		{name: "zero message_id", msg: testMessage(1, 0, "x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.SaveMessage(ctx, tt.msg))
		})
	}
}

func TestGetRecentMessages_OrderLimitAndPrefixExclusion(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 1; i <= 7; i++ {
		msg := testMessage(1, int64(i), fmt.Sprintf("message %d", i))
		msg.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveMessage(ctx, msg))
	}

	cmd := testMessage(1, 100, ".ask what is this")
	cmd.CreatedAt = base.Add(time.Hour)
	require.NoError(t, store.SaveMessage(ctx, cmd))

	empty := testMessage(1, 101, "")
	empty.Kind = database.KindPhoto
	empty.CreatedAt = base.Add(time.Hour)
	require.NoError(t, store.SaveMessage(ctx, empty))

	got, err := store.GetRecentMessages(ctx, 1, 5, ".")
	require.NoError(t, err)
	require.Len(t, got, 5)

	// Newest first, with command-prefixed and empty bodies excluded.
	assert.Equal(t, "message 7", got[0].Body)
	assert.Equal(t, "message 3", got[4].Body)

	// Without exclusion the command text is included.
	all, err := store.GetRecentMessages(ctx, 1, 10, "")
	require.NoError(t, err)
	assert.Equal(t, ".ask what is this", all[0].Body)
}

func TestSearchMessages_CaseInsensitiveNewestFirst(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	bodies := []string{"Deploy failed on prod", "lunch plans?", "the DEPLOY is green now", "deployment postmortem"}
	for i, body := range bodies {
		msg := testMessage(1, int64(i+1), body)
		msg.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveMessage(ctx, msg))
	}

	// Different chat, must never leak into results.
	other := testMessage(2, 1, "deploy elsewhere")
	require.NoError(t, store.SaveMessage(ctx, other))

	got, err := store.SearchMessages(ctx, 1, "deploy", 2)
	require.NoError(t, err)
	require.Len(t, got, 2, "results must be capped at limit")

	assert.Equal(t, "deployment postmortem", got[0].Body)
	assert.Equal(t, "the DEPLOY is green now", got[1].Body)

	_, err = store.SearchMessages(ctx, 1, "", 5)
	assert.Error(t, err, "empty query must be rejected")
}

func TestUserSession_SaveGetClear(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetUserSession(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got, "absent session must be nil, nil")

	require.NoError(t, store.SaveUserSession(ctx, &database.UserSession{UserID: 42, Persona: "a pirate"}))

	got, err = store.GetUserSession(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a pirate", got.Persona)

	// Upsert replaces the persona, keeping one row per user.
	require.NoError(t, store.SaveUserSession(ctx, &database.UserSession{UserID: 42, Persona: "a poet"}))
	got, err = store.GetUserSession(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a poet", got.Persona)

	require.NoError(t, store.ClearUserSession(ctx, 42))
	got, err = store.GetUserSession(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got, "clear empties the row, it does not delete it")
	assert.Empty(t, got.Persona)
	assert.Empty(t, got.Context)
}

func TestInvocations_AuditAndCount(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		inv := &database.CommandInvocation{
			ID:        fmt.Sprintf("inv-%d", i),
			ChatID:    1,
			UserID:    42,
			Command:   "ask",
			Status:    database.InvocationProcessing,
			CreatedAt: now,
		}
		require.NoError(t, store.SaveInvocation(ctx, inv))
	}

	old := &database.CommandInvocation{
		ID: "inv-old", ChatID: 1, UserID: 42, Command: "ask",
		Status: database.InvocationCompleted, CreatedAt: now.Add(-2 * time.Minute),
	}
	require.NoError(t, store.SaveInvocation(ctx, old))

	count, err := store.CountRecentInvocations(ctx, 42, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, count, "only invocations inside the window count")

	require.NoError(t, store.FinishInvocation(ctx, "inv-0", database.InvocationCompleted))
}

func TestPurgeOldData(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	oldMsg := testMessage(1, 1, "ancient history")
	oldMsg.CreatedAt = now.AddDate(0, 0, -40)
	require.NoError(t, store.SaveMessage(ctx, oldMsg))

	freshMsg := testMessage(1, 2, "still relevant")
	freshMsg.CreatedAt = now
	require.NoError(t, store.SaveMessage(ctx, freshMsg))

	doneInv := &database.CommandInvocation{
		ID: "inv-done", ChatID: 1, UserID: 42, Command: "ask",
		Status: database.InvocationCompleted, CreatedAt: now.Add(-48 * time.Hour),
	}
	require.NoError(t, store.SaveInvocation(ctx, doneInv))

	// A still-processing row older than the horizon must survive the sweep.
	stuckInv := &database.CommandInvocation{
		ID: "inv-stuck", ChatID: 1, UserID: 42, Command: "ask",
		Status: database.InvocationProcessing, CreatedAt: now.Add(-48 * time.Hour),
	}
	require.NoError(t, store.SaveInvocation(ctx, stuckInv))

	messageHorizon := now.AddDate(0, 0, -30)
	invocationHorizon := now.Add(-24 * time.Hour)
	require.NoError(t, store.PurgeOldData(ctx, messageHorizon, invocationHorizon))

	msgs, err := store.GetRecentMessages(ctx, 1, 10, "")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "still relevant", msgs[0].Body)

	count, err := store.CountRecentInvocations(ctx, 42, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count, "finished rows past the horizon are purged, unfinished rows stay")

	require.NoError(t, store.RunSQLMaintenance(ctx))
}

func TestDisplayName_Fallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		msg      database.Message
		expected string
	}{
		{name: "first name wins", msg: database.Message{FirstName: "Alice", Username: "al"}, expected: "Alice"},
		{name: "username fallback", msg: database.Message{Username: "al"}, expected: "al"},
		{name: "generic placeholder", msg: database.Message{}, expected: "User"},
		{name: "blank first name skipped", msg: database.Message{FirstName: "  ", Username: "al"}, expected: "al"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.msg.DisplayName())
		})
	}
}
