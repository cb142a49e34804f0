// Package dispatcher implements the command-dispatch core: it classifies
// inbound transport events, resolves the content a command operates on,
// assembles bounded conversational context, invokes the generation client,
// and writes the outcome back through the transport and the store.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/envologia/envo/internal/config"
	"github.com/envologia/envo/internal/database"
	"github.com/envologia/envo/internal/gemini"
	"github.com/envologia/envo/internal/transport"
)

// State is the terminal state of one dispatch cycle.
type State string

// Dispatch outcomes.
const (
	StateIgnored   State = "ignored"
	StateStored    State = "stored"
	StateRejected  State = "rejected"
	StateDelivered State = "delivered"
	StateFailed    State = "failed"
)

// Deps bundles the collaborators the dispatcher needs.
type Deps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Store     database.Store
	AI        gemini.Client
	Transport transport.Client
}

// Dispatcher maps inbound events to ignore, store-for-context, or a
// command pipeline. It is safe for concurrent use; each event runs its
// own pipeline.
type Dispatcher struct {
	log   *slog.Logger
	cfg   *config.Config
	store database.Store
	ai    gemini.Client
	tg    transport.Client

	// commands is the ordered registration table; byName indexes it for
	// classification.
	commands []*commandSpec
	byName   map[string]*commandSpec
}

// New constructs a Dispatcher with its command table built once.
func New(deps Deps) *Dispatcher {
	d := &Dispatcher{
		log:    deps.Logger.With("component", "dispatcher"),
		cfg:    deps.Config,
		store:  deps.Store,
		ai:     deps.AI,
		tg:     deps.Transport,
		byName: make(map[string]*commandSpec),
	}

	d.commands = registerCommands()
	for _, cmd := range d.commands {
		d.byName[cmd.name] = cmd
	}

	return d
}

// CommandNames returns the registered command tokens in registration order.
func (d *Dispatcher) CommandNames() []string {
	names := make([]string, 0, len(d.commands))
	for _, cmd := range d.commands {
		names = append(names, cmd.name)
	}
	return names
}

// Dispatch processes one inbound event to a terminal state.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *transport.Event) State {
	if ev == nil || ev.ChatID == 0 {
		return StateIgnored
	}

	if cmd, args, ok := d.classifyCommand(ev); ok {
		return d.runPipeline(ctx, ev, cmd, args)
	}

	// Self-originated and automated messages never enter the context
	// corpus; in particular our own command text must not pollute prompts.
	if ev.Outgoing || ev.FromBot {
		return StateIgnored
	}

	return d.storeForContext(ctx, ev)
}

// classifyCommand reports whether the event is a command invocation. An
// event is a command iff its text begins with the configured prefix
// immediately followed by a registered token, and it is self-originated.
func (d *Dispatcher) classifyCommand(ev *transport.Event) (*commandSpec, string, bool) {
	if !ev.Outgoing {
		return nil, "", false
	}

	prefix := d.cfg.Commands.Prefix
	if !strings.HasPrefix(ev.Text, prefix) {
		return nil, "", false
	}

	rest := ev.Text[len(prefix):]
	token, args := rest, ""
	if i := strings.IndexAny(rest, " \t\n"); i >= 0 {
		token, args = rest[:i], rest[i+1:]
	}

	cmd, ok := d.byName[token]
	if !ok {
		return nil, "", false
	}

	return cmd, strings.TrimSpace(args), true
}

// storeForContext persists a passive message for later context assembly.
func (d *Dispatcher) storeForContext(ctx context.Context, ev *transport.Event) State {
	record := &database.Message{
		ChatID:           ev.ChatID,
		MessageID:        ev.MessageID,
		UserID:           ev.SenderID,
		Username:         ev.SenderUsername,
		FirstName:        ev.SenderFirstName,
		LastName:         ev.SenderLastName,
		Body:             ev.Text,
		Kind:             string(ev.Kind),
		FileID:           ev.MediaID,
		ReplyToMessageID: replyID(ev),
		CreatedAt:        ev.Timestamp.UTC(),
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	dbCtx, cancel := context.WithTimeout(ctx, d.cfg.Database.OpTimeout)
	defer cancel()
	if err := d.store.SaveMessage(dbCtx, record); err != nil {
		d.log.ErrorContext(ctx, "Failed to store message for context",
			"chat_id", ev.ChatID, "message_id", ev.MessageID, "error", err)
		return StateIgnored
	}

	return StateStored
}

// runPipeline executes one command pipeline against the triggering message:
// placeholder edit, resolve, assemble, generate, final edit. Every path
// ends with a terminal edit (final text, usage hint, or categorized error).
func (d *Dispatcher) runPipeline(ctx context.Context, ev *transport.Event, cmd *commandSpec, args string) (state State) {
	log := d.log.With("command", cmd.name, "chat_id", ev.ChatID, "message_id", ev.MessageID)

	if denied := d.rateLimited(ctx, ev); denied {
		d.editFinal(ctx, ev, d.cfg.Messages.RateLimited)
		return StateRejected
	}

	inv := &database.CommandInvocation{
		ID:        uuid.NewString(),
		ChatID:    ev.ChatID,
		UserID:    ev.SenderID,
		Command:   cmd.name,
		Status:    database.InvocationProcessing,
		CreatedAt: time.Now().UTC(),
	}
	d.auditInvocation(ctx, inv)

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "Command pipeline panicked", "panic", r)
			d.editFinal(ctx, ev, formatCommandError(cmd.category, fmt.Errorf("%v", r)))
			state = StateFailed
		}
		status := database.InvocationCompleted
		if state == StateFailed {
			status = database.InvocationFailed
		}
		d.finishInvocation(ctx, inv.ID, status)
	}()

	d.editFinal(ctx, ev, d.cfg.Messages.Working)

	if cmd.needsArgs && args == "" {
		log.InfoContext(ctx, "Command rejected: missing argument")
		d.editFinal(ctx, ev, usageHint(d.cfg.Commands.Prefix, cmd))
		return StateRejected
	}

	var content Resolution
	if cmd.needsContent {
		var ok bool
		content, ok = d.Resolve(ctx, ev, args)
		if !ok {
			log.InfoContext(ctx, "Command rejected: no resolvable content")
			d.editFinal(ctx, ev, usageHint(d.cfg.Commands.Prefix, cmd))
			return StateRejected
		}
	}

	text, err := cmd.run(ctx, d, ev, args, content)
	if err != nil {
		log.ErrorContext(ctx, "Command pipeline failed", "error", err)
		d.editFinal(ctx, ev, formatCommandError(cmd.category, err))
		return StateFailed
	}

	d.editFinal(ctx, ev, text)
	log.InfoContext(ctx, "Command delivered")
	return StateDelivered
}

// rateLimited applies the advisory per-user rate limit via a counted query
// of recent invocation rows. Errors fail open: a broken audit table must
// not block commands.
func (d *Dispatcher) rateLimited(ctx context.Context, ev *transport.Event) bool {
	if ev.SenderID == 0 {
		return false
	}

	dbCtx, cancel := context.WithTimeout(ctx, d.cfg.Database.OpTimeout)
	defer cancel()
	count, err := d.store.CountRecentInvocations(dbCtx, ev.SenderID, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		d.log.WarnContext(ctx, "Rate limit check failed, allowing command", "error", err)
		return false
	}

	return count >= d.cfg.Commands.RateLimitPerMinute
}

func (d *Dispatcher) auditInvocation(ctx context.Context, inv *database.CommandInvocation) {
	dbCtx, cancel := context.WithTimeout(ctx, d.cfg.Database.OpTimeout)
	defer cancel()
	if err := d.store.SaveInvocation(dbCtx, inv); err != nil {
		d.log.WarnContext(ctx, "Failed to record invocation", "command", inv.Command, "error", err)
	}
}

func (d *Dispatcher) finishInvocation(ctx context.Context, id, status string) {
	dbCtx, cancel := context.WithTimeout(ctx, d.cfg.Database.OpTimeout)
	defer cancel()
	if err := d.store.FinishInvocation(dbCtx, id, status); err != nil {
		d.log.WarnContext(ctx, "Failed to finish invocation", "id", id, "error", err)
	}
}

// editFinal replaces the triggering message text. Edits are best-effort;
// a failed edit is logged, never propagated.
func (d *Dispatcher) editFinal(ctx context.Context, ev *transport.Event, text string) {
	if err := d.tg.EditMessage(ctx, ev.ChatID, ev.MessageID, text); err != nil {
		d.log.ErrorContext(ctx, "Failed to edit message",
			"chat_id", ev.ChatID, "message_id", ev.MessageID, "error", err)
	}
}

// sessionPersona returns the user's active persona, or "" when none.
func (d *Dispatcher) sessionPersona(ctx context.Context, userID int64) string {
	if userID == 0 {
		return ""
	}

	dbCtx, cancel := context.WithTimeout(ctx, d.cfg.Database.OpTimeout)
	defer cancel()
	session, err := d.store.GetUserSession(dbCtx, userID)
	if err != nil {
		d.log.WarnContext(ctx, "Failed to load user session", "user_id", userID, "error", err)
		return ""
	}
	if session == nil {
		return ""
	}
	return session.Persona
}

func replyID(ev *transport.Event) int64 {
	if ev.ReplyTo == nil {
		return 0
	}
	return ev.ReplyTo.MessageID
}
