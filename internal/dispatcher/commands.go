package dispatcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/envologia/envo/internal/database"
	"github.com/envologia/envo/internal/gemini"
	"github.com/envologia/envo/internal/transport"
)

// Error categories used in user-facing failure messages.
const (
	CategoryAI       = "AI"
	CategoryContent  = "CONTENT"
	CategoryAnalysis = "ANALYSIS"
	CategorySearch   = "SEARCH"
	CategoryRoleplay = "ROLEPLAY"
	CategoryClear    = "CLEAR"
)

var errorHeaders = map[string]string{
	CategoryAI:       "🤖 AI Processing Error",
	CategoryContent:  "📝 Content Processing Error",
	CategoryAnalysis: "🔬 Analysis Error",
	CategorySearch:   "🔍 Search Error",
	CategoryRoleplay: "🎭 Roleplay Error",
	CategoryClear:    "🧹 Clear Context Error",
}

// commandSpec describes one registered command. The table is static
// configuration: adding an operation means adding a row, not a new
// dispatch path.
type commandSpec struct {
	name     string
	usage    string
	category string
	// needsContent routes the command through the content resolver and
	// rejects it with a usage hint when nothing is resolvable.
	needsContent bool
	// needsArgs rejects the command when no inline argument text is given.
	needsArgs bool

	run func(ctx context.Context, d *Dispatcher, ev *transport.Event, args string, content Resolution) (string, error)
}

// registerCommands builds the command table in registration order.
func registerCommands() []*commandSpec {
	cmds := []*commandSpec{
		{
			name:         "ask",
			usage:        "ask <question> (or reply to a message with a question)",
			category:     CategoryAI,
			needsContent: true,
			run:          runAsk,
		},
	}

	for _, op := range []gemini.TransformOp{
		gemini.OpSummarize, gemini.OpTranslate, gemini.OpRewrite,
		gemini.OpImprove, gemini.OpExpand, gemini.OpCondense,
	} {
		cmds = append(cmds, &commandSpec{
			name:         string(op),
			usage:        fmt.Sprintf("%s <text> (or reply to a message)", op),
			category:     CategoryContent,
			needsContent: true,
			run:          runTransform(op),
		})
	}

	for _, op := range []gemini.ExamineOp{gemini.OpAnalyze, gemini.OpExplain} {
		cmds = append(cmds, &commandSpec{
			name:         string(op),
			usage:        fmt.Sprintf("%s <text> (or reply to a message)", op),
			category:     CategoryAnalysis,
			needsContent: true,
			run:          runExamine(op),
		})
	}

	cmds = append(cmds,
		&commandSpec{
			name:      "search",
			usage:     "search <query>",
			category:  CategorySearch,
			needsArgs: true,
			run:       runSearch,
		},
		&commandSpec{
			name:      "roleplay",
			usage:     "roleplay <persona>",
			category:  CategoryRoleplay,
			needsArgs: true,
			run:       runRoleplay,
		},
		&commandSpec{
			name:     "clear",
			usage:    "clear",
			category: CategoryClear,
			run:      runClear,
		},
		&commandSpec{
			name:     "help",
			usage:    "help",
			category: CategoryAI,
			run:      runHelp,
		},
	)

	return cmds
}

// usageHint formats the hint shown when a command lacks required content.
func usageHint(prefix string, cmd *commandSpec) string {
	return fmt.Sprintf("Usage: %s%s", prefix, cmd.usage)
}

// formatCommandError renders a categorized, user-visible failure message.
// The error text is included; stack traces are not.
func formatCommandError(category string, err error) string {
	header, ok := errorHeaders[category]
	if !ok {
		header = "❌ Unknown Error"
	}
	return fmt.Sprintf("%s\n\n%v\n\nTry again in a few moments.", header, err)
}

// runAsk answers an open-ended question. When the question came inline and
// the message also replies to something, the replied content becomes the
// subject and is placed ahead of chat history in the prompt.
func runAsk(ctx context.Context, d *Dispatcher, ev *transport.Event, _ string, content Resolution) (string, error) {
	question := content.Text
	subject := ""
	if !content.FromReply && ev.ReplyTo != nil {
		if s, ok := d.resolveReplyContent(ctx, ev.ReplyTo); ok {
			subject = s
		}
	}

	history, err := d.AssembleContext(ctx, ev.ChatID, d.cfg.Commands.ContextMessages)
	if err != nil {
		// Degrade to an uncontextualized answer rather than failing.
		d.log.WarnContext(ctx, "Context assembly failed", "chat_id", ev.ChatID, "error", err)
		history = ""
	}

	persona := d.sessionPersona(ctx, ev.SenderID)
	return d.ai.Answer(ctx, question, subject, history, persona), nil
}

func runTransform(op gemini.TransformOp) func(context.Context, *Dispatcher, *transport.Event, string, Resolution) (string, error) {
	return func(ctx context.Context, d *Dispatcher, _ *transport.Event, _ string, content Resolution) (string, error) {
		return d.ai.Transform(ctx, content.Text, op), nil
	}
}

func runExamine(op gemini.ExamineOp) func(context.Context, *Dispatcher, *transport.Event, string, Resolution) (string, error) {
	return func(ctx context.Context, d *Dispatcher, _ *transport.Event, _ string, content Resolution) (string, error) {
		return d.ai.Examine(ctx, content.Text, op), nil
	}
}

// runSearch queries stored history for a case-insensitive substring,
// newest first, capped and truncated per configuration.
func runSearch(ctx context.Context, d *Dispatcher, ev *transport.Event, args string, _ Resolution) (string, error) {
	dbCtx, cancel := context.WithTimeout(ctx, d.cfg.Database.OpTimeout)
	defer cancel()

	results, err := d.store.SearchMessages(dbCtx, ev.ChatID, args, d.cfg.Commands.SearchResults)
	if err != nil {
		return "", fmt.Errorf("history search failed: %w", err)
	}
	if len(results) == 0 {
		return d.cfg.Messages.NoResults, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 Results for %q:\n", args)
	for _, m := range results {
		fmt.Fprintf(&sb, "• [%s] %s: %s\n",
			m.CreatedAt.Format("2006-01-02 15:04"),
			m.DisplayName(),
			truncate(m.Body, d.cfg.Commands.SearchPreviewChars))
	}

	return strings.TrimRight(sb.String(), "\n"), nil
}

// runRoleplay records the active persona for the user, preserving any
// auxiliary context blob already stored.
func runRoleplay(ctx context.Context, d *Dispatcher, ev *transport.Event, args string, _ Resolution) (string, error) {
	dbCtx, cancel := context.WithTimeout(ctx, d.cfg.Database.OpTimeout)
	defer cancel()

	session, err := d.store.GetUserSession(dbCtx, ev.SenderID)
	if err != nil {
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		session = &database.UserSession{UserID: ev.SenderID}
	}
	session.Persona = args

	if err := d.store.SaveUserSession(dbCtx, session); err != nil {
		return "", fmt.Errorf("failed to save persona: %w", err)
	}

	return fmt.Sprintf("🎭 Roleplay mode activated: %s", args), nil
}

func runClear(ctx context.Context, d *Dispatcher, ev *transport.Event, _ string, _ Resolution) (string, error) {
	dbCtx, cancel := context.WithTimeout(ctx, d.cfg.Database.OpTimeout)
	defer cancel()

	if err := d.store.ClearUserSession(dbCtx, ev.SenderID); err != nil {
		return "", fmt.Errorf("failed to clear session: %w", err)
	}

	return "🧹 Persona and context cleared.", nil
}

func runHelp(_ context.Context, d *Dispatcher, _ *transport.Event, _ string, _ Resolution) (string, error) {
	return d.cfg.Messages.Help, nil
}

// truncate bounds s to max runes, appending an ellipsis when cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}
