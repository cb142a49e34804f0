// Package telegram adapts the go-telegram/bot library to the transport
// interface the dispatcher consumes. It converts inbound updates into
// transport events and exposes send, edit, delete, and media download.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/envologia/envo/internal/config"
	"github.com/envologia/envo/internal/logger"
	"github.com/envologia/envo/internal/transport"
)

const (
	mediaDownloadTimeout = 30 * time.Second
	maxMediaBytes        = 20 * 1024 * 1024
)

// EventHandler receives each converted inbound event.
type EventHandler func(ctx context.Context, ev *transport.Event)

// Adapter implements transport.Client over the Telegram Bot API and feeds
// inbound messages to a registered EventHandler.
type Adapter struct {
	bot     *bot.Bot
	log     *slog.Logger
	token   string
	ownerID int64

	mu      sync.RWMutex
	handler EventHandler
}

// New creates the Telegram adapter. The handler is registered separately
// via OnEvent before Start, so the dispatcher can be constructed with the
// adapter as its transport.
func New(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}

	a := &Adapter{
		log:     log.With("component", "telegram_adapter"),
		token:   cfg.Token,
		ownerID: cfg.OwnerID,
	}

	b, err := bot.New(cfg.Token,
		bot.WithMiddlewares(logger.Middleware(a.log)),
		bot.WithDefaultHandler(a.handleUpdate),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	a.bot = b

	a.log.Info("Telegram adapter created", "token_prefix", cfg.Token[:8]+"...")
	return a, nil
}

// OnEvent registers the handler invoked for each inbound message. Must be
// called before Start; later calls replace the handler.
func (a *Adapter) OnEvent(h EventHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = h
}

// Me fetches the authenticated account identity.
func (a *Adapter) Me(ctx context.Context) (*models.User, error) {
	user, err := a.bot.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	return user, nil
}

// Start begins long polling and blocks until ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) {
	a.bot.Start(ctx)
}

func (a *Adapter) currentHandler() EventHandler {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.handler
}

func (a *Adapter) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil {
		return
	}

	h := a.currentHandler()
	if h == nil {
		a.log.WarnContext(ctx, "Update received before handler registration", "update_id", update.ID)
		return
	}

	h(ctx, eventFromMessage(msg, a.ownerID))
}

// SendMessage sends a plain text message and returns its message ID.
func (a *Adapter) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	sent, err := a.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return int64(sent.ID), nil
}

// EditMessage replaces the text of an existing message.
func (a *Adapter) EditMessage(ctx context.Context, chatID, messageID int64, text string) error {
	_, err := a.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: int(messageID),
		Text:      text,
	})
	if err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// DeleteMessage removes a message.
func (a *Adapter) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	_, err := a.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: int(messageID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// Download fetches media by file ID into a temporary file and returns its
// path. The caller owns the file and must remove it.
func (a *Adapter) Download(ctx context.Context, mediaID string) (string, error) {
	if mediaID == "" {
		return "", fmt.Errorf("empty media ID")
	}

	dlCtx, cancel := context.WithTimeout(ctx, mediaDownloadTimeout)
	defer cancel()

	fileObj, err := a.bot.GetFile(dlCtx, &bot.GetFileParams{FileID: mediaID})
	if err != nil {
		return "", fmt.Errorf("failed to get file: %w", err)
	}
	if fileObj.FilePath == "" {
		return "", fmt.Errorf("empty file path returned from Telegram")
	}

	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", a.token, fileObj.FilePath)
	req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			a.log.WarnContext(ctx, "Failed to close download body", "error", closeErr)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "envo-media-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxMediaBytes))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if removeErr := os.Remove(tmp.Name()); removeErr != nil {
			a.log.WarnContext(ctx, "Failed to remove partial download", "path", tmp.Name(), "error", removeErr)
		}
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	if n == 0 {
		if removeErr := os.Remove(tmp.Name()); removeErr != nil {
			a.log.WarnContext(ctx, "Failed to remove empty download", "path", tmp.Name(), "error", removeErr)
		}
		return "", fmt.Errorf("received empty file data")
	}

	return tmp.Name(), nil
}
