package telegram

import (
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/envologia/envo/internal/transport"
)

// eventFromMessage converts a Telegram message into a transport event.
// Outgoing marks messages sent from the owning account, which is what makes
// command classification possible on a personal agent.
func eventFromMessage(m *models.Message, ownerID int64) *transport.Event {
	ev := &transport.Event{
		ChatID:    m.Chat.ID,
		MessageID: int64(m.ID),
		Text:      messageText(m),
		Kind:      messageKind(m),
		MediaID:   messageMediaID(m),
		Timestamp: time.Unix(int64(m.Date), 0).UTC(),
	}

	if m.From != nil {
		ev.SenderID = m.From.ID
		ev.SenderUsername = m.From.Username
		ev.SenderFirstName = m.From.FirstName
		ev.SenderLastName = m.From.LastName
		ev.Outgoing = m.From.ID == ownerID
		ev.FromBot = m.From.IsBot
	}

	// One level of reply context is enough for content resolution.
	if m.ReplyToMessage != nil {
		reply := *m.ReplyToMessage
		reply.ReplyToMessage = nil
		ev.ReplyTo = eventFromMessage(&reply, ownerID)
	}

	return ev
}

func messageText(m *models.Message) string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

func messageKind(m *models.Message) transport.MessageKind {
	switch {
	case m.Voice != nil, m.Audio != nil:
		return transport.KindVoice
	case len(m.Photo) > 0:
		return transport.KindPhoto
	case m.Video != nil:
		return transport.KindVideo
	case m.Document != nil:
		return transport.KindDocument
	case m.Text != "":
		return transport.KindText
	}
	return transport.KindOther
}

// messageMediaID picks the file handle used for downloads. Photos come in
// multiple sizes ordered smallest to largest; the largest is used.
func messageMediaID(m *models.Message) string {
	switch {
	case m.Voice != nil:
		return m.Voice.FileID
	case m.Audio != nil:
		return m.Audio.FileID
	case len(m.Photo) > 0:
		return m.Photo[len(m.Photo)-1].FileID
	case m.Video != nil:
		return m.Video.FileID
	case m.Document != nil:
		return m.Document.FileID
	}
	return ""
}
