package telegram

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/codeblock"
)

type InboundMessage struct {
	ChatID       int64
	MessageID    int64
	SentAt       time.Time
	ChatType     string
	FromUserID   int64
	FromUsername string
	IsBot        bool
	Text         string
	Entities     []codeblock.Entity
	Command      string
}

// InboundMessageFromTelegram flattens a platform message. Captions are
// used when the message carries no text, so a photo or document with a
// code block in its caption is handled like a text message.
func InboundMessageFromTelegram(msg *tgbotapi.Message) (InboundMessage, error) {
	if msg == nil {
		return InboundMessage{}, fmt.Errorf("message is required")
	}
	if msg.Chat == nil || msg.Chat.ID == 0 {
		return InboundMessage{}, fmt.Errorf("chat_id is required")
	}
	if msg.MessageID == 0 {
		return InboundMessage{}, fmt.Errorf("message_id is required")
	}

	text := msg.Text
	entities := msg.Entities
	if strings.TrimSpace(text) == "" {
		text = msg.Caption
		entities = msg.CaptionEntities
	}

	out := InboundMessage{
		ChatID:    msg.Chat.ID,
		MessageID: int64(msg.MessageID),
		ChatType:  strings.TrimSpace(msg.Chat.Type),
		Text:      text,
		Entities:  convertEntities(entities),
	}
	if msg.Date > 0 {
		out.SentAt = time.Unix(int64(msg.Date), 0).UTC()
	}
	if msg.From != nil {
		out.FromUserID = msg.From.ID
		out.FromUsername = strings.TrimSpace(msg.From.UserName)
		out.IsBot = msg.From.IsBot
	}
	if msg.Text != "" && msg.IsCommand() {
		out.Command = strings.ToLower(msg.Command())
	}
	return out, nil
}

func convertEntities(in []tgbotapi.MessageEntity) []codeblock.Entity {
	if len(in) == 0 {
		return nil
	}
	out := make([]codeblock.Entity, 0, len(in))
	for _, e := range in {
		out = append(out, codeblock.Entity{
			Type:     e.Type,
			Offset:   e.Offset,
			Length:   e.Length,
			Language: strings.TrimSpace(e.Language),
		})
	}
	return out
}
