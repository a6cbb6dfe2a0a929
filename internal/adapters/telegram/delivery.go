package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	DefaultApologyText = "Sorry, I couldn't turn that code into an image. Please try again later."
	photoUploadName    = "carbon.png"
)

// Requester is the subset of *tgbotapi.BotAPI used for delivery.
type Requester interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Remover deletes delivered artifacts.
type Remover interface {
	Remove(path string) error
}

type DeliveryAdapterOptions struct {
	Bot         Requester
	Workspace   Remover
	Logger      *slog.Logger
	ApologyText string
}

type DeliveryAdapter struct {
	bot       Requester
	workspace Remover
	logger    *slog.Logger
	apology   string
}

// Outcome reports one upload attempt. Raw is the platform response as JSON,
// when one was received.
type Outcome struct {
	OK  bool
	Raw json.RawMessage
	Err error
}

func NewDeliveryAdapter(opts DeliveryAdapterOptions) (*DeliveryAdapter, error) {
	if opts.Bot == nil {
		return nil, fmt.Errorf("telegram bot is required")
	}
	if opts.Workspace == nil {
		return nil, fmt.Errorf("workspace is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	apology := strings.TrimSpace(opts.ApologyText)
	if apology == "" {
		apology = DefaultApologyText
	}
	return &DeliveryAdapter{
		bot:       opts.Bot,
		workspace: opts.Workspace,
		logger:    logger,
		apology:   apology,
	}, nil
}

// Deliver uploads the image as a photo replying to replyTo. The local file
// is removed after the attempt whatever the result; delivery is never
// retried. A rejected upload is logged with the raw response and the user
// gets an apology in the same thread.
func (a *DeliveryAdapter) Deliver(ctx context.Context, path string, chatID, replyTo int64) Outcome {
	if a == nil || a.bot == nil {
		return Outcome{Err: fmt.Errorf("telegram delivery adapter is not initialized")}
	}
	defer func() {
		if err := a.workspace.Remove(path); err != nil {
			a.logger.Warn("telegram_artifact_remove_error", "path", path, "error", err.Error())
		}
	}()

	out := a.sendPhoto(ctx, path, chatID, replyTo)
	if out.OK {
		return out
	}

	a.logger.Warn("telegram_send_photo_failed",
		"chat_id", chatID,
		"reply_to", replyTo,
		"error", errString(out.Err),
		"response", string(out.Raw),
	)
	if err := a.Apologize(ctx, chatID, replyTo); err != nil {
		a.logger.Warn("telegram_apology_failed", "chat_id", chatID, "error", err.Error())
	}
	return out
}

// Apologize posts the configured apology as a reply to replyTo.
func (a *DeliveryAdapter) Apologize(ctx context.Context, chatID, replyTo int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, a.apology)
	msg.ReplyToMessageID = int(replyTo)
	resp, err := a.bot.Request(msg)
	if err != nil {
		return err
	}
	if resp == nil || !resp.Ok {
		return fmt.Errorf("telegram sendMessage: ok=false")
	}
	return nil
}

func (a *DeliveryAdapter) sendPhoto(ctx context.Context, path string, chatID, replyTo int64) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{Err: err}
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Outcome{Err: fmt.Errorf("missing file path")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Outcome{Err: err}
	}
	if len(data) == 0 {
		return Outcome{Err: fmt.Errorf("artifact is empty: %s", path)}
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: photoUploadName, Bytes: data})
	photo.ReplyToMessageID = int(replyTo)

	resp, err := a.bot.Request(photo)
	out := Outcome{Err: err}
	if resp != nil {
		out.Raw, _ = json.Marshal(resp)
		out.OK = resp.Ok && err == nil
	}
	if !out.OK && out.Err == nil {
		out.Err = fmt.Errorf("telegram sendPhoto: ok=false")
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
