package telegram

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/workspace"
)

type fakeRequester struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	photoErr error
	photoOK  bool
}

func (f *fakeRequester) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if _, ok := c.(tgbotapi.PhotoConfig); ok {
		if f.photoErr != nil {
			return &tgbotapi.APIResponse{Ok: false, ErrorCode: 400, Description: "Bad Request: PHOTO_INVALID_DIMENSIONS"}, f.photoErr
		}
		return &tgbotapi.APIResponse{Ok: f.photoOK}, nil
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func writeArtifact(t *testing.T, ws *workspace.Manager, userID int64) string {
	t.Helper()
	dir, err := ws.EnsureDir(userID)
	if err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	path := filepath.Join(dir, "12345.png")
	if err := os.WriteFile(path, []byte("\x89PNG"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestDeliverSuccessRemovesArtifact(t *testing.T) {
	ws := workspace.New(t.TempDir())
	bot := &fakeRequester{photoOK: true}
	a, err := NewDeliveryAdapter(DeliveryAdapterOptions{Bot: bot, Workspace: ws})
	if err != nil {
		t.Fatalf("NewDeliveryAdapter() error = %v", err)
	}
	path := writeArtifact(t, ws, 42)

	out := a.Deliver(context.Background(), path, 1001, 77)
	if !out.OK {
		t.Fatalf("Deliver() error = %v", out.Err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("artifact should be removed after delivery, stat err = %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("expected 1 request, got %d", len(bot.sent))
	}
	photo, ok := bot.sent[0].(tgbotapi.PhotoConfig)
	if !ok {
		t.Fatalf("expected PhotoConfig, got %T", bot.sent[0])
	}
	if photo.ChatID != 1001 || photo.ReplyToMessageID != 77 {
		t.Fatalf("unexpected photo target: chat=%d reply_to=%d", photo.ChatID, photo.ReplyToMessageID)
	}
}

func TestDeliverFailureRemovesArtifactAndApologizes(t *testing.T) {
	cases := []struct {
		name string
		bot  *fakeRequester
	}{
		{name: "rejected", bot: &fakeRequester{photoOK: false}},
		{name: "transport error", bot: &fakeRequester{photoErr: errors.New("Bad Request: PHOTO_INVALID_DIMENSIONS")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ws := workspace.New(t.TempDir())
			a, err := NewDeliveryAdapter(DeliveryAdapterOptions{Bot: tc.bot, Workspace: ws, ApologyText: "oops"})
			if err != nil {
				t.Fatalf("NewDeliveryAdapter() error = %v", err)
			}
			path := writeArtifact(t, ws, 42)

			out := a.Deliver(context.Background(), path, 1001, 77)
			if out.OK {
				t.Fatalf("expected failed delivery")
			}
			if out.Err == nil {
				t.Fatalf("expected error on failed delivery")
			}
			if len(out.Raw) == 0 {
				t.Fatalf("raw response should be kept for logging")
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Fatalf("artifact should be removed after failed delivery, stat err = %v", err)
			}
			if len(tc.bot.sent) != 2 {
				t.Fatalf("expected photo + apology, got %d requests", len(tc.bot.sent))
			}
			msg, ok := tc.bot.sent[1].(tgbotapi.MessageConfig)
			if !ok {
				t.Fatalf("expected MessageConfig, got %T", tc.bot.sent[1])
			}
			if msg.ChatID != 1001 || msg.ReplyToMessageID != 77 || msg.Text != "oops" {
				t.Fatalf("unexpected apology: %#v", msg)
			}
		})
	}
}

func TestDeliverMissingFile(t *testing.T) {
	ws := workspace.New(t.TempDir())
	bot := &fakeRequester{photoOK: true}
	a, err := NewDeliveryAdapter(DeliveryAdapterOptions{Bot: bot, Workspace: ws})
	if err != nil {
		t.Fatalf("NewDeliveryAdapter() error = %v", err)
	}

	out := a.Deliver(context.Background(), filepath.Join(ws.Root(), "missing.png"), 1, 2)
	if out.OK {
		t.Fatalf("expected failure for missing file")
	}
	if len(bot.sent) != 1 {
		t.Fatalf("expected only the apology, got %d requests", len(bot.sent))
	}
	if msg, ok := bot.sent[0].(tgbotapi.MessageConfig); !ok || msg.Text != DefaultApologyText {
		t.Fatalf("unexpected request: %#v", bot.sent[0])
	}
}

func TestNewDeliveryAdapterRequiresDeps(t *testing.T) {
	if _, err := NewDeliveryAdapter(DeliveryAdapterOptions{Workspace: workspace.New(t.TempDir())}); err == nil || !strings.Contains(err.Error(), "bot") {
		t.Fatalf("expected bot error, got %v", err)
	}
	if _, err := NewDeliveryAdapter(DeliveryAdapterOptions{Bot: &fakeRequester{}}); err == nil || !strings.Contains(err.Error(), "workspace") {
		t.Fatalf("expected workspace error, got %v", err)
	}
}
