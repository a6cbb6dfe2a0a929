package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"

	telegramadapter "github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/adapters/telegram"
	runtimeworker "github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/channelruntime/worker"
	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/codeblock"
	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/healthcheck"
	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/pipeline"
	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/retryutil"
	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/workspace"
)

// Bot is the subset of *tgbotapi.BotAPI the runtime drives.
type Bot interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type MessageHandler interface {
	Handle(ctx context.Context, msg pipeline.Message) pipeline.Summary
}

type BanChecker interface {
	IsBanned(ctx context.Context, userID int64) (bool, error)
}

type Sweeper interface {
	Sweep(limits workspace.SweepLimits) (int, error)
}

type Dependencies struct {
	Logger    *slog.Logger
	Bot       Bot
	Handler   MessageHandler
	Banlist   BanChecker
	Workspace Sweeper
}

type runtime struct {
	logger  *slog.Logger
	bot     Bot
	handler MessageHandler
	banlist BanChecker
	opts    RunOptions
	allowed map[int64]bool
}

var botCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "How to use the bot"},
	{Command: "help", Description: "How to use the bot"},
}

// Run long-polls Telegram until ctx is done. Messages of one chat are
// handled in arrival order; chats run in parallel up to MaxConcurrency.
func Run(ctx context.Context, d Dependencies, opts RunOptions) error {
	if ctx == nil {
		return fmt.Errorf("context is required")
	}
	if d.Bot == nil {
		return fmt.Errorf("telegram bot is required")
	}
	if d.Handler == nil {
		return fmt.Errorf("message handler is required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts = normalizeRunOptions(opts)

	rt := &runtime{
		logger:  logger,
		bot:     d.Bot,
		handler: d.Handler,
		banlist: d.Banlist,
		opts:    opts,
		allowed: make(map[int64]bool, len(opts.AllowedChatIDs)),
	}
	for _, id := range opts.AllowedChatIDs {
		rt.allowed[id] = true
	}

	if opts.RegisterCommands {
		rt.registerCommands(ctx)
	}

	if d.Workspace != nil && opts.SweepSchedule != "" {
		scheduler, err := startSweeper(logger, d.Workspace, opts)
		if err != nil {
			return err
		}
		defer func() {
			<-scheduler.Stop().Done()
		}()
	}

	healthListen := healthcheck.NormalizeListen(opts.HealthListen)
	if healthListen != "" {
		healthServer, err := healthcheck.StartServer(ctx, logger, healthListen, "telegram")
		if err != nil {
			logger.Warn("telegram_health_server_start_error", "addr", healthListen, "error", err.Error())
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				_ = healthServer.Shutdown(shutdownCtx)
				cancel()
			}()
		}
	}

	workersCtx, stopWorkers := context.WithCancel(ctx)
	workers := runtimeworker.NewKeyed[int64, telegramadapter.InboundMessage](workersCtx, opts.MaxConcurrency, opts.QueueSize, rt.handleMessage).
		WithIdleTimeout(opts.WorkerIdleTimeout)
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	logger.Info("telegram_start",
		"poll_timeout", opts.PollTimeout.String(),
		"max_concurrency", opts.MaxConcurrency,
		"allowed_chats", len(opts.AllowedChatIDs),
		"sweep_schedule", opts.SweepSchedule,
	)

	offset := 0
	for {
		updates, err := rt.getUpdates(ctx, offset)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				logger.Info("telegram_stop", "reason", "context_canceled")
				return nil
			}
			if isPollTimeoutError(err) {
				logger.Debug("telegram_get_updates_timeout", "error", err.Error())
			} else {
				logger.Warn("telegram_get_updates_error", "error", err.Error())
			}
			select {
			case <-ctx.Done():
				logger.Info("telegram_stop", "reason", "context_canceled")
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			in, ok := rt.accept(u)
			if !ok {
				continue
			}
			if err := workers.Submit(ctx, in.ChatID, in); err != nil {
				logger.Info("telegram_stop", "reason", "context_canceled")
				return nil
			}
		}
	}
}

func (rt *runtime) getUpdates(ctx context.Context, offset int) ([]tgbotapi.Update, error) {
	cfg := tgbotapi.NewUpdate(offset)
	cfg.Timeout = int(rt.opts.PollTimeout / time.Second)
	cfg.AllowedUpdates = []string{"message"}

	type result struct {
		updates []tgbotapi.Update
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		updates, err := rt.bot.GetUpdates(cfg)
		ch <- result{updates: updates, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.updates, r.err
	}
}

// accept filters an update down to the messages the bot acts on. Edits
// and channel posts are ignored.
func (rt *runtime) accept(u tgbotapi.Update) (telegramadapter.InboundMessage, bool) {
	if u.Message == nil {
		return telegramadapter.InboundMessage{}, false
	}
	in, err := telegramadapter.InboundMessageFromTelegram(u.Message)
	if err != nil {
		rt.logger.Debug("telegram_update_skipped", "update_id", u.UpdateID, "error", err.Error())
		return telegramadapter.InboundMessage{}, false
	}
	if len(rt.allowed) > 0 && !rt.allowed[in.ChatID] {
		rt.logger.Debug("telegram_chat_not_allowed", "chat_id", in.ChatID)
		return telegramadapter.InboundMessage{}, false
	}
	if in.IsBot {
		return telegramadapter.InboundMessage{}, false
	}
	if in.Command == "" && !hasCodeEntity(in.Entities) {
		return telegramadapter.InboundMessage{}, false
	}
	return in, true
}

func hasCodeEntity(entities []codeblock.Entity) bool {
	for _, e := range entities {
		switch codeblock.Kind(e.Type) {
		case codeblock.KindPre, codeblock.KindCode:
			return true
		}
	}
	return false
}

func (rt *runtime) handleMessage(ctx context.Context, in telegramadapter.InboundMessage) {
	logger := rt.logger.With("chat_id", in.ChatID, "message_id", in.MessageID, "user_id", in.FromUserID)

	switch in.Command {
	case "start", "help":
		if err := rt.sendText(in.ChatID, in.MessageID, rt.opts.HelpText); err != nil {
			logger.Warn("telegram_send_help_error", "error", err.Error())
		}
		return
	}

	if rt.banlist != nil && in.FromUserID > 0 {
		banned, err := rt.banlist.IsBanned(ctx, in.FromUserID)
		if err != nil {
			logger.Warn("telegram_cas_check_error", "error", err.Error())
		} else if banned {
			logger.Info("telegram_cas_banned_user_skipped")
			return
		}
	}

	msgCtx, cancel := context.WithTimeout(ctx, rt.opts.MessageTimeout)
	defer cancel()
	started := time.Now()
	sum := rt.handler.Handle(msgCtx, pipeline.Message{
		ChatID:    in.ChatID,
		MessageID: in.MessageID,
		UserID:    in.FromUserID,
		Text:      in.Text,
		Entities:  in.Entities,
	})
	if sum.Spans == 0 {
		return
	}
	logger.Info("telegram_message_processed",
		"spans", sum.Spans,
		"rendered", sum.Rendered,
		"delivered", sum.Delivered,
		"elapsed", time.Since(started).String(),
	)
}

func (rt *runtime) sendText(chatID, replyTo int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = int(replyTo)
	resp, err := rt.bot.Request(msg)
	if err != nil {
		return err
	}
	if resp == nil || !resp.Ok {
		return fmt.Errorf("telegram sendMessage: ok=false")
	}
	return nil
}

func (rt *runtime) registerCommands(ctx context.Context) {
	set := func(context.Context) error {
		resp, err := rt.bot.Request(tgbotapi.NewSetMyCommands(botCommands...))
		if err != nil {
			return err
		}
		if resp == nil || !resp.Ok {
			return fmt.Errorf("telegram setMyCommands: ok=false")
		}
		return nil
	}
	if err := set(ctx); err != nil {
		rt.logger.Warn("telegram_set_commands_error", "error", err.Error())
		retryutil.AsyncRetry(ctx, rt.logger, "telegram_set_commands", retryutil.Policy{}, set)
	}
}

func startSweeper(logger *slog.Logger, ws Sweeper, opts RunOptions) (*cron.Cron, error) {
	sweep := func() {
		removed, err := ws.Sweep(workspace.SweepLimits{
			MaxAge:        opts.SweepMaxAge,
			MaxFiles:      opts.SweepMaxFiles,
			MaxTotalBytes: opts.SweepMaxTotalBytes,
			MinAge:        opts.SweepMinAge,
		})
		if err != nil {
			logger.Warn("workspace_sweep_error", "error", err.Error())
			return
		}
		if removed > 0 {
			logger.Info("workspace_sweep", "removed", removed)
		}
	}
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(opts.SweepSchedule, sweep); err != nil {
		return nil, fmt.Errorf("invalid workspace.sweep_schedule %q: %w", opts.SweepSchedule, err)
	}
	sweep()
	scheduler.Start()
	return scheduler, nil
}

func isPollTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "client.timeout") || strings.Contains(msg, "timeout")
}
