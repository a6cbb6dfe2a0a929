package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	telegramadapter "github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/adapters/telegram"
	telegramruntime "github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/channelruntime/telegram"
	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/configutil"
	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/logutil"
	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/pipeline"
)

func newTelegramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telegram",
		Short: "Run the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(configutil.FlagOrViperString(cmd, "telegram-bot-token", "telegram.bot_token"))
			if token == "" {
				return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or CARBONBOT_TELEGRAM_BOT_TOKEN)")
			}
			allowed, err := parseAllowedChatIDs(configutil.FlagOrViperStringArray(cmd, "telegram-allowed-chat-id", "telegram.allowed_chat_ids"))
			if err != nil {
				return err
			}

			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}

			pollTimeout := configutil.FlagOrViperDuration(cmd, "telegram-poll-timeout", "telegram.poll_timeout")
			if pollTimeout <= 0 {
				pollTimeout = 30 * time.Second
			}
			httpClient := &http.Client{Timeout: pollTimeout + 30*time.Second}
			endpoint := strings.TrimSpace(viper.GetString("telegram.api_endpoint"))
			if endpoint == "" {
				endpoint = tgbotapi.APIEndpoint
			}
			bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
			if err != nil {
				return fmt.Errorf("connect telegram bot api: %w", err)
			}
			logger.Info("telegram_bot_authorized", "username", bot.Self.UserName, "id", bot.Self.ID)

			renderClient, ws := renderClientFromViper(cmd, logger)
			if _, err := ws.EnsureRoot(); err != nil {
				return fmt.Errorf("prepare workspace %s: %w", ws.Root(), err)
			}
			delivery, err := telegramadapter.NewDeliveryAdapter(telegramadapter.DeliveryAdapterOptions{
				Bot:         bot,
				Workspace:   ws,
				Logger:      logger,
				ApologyText: viper.GetString("telegram.apology_text"),
			})
			if err != nil {
				return err
			}
			processor, err := pipeline.NewProcessor(pipeline.Options{
				Renderer:         renderClient,
				Deliverer:        delivery,
				Logger:           logger,
				MaxParallelSpans: viper.GetInt("render.max_parallel_spans"),
				ReplyTimeout:     viper.GetDuration("telegram.reply_timeout"),
			})
			if err != nil {
				return err
			}

			deps := telegramruntime.Dependencies{
				Logger:    logger,
				Bot:       bot,
				Handler:   processor,
				Workspace: ws,
			}
			if casClient := casClientFromViper(); casClient != nil {
				deps.Banlist = casClient
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return telegramruntime.Run(ctx, deps, telegramruntime.RunOptions{
				AllowedChatIDs:     allowed,
				PollTimeout:        pollTimeout,
				MaxConcurrency:     configutil.FlagOrViperInt(cmd, "telegram-max-concurrency", "telegram.max_concurrency"),
				MessageTimeout:     viper.GetDuration("telegram.message_timeout"),
				WorkerIdleTimeout:  viper.GetDuration("telegram.worker_idle_timeout"),
				HealthListen:       configutil.FlagOrViperString(cmd, "health-listen", "health.listen"),
				SweepSchedule:      viper.GetString("workspace.sweep_schedule"),
				SweepMaxAge:        viper.GetDuration("workspace.max_age"),
				SweepMaxFiles:      viper.GetInt("workspace.max_files"),
				SweepMaxTotalBytes: viper.GetInt64("workspace.max_total_bytes"),
				SweepMinAge:        viper.GetDuration("render.timeout") + viper.GetDuration("telegram.reply_timeout"),
				HelpText:           viper.GetString("telegram.help_text"),
				RegisterCommands:   viper.GetBool("telegram.register_commands"),
			})
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().StringArray("telegram-allowed-chat-id", nil, "Allowed chat id(s). If empty, allows all.")
	cmd.Flags().Duration("telegram-poll-timeout", 30*time.Second, "Long polling timeout for getUpdates.")
	cmd.Flags().Int("telegram-max-concurrency", 3, "Max number of chats processed concurrently.")
	cmd.Flags().String("health-listen", "", "Health check listen address (e.g. 127.0.0.1:8080). Empty disables.")
	registerRenderFlags(cmd)

	return cmd
}
