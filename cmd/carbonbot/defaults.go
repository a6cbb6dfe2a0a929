package main

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/viper"

	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/cas"
	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/render"
)

func initViperDefaults() {
	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	// Telegram
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.api_endpoint", tgbotapi.APIEndpoint)
	v.SetDefault("telegram.poll_timeout", 30*time.Second)
	v.SetDefault("telegram.max_concurrency", 3)
	v.SetDefault("telegram.message_timeout", 5*time.Minute)
	v.SetDefault("telegram.reply_timeout", 30*time.Second)
	v.SetDefault("telegram.worker_idle_timeout", 10*time.Minute)
	v.SetDefault("telegram.allowed_chat_ids", []string{})
	v.SetDefault("telegram.register_commands", true)
	v.SetDefault("telegram.apology_text", "")
	v.SetDefault("telegram.help_text", "")

	// Render service
	v.SetDefault("render.endpoint", render.DefaultEndpoint)
	v.SetDefault("render.headless", true)
	v.SetDefault("render.chrome_path", "")
	v.SetDefault("render.timeout", render.DefaultTimeout)
	v.SetDefault("render.download_wait", render.DefaultDownloadWait)
	v.SetDefault("render.max_parallel_spans", 2)
	v.SetDefault("render.download_name", render.DefaultDownloadName)

	// Carbon styling
	opts := render.DefaultOptions()
	v.SetDefault("carbon.background", opts.Background)
	v.SetDefault("carbon.theme", opts.Theme)
	v.SetDefault("carbon.window_theme", opts.WindowTheme)
	v.SetDefault("carbon.width", opts.Width)
	v.SetDefault("carbon.drop_shadow", opts.DropShadow)
	v.SetDefault("carbon.drop_shadow_offset_y", opts.DropShadowOffsetY)
	v.SetDefault("carbon.drop_shadow_blur", opts.DropShadowBlur)
	v.SetDefault("carbon.window_controls", opts.WindowControls)
	v.SetDefault("carbon.auto_adjust_width", opts.AutoAdjustWidth)
	v.SetDefault("carbon.padding_vertical", opts.PaddingVertical)
	v.SetDefault("carbon.padding_horizontal", opts.PaddingHorizontal)
	v.SetDefault("carbon.line_numbers", opts.LineNumbers)
	v.SetDefault("carbon.first_line_number", opts.FirstLineNumber)
	v.SetDefault("carbon.font_family", opts.FontFamily)
	v.SetDefault("carbon.font_size", opts.FontSize)
	v.SetDefault("carbon.line_height", opts.LineHeight)
	v.SetDefault("carbon.square_image", opts.SquareImage)
	v.SetDefault("carbon.export_size", opts.ExportSize)
	v.SetDefault("carbon.watermark", opts.Watermark)

	// Workspace
	v.SetDefault("workspace.dir", "tmp")
	v.SetDefault("workspace.sweep_schedule", "@every 1h")
	v.SetDefault("workspace.max_age", 24*time.Hour)
	v.SetDefault("workspace.max_files", 1000)
	v.SetDefault("workspace.max_total_bytes", int64(512*1024*1024))

	// Combot Anti-Spam
	v.SetDefault("cas.enabled", false)
	v.SetDefault("cas.endpoint", cas.DefaultEndpoint)
	v.SetDefault("cas.timeout", cas.DefaultTimeout)
	v.SetDefault("cas.cache_ttl", cas.DefaultCacheTTL)

	v.SetDefault("health.listen", "")

	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("trace", false)
}
