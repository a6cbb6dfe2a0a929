package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/cas"
	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/configutil"
	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/render"
	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/statepaths"
	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/workspace"
)

// registerRenderFlags adds the flags shared by commands that drive the
// browser.
func registerRenderFlags(cmd *cobra.Command) {
	cmd.Flags().String("render-endpoint", "", "Carbon base URL.")
	cmd.Flags().Bool("headless", true, "Run Chrome headless.")
	cmd.Flags().String("chrome-path", "", "Chrome/Chromium executable (default: auto-detect).")
	cmd.Flags().Duration("render-timeout", render.DefaultTimeout, "Upper bound for one render (0 disables).")
	cmd.Flags().String("workspace-dir", "", "Directory for per-user render artifacts.")
}

func renderOptionsFromViper() render.Options {
	return render.Options{
		Background:        viper.GetString("carbon.background"),
		Theme:             viper.GetString("carbon.theme"),
		WindowTheme:       viper.GetString("carbon.window_theme"),
		Width:             viper.GetInt("carbon.width"),
		DropShadow:        viper.GetBool("carbon.drop_shadow"),
		DropShadowOffsetY: viper.GetString("carbon.drop_shadow_offset_y"),
		DropShadowBlur:    viper.GetString("carbon.drop_shadow_blur"),
		WindowControls:    viper.GetBool("carbon.window_controls"),
		AutoAdjustWidth:   viper.GetBool("carbon.auto_adjust_width"),
		PaddingVertical:   viper.GetString("carbon.padding_vertical"),
		PaddingHorizontal: viper.GetString("carbon.padding_horizontal"),
		LineNumbers:       viper.GetBool("carbon.line_numbers"),
		FirstLineNumber:   viper.GetInt("carbon.first_line_number"),
		FontFamily:        viper.GetString("carbon.font_family"),
		FontSize:          viper.GetString("carbon.font_size"),
		LineHeight:        viper.GetString("carbon.line_height"),
		SquareImage:       viper.GetBool("carbon.square_image"),
		ExportSize:        viper.GetString("carbon.export_size"),
		Watermark:         viper.GetBool("carbon.watermark"),
	}
}

func renderConfigFromViper(cmd *cobra.Command) render.Config {
	return render.Config{
		Endpoint:     configutil.FlagOrViperString(cmd, "render-endpoint", "render.endpoint"),
		Options:      renderOptionsFromViper(),
		Headless:     configutil.FlagOrViperBool(cmd, "headless", "render.headless"),
		ExecPath:     strings.TrimSpace(configutil.FlagOrViperString(cmd, "chrome-path", "render.chrome_path")),
		Timeout:      configutil.FlagOrViperDuration(cmd, "render-timeout", "render.timeout"),
		DownloadWait: viper.GetDuration("render.download_wait"),
		DownloadName: viper.GetString("render.download_name"),
	}
}

func workspaceFromViper(cmd *cobra.Command) *workspace.Manager {
	dir := configutil.FlagOrViperString(cmd, "workspace-dir", "workspace.dir")
	return workspace.New(statepaths.ResolveDir(dir, statepaths.DefaultWorkspaceDirName))
}

func renderClientFromViper(cmd *cobra.Command, logger *slog.Logger) (*render.Client, *workspace.Manager) {
	ws := workspaceFromViper(cmd)
	client := render.NewClient(renderConfigFromViper(cmd), render.NewChromeBrowser(), ws, logger)
	return client, ws
}

func casClientFromViper() *cas.Client {
	if !viper.GetBool("cas.enabled") {
		return nil
	}
	return cas.New(cas.Options{
		HTTPClient: &http.Client{Timeout: viper.GetDuration("cas.timeout")},
		Endpoint:   viper.GetString("cas.endpoint"),
		CacheTTL:   viper.GetDuration("cas.cache_ttl"),
	})
}

func parseAllowedChatIDs(raw []string) ([]int64, error) {
	var out []int64
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram.allowed_chat_ids entry %q: %w", s, err)
		}
		out = append(out, id)
	}
	return out, nil
}
