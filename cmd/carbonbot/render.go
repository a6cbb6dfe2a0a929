package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/codeblock"
	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/logutil"
	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/render"
)

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render [file|-]",
		Short: "Render one snippet through Carbon and print the image path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := "-"
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				src = args[0]
			}
			code, err := readSnippet(cmd.InOrStdin(), src)
			if err != nil {
				return err
			}
			if strings.TrimSpace(code) == "" {
				return fmt.Errorf("snippet is empty")
			}

			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			lang, _ := cmd.Flags().GetString("lang")
			if strings.TrimSpace(lang) == "" {
				lang = codeblock.AutoLanguage
			}
			userID, _ := cmd.Flags().GetInt64("user-id")

			client, _ := renderClientFromViper(cmd, logger)
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res := client.Render(ctx, render.Request{UserID: userID, Language: lang, Code: code})
			if !res.OK() {
				return fmt.Errorf("render failed: %w", res.Err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), res.Path)
			return nil
		},
	}

	cmd.Flags().String("lang", codeblock.AutoLanguage, "Language tag (e.g. python, go, c++).")
	cmd.Flags().Int64("user-id", 0, "Workspace user id the artifact is stored under.")
	registerRenderFlags(cmd)

	return cmd
}

func readSnippet(stdin io.Reader, src string) (string, error) {
	if src == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
