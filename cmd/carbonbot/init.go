package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/statepaths"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default config.yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := statepaths.DefaultConfigDir
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = args[0]
			}
			dir = statepaths.ResolveDir(dir, statepaths.DefaultConfigDir)

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			cfgPath := filepath.Join(dir, statepaths.ConfigFilename)
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists: %s", cfgPath)
			}

			body, err := defaultConfigYAML()
			if err != nil {
				return err
			}
			// The file holds the bot token once filled in.
			if err := os.WriteFile(cfgPath, body, 0o600); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "initialized %s\n", cfgPath)
			return nil
		},
	}

	return cmd
}

// defaultConfigYAML serializes the defaults from a fresh viper, so values
// from env or flags of the current process never end up in the file.
func defaultConfigYAML() ([]byte, error) {
	v := viper.New()
	setDefaults(v)
	settings := v.AllSettings()
	delete(settings, "trace")
	out, err := yaml.Marshal(humanizeDurations(settings))
	if err != nil {
		return nil, fmt.Errorf("encode default config: %w", err)
	}
	return out, nil
}

func humanizeDurations(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case map[string]any:
			out[k] = humanizeDurations(val)
		case time.Duration:
			out[k] = val.String()
		default:
			out[k] = v
		}
	}
	return out
}
