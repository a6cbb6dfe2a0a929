package statepaths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultWorkspaceDirName = "tmp"
	DefaultConfigDir        = "~/.carbonbot"
	ConfigFilename          = "config.yaml"
)

// WorkspaceDir is the root for per-user render artifacts.
func WorkspaceDir() string {
	return ResolveDir(viper.GetString("workspace.dir"), DefaultWorkspaceDirName)
}

// ResolveDir expands "~" in raw and falls back to def when raw is empty.
func ResolveDir(raw, def string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = def
	}
	return filepath.Clean(ExpandHomePath(raw))
}

func ExpandHomePath(p string) string {
	p = strings.TrimSpace(p)
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return p
	}
	if p == "~" {
		return home
	}
	return filepath.Join(home, p[2:])
}
