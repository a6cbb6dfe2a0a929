package configutil

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// The FlagOrViper helpers return the flag value when the flag was set on
// the command line, and the viper value for key otherwise. Viper already
// layers env, config file and defaults.

func FlagOrViperString(cmd *cobra.Command, flagName, key string) string {
	if flagChanged(cmd, flagName) {
		if v, err := cmd.Flags().GetString(flagName); err == nil {
			return v
		}
	}
	return viper.GetString(key)
}

func FlagOrViperBool(cmd *cobra.Command, flagName, key string) bool {
	if flagChanged(cmd, flagName) {
		if v, err := cmd.Flags().GetBool(flagName); err == nil {
			return v
		}
	}
	return viper.GetBool(key)
}

func FlagOrViperInt(cmd *cobra.Command, flagName, key string) int {
	if flagChanged(cmd, flagName) {
		if v, err := cmd.Flags().GetInt(flagName); err == nil {
			return v
		}
	}
	return viper.GetInt(key)
}

func FlagOrViperInt64(cmd *cobra.Command, flagName, key string) int64 {
	if flagChanged(cmd, flagName) {
		if v, err := cmd.Flags().GetInt64(flagName); err == nil {
			return v
		}
	}
	return viper.GetInt64(key)
}

func FlagOrViperDuration(cmd *cobra.Command, flagName, key string) time.Duration {
	if flagChanged(cmd, flagName) {
		if v, err := cmd.Flags().GetDuration(flagName); err == nil {
			return v
		}
	}
	return viper.GetDuration(key)
}

// FlagOrViperStringArray also accepts a comma separated string from env.
func FlagOrViperStringArray(cmd *cobra.Command, flagName, key string) []string {
	if flagChanged(cmd, flagName) {
		if v, err := cmd.Flags().GetStringArray(flagName); err == nil {
			return v
		}
	}
	out := viper.GetStringSlice(key)
	if len(out) == 1 && strings.Contains(out[0], ",") {
		out = strings.Split(out[0], ",")
	}
	return out
}

func flagChanged(cmd *cobra.Command, flagName string) bool {
	if cmd == nil || strings.TrimSpace(flagName) == "" {
		return false
	}
	f := cmd.Flags().Lookup(flagName)
	return f != nil && f.Changed
}
