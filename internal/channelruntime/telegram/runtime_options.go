package telegram

import (
	"sort"
	"strings"
	"time"
)

const (
	DefaultHelpText = "Send me a message with a code block (```...```) or inline `code` and I'll reply with a Carbon image of it.\n" +
		"Put the language on the line before the block, e.g. ```python, to pick the highlighting."
	defaultPollTimeout    = 30 * time.Second
	defaultMaxConcurrency = 3
	defaultQueueSize      = 16
	defaultSweepSchedule  = "@every 1h"
	defaultSweepMaxAge    = 24 * time.Hour
	defaultSweepMaxFiles  = 1000
	defaultSweepMaxBytes  = int64(512 * 1024 * 1024)
	defaultSweepMinAge    = 5 * time.Minute
	defaultMessageTimeout = 5 * time.Minute
	defaultWorkerIdle     = 10 * time.Minute
)

type RunOptions struct {
	AllowedChatIDs     []int64
	PollTimeout        time.Duration
	MaxConcurrency     int
	QueueSize          int
	MessageTimeout     time.Duration
	WorkerIdleTimeout  time.Duration
	HealthListen       string
	SweepSchedule      string
	SweepMaxAge        time.Duration
	SweepMaxFiles      int
	SweepMaxTotalBytes int64
	SweepMinAge        time.Duration
	HelpText           string
	RegisterCommands   bool
}

func normalizeRunOptions(opts RunOptions) RunOptions {
	opts.AllowedChatIDs = normalizeAllowedChatIDs(opts.AllowedChatIDs)
	opts.HealthListen = strings.TrimSpace(opts.HealthListen)
	opts.SweepSchedule = strings.TrimSpace(opts.SweepSchedule)
	opts.HelpText = strings.TrimSpace(opts.HelpText)

	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.MessageTimeout <= 0 {
		opts.MessageTimeout = defaultMessageTimeout
	}
	if opts.WorkerIdleTimeout <= 0 {
		opts.WorkerIdleTimeout = defaultWorkerIdle
	}
	if opts.SweepMaxAge <= 0 {
		opts.SweepMaxAge = defaultSweepMaxAge
	}
	if opts.SweepMaxFiles <= 0 {
		opts.SweepMaxFiles = defaultSweepMaxFiles
	}
	if opts.SweepMaxTotalBytes <= 0 {
		opts.SweepMaxTotalBytes = defaultSweepMaxBytes
	}
	if opts.SweepMinAge <= 0 {
		opts.SweepMinAge = defaultSweepMinAge
	}
	switch strings.ToLower(opts.SweepSchedule) {
	case "":
		opts.SweepSchedule = defaultSweepSchedule
	case "off", "false", "disabled", "none":
		opts.SweepSchedule = ""
	}
	if opts.HelpText == "" {
		opts.HelpText = DefaultHelpText
	}
	return opts
}

func normalizeAllowedChatIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
