package telegram

import (
	"testing"
	"time"
)

func TestNormalizeRunOptionsDefaults(t *testing.T) {
	got := normalizeRunOptions(RunOptions{})
	if got.PollTimeout != 30*time.Second {
		t.Fatalf("poll timeout = %v, want 30s", got.PollTimeout)
	}
	if got.MaxConcurrency != 3 {
		t.Fatalf("max concurrency = %d, want 3", got.MaxConcurrency)
	}
	if got.WorkerIdleTimeout != 10*time.Minute {
		t.Fatalf("worker idle timeout = %s, want 10m", got.WorkerIdleTimeout)
	}
	if got.QueueSize != 16 {
		t.Fatalf("queue size = %d, want 16", got.QueueSize)
	}
	if got.SweepSchedule != "@every 1h" {
		t.Fatalf("sweep schedule = %q, want @every 1h", got.SweepSchedule)
	}
	if got.SweepMaxAge != 24*time.Hour || got.SweepMaxFiles != 1000 || got.SweepMaxTotalBytes != 512*1024*1024 || got.SweepMinAge != 5*time.Minute {
		t.Fatalf("sweep limits mismatch: %#v", got)
	}
	if got.HelpText != DefaultHelpText {
		t.Fatalf("help text = %q", got.HelpText)
	}
}

func TestNormalizeRunOptionsKeepsValues(t *testing.T) {
	got := normalizeRunOptions(RunOptions{
		AllowedChatIDs:     []int64{5, 0, -3, 5},
		PollTimeout:        45 * time.Second,
		MaxConcurrency:     8,
		HealthListen:       " 127.0.0.1:8080 ",
		SweepSchedule:      "off",
		SweepMaxAge:        time.Hour,
		SweepMaxFiles:      10,
		SweepMaxTotalBytes: 1024,
		HelpText:           " hi ",
	})
	if len(got.AllowedChatIDs) != 2 || got.AllowedChatIDs[0] != -3 || got.AllowedChatIDs[1] != 5 {
		t.Fatalf("allowed chat ids = %#v, want [-3 5]", got.AllowedChatIDs)
	}
	if got.PollTimeout != 45*time.Second || got.MaxConcurrency != 8 {
		t.Fatalf("resolved options mismatch: %#v", got)
	}
	if got.HealthListen != "127.0.0.1:8080" {
		t.Fatalf("health listen = %q", got.HealthListen)
	}
	if got.SweepSchedule != "" {
		t.Fatalf("sweep should be disabled, got %q", got.SweepSchedule)
	}
	if got.SweepMaxAge != time.Hour || got.SweepMaxFiles != 10 || got.SweepMaxTotalBytes != 1024 {
		t.Fatalf("sweep limits mismatch: %#v", got)
	}
	if got.HelpText != "hi" {
		t.Fatalf("help text = %q", got.HelpText)
	}
}
