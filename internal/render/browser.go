package render

import (
	"context"
	"time"
)

// Idle defines when the page counts as settled: at most MaxInflight
// requests open and no network activity for Quiet.
type Idle struct {
	MaxInflight int
	Quiet       time.Duration
}

var (
	// NavigationIdle mirrors puppeteer's networkidle2.
	NavigationIdle = Idle{MaxInflight: 2, Quiet: 500 * time.Millisecond}
	// ExportIdle waits for the export request and the download to drain.
	ExportIdle = Idle{MaxInflight: 0, Quiet: time.Second}
)

type SessionOptions struct {
	Headless  bool
	UserAgent string
	ExecPath  string
}

// Browser opens isolated browser sessions. Sessions are never reused.
type Browser interface {
	Open(ctx context.Context, opts SessionOptions) (Session, error)
}

// Session is the narrow set of page operations the render pipeline needs.
// Close must be safe to call more than once.
type Session interface {
	SetDownloadDir(ctx context.Context, dir string) error
	GrantClipboard(ctx context.Context, origin string) error
	NavigateAndWaitIdle(ctx context.Context, url string, idle Idle) error
	WaitForSelector(ctx context.Context, selector string) error
	Evaluate(ctx context.Context, script string) error
	Click(ctx context.Context, selector string) error
	WaitIdle(ctx context.Context, idle Idle) error
	Close() error
}
