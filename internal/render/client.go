package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/corpix/uarand"
	"github.com/google/uuid"

	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/workspace"
)

var (
	ErrMissingDownload = errors.New("render: downloaded image not found")
	ErrEmptyDownload   = errors.New("render: downloaded image is empty")
)

// The page copies to the OS clipboard on some interactions, which has no
// meaning in a headless session.
const disableClipboardWriteScript = `(() => {
	if (navigator.clipboard) {
		navigator.clipboard.writeText = () => Promise.resolve();
		navigator.clipboard.write = () => Promise.resolve();
	}
	return true;
})()`

type Config struct {
	Endpoint       string
	Options        Options
	Headless       bool
	ExecPath       string
	Timeout        time.Duration
	DownloadWait   time.Duration
	DownloadName   string
	ImageExt       string
	ReadySelector  string
	ExportSelector string
}

func (c Config) normalized() Config {
	c.Endpoint = strings.TrimRight(strings.TrimSpace(c.Endpoint), "/")
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	c.DownloadName = strings.TrimSpace(c.DownloadName)
	if c.DownloadName == "" {
		c.DownloadName = DefaultDownloadName
	}
	c.ImageExt = strings.TrimPrefix(strings.TrimSpace(c.ImageExt), ".")
	if c.ImageExt == "" {
		c.ImageExt = DefaultImageExt
	}
	if strings.TrimSpace(c.ReadySelector) == "" {
		c.ReadySelector = DefaultReadySelector
	}
	if strings.TrimSpace(c.ExportSelector) == "" {
		c.ExportSelector = DefaultExportSelector
	}
	if c.Timeout < 0 {
		c.Timeout = 0
	}
	if c.DownloadWait <= 0 {
		c.DownloadWait = DefaultDownloadWait
	}
	return c
}

type Request struct {
	// ID names the staging directory and tags log lines; generated if empty.
	ID       string
	UserID   int64
	Language string
	Code     string
}

// Result is either a rendered image path or a failure reason.
type Result struct {
	Path string
	Err  error
}

func (r Result) OK() bool {
	return r.Err == nil && strings.TrimSpace(r.Path) != ""
}

type Client struct {
	cfg       Config
	browser   Browser
	workspace *workspace.Manager
	logger    *slog.Logger
	userAgent func() string
}

func NewClient(cfg Config, browser Browser, ws *workspace.Manager, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:       cfg.normalized(),
		browser:   browser,
		workspace: ws,
		logger:    logger,
		userAgent: uarand.GetRandom,
	}
}

// Render drives one browser session against Carbon and returns the path of
// the exported image inside the user's workspace. It is a single attempt;
// callers do not retry. On failure any partial download stays in the
// staging directory for inspection.
func (c *Client) Render(ctx context.Context, req Request) Result {
	if c == nil || c.browser == nil || c.workspace == nil {
		return Result{Err: fmt.Errorf("render client is not initialized")}
	}
	if strings.TrimSpace(req.ID) == "" {
		req.ID = uuid.NewString()
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	started := time.Now()
	path, err := c.render(ctx, req)
	if err != nil {
		return Result{Err: err}
	}
	c.logger.Debug("render_ok", "render_id", req.ID, "user_id", req.UserID, "path", path, "elapsed", time.Since(started).String())
	return Result{Path: path}
}

func (c *Client) render(ctx context.Context, req Request) (string, error) {
	target := BuildURL(c.cfg.Endpoint, c.cfg.Options, req.Language, req.Code)

	session, err := c.browser.Open(ctx, SessionOptions{
		Headless:  c.cfg.Headless,
		UserAgent: c.userAgent(),
		ExecPath:  c.cfg.ExecPath,
	})
	if err != nil {
		return "", fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			c.logger.Debug("render_session_close_error", "render_id", req.ID, "error", err.Error())
		}
	}()

	if err := session.GrantClipboard(ctx, originOf(c.cfg.Endpoint)); err != nil {
		return "", fmt.Errorf("grant clipboard: %w", err)
	}

	userDir, err := c.workspace.EnsureDir(req.UserID)
	if err != nil {
		return "", err
	}
	// Each session downloads into its own directory, so two renders for the
	// same user never see each other's carbon.png.
	stagingDir := filepath.Join(userDir, "."+req.ID)
	if err := os.MkdirAll(stagingDir, 0o700); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	if err := session.SetDownloadDir(ctx, stagingDir); err != nil {
		return "", fmt.Errorf("set download dir: %w", err)
	}

	if err := session.NavigateAndWaitIdle(ctx, target, NavigationIdle); err != nil {
		return "", err
	}
	if err := session.WaitForSelector(ctx, c.cfg.ReadySelector); err != nil {
		return "", err
	}
	if err := session.Evaluate(ctx, disableClipboardWriteScript); err != nil {
		return "", fmt.Errorf("disable clipboard: %w", err)
	}
	if err := session.Click(ctx, c.cfg.ExportSelector); err != nil {
		return "", err
	}
	if err := session.WaitIdle(ctx, ExportIdle); err != nil {
		return "", err
	}

	downloaded := filepath.Join(stagingDir, c.cfg.DownloadName)
	if err := waitForDownload(ctx, downloaded, c.cfg.DownloadWait); err != nil {
		return "", err
	}
	if err := session.Close(); err != nil {
		c.logger.Debug("render_session_close_error", "render_id", req.ID, "error", err.Error())
	}

	final, err := c.workspace.MoveToFinalName(downloaded, userDir, c.cfg.ImageExt)
	if err != nil {
		return "", err
	}
	_ = os.Remove(stagingDir)
	return final, nil
}

// waitForDownload polls until path holds a non-empty file. Chrome writes to
// a .crdownload file first and renames it when done, so a visible path
// means the download finished.
func waitForDownload(ctx context.Context, path string, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		fi, err := os.Stat(path)
		switch {
		case err == nil && fi.Size() > 0:
			return nil
		case err != nil && !os.IsNotExist(err):
			return fmt.Errorf("stat download: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			if err == nil {
				return fmt.Errorf("%w: %s", ErrEmptyDownload, path)
			}
			return fmt.Errorf("%w: %s", ErrMissingDownload, path)
		case <-ticker.C:
		}
	}
}
