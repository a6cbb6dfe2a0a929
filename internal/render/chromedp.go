package render

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ChromeBrowser launches a fresh Chrome process per session.
type ChromeBrowser struct{}

func NewChromeBrowser() *ChromeBrowser {
	return &ChromeBrowser{}
}

func (ChromeBrowser) Open(ctx context.Context, opts SessionOptions) (Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
	)
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(ua))
	}
	if p := strings.TrimSpace(opts.ExecPath); p != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(p))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	s := &chromeSession{
		ctx:     tabCtx,
		tracker: newInflightTracker(),
		cancel:  func() { cancelTab(); cancelAlloc() },
	}

	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			s.tracker.start(string(e.RequestID))
		case *network.EventLoadingFinished:
			s.tracker.finish(string(e.RequestID))
		case *network.EventLoadingFailed:
			s.tracker.finish(string(e.RequestID))
		}
	})

	// The first Run starts the browser.
	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		s.cancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return s, nil
}

type chromeSession struct {
	ctx       context.Context
	tracker   *inflightTracker
	cancel    func()
	closeOnce sync.Once
}

// run executes actions on the tab while also honouring the caller's ctx.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (s *chromeSession) SetDownloadDir(ctx context.Context, dir string) error {
	return s.run(ctx, browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
		WithDownloadPath(dir).
		WithEventsEnabled(true))
}

func (s *chromeSession) GrantClipboard(ctx context.Context, origin string) error {
	perms := browser.GrantPermissions([]browser.PermissionType{
		browser.PermissionTypeClipboardReadWrite,
		browser.PermissionTypeClipboardSanitizedWrite,
	})
	if origin = strings.TrimSpace(origin); origin != "" {
		perms = perms.WithOrigin(origin)
	}
	return s.run(ctx, perms)
}

func (s *chromeSession) NavigateAndWaitIdle(ctx context.Context, url string, idle Idle) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	return s.WaitIdle(ctx, idle)
}

func (s *chromeSession) WaitForSelector(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) Evaluate(ctx context.Context, script string) error {
	var ignored any
	return s.run(ctx, chromedp.Evaluate(script, &ignored))
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) WaitIdle(ctx context.Context, idle Idle) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Also stop if the tab itself goes away.
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()
	if err := s.tracker.wait(waitCtx, idle); err != nil {
		return fmt.Errorf("wait network idle: %w", err)
	}
	return nil
}

func (s *chromeSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		// Cancel closes the browser gracefully; the cancel funcs then release
		// the allocator.
		err = chromedp.Cancel(s.ctx)
		s.cancel()
	})
	return err
}
