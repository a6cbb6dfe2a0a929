package render

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Desenvolvimento-de-Software/thecarbon-bot/internal/workspace"
)

type fakeBrowser struct {
	mu       sync.Mutex
	openErr  error
	sessions []*fakeSession
	newFn    func() *fakeSession
	opts     []SessionOptions
}

func (b *fakeBrowser) Open(ctx context.Context, opts SessionOptions) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opts = append(b.opts, opts)
	if b.openErr != nil {
		return nil, b.openErr
	}
	s := &fakeSession{download: []byte("\x89PNG fake")}
	if b.newFn != nil {
		s = b.newFn()
	}
	b.sessions = append(b.sessions, s)
	return s, nil
}

type fakeSession struct {
	mu          sync.Mutex
	calls       []string
	downloadDir string
	navigated   string
	origin      string
	download    []byte
	noDownload  bool
	selectorErr error
	closed      int
}

func (s *fakeSession) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *fakeSession) SetDownloadDir(ctx context.Context, dir string) error {
	s.record("download_dir")
	s.downloadDir = dir
	return nil
}

func (s *fakeSession) GrantClipboard(ctx context.Context, origin string) error {
	s.record("grant")
	s.origin = origin
	return nil
}

func (s *fakeSession) NavigateAndWaitIdle(ctx context.Context, url string, idle Idle) error {
	s.record("navigate")
	s.navigated = url
	return nil
}

func (s *fakeSession) WaitForSelector(ctx context.Context, selector string) error {
	s.record("wait:" + selector)
	return s.selectorErr
}

func (s *fakeSession) Evaluate(ctx context.Context, script string) error {
	s.record("evaluate")
	return nil
}

func (s *fakeSession) Click(ctx context.Context, selector string) error {
	s.record("click:" + selector)
	if s.noDownload {
		return nil
	}
	return os.WriteFile(filepath.Join(s.downloadDir, DefaultDownloadName), s.download, 0o600)
}

func (s *fakeSession) WaitIdle(ctx context.Context, idle Idle) error {
	s.record("idle")
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func newTestClient(t *testing.T, b Browser) (*Client, *workspace.Manager) {
	t.Helper()
	ws := workspace.New(t.TempDir())
	c := NewClient(Config{
		Options:      DefaultOptions(),
		Headless:     true,
		DownloadWait: 200 * time.Millisecond,
	}, b, ws, nil)
	c.userAgent = func() string { return "Mozilla/5.0 (test)" }
	return c, ws
}

func TestRenderSuccess(t *testing.T) {
	b := &fakeBrowser{}
	c, ws := newTestClient(t, b)

	res := c.Render(context.Background(), Request{UserID: 77, Language: "python", Code: "print(1)\n"})
	if !res.OK() {
		t.Fatalf("Render() error = %v", res.Err)
	}

	userDir := ws.Dir(77)
	if filepath.Dir(res.Path) != userDir {
		t.Fatalf("artifact %s not in %s", res.Path, userDir)
	}
	if !regexp.MustCompile(`^\d{5}\.png$`).MatchString(filepath.Base(res.Path)) {
		t.Fatalf("unexpected artifact name %s", filepath.Base(res.Path))
	}
	entries, _ := os.ReadDir(userDir)
	if len(entries) != 1 {
		t.Fatalf("expected exactly one entry in user dir, got %d", len(entries))
	}

	s := b.sessions[0]
	if s.closed == 0 {
		t.Fatalf("session was not closed")
	}
	if s.origin != "https://carbon.now.sh" {
		t.Fatalf("clipboard origin = %q", s.origin)
	}
	if !strings.HasPrefix(s.downloadDir, userDir+string(filepath.Separator)) {
		t.Fatalf("download dir %s is not inside %s", s.downloadDir, userDir)
	}
	want := []string{
		"grant",
		"download_dir",
		"navigate",
		"wait:" + DefaultReadySelector,
		"evaluate",
		"click:" + DefaultExportSelector,
		"idle",
	}
	if strings.Join(s.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("call order = %v, want %v", s.calls, want)
	}

	u, err := url.Parse(s.navigated)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	if u.Query().Get("code") != "print(1)\n" || u.Query().Get("l") != "python" {
		t.Fatalf("unexpected query: %s", u.RawQuery)
	}
	if got := b.opts[0]; !got.Headless || got.UserAgent != "Mozilla/5.0 (test)" {
		t.Fatalf("unexpected session options: %#v", got)
	}
}

func TestRenderOpenFailure(t *testing.T) {
	b := &fakeBrowser{openErr: errors.New("chrome not found")}
	c, _ := newTestClient(t, b)

	res := c.Render(context.Background(), Request{UserID: 1, Code: "x"})
	if res.OK() || res.Err == nil {
		t.Fatalf("expected failure, got %#v", res)
	}
	if !strings.Contains(res.Err.Error(), "chrome not found") {
		t.Fatalf("error should carry the cause: %v", res.Err)
	}
}

func TestRenderClosesSessionOnFailure(t *testing.T) {
	cases := []struct {
		name    string
		session *fakeSession
		wantErr error
	}{
		{
			name:    "missing selector",
			session: &fakeSession{selectorErr: errors.New("selector timeout")},
		},
		{
			name:    "missing download",
			session: &fakeSession{noDownload: true},
			wantErr: ErrMissingDownload,
		},
		{
			name:    "empty download",
			session: &fakeSession{download: []byte{}},
			wantErr: ErrEmptyDownload,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := &fakeBrowser{newFn: func() *fakeSession { return tc.session }}
			c, ws := newTestClient(t, b)

			res := c.Render(context.Background(), Request{UserID: 9, Code: "x"})
			if res.Err == nil {
				t.Fatalf("expected failure")
			}
			if tc.wantErr != nil && !errors.Is(res.Err, tc.wantErr) {
				t.Fatalf("Render() error = %v, want %v", res.Err, tc.wantErr)
			}
			if tc.session.closed == 0 {
				t.Fatalf("session must be closed on failure")
			}
			matches, _ := filepath.Glob(filepath.Join(ws.Dir(9), "*.png"))
			if len(matches) != 0 {
				t.Fatalf("no artifact expected on failure, got %v", matches)
			}
		})
	}
}

func TestRenderConcurrentSameUser(t *testing.T) {
	b := &fakeBrowser{}
	c, ws := newTestClient(t, b)

	var wg sync.WaitGroup
	results := make([]Result, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Render(context.Background(), Request{UserID: 5, Code: "x"})
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, r := range results {
		if !r.OK() {
			t.Fatalf("Render() error = %v", r.Err)
		}
		if seen[r.Path] {
			t.Fatalf("duplicate artifact path %s", r.Path)
		}
		seen[r.Path] = true
	}
	matches, _ := filepath.Glob(filepath.Join(ws.Dir(5), "*.png"))
	if len(matches) != len(results) {
		t.Fatalf("expected %d artifacts, got %d", len(results), len(matches))
	}
}
