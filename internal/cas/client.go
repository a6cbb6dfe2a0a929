package cas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultEndpoint = "https://api.cas.chat"
	DefaultTimeout  = 5 * time.Second
	DefaultCacheTTL = 30 * time.Minute

	maxResponseBytes = 64 << 10
)

type Options struct {
	HTTPClient *http.Client
	Endpoint   string
	CacheTTL   time.Duration
	Now        func() time.Time
}

type Client struct {
	http     *http.Client
	endpoint string
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	cache map[int64]cacheEntry
}

type cacheEntry struct {
	banned  bool
	expires time.Time
}

type checkResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	endpoint := strings.TrimSpace(strings.TrimRight(opts.Endpoint, "/"))
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	ttl := opts.CacheTTL
	if ttl < 0 {
		ttl = 0
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		http:     httpClient,
		endpoint: endpoint,
		ttl:      ttl,
		now:      now,
		cache:    make(map[int64]cacheEntry),
	}
}

// IsBanned reports whether the CAS database lists userID. The service
// answers ok=true only for banned users; "record not found" comes back as
// ok=false with a description.
func (c *Client) IsBanned(ctx context.Context, userID int64) (bool, error) {
	if c == nil || c.http == nil {
		return false, fmt.Errorf("cas client is not initialized")
	}
	if userID <= 0 {
		return false, fmt.Errorf("user_id is required")
	}
	if banned, ok := c.cached(userID); ok {
		return banned, nil
	}

	q := url.Values{}
	q.Set("user_id", strconv.FormatInt(userID, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/check?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	if err != nil {
		return false, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("cas check http %d", resp.StatusCode)
	}
	var out checkResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return false, fmt.Errorf("decode cas response: %w", err)
	}

	c.store(userID, out.OK)
	return out.OK, nil
}

func (c *Client) cached(userID int64) (bool, bool) {
	if c.ttl <= 0 {
		return false, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[userID]
	if !ok {
		return false, false
	}
	if !c.now().Before(entry.expires) {
		delete(c.cache, userID)
		return false, false
	}
	return entry.banned, true
}

func (c *Client) store(userID int64, banned bool) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[userID] = cacheEntry{banned: banned, expires: c.now().Add(c.ttl)}
}
