// Package graph is a thin client for the Microsoft Graph drive API.
package graph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hul1hu/mediadrive/internal/metrics"
)

// DefaultBaseURL is the production Graph endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// StatusError is returned when Graph answers with a non-2xx status.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("graph %s: upstream status %d", e.Op, e.Code)
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code == http.StatusNotFound
}

// Config holds client construction options.
type Config struct {
	BaseURL   string
	CacheSize int
	CacheTTL  time.Duration
	// HTTPClient overrides the default client, used by tests.
	HTTPClient *http.Client
}

// Client issues authenticated requests against the Graph API.
// Item metadata is cached per (token, item) with a short TTL so that the
// metadata lookup on every ranged stream request does not hammer upstream.
type Client struct {
	baseURL string
	httpc   *http.Client
	items   *expirable.LRU[string, *Item]
}

// New creates a new Graph client.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 1024
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpc:   httpc,
		items:   expirable.NewLRU[string, *Item](size, nil, ttl),
	}
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var user User
	if err := c.getJSON(ctx, token, "/me", "me", &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, fmt.Errorf("graph me: empty user id")
	}
	return &user, nil
}

// Item fetches metadata for a single drive item, consulting the cache first.
func (c *Client) Item(ctx context.Context, token, itemID string) (*Item, error) {
	key := cacheKey(token, itemID)
	if it, ok := c.items.Get(key); ok {
		metrics.RecordItemCacheLookup(true)
		return it, nil
	}
	metrics.RecordItemCacheLookup(false)

	var item Item
	path := "/me/drive/items/" + url.PathEscape(itemID)
	if err := c.getJSON(ctx, token, path, "item", &item); err != nil {
		return nil, err
	}
	c.items.Add(key, &item)
	return &item, nil
}

// Children lists the contents of a folder. folderID "root" or "" means the
// drive root.
func (c *Client) Children(ctx context.Context, token, folderID string) ([]Item, error) {
	path := "/me/drive/root/children"
	if folderID != "" && folderID != "root" {
		path = "/me/drive/items/" + url.PathEscape(folderID) + "/children"
	}
	var list listResponse
	if err := c.getJSON(ctx, token, path, "children", &list); err != nil {
		return nil, err
	}
	return list.Value, nil
}

// Search searches the whole drive for items matching the query.
func (c *Client) Search(ctx context.Context, token, query string) ([]Item, error) {
	path := "/me/drive/root/search(q='" + url.PathEscape(query) + "')"
	var list listResponse
	if err := c.getJSON(ctx, token, path, "search", &list); err != nil {
		return nil, err
	}
	return list.Value, nil
}

// Fetch downloads the full file behind a pre-authenticated download URL.
// The caller owns the response body.
func (c *Client) Fetch(ctx context.Context, downloadURL string) (*http.Response, error) {
	return c.fetch(ctx, downloadURL, "", "download")
}

// FetchRange downloads the byte range [start, end] of a file.
// The caller owns the response body.
func (c *Client) FetchRange(ctx context.Context, downloadURL string, start, end int64) (*http.Response, error) {
	return c.fetch(ctx, downloadURL, fmt.Sprintf("bytes=%d-%d", start, end), "download_range")
}

func (c *Client) fetch(ctx context.Context, downloadURL, rangeHeader, op string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("graph %s: %w", op, err)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		metrics.RecordGraphRequest(op, 0, time.Since(start))
		return nil, fmt.Errorf("graph %s: %w", op, err)
	}
	metrics.RecordGraphRequest(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{Op: op, Code: resp.StatusCode}
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, token, path, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("graph %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		metrics.RecordGraphRequest(op, 0, time.Since(start))
		return fmt.Errorf("graph %s: %w", op, err)
	}
	defer resp.Body.Close()
	metrics.RecordGraphRequest(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{Op: op, Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("graph %s: decode: %w", op, err)
	}
	return nil
}

// cacheKey hashes the token so raw credentials never sit in the cache.
func cacheKey(token, itemID string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:8]) + ":" + itemID
}
