package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"

	appLog "days/internal/log"
	"days/internal/storage"
)

// maxBodySize bounds a downloaded calendar.
const maxBodySize = 10 << 20

// FetchResult is one downloaded (or cached) calendar body.
type FetchResult struct {
	URL       string
	Body      []byte
	FromCache bool
}

// cacheEntry is stored under "ics_cache_<hash>" next to the events.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	Body         []byte    `json:"body"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads ICS feeds with conditional requests. When a cache is
// configured, a failed or 304 response falls back to the last good body.
type Fetcher struct {
	Client *http.Client
	Cache  storage.Storage
	Clock  clockwork.Clock
}

func NewFetcher(cache storage.Storage) *Fetcher {
	return &Fetcher{
		Client: &http.Client{Timeout: 15 * time.Second},
		Cache:  cache,
		Clock:  clockwork.NewRealClock(),
	}
}

// Fetch downloads rawURL, honoring ETag and Last-Modified.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (FetchResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return FetchResult{}, fmt.Errorf("ics url must be http or https: %q", redactURL(rawURL))
	}

	key := cacheKey(rawURL)
	cached := f.loadCache(ctx, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")
	if len(cached.Body) > 0 {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	appLog.Info("ics fetch start", "url", redactURL(rawURL))

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if len(cached.Body) > 0 {
			appLog.Error("ics fetch network error, using cached body", err, "url", redactURL(rawURL))
			return FetchResult{URL: rawURL, Body: cached.Body, FromCache: true}, nil
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
		if err != nil {
			return FetchResult{}, err
		}
		if len(body) > maxBodySize {
			return FetchResult{}, fmt.Errorf("ics body larger than %d bytes", maxBodySize)
		}

		f.saveCache(ctx, key, cacheEntry{
			URL:          rawURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			Body:         body,
		})
		appLog.Info("ics fetch success", "url", redactURL(rawURL), "status", resp.StatusCode, "bytes", len(body))
		return FetchResult{URL: rawURL, Body: body}, nil

	case http.StatusNotModified:
		if len(cached.Body) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("ics fetch not modified; using cache", "url", redactURL(rawURL))
		return FetchResult{URL: rawURL, Body: cached.Body, FromCache: true}, nil

	default:
		if len(cached.Body) > 0 {
			appLog.Error("ics fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(rawURL))
			return FetchResult{URL: rawURL, Body: cached.Body, FromCache: true}, nil
		}
		return FetchResult{}, errors.New(resp.Status)
	}
}

func cacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return "ics_cache_" + hex.EncodeToString(sum[:8])
}

func (f *Fetcher) loadCache(ctx context.Context, key string) cacheEntry {
	var entry cacheEntry
	if f.Cache == nil {
		return entry
	}
	data, found, err := f.Cache.Get(ctx, key)
	if err != nil || !found {
		return entry
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		appLog.Warn("ics cache unreadable; ignoring", "key", key, "error", err.Error())
		return cacheEntry{}
	}
	return entry
}

func (f *Fetcher) saveCache(ctx context.Context, key string, entry cacheEntry) {
	if f.Cache == nil {
		return
	}
	clock := f.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	entry.UpdatedAt = clock.Now().UTC()
	data, err := json.Marshal(entry)
	if err == nil {
		err = f.Cache.Set(ctx, key, data)
	}
	if err != nil {
		appLog.Error("ics cache save failed", err, "key", key)
	}
}

// redactURL keeps scheme and host only; subscription URLs often embed a
// private token.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
