package agent

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

// responseCache holds the last successful GET response per URL.
type responseCache struct {
	mu      sync.RWMutex
	max     int
	order   []string
	entries map[string]cachedResponse
}

func newResponseCache(max int) *responseCache {
	if max < 1 {
		max = 1
	}
	return &responseCache{max: max, entries: make(map[string]cachedResponse)}
}

func (c *responseCache) put(key string, r cachedResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
		if len(c.order) > c.max {
			delete(c.entries, c.order[0])
			c.order = c.order[1:]
		}
	}
	c.entries[key] = r
}

func (c *responseCache) get(key string) (cachedResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[key]
	return r, ok
}

func (c *responseCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (r cachedResponse) toResponse(req *http.Request) *http.Response {
	return &http.Response{
		Status:        strconv.Itoa(r.status) + " " + http.StatusText(r.status),
		StatusCode:    r.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        r.header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(r.body)),
		ContentLength: int64(len(r.body)),
		Request:       req,
	}
}

// offlineResponse is served when the network fails and nothing is cached.
func offlineResponse(req *http.Request) *http.Response {
	body := "Offline"
	h := make(http.Header)
	h.Set("Content-Type", "text/plain")
	return &http.Response{
		Status:        "503 Service Unavailable",
		StatusCode:    http.StatusServiceUnavailable,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
