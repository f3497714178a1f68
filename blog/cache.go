package blog

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis"
)

// PageCache stores rendered pages for a short time.
type PageCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, page []byte, ttl time.Duration) error
}

// RedisPageCache keeps pages in Redis so every server instance shares them.
type RedisPageCache struct {
	client *redis.Client
	prefix string
}

func NewRedisPageCache(client *redis.Client) *RedisPageCache {
	return &RedisPageCache{client: client, prefix: "postbook:"}
}

func (c *RedisPageCache) Get(key string) ([]byte, bool) {
	page, err := c.client.Get(c.prefix + key).Bytes()
	if err != nil {
		// redis.Nil is a plain miss; anything else is treated as one too
		return nil, false
	}
	return page, true
}

func (c *RedisPageCache) Set(key string, page []byte, ttl time.Duration) error {
	return c.client.Set(c.prefix+key, page, ttl).Err()
}

type cacheEntry struct {
	page    []byte
	expires time.Time
}

// MemoryPageCache is the single-process PageCache used when no Redis is
// configured.
type MemoryPageCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewMemoryPageCache() *MemoryPageCache {
	return &MemoryPageCache{entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *MemoryPageCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.page, true
}

func (c *MemoryPageCache) Set(key string, page []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{page: bytes.Clone(page), expires: now.Add(ttl)}
	return nil
}

type pageRecorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (r *pageRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *pageRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

// cachePage serves GET requests from h.cache for ttl after the first
// successful render. Pages are keyed by viewer and full request URI, so a
// page rendered for one user is never shown to another.
func (h *Handlers) cachePage(ttl time.Duration, next http.Handler) http.Handler {
	if ttl <= 0 || h.cache == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		viewer := h.Session.GetString(r.Context(), sessionUserKey)
		if viewer == "" {
			viewer = "anonymous"
		}
		key := "page:" + viewer + ":" + r.URL.RequestURI()
		if page, ok := h.cache.Get(key); ok {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("X-Cache", "HIT")
			w.Write(page)
			return
		}
		rec := &pageRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.status == http.StatusOK {
			if err := h.cache.Set(key, rec.buf.Bytes(), ttl); err != nil {
				h.errorLog.Printf("page cache: %v", err)
			}
		}
	})
}
