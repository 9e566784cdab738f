// Package cache keeps recent answers in memory so repeated questions
// skip the pipeline. Keys combine the normalized question with the
// asking role, never the user id, so colleagues with the same role
// share entries while role-filtered data stays separated.
package cache

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"adoptiq/internal/answer"
)

// Config tunes the cache.
type Config struct {
	TTL         time.Duration
	MaxEntries  int
	CacheErrors bool
	Enabled     bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TTL:        5 * time.Minute,
		MaxEntries: 1000,
		Enabled:    true,
	}
}

type entry struct {
	response answer.Response
	storedAt time.Time
	hits     int
	userID   string
	role     string
}

// Stats is a point-in-time cache snapshot.
type Stats struct {
	Entries   int     `json:"entries"`
	Hits      int     `json:"hits"`
	Misses    int     `json:"misses"`
	HitRate   float64 `json:"hitRate"`
	OldestAge int64   `json:"oldestEntryAgeMs"`
	NewestAge int64   `json:"newestEntryAgeMs"`
}

// Cache is a TTL cache with oldest-first eviction. Safe for
// concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	cfg     Config
	hits    int
	misses  int
	log     *slog.Logger
	now     func() time.Time
}

// New builds a Cache.
func New(cfg Config, log *slog.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		entries: make(map[string]*entry),
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// key normalizes the question and appends the role.
func key(question, role string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	return normalized + "::" + role
}

// Get returns the cached answer for a question, marked as cached.
func (c *Cache) Get(question, role string) (answer.Response, bool) {
	if !c.cfg.Enabled {
		return answer.Response{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(question, role)
	e, ok := c.entries[k]
	if !ok {
		c.misses++
		return answer.Response{}, false
	}
	if c.now().Sub(e.storedAt) > c.cfg.TTL {
		delete(c.entries, k)
		c.misses++
		return answer.Response{}, false
	}

	e.hits++
	c.hits++

	resp := e.response
	resp.Metadata.Cached = true
	return resp, true
}

// Set stores an answer. The entry remembers which user stored it, but
// the key stays question+role so colleagues share entries. Error
// answers are skipped unless configured, so a transient failure never
// shadows a later good answer.
func (c *Cache) Set(question, userID, role string, resp answer.Response) {
	if !c.cfg.Enabled {
		return
	}
	if resp.Error != "" && !c.cfg.CacheErrors {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.cfg.MaxEntries*9/10 {
		c.evictExpired()
	}
	if len(c.entries) >= c.cfg.MaxEntries {
		c.evictOldest(c.cfg.MaxEntries / 10)
	}

	c.entries[key(question, role)] = &entry{
		response: resp,
		storedAt: c.now(),
		userID:   userID,
		role:     role,
	}
}

// Has reports whether a fresh entry exists without counting a hit.
func (c *Cache) Has(question, role string) bool {
	if !c.cfg.Enabled {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key(question, role)]
	return ok && c.now().Sub(e.storedAt) <= c.cfg.TTL
}

// Invalidate removes one entry.
func (c *Cache) Invalidate(question, role string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(question, role)
	if _, ok := c.entries[k]; !ok {
		return false
	}
	delete(c.entries, k)
	return true
}

// InvalidateRole removes every entry stored for a role. Called when
// role permissions change.
func (c *Cache) InvalidateRole(role string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for k, e := range c.entries {
		if e.role == role {
			delete(c.entries, k)
			count++
		}
	}
	return count
}

// InvalidateUser removes every entry stored by a user. Called when a
// user's individual permissions change.
func (c *Cache) InvalidateUser(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for k, e := range c.entries {
		if e.userID == userID {
			delete(c.entries, k)
			count++
		}
	}
	return count
}

// InvalidatePattern removes entries whose key matches the pattern.
// Called when underlying data changes, e.g. after an import.
func (c *Cache) InvalidatePattern(pattern *regexp.Regexp) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for k := range c.entries {
		if pattern.MatchString(k) {
			delete(c.entries, k)
			count++
		}
	}
	return count
}

// Clear drops all entries and resets counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.hits = 0
	c.misses = 0
}

// Stats snapshots the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var oldest, newest time.Duration
	first := true
	for _, e := range c.entries {
		age := now.Sub(e.storedAt)
		if first || age > oldest {
			oldest = age
		}
		if first || age < newest {
			newest = age
		}
		first = false
	}

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Entries:   len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		HitRate:   rate,
		OldestAge: oldest.Milliseconds(),
		NewestAge: newest.Milliseconds(),
	}
}

// evictExpired removes stale entries. Caller holds the lock.
func (c *Cache) evictExpired() {
	now := c.now()
	evicted := 0
	for k, e := range c.entries {
		if now.Sub(e.storedAt) > c.cfg.TTL {
			delete(c.entries, k)
			evicted++
		}
	}
	if evicted > 0 {
		c.log.Debug("evicted expired cache entries", "count", evicted)
	}
}

// evictOldest removes the n oldest entries. Caller holds the lock.
func (c *Cache) evictOldest(n int) {
	if n <= 0 {
		n = 1
	}
	type aged struct {
		key      string
		storedAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{k, e.storedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].storedAt.Before(all[j].storedAt) })

	if n > len(all) {
		n = len(all)
	}
	for _, a := range all[:n] {
		delete(c.entries, a.key)
	}
	c.log.Debug("evicted oldest cache entries", "count", n)
}
