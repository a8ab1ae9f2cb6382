// Package astcache provides a bounded, content-addressed cache of
// parse results. Identical source bytes always map to the same entry
// regardless of which variable or document they arrived through.
package astcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/arch-stack/shellaudit/parser"
)

// ErrNilContent is returned when GetOrParse is called without content.
// An empty (non-nil) slice is valid input.
var ErrNilContent = errors.New("astcache: content is required")

// DefaultMaxSize is used when New is given a non-positive max size.
const DefaultMaxSize = 64

// Parser is the capability the cache delegates to on a miss. Parse
// must not fail: it returns a best-effort Result even for malformed
// input.
type Parser interface {
	Parse(content []byte) *parser.Result
}

type entry struct {
	result *parser.Result
	seq    uint64
}

// Cache stores parse results keyed by a SHA-256 fingerprint of the
// exact source bytes. Eviction is FIFO: when an insert pushes the map
// over maxSize, the earliest-inserted entry is removed. All counters
// are monotonic until Clear.
type Cache struct {
	mu        sync.Mutex
	entries   map[[32]byte]*entry
	order     [][32]byte // insertion order, oldest first
	seq       uint64
	maxSize   int
	hits      uint64
	misses    uint64
	evictions uint64

	group  singleflight.Group
	parser Parser
}

// Stats is an immutable snapshot of the cache counters.
type Stats struct {
	Size      int
	MaxSize   int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate formats the hit percentage, rounded, with a trailing percent
// sign. With no activity it is "0%".
func (s Stats) HitRate() string {
	total := s.Hits + s.Misses
	if total == 0 {
		return "0%"
	}
	pct := math.Round(float64(s.Hits) / float64(total) * 100)
	return fmt.Sprintf("%d%%", int(pct))
}

// New creates a cache delegating to p, holding at most maxSize entries.
// A non-positive maxSize falls back to DefaultMaxSize.
func New(p Parser, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache{
		entries: make(map[[32]byte]*entry),
		maxSize: maxSize,
		parser:  p,
	}
}

// GetOrParse returns the cached parse result for content, parsing and
// storing it on a miss. label is attached to log records only; it does
// not participate in the fingerprint. Concurrent misses for the same
// fingerprint share a single parse.
func (c *Cache) GetOrParse(content []byte, label string) (*parser.Result, error) {
	if content == nil {
		return nil, ErrNilContent
	}

	key := sha256.Sum256(content)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return e.result, nil
	}
	c.misses++
	c.mu.Unlock()

	v, _, _ := c.group.Do(hex.EncodeToString(key[:]), func() (any, error) {
		res := c.parser.Parse(content)
		c.insert(key, res)
		slog.Debug("parsed and cached",
			"label", label,
			"bytes", len(content),
			"diagnostics", len(res.Diagnostics))
		return res, nil
	})
	return v.(*parser.Result), nil
}

// insert stores res under key, evicting the oldest entry when the map
// would exceed maxSize. A racing insert that lost the single-flight is
// a no-op.
func (c *Cache) insert(key [32]byte, res *parser.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return
	}

	c.seq++
	c.entries[key] = &entry{result: res, seq: c.seq}
	c.order = append(c.order, key)

	for len(c.entries) > c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
			c.evictions++
		}
	}

	// Size exceeding max here means the eviction bookkeeping itself is
	// broken, not that the input was unusual.
	if len(c.entries) > c.maxSize {
		panic(fmt.Sprintf("astcache: size %d exceeds max %d", len(c.entries), c.maxSize))
	}
}

// Clear empties the cache and zeroes all statistics atomically.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[[32]byte]*entry)
	c.order = nil
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

// Stats returns a snapshot of the current counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:      len(c.entries),
		MaxSize:   c.maxSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
