package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sync"
	"time"

	"github.com/vanderheijden86/refgraph/pkg/model"
)

// Cache holds the last analysis report keyed by graph hash.
// Thread-safe for concurrent access.
type Cache struct {
	mu         sync.RWMutex
	dataHash   string
	report     *Report
	computedAt time.Time
	ttl        time.Duration
}

// DefaultCacheTTL is the default time-to-live for cached results.
const DefaultCacheTTL = 5 * time.Minute

// NewCache creates a new cache with the specified TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl}
}

// Get retrieves the cached report if g hashes the same and the TTL hasn't expired.
func (c *Cache) Get(g *model.RefGraph) (*Report, bool) {
	// Hash outside the lock
	return c.GetByHash(ComputeGraphHash(g))
}

// GetByHash retrieves the cached report for a pre-computed hash.
func (c *Cache) GetByHash(hash string) (*Report, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.report == nil {
		return nil, false
	}
	if hash == c.dataHash && time.Since(c.computedAt) < c.ttl {
		return c.report, true
	}
	return nil, false
}

// Set stores a report for g.
func (c *Cache) Set(g *model.RefGraph, report *Report) {
	c.SetByHash(ComputeGraphHash(g), report)
}

// SetByHash stores a report with a pre-computed hash.
func (c *Cache) SetByHash(hash string, report *Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dataHash = hash
	c.report = report
	c.computedAt = time.Now()
}

// Invalidate clears the cache.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dataHash = ""
	c.report = nil
	c.computedAt = time.Time{}
}

// Hash returns the current data hash, or empty string if no cached data.
func (c *Cache) Hash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dataHash
}

// AnalyzeCached returns the cached report for g when it is still valid and
// runs a fresh analysis otherwise.
func (c *Cache) AnalyzeCached(ctx context.Context, g *model.RefGraph, config *AnalysisConfig) (*Report, bool, error) {
	hash := ComputeGraphHash(g)
	if report, ok := c.GetByHash(hash); ok {
		return report, true, nil
	}
	a := NewAnalyzer(g)
	a.SetConfig(config)
	report, err := a.Analyze(ctx)
	if err != nil {
		return nil, false, err
	}
	c.SetByHash(hash, report)
	return report, false, nil
}

// ComputeGraphHash generates a deterministic hash of g.
// Store order and duplicate references are part of the identity because
// both change analysis results.
func ComputeGraphHash(g *model.RefGraph) string {
	if g.Len() == 0 {
		return "empty"
	}

	h := sha256.New()
	for _, label := range g.Labels() {
		writeHashString(h, label)
		writeHashLen(h, g.OutDegree(label))
		g.EachDependency(label, func(dep string) {
			writeHashString(h, dep)
		})
	}
	return hex.EncodeToString(h.Sum(nil))[:16] // first 16 chars for brevity
}

// writeHashString length-prefixes s; labels may contain any byte.
func writeHashString(h hash.Hash, s string) {
	writeHashLen(h, len(s))
	h.Write([]byte(s))
}

func writeHashLen(h hash.Hash, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	h.Write(buf[:])
}
