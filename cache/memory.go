package cache

import (
	"math"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/opsmend/llmroute"
)

// Memory is an in-memory Cache with TTL expiry and an optional similarity
// index. Expired entries are dropped lazily by the underlying store; the
// entry bound additionally caps memory.
type Memory struct {
	entries *expirable.LRU[string, llmroute.CacheEntry]

	mu     sync.Mutex
	embeds map[string][]float32

	embedder  llmroute.Embedder
	threshold float64
	logger    *zap.Logger
}

var _ llmroute.Cache = (*Memory)(nil)

// Option configures a Memory cache.
type Option func(*Memory)

// WithEmbedder enables similarity lookup: a miss on the exact key falls
// back to the closest stored prompt whose cosine similarity meets the
// threshold.
func WithEmbedder(e llmroute.Embedder, threshold float64) Option {
	return func(m *Memory) {
		m.embedder = e
		m.threshold = threshold
	}
}

// WithLogger sets the logger used for corruption reports.
func WithLogger(l *zap.Logger) Option {
	return func(m *Memory) { m.logger = l }
}

// New creates a Memory cache holding at most maxEntries entries, each
// valid for ttl. maxEntries <= 0 means unbounded.
func New(maxEntries int, ttl time.Duration, opts ...Option) *Memory {
	m := &Memory{
		embeds: make(map[string][]float32),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.entries = expirable.NewLRU[string, llmroute.CacheEntry](maxEntries, m.onEvict, ttl)
	return m
}

func (m *Memory) onEvict(key string, _ llmroute.CacheEntry) {
	m.mu.Lock()
	delete(m.embeds, key)
	m.mu.Unlock()
}

// Lookup returns the entry for key, or the closest similar entry when an
// embedder is configured. A corrupt entry is purged and treated as a miss.
func (m *Memory) Lookup(key, prompt string) (llmroute.CacheEntry, bool) {
	if e, ok := m.entries.Get(key); ok {
		if e.Valid() {
			return e, true
		}
		m.purgeCorrupt(key)
	}

	if m.embedder == nil {
		return llmroute.CacheEntry{}, false
	}

	vec, err := m.embedder.Embed(prompt)
	if err != nil {
		m.logger.Warn("embedding failed, exact lookup only", zap.Error(err))
		return llmroute.CacheEntry{}, false
	}

	bestKey, bestScore := "", m.threshold
	m.mu.Lock()
	for k, v := range m.embeds {
		if k == key {
			continue
		}
		if score := cosine(vec, v); score >= bestScore {
			bestKey, bestScore = k, score
		}
	}
	m.mu.Unlock()

	if bestKey == "" {
		return llmroute.CacheEntry{}, false
	}
	e, ok := m.entries.Get(bestKey)
	if !ok {
		// Entry expired between index scan and fetch.
		m.onEvict(bestKey, llmroute.CacheEntry{})
		return llmroute.CacheEntry{}, false
	}
	if !e.Valid() {
		m.purgeCorrupt(bestKey)
		return llmroute.CacheEntry{}, false
	}
	return e, true
}

// Store inserts an entry, replacing any previous one under the same key.
func (m *Memory) Store(key, prompt string, e llmroute.CacheEntry) {
	m.entries.Add(key, e)

	if m.embedder == nil {
		return
	}
	vec, err := m.embedder.Embed(prompt)
	if err != nil {
		m.logger.Warn("embedding failed, entry not indexed", zap.Error(err))
		return
	}
	m.mu.Lock()
	m.embeds[key] = vec
	m.mu.Unlock()
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	return m.entries.Len()
}

func (m *Memory) purgeCorrupt(key string) {
	m.logger.Warn("corrupt cache entry purged", zap.String("key", key))
	m.entries.Remove(key)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
