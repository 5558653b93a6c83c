package cache_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmend/llmroute"
	"github.com/opsmend/llmroute/cache"
)

func entry(key, response string) llmroute.CacheEntry {
	return llmroute.CacheEntry{
		Key:       key,
		Response:  response,
		Cost:      0.01,
		CreatedAt: time.Now(),
	}
}

func TestRoundTrip(t *testing.T) {
	c := cache.New(8, time.Minute)

	key := llmroute.CacheKey("triage", "Disk Full  on node-7")
	c.Store(key, llmroute.NormalizePrompt("Disk Full  on node-7"), entry(key, "check /var"))

	got, ok := c.Lookup(key, llmroute.NormalizePrompt("disk full on node-7"))
	require.True(t, ok)
	assert.Equal(t, "check /var", got.Response)
}

func TestKeyIsBackendIndependent(t *testing.T) {
	// The key depends only on normalized prompt and task type.
	a := llmroute.CacheKey("triage", "  Disk   FULL on node-7 ")
	b := llmroute.CacheKey("triage", "disk full on node-7")
	assert.Equal(t, a, b)

	other := llmroute.CacheKey("analysis", "disk full on node-7")
	assert.NotEqual(t, a, other)
}

func TestTTLExpiry(t *testing.T) {
	c := cache.New(8, 20*time.Millisecond)

	c.Store("k1", "prompt", entry("k1", "cached"))
	_, ok := c.Lookup("k1", "prompt")
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)
	_, ok = c.Lookup("k1", "prompt")
	assert.False(t, ok)
}

func TestCorruptEntryPurged(t *testing.T) {
	c := cache.New(8, time.Minute)

	c.Store("k1", "prompt", llmroute.CacheEntry{Key: "k1"}) // no response, no timestamp

	_, ok := c.Lookup("k1", "prompt")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

// stubEmbedder returns canned vectors per prompt.
type stubEmbedder struct {
	vecs map[string][]float32
}

func (s *stubEmbedder) Embed(text string) ([]float32, error) {
	v, ok := s.vecs[text]
	if !ok {
		return nil, errors.New("no vector for " + text)
	}
	return v, nil
}

func TestSimilarityLookup(t *testing.T) {
	emb := &stubEmbedder{vecs: map[string][]float32{
		"disk full on node-7":   {1, 0},
		"disk nearly full on 7": {0.98, 0.05},
		"pod crash looping":     {0, 1},
	}}
	c := cache.New(8, time.Minute, cache.WithEmbedder(emb, 0.9))

	key := llmroute.CacheKey("triage", "disk full on node-7")
	c.Store(key, "disk full on node-7", entry(key, "free up /var"))

	// Close prompt, different key: matched through the similarity index.
	got, ok := c.Lookup(llmroute.CacheKey("triage", "disk nearly full on 7"), "disk nearly full on 7")
	require.True(t, ok)
	assert.Equal(t, "free up /var", got.Response)

	// Distant prompt stays a miss.
	_, ok = c.Lookup(llmroute.CacheKey("triage", "pod crash looping"), "pod crash looping")
	assert.False(t, ok)
}

func TestSimilarityDisabledWithoutEmbedder(t *testing.T) {
	c := cache.New(8, time.Minute)

	key := llmroute.CacheKey("triage", "disk full on node-7")
	c.Store(key, "disk full on node-7", entry(key, "free up /var"))

	_, ok := c.Lookup(llmroute.CacheKey("triage", "disk nearly full"), "disk nearly full")
	assert.False(t, ok)
}

func TestEmbedderFailureFallsBackToExact(t *testing.T) {
	emb := &stubEmbedder{vecs: map[string][]float32{}}
	c := cache.New(8, time.Minute, cache.WithEmbedder(emb, 0.9))

	key := llmroute.CacheKey("triage", "known prompt")
	c.Store(key, "known prompt", entry(key, "answer"))

	// Exact hit still works even though embedding fails.
	got, ok := c.Lookup(key, "known prompt")
	require.True(t, ok)
	assert.Equal(t, "answer", got.Response)
}

func TestEvictionBound(t *testing.T) {
	c := cache.New(2, time.Minute)

	c.Store("k1", "p1", entry("k1", "r1"))
	c.Store("k2", "p2", entry("k2", "r2"))
	c.Store("k3", "p3", entry("k3", "r3"))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Lookup("k3", "p3")
	assert.True(t, ok)
}
