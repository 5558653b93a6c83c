package llmroute

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// CacheEntry stores one cached completion. Never mutated after creation;
// overwrites replace the entry wholesale.
type CacheEntry struct {
	Key          string
	PromptDigest string
	Response     string
	Cost         float64
	CreatedAt    time.Time
}

// Valid reports whether the entry is readable. Unreadable entries are
// treated as misses and purged by the store.
func (e CacheEntry) Valid() bool {
	return e.Response != "" && !e.CreatedAt.IsZero() && e.Cost >= 0
}

// Cache is the completion store consulted before any backend call.
type Cache interface {
	// Lookup returns the entry for key, falling back to the closest
	// similar entry when similarity matching is enabled. prompt is the
	// normalized prompt text used for similarity comparison.
	Lookup(key, prompt string) (CacheEntry, bool)

	// Store inserts an entry under key. prompt is the normalized prompt,
	// kept alongside for similarity indexing.
	Store(key, prompt string, e CacheEntry)
}

// Embedder maps text to a vector for similarity comparison. The embedding
// algorithm is pluggable; a nil embedder disables similarity lookup.
type Embedder interface {
	Embed(text string) ([]float32, error)
}

// NormalizePrompt canonicalizes a prompt for keying and comparison:
// lowercased, whitespace collapsed.
func NormalizePrompt(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// CacheKey derives the deterministic cache key for a prompt. The key is a
// function of the normalized prompt and task type only, so hits are
// backend-independent.
func CacheKey(taskType, prompt string) string {
	h := sha256.New()
	h.Write([]byte(taskType))
	h.Write([]byte{0})
	h.Write([]byte(NormalizePrompt(prompt)))
	return hex.EncodeToString(h.Sum(nil))
}

// PromptDigest returns the digest of the normalized prompt alone, recorded
// on cache entries for diagnostics.
func PromptDigest(prompt string) string {
	sum := sha256.Sum256([]byte(NormalizePrompt(prompt)))
	return hex.EncodeToString(sum[:])
}
