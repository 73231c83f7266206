package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultTTL is how long an LLM answer stays fresh.
const DefaultTTL = time.Hour

// Store is a key-value store with passive expiry. Nothing evicts entries in
// the background; staleness is checked when an entry is read. Concurrent
// writers to the same key overwrite each other.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// Key derives the cache key of a completion from both prompts.
func Key(systemPrompt, userPrompt string) string {
	sum := sha256.Sum256([]byte(systemPrompt + "\x00" + userPrompt))
	return hex.EncodeToString(sum[:])
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	cache *cache.Cache
}

// New returns an in-memory store. The go-cache janitor is disabled, so expired
// entries are only dropped when they are looked up.
func New(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		cache: cache.New(ttl, 0),
	}
}

func (c *MemoryStore) Get(key string) ([]byte, bool) {
	v, found := c.cache.Get(key)
	if !found {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (c *MemoryStore) Set(key string, value []byte) {
	c.cache.Set(key, value, cache.DefaultExpiration)
}
