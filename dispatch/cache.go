package dispatch

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"
)

// CacheKey is a content hash of (modelId, segmentTokens): two sentences
// with identical token ids translated by the same model collide; anything
// else is vanishingly unlikely to.
type CacheKey [32]byte

// NewCacheKey hashes a model id and a token-id segment into a CacheKey.
func NewCacheKey(model ModelID, segment []int32) CacheKey {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(model))
	h.Write([]byte{0})
	buf := make([]byte, 4)
	for _, tok := range segment {
		binary.LittleEndian.PutUint32(buf, uint32(tok))
		h.Write(buf)
	}
	var out CacheKey
	copy(out[:], h.Sum(nil))
	return out
}

// CacheStats reports hit/miss counters; hits+misses equals the total number
// of Fetch calls observed.
type CacheStats struct {
	Hits   uint64
	Misses uint64
}

// Cache is the sentence cache contract: fetch/store post-inference
// per-sentence results keyed by content hash.
type Cache interface {
	Fetch(key CacheKey) (SentenceResult, bool)
	Store(key CacheKey, value SentenceResult)
	Stats() CacheStats
}

// NopCache is the zero-size cache: every Fetch misses, Store is a no-op,
// and it allocates nothing beyond itself. Used when the configured cache
// byte budget is zero.
type NopCache struct{}

func (NopCache) Fetch(CacheKey) (SentenceResult, bool) { return SentenceResult{}, false }
func (NopCache) Store(CacheKey, SentenceResult)        {}
func (NopCache) Stats() CacheStats                     { return CacheStats{} }

type cacheRecord struct {
	key   CacheKey
	value SentenceResult
	valid bool
}

// TranslationCache is a fixed-size, direct-mapped, sharded sentence cache:
// N record slots plus M << N mutexes. There is no probing: a store always
// overwrites whatever key currently occupies its slot, giving O(1)
// worst-case operations, fixed memory, and clock-like eviction with zero
// bookkeeping. Collisions are silent false negatives (the displaced entry
// is simply recomputed); false positives are impossible because the full
// key is stored and compared on every fetch.
type TranslationCache struct {
	records []cacheRecord
	mus     []sync.Mutex
	hits    uint64
	misses  uint64
}

// NewTranslationCache sizes records from a byte budget divided by an
// average entry size estimate; both record and shard counts are fixed at
// construction (no rehashing). shards should be much smaller than the
// record count; it is clamped to at least 1.
func NewTranslationCache(byteBudget, avgEntryBytes, shards int) *TranslationCache {
	if avgEntryBytes <= 0 {
		avgEntryBytes = 256
	}
	n := byteBudget / avgEntryBytes
	if n < 1 {
		n = 1
	}
	if shards < 1 {
		shards = 1
	}
	return &TranslationCache{
		records: make([]cacheRecord, n),
		mus:     make([]sync.Mutex, shards),
	}
}

func (c *TranslationCache) slot(key CacheKey) int {
	return int(binary.LittleEndian.Uint64(key[:8]) % uint64(len(c.records)))
}

// Fetch copies out the value stored at key's slot if it matches, under the
// slot's shard lock, so no entry is ever partially visible.
func (c *TranslationCache) Fetch(key CacheKey) (SentenceResult, bool) {
	idx := c.slot(key)
	mu := &c.mus[idx%len(c.mus)]
	mu.Lock()
	rec := c.records[idx]
	mu.Unlock()

	if rec.valid && rec.key == key {
		atomic.AddUint64(&c.hits, 1)
		return rec.value.Clone(), true
	}
	atomic.AddUint64(&c.misses, 1)
	return SentenceResult{}, false
}

// Store overwrites key's slot unconditionally, evicting whatever sentence
// previously lived there.
func (c *TranslationCache) Store(key CacheKey, value SentenceResult) {
	idx := c.slot(key)
	mu := &c.mus[idx%len(c.mus)]
	mu.Lock()
	c.records[idx] = cacheRecord{key: key, value: value.Clone(), valid: true}
	mu.Unlock()
}

// Stats returns a snapshot of hit/miss counters.
func (c *TranslationCache) Stats() CacheStats {
	return CacheStats{
		Hits:   atomic.LoadUint64(&c.hits),
		Misses: atomic.LoadUint64(&c.misses),
	}
}
