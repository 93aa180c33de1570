package compiler

import (
	"encoding/binary"
	"encoding/hex"
	"sync"

	"golang.org/x/crypto/sha3"

	"martianoff/simc/internal/compiler/registry"
)

// cacheVersion changes whenever a compiler change would alter artifacts, so
// keys from older builds never match.
const cacheVersion = "simc/cache/v2"

// CacheKey identifies one compile request by the exact bytes of its inputs.
type CacheKey [32]byte

func (k CacheKey) String() string {
	return hex.EncodeToString(k[:8])
}

// Key derives the cache key of a request compiled against jets. An empty
// witness means a plain compile.
func Key(jets *registry.JetRegistry, src, witnessJSON string) CacheKey {
	fp := jets.Fingerprint()
	h := sha3.New256()
	h.Write([]byte(cacheVersion))
	h.Write(fp[:])
	h.Write(binary.AppendUvarint(nil, uint64(len(src))))
	h.Write([]byte(src))
	h.Write(binary.AppendUvarint(nil, uint64(len(witnessJSON))))
	h.Write([]byte(witnessJSON))
	var k CacheKey
	h.Sum(k[:0])
	return k
}

// Cache stores artifacts of successful compilations.
type Cache interface {
	Get(key CacheKey) (*Artifact, bool)
	Put(key CacheKey, art *Artifact)
}

// NopCache stores nothing.
type NopCache struct{}

func (NopCache) Get(CacheKey) (*Artifact, bool) { return nil, false }
func (NopCache) Put(CacheKey, *Artifact)        {}

// MemoryCache is a bounded in-memory Cache that evicts the oldest entry
// first. It is safe for concurrent use.
type MemoryCache struct {
	mu      sync.Mutex
	size    int
	entries map[CacheKey]*Artifact
	order   []CacheKey
}

// NewMemoryCache creates a cache holding at most size artifacts. A size of
// zero or less yields a NopCache.
func NewMemoryCache(size int) Cache {
	if size <= 0 {
		return NopCache{}
	}
	return &MemoryCache{size: size, entries: make(map[CacheKey]*Artifact, size)}
}

func (m *MemoryCache) Get(key CacheKey) (*Artifact, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	art, ok := m.entries[key]
	return art, ok
}

func (m *MemoryCache) Put(key CacheKey, art *Artifact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		m.entries[key] = art
		return
	}
	if len(m.order) >= m.size {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
	}
	m.entries[key] = art
	m.order = append(m.order, key)
}

// Len returns the number of cached artifacts.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
