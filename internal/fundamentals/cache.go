package fundamentals

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "basket-index/internal/errors"
	"basket-index/internal/models"
)

// Cache stores resolved fundamentals keyed by basket fingerprint.
// Get returns apperrors.ErrCacheMiss for absent or expired entries.
type Cache interface {
	Get(ctx context.Context, key string) (map[string]models.FundamentalsRecord, error)
	Set(ctx context.Context, key string, records map[string]models.FundamentalsRecord, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Fingerprint identifies a basket independent of ticker order, case and
// duplicates.
func Fingerprint(tickers []string) string {
	seen := make(map[string]bool, len(tickers))
	norm := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		norm = append(norm, t)
	}
	sort.Strings(norm)

	sum := sha256.Sum256([]byte(strings.Join(norm, ",")))
	return hex.EncodeToString(sum[:])
}

type memoryEntry struct {
	records   map[string]models.FundamentalsRecord
	expiresAt time.Time // zero means no expiry
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	entries map[string]memoryEntry
	now     func() time.Time
	mu      sync.RWMutex
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns a copy of the cached records.
func (m *MemoryCache) Get(ctx context.Context, key string) (map[string]models.FundamentalsRecord, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, apperrors.ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, apperrors.ErrCacheMiss
	}
	return copyRecords(entry.records), nil
}

// Set stores a copy of records. A ttl of zero never expires.
func (m *MemoryCache) Set(ctx context.Context, key string, records map[string]models.FundamentalsRecord, ttl time.Duration) error {
	entry := memoryEntry{records: copyRecords(records)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

// Delete drops an entry.
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(ctx context.Context, key string) (map[string]models.FundamentalsRecord, error) {
	return nil, apperrors.ErrCacheMiss
}

func (NopCache) Set(ctx context.Context, key string, records map[string]models.FundamentalsRecord, ttl time.Duration) error {
	return nil
}

func (NopCache) Delete(ctx context.Context, key string) error {
	return nil
}

func copyRecords(in map[string]models.FundamentalsRecord) map[string]models.FundamentalsRecord {
	out := make(map[string]models.FundamentalsRecord, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
