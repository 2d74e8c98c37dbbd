// Package store keeps the latest full ticker snapshot.
package store

import (
	"sync"
	"time"

	"github.com/alim08/cryptotrader/pkg/models"
)

// Store holds the most recent snapshot. Each replace swaps the whole
// collection; there is no incremental merge and no ordering check, so the
// last writer wins.
type Store struct {
	mu        sync.RWMutex
	records   []models.TickerRecord
	index     map[string]int
	updatedAt time.Time
	now       func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{index: map[string]int{}, now: time.Now}
}

// ReplaceSnapshot stores records as-is. Malformed numeric fields are
// tolerated here and normalized when read.
func (s *Store) ReplaceSnapshot(records []models.TickerRecord) {
	cp := make([]models.TickerRecord, len(records))
	copy(cp, records)
	idx := make(map[string]int, len(cp))
	for i, r := range cp {
		if _, dup := idx[r.Market]; !dup {
			idx[r.Market] = i
		}
	}

	s.mu.Lock()
	s.records = cp
	s.index = idx
	s.updatedAt = s.now()
	s.mu.Unlock()
}

// Snapshot returns a copy of the latest records in feed order.
func (s *Store) Snapshot() []models.TickerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TickerRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Lookup returns the first record for market in the latest snapshot.
func (s *Store) Lookup(market string) (models.TickerRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[market]
	if !ok {
		return models.TickerRecord{}, false
	}
	return s.records[i], true
}

// UpdatedAt is the time of the last replace, zero before the first one.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
