package cache

import (
	"sync"

	"github.com/raycarroll/pod-ip-watcher/pkg/models"
)

// Store is the concurrency-safe IP -> pod record index. The reconciliation
// loop is the single writer; query handlers read concurrently. At most one
// record is held per IP; the last write for an IP wins.
type Store struct {
	mu      sync.RWMutex
	records map[string]*models.PodRecord
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]*models.PodRecord),
	}
}

// Upsert inserts or replaces the record at ip.
func (s *Store) Upsert(ip string, rec *models.PodRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[ip] = rec
}

// Remove deletes the record at ip. Removing an absent IP is a no-op.
func (s *Store) Remove(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, ip)
}

// Get returns the record at ip, if present.
func (s *Store) Get(ip string) (*models.PodRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[ip]
	return rec, ok
}

// List returns a snapshot of all records, keyed by IP. An empty namespace
// returns everything; otherwise only records in that namespace. Iteration
// order is not meaningful.
func (s *Store) List(namespace string) map[string]*models.PodRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*models.PodRecord, len(s.records))
	for ip, rec := range s.records {
		if namespace != "" && rec.Namespace != namespace {
			continue
		}
		out[ip] = rec
	}
	return out
}

// Count returns the number of tracked IPs.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
