// Package store keeps recently computed cloud-fraction series in memory for
// the serving layer.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cerro-obs/cloudfrac/internal/cloudfrac"
)

// ErrNotFound is returned when no rows are available for a request.
var ErrNotFound = errors.New("no cloud fraction data")

// SeriesHistory holds the time-ordered rows kept for one site, tagged with
// the id of the run that last touched them.
type SeriesHistory struct {
	Rows      []cloudfrac.Row
	LastRunID uuid.UUID
	UpdatedAt time.Time
}

// MemoryStore is a concurrency-safe in-memory series store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: site name, value: history
	data map[string]*SeriesHistory

	// retention configuration
	maxRows int           // max rows per site (0 = unlimited)
	maxAge  time.Duration // max row age (0 = unlimited)
}

// NewMemoryStore creates a MemoryStore with optional limits. maxRows <= 0
// means unlimited.
func NewMemoryStore(maxRows int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:    make(map[string]*SeriesHistory),
		maxRows: maxRows,
		maxAge:  maxAge,
	}
}

// SaveRun merges a run's rows into the site's history, replacing any rows at
// the same timestamps (a refresh re-computes the trailing window), and
// enforces retention. It returns the id assigned to the run.
func (s *MemoryStore) SaveRun(site string, rows []cloudfrac.Row) uuid.UUID {
	runID := uuid.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[site]
	if !ok {
		history = &SeriesHistory{}
		s.data[site] = history
	}

	byTime := make(map[time.Time]int, len(history.Rows))
	for i, r := range history.Rows {
		byTime[r.Timestamp] = i
	}
	for _, r := range rows {
		if i, exists := byTime[r.Timestamp]; exists {
			history.Rows[i] = r
			continue
		}
		history.Rows = append(history.Rows, r)
		byTime[r.Timestamp] = len(history.Rows) - 1
	}

	// Rows arrive sorted per run but merges can interleave windows.
	sort.Slice(history.Rows, func(i, j int) bool {
		return history.Rows[i].Timestamp.Before(history.Rows[j].Timestamp)
	})

	// Enforce retention by count.
	if s.maxRows > 0 && len(history.Rows) > s.maxRows {
		over := len(history.Rows) - s.maxRows
		history.Rows = history.Rows[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Rows); i++ {
			if !history.Rows[i].Timestamp.Before(cutoff) {
				break
			}
		}
		if i > 0 && i < len(history.Rows) {
			history.Rows = history.Rows[i:]
		}
	}

	history.LastRunID = runID
	history.UpdatedAt = time.Now().UTC()
	return runID
}

// GetLatest returns the most recent row for a site.
func (s *MemoryStore) GetLatest(site string) (cloudfrac.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[site]
	if !ok || len(history.Rows) == 0 {
		return cloudfrac.Row{}, ErrNotFound
	}
	return history.Rows[len(history.Rows)-1], nil
}

// GetRange returns all rows for a site between from and to (inclusive).
func (s *MemoryStore) GetRange(site string, from, to time.Time) ([]cloudfrac.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[site]
	if !ok || len(history.Rows) == 0 {
		return nil, ErrNotFound
	}

	var result []cloudfrac.Row
	for _, r := range history.Rows {
		if !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			result = append(result, r)
		}
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
