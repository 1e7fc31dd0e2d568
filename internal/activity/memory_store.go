package activity

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore implements Store using in-memory slices.
// Intended for demos and testing.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	seen    map[string]bool
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]bool)}
}

func (s *MemoryStore) WriteEntries(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		key := e.EventID + "|" + e.ClientID
		if s.seen[key] {
			continue
		}
		s.seen[key] = true
		s.entries = append(s.entries, e)
	}
	return nil
}

func (s *MemoryStore) QueryByBatch(ctx context.Context, platform, advertiserID string, opts QueryOptions) (Page, error) {
	return s.query(platform, advertiserID, "", opts), nil
}

func (s *MemoryStore) QueryByOperation(ctx context.Context, platform, advertiserID, clientID string, opts QueryOptions) (Page, error) {
	return s.query(platform, advertiserID, clientID, opts), nil
}

func (s *MemoryStore) query(platform, advertiserID, clientID string, opts QueryOptions) Page {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Entry
	for _, e := range s.entries {
		if e.Platform != platform || e.AdvertiserID != advertiserID || e.ClientID != clientID {
			continue
		}
		if opts.Since != nil && e.OccurredAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.OccurredAt.After(*opts.Until) {
			continue
		}
		if len(opts.EventTypes) > 0 && !contains(opts.EventTypes, e.EventType) {
			continue
		}
		matched = append(matched, e)
	}
	total := len(matched)

	if cursor, ok := opts.cursor(); ok {
		kept := matched[:0]
		for _, e := range matched {
			if e.OccurredAt.Before(cursor) {
				kept = append(kept, e)
			}
		}
		matched = kept
	}

	// Sort by occurred_at DESC.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})

	page := Page{Entries: matched, TotalCount: total}
	paginate(&page, opts.limit())
	return page
}

func contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
