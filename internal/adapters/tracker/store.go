package tracker

import (
	"sort"
	"sync"

	"github.com/agentware/maestro/pkg/contract"
)

// Known work item states. Filters and transitions outside this set are
// unsupported.
var knownStates = map[string]bool{
	"open":        true,
	"in-progress": true,
	"in-review":   true,
	"done":        true,
	"blocked":     true,
}

// Store is the in-memory backlog behind the tracker adapter.
type Store struct {
	mu    sync.RWMutex
	items map[string]*contract.WorkItemDetails
}

// NewStore creates an empty backlog.
func NewStore() *Store {
	return &Store{items: make(map[string]*contract.WorkItemDetails)}
}

// Seed inserts or replaces a work item.
func (s *Store) Seed(item contract.WorkItemDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.State == "" {
		item.State = "open"
	}
	copied := item
	s.items[item.Ref.ID] = &copied
}

// Get returns a copy of a work item.
func (s *Store) Get(id string) (contract.WorkItemDetails, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return contract.WorkItemDetails{}, false
	}
	return *item, true
}

// List returns backlog summaries, optionally filtered by state, sorted by
// id for stable output.
func (s *Store) List(stateFilter string, limit int) []contract.WorkItemSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contract.WorkItemSummary, 0, len(s.items))
	for _, item := range s.items {
		if stateFilter != "" && item.State != stateFilter {
			continue
		}
		out = append(out, contract.WorkItemSummary{
			Ref:   item.Ref,
			Title: item.Title,
			State: item.State,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref.ID < out[j].Ref.ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Transition moves a work item to a new state.
func (s *Store) Transition(id, toState string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return false
	}
	item.State = toState
	return true
}

// Comment appends a comment to a work item.
func (s *Store) Comment(id, body string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return false
	}
	item.Comments = append(item.Comments, body)
	return true
}

// Assign sets the assignee of a work item.
func (s *Store) Assign(id, assignee string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return false
	}
	item.Assignee = assignee
	return true
}
