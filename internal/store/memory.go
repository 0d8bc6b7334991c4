package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"threadlens/internal/types"
)

// MemoryStore is the in-process backend, used by default and throughout the
// test suite. All methods are safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	reports   map[string]*memReport
	comments  map[string][]types.Comment
	sentiment map[string]map[string]types.SentimentClassification
	hostility map[string]map[hostilityKey]types.HostilityClassification
}

type memReport struct {
	subject   string
	result    types.Result
	createdAt time.Time
}

type hostilityKey struct {
	itemID      string
	framework   types.Framework
	targetGroup string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports:   make(map[string]*memReport),
		comments:  make(map[string][]types.Comment),
		sentiment: make(map[string]map[string]types.SentimentClassification),
		hostility: make(map[string]map[hostilityKey]types.HostilityClassification),
	}
}

func (s *MemoryStore) SaveReport(_ context.Context, subject string, result *types.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *result
	stored.SampledComments = stripBodies(stored.SampledComments)
	s.reports[result.RunID] = &memReport{subject: subject, result: stored, createdAt: time.Now()}
	return nil
}

func (s *MemoryStore) GetReport(_ context.Context, runID string) (*types.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rep, ok := s.reports[runID]
	if !ok {
		return nil, ErrNotFound
	}
	result := rep.result
	return &result, nil
}

func (s *MemoryStore) ListReports(_ context.Context, limit int) ([]ReportSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summaries := make([]ReportSummary, 0, len(s.reports))
	for runID, rep := range s.reports {
		summaries = append(summaries, ReportSummary{
			RunID:      runID,
			Subject:    rep.subject,
			Success:    rep.result.Success,
			TokensUsed: rep.result.TotalTokensUsed,
			CostUSD:    rep.result.EstimatedCostUSD,
			CreatedAt:  rep.createdAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (s *MemoryStore) SaveComments(_ context.Context, runID string, comments []types.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[runID] = stripBodies(comments)
	return nil
}

func (s *MemoryStore) GetComments(_ context.Context, runID string) ([]types.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Comment, len(s.comments[runID]))
	copy(out, s.comments[runID])
	return out, nil
}

func (s *MemoryStore) UpsertSentiment(_ context.Context, runID string, cls []types.SentimentClassification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byItem := s.sentiment[runID]
	if byItem == nil {
		byItem = make(map[string]types.SentimentClassification)
		s.sentiment[runID] = byItem
	}
	for _, c := range cls {
		byItem[c.ItemID] = c
	}
	return nil
}

func (s *MemoryStore) GetSentiment(_ context.Context, runID string, itemIDs []string) ([]types.SentimentClassification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byItem := s.sentiment[runID]
	out := make([]types.SentimentClassification, 0, len(itemIDs))
	for _, id := range itemIDs {
		if c, ok := byItem[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpsertHostility(_ context.Context, runID string, cls []types.HostilityClassification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey := s.hostility[runID]
	if byKey == nil {
		byKey = make(map[hostilityKey]types.HostilityClassification)
		s.hostility[runID] = byKey
	}
	for _, c := range cls {
		byKey[hostilityKey{c.ItemID, c.Framework, c.TargetGroup}] = c
	}
	return nil
}

func (s *MemoryStore) GetHostility(_ context.Context, runID string, itemIDs []string) ([]types.HostilityClassification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = true
	}
	var out []types.HostilityClassification
	for key, c := range s.hostility[runID] {
		if wanted[key.itemID] {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}
		if out[i].Framework != out[j].Framework {
			return out[i].Framework < out[j].Framework
		}
		return out[i].TargetGroup < out[j].TargetGroup
	})
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
