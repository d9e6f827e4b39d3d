package store

import (
	"context"
	"sort"

	"github.com/samber/lo"

	"github.com/rcliao/soul-memory/internal/model"
)

// DefaultRecallLimit caps recall results when no limit is requested.
const DefaultRecallLimit = 100

// RecallParams holds recall filters. All filters are optional; Since and
// Until are inclusive and compared as timestamp strings.
type RecallParams struct {
	Type           string
	Types          []string
	Tags           []string
	Since          string
	Until          string
	MinConfidence  *float64
	IncludeDeleted bool
	Offset         int
	Limit          int
}

// Recall is a pure read over the index: filter, sort by created descending,
// then page. It never touches persistence.
func (s *Store) Recall(ctx context.Context, p RecallParams) []model.MemoryObject {
	results := s.snapshot()

	if !p.IncludeDeleted {
		results = lo.Filter(results, func(m *model.MemoryObject, _ int) bool {
			return !m.Deleted
		})
	}

	types := p.Types
	if p.Type != "" {
		types = append([]string{p.Type}, types...)
	}
	if len(types) > 0 {
		results = lo.Filter(results, func(m *model.MemoryObject, _ int) bool {
			return lo.Contains(types, m.Type)
		})
	}

	if len(p.Tags) > 0 {
		results = lo.Filter(results, func(m *model.MemoryObject, _ int) bool {
			return lo.Some(m.Tags, p.Tags)
		})
	}

	if p.Since != "" {
		results = lo.Filter(results, func(m *model.MemoryObject, _ int) bool {
			return m.Created >= p.Since
		})
	}
	if p.Until != "" {
		results = lo.Filter(results, func(m *model.MemoryObject, _ int) bool {
			return m.Created <= p.Until
		})
	}

	if p.MinConfidence != nil {
		results = lo.Filter(results, func(m *model.MemoryObject, _ int) bool {
			return m.Confidence >= *p.MinConfidence
		})
	}

	// Stable sort keeps creation order for equal timestamps.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Created > results[j].Created
	})

	if p.Offset > 0 {
		if p.Offset >= len(results) {
			results = nil
		} else {
			results = results[p.Offset:]
		}
	}
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultRecallLimit
	}
	if len(results) > limit {
		results = results[:limit]
	}

	return lo.Map(results, func(m *model.MemoryObject, _ int) model.MemoryObject {
		return *clone(m)
	})
}
