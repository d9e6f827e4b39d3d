package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/rcliao/soul-memory/internal/model"
)

// SearchParams holds parameters for substring search.
type SearchParams struct {
	Query          string
	IncludeDeleted bool
	Limit          int
}

// Search finds memories whose content values or tags contain the query,
// case-insensitively. Results are ordered by created descending. This is a
// plain substring match, not semantic search.
func (s *Store) Search(ctx context.Context, p SearchParams) []model.MemoryObject {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	query := strings.ToLower(p.Query)

	results := lo.Filter(s.snapshot(), func(m *model.MemoryObject, _ int) bool {
		if m.Deleted && !p.IncludeDeleted {
			return false
		}
		return matchesQuery(m, query)
	})

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Created > results[j].Created
	})
	if len(results) > limit {
		results = results[:limit]
	}

	return lo.Map(results, func(m *model.MemoryObject, _ int) model.MemoryObject {
		return *clone(m)
	})
}

func matchesQuery(m *model.MemoryObject, query string) bool {
	if query == "" {
		return true
	}
	for _, v := range m.Content {
		if strings.Contains(strings.ToLower(fmt.Sprint(v)), query) {
			return true
		}
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}
