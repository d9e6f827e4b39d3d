package store

import (
	"github.com/samber/lo"

	"github.com/rcliao/soul-memory/internal/model"
)

// Stats holds store-wide counts.
type Stats struct {
	Soul    string         `json:"soul"`
	Total   int            `json:"total"`
	Active  int            `json:"active"`
	Deleted int            `json:"deleted"`
	ByType  map[string]int `json:"byType"`
}

// Stats counts memories over the full index. ByType covers active records
// only.
func (s *Store) Stats() Stats {
	active := lo.Filter(s.snapshot(), func(m *model.MemoryObject, _ int) bool {
		return !m.Deleted
	})
	return Stats{
		Soul:    s.identity.Soul,
		Total:   len(s.memories),
		Active:  len(active),
		Deleted: len(s.memories) - len(active),
		ByType: lo.CountValuesBy(active, func(m *model.MemoryObject) string {
			return m.Type
		}),
	}
}
