package matrix

import (
	"catalog-admin-service/internal/models"
)

// VariantStore is the flat ordered list of variant rows. Grouping is never stored.
type VariantStore struct {
	rows []models.VariantRow
}

func NewVariantStore() *VariantStore {
	return &VariantStore{}
}

func (s *VariantStore) Append(row models.VariantRow) int {
	row = row.Clone()
	s.rows = append(s.rows, row)
	return len(s.rows) - 1
}

func (s *VariantStore) Get(index int) (models.VariantRow, error) {
	if index < 0 || index >= len(s.rows) {
		return models.VariantRow{}, ErrVariantNotFound
	}
	return s.rows[index].Clone(), nil
}

func (s *VariantStore) update(index int, fn func(*models.VariantRow) error) error {
	if index < 0 || index >= len(s.rows) {
		return ErrVariantNotFound
	}
	row := s.rows[index].Clone()
	if err := fn(&row); err != nil {
		return err
	}
	s.rows[index] = row
	return nil
}

// Remove takes the row out of the store and returns it.
func (s *VariantStore) Remove(index int) (models.VariantRow, error) {
	if index < 0 || index >= len(s.rows) {
		return models.VariantRow{}, ErrVariantNotFound
	}
	row := s.rows[index]
	s.rows = append(s.rows[:index], s.rows[index+1:]...)
	return row, nil
}

// Insert puts row back at index, clamped to the end of the store.
func (s *VariantStore) Insert(index int, row models.VariantRow) int {
	if index < 0 {
		index = 0
	}
	if index > len(s.rows) {
		index = len(s.rows)
	}
	s.rows = append(s.rows, models.VariantRow{})
	copy(s.rows[index+1:], s.rows[index:])
	s.rows[index] = row.Clone()
	return index
}

// Rows returns deep copies of the rows in order.
func (s *VariantStore) Rows() []models.VariantRow {
	out := make([]models.VariantRow, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.Clone()
	}
	return out
}

func (s *VariantStore) Len() int {
	return len(s.rows)
}

// TakenValues returns the values assigned to name by every row except index.
func (s *VariantStore) TakenValues(index int, name string) map[string]bool {
	taken := make(map[string]bool)
	for i, r := range s.rows {
		if i == index {
			continue
		}
		if v, ok := r.Option[name]; ok && v != "" {
			taken[v] = true
		}
	}
	return taken
}

func (s *VariantStore) reset() {
	s.rows = nil
}
