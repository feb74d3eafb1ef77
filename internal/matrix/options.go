package matrix

import (
	"strings"

	"github.com/google/uuid"

	"catalog-admin-service/internal/models"
)

// OptionStore is the ordered list of option rows of one product or variant,
// together with the value list fetched for each row.
type OptionStore struct {
	rows   []models.OptionRow
	values map[string][]string
}

func NewOptionStore() *OptionStore {
	return &OptionStore{values: make(map[string][]string)}
}

// Add appends an empty row with a fresh id.
func (s *OptionStore) Add() models.OptionRow {
	row := models.OptionRow{ID: uuid.NewString()}
	s.rows = append(s.rows, row)
	return row
}

func (s *OptionStore) add(name, value string) models.OptionRow {
	row := models.OptionRow{ID: uuid.NewString(), Name: name, Value: value}
	s.rows = append(s.rows, row)
	return row
}

// Remove deletes the row and its cached value list.
func (s *OptionStore) Remove(id string) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
	delete(s.values, id)
	return true
}

func (s *OptionStore) Get(id string) (models.OptionRow, bool) {
	i := s.index(id)
	if i < 0 {
		return models.OptionRow{}, false
	}
	return s.rows[i], true
}

func (s *OptionStore) index(id string) int {
	for i := range s.rows {
		if s.rows[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *OptionStore) setName(id, name string) {
	if i := s.index(id); i >= 0 {
		s.rows[i].Name = name
		s.rows[i].Value = ""
		delete(s.values, id)
	}
}

func (s *OptionStore) setValue(id, value string) {
	if i := s.index(id); i >= 0 {
		s.rows[i].Value = value
	}
}

// Rows returns a copy of the rows in order.
func (s *OptionStore) Rows() []models.OptionRow {
	return append([]models.OptionRow(nil), s.rows...)
}

func (s *OptionStore) Len() int {
	return len(s.rows)
}

// Values returns the cached value list of a row and whether one has been loaded.
func (s *OptionStore) Values(id string) ([]string, bool) {
	v, ok := s.values[id]
	return append([]string(nil), v...), ok
}

func (s *OptionStore) setValues(id string, values []string) {
	s.values[id] = dedupe(values)
}

func (s *OptionStore) appendValue(id, value string) {
	s.values[id] = append(s.values[id], value)
}

// ByName returns the row carrying name, compared exactly.
func (s *OptionStore) ByName(name string) (models.OptionRow, bool) {
	for _, r := range s.rows {
		if r.Name != "" && r.Name == name {
			return r, true
		}
	}
	return models.OptionRow{}, false
}

// NameTakenByOther reports whether a row other than id already uses name, ignoring case.
func (s *OptionStore) NameTakenByOther(id, name string) bool {
	for _, r := range s.rows {
		if r.ID != id && r.Name != "" && strings.EqualFold(r.Name, name) {
			return true
		}
	}
	return false
}

// Names returns the non-empty names in row order.
func (s *OptionStore) Names() []string {
	names := make([]string, 0, len(s.rows))
	for _, r := range s.rows {
		if r.Name != "" {
			names = append(names, r.Name)
		}
	}
	return names
}

func (s *OptionStore) reset() {
	s.rows = nil
	s.values = make(map[string][]string)
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
