package matrix

import (
	"catalog-admin-service/internal/models"
)

// State is the serializable form of a Matrix. Pending fetches are not kept;
// call RefreshMissing after Restore.
type State struct {
	Options      []models.OptionRow   `json:"options"`
	RowValues    map[string][]string  `json:"rowValues,omitempty"`
	Variants     []models.VariantRow  `json:"variants"`
	Names        []string             `json:"names"`
	NameValues   map[string][]string  `json:"nameValues,omitempty"`
	Errors       map[string]RowErrors `json:"errors,omitempty"`
	Registration *Registration        `json:"registration,omitempty"`
	Generation   uint64               `json:"generation"`
}

func (m *Matrix) Snapshot() State {
	s := State{
		Options:      m.options.Rows(),
		RowValues:    make(map[string][]string, len(m.options.values)),
		Variants:     m.variants.Rows(),
		Names:        m.vocab.Names(),
		NameValues:   make(map[string][]string, len(m.vocab.values)),
		Errors:       make(map[string]RowErrors, len(m.errors)),
		Registration: m.Registration(),
		Generation:   m.generation,
	}
	for id, v := range m.options.values {
		s.RowValues[id] = append([]string(nil), v...)
	}
	for name, v := range m.vocab.values {
		s.NameValues[name] = append([]string(nil), v...)
	}
	for id, e := range m.errors {
		s.Errors[id] = e
	}
	return s
}

// Restore rebuilds a Matrix from a snapshot.
func Restore(s State) *Matrix {
	vocab := NewVocabulary(s.Names)
	for name, values := range s.NameValues {
		vocab.AddValues(name, values...)
	}
	m := New(vocab)
	m.options.rows = append([]models.OptionRow(nil), s.Options...)
	for id, values := range s.RowValues {
		m.options.values[id] = append([]string(nil), values...)
	}
	for _, v := range s.Variants {
		row := v.Clone()
		m.variants.rows = append(m.variants.rows, row)
	}
	for id, e := range s.Errors {
		m.errors[id] = e
	}
	if s.Registration != nil {
		m.reg = s.Registration.clone()
	}
	m.generation = s.Generation
	return m
}
