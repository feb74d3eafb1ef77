package matrix

import (
	"errors"
	"strings"

	"catalog-admin-service/internal/models"
)

// AddNewSentinel is the choice that opens the vocabulary registration flow
// instead of selecting an existing name or value.
const AddNewSentinel = "__add_new__"

const (
	MsgNameRequired  = "Option name is required"
	MsgValueRequired = "Option value is required"
)

var (
	ErrRowNotFound           = errors.New("option row not found")
	ErrVariantNotFound       = errors.New("variant row not found")
	ErrDuplicateOptionName   = errors.New("option name is already used by another row")
	ErrUnknownOptionName     = errors.New("option name is not in the vocabulary")
	ErrUnknownOptionValue    = errors.New("option value is not in the vocabulary")
	ErrDuplicateVariantValue = errors.New("option value is already assigned to another variant")
	ErrOptionNotDefined      = errors.New("option name has no option row")
	ErrOptionNameNotSet      = errors.New("option row has no name")
)

// RowErrors holds the per-field messages of one option row.
type RowErrors struct {
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

// RowState is an option row as presented to the dashboard.
type RowState struct {
	models.OptionRow
	Errors  RowErrors `json:"errors"`
	Loading bool      `json:"loading"`
}

// FieldError is one validation failure, reported in row order, name before value.
type FieldError struct {
	RowID   string `json:"rowId"`
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValueFetch identifies an outstanding value-list request for a row.
// A response is applied only while it is still the latest request of a row
// that still exists and still carries Name.
type ValueFetch struct {
	RowID      string `json:"rowId"`
	Name       string `json:"name"`
	Generation uint64 `json:"generation"`
}

// Matrix reconciles the option rows, the variant rows and the session vocabulary.
// It is not safe for concurrent use; callers serialize access per session.
type Matrix struct {
	options    *OptionStore
	variants   *VariantStore
	vocab      *Vocabulary
	errors     map[string]RowErrors
	pending    map[string]ValueFetch
	generation uint64
	reg        *Registration
}

func New(vocab *Vocabulary) *Matrix {
	if vocab == nil {
		vocab = NewVocabulary(nil)
	}
	return &Matrix{
		options:  NewOptionStore(),
		variants: NewVariantStore(),
		vocab:    vocab,
		errors:   make(map[string]RowErrors),
		pending:  make(map[string]ValueFetch),
	}
}

// Hydrate replaces both stores with a persisted product's options and variants.
// Option names referenced only by variants get a row of their own.
func (m *Matrix) Hydrate(options models.VariantOptions, variants []models.VariantRow) {
	m.options.reset()
	m.variants.reset()
	m.errors = make(map[string]RowErrors)
	m.pending = make(map[string]ValueFetch)
	m.reg = nil

	for _, p := range options {
		name := strings.TrimSpace(p.Name)
		if name == "" || m.options.NameTakenByOther("", name) {
			continue
		}
		value := strings.TrimSpace(p.Value)
		m.options.add(name, value)
		m.vocab.AddNames(name)
		m.vocab.AddValues(name, value)
	}

	for _, v := range variants {
		row := v.Clone()
		for _, name := range row.OptionNames() {
			if _, ok := m.options.ByName(name); !ok && !m.options.NameTakenByOther("", name) {
				m.options.add(name, "")
				m.vocab.AddNames(name)
			}
			m.vocab.AddValues(name, row.Option[name])
		}
		m.variants.Append(row)
	}
}

func (m *Matrix) AddOptionRow() models.OptionRow {
	return m.options.Add()
}

// RemoveOptionRow deletes the row with its errors, cached values and pending fetch.
// Variant assignments to the removed name are kept until PruneOrphanedAssignments.
func (m *Matrix) RemoveOptionRow(id string) error {
	row, ok := m.options.Get(id)
	if !ok {
		return ErrRowNotFound
	}
	m.options.Remove(id)
	delete(m.errors, id)
	delete(m.pending, id)
	if m.reg != nil && (m.reg.RowID == id || (m.reg.VariantIndex != nil && m.reg.OptionName == row.Name)) {
		m.reg = nil
	}
	return nil
}

// SetOptionName commits a name to a row and returns the value fetch to run for it.
// An empty name marks the row invalid. The sentinel opens name registration.
func (m *Matrix) SetOptionName(id, name string) (*ValueFetch, error) {
	row, ok := m.options.Get(id)
	if !ok {
		return nil, ErrRowNotFound
	}
	name = strings.TrimSpace(name)

	switch {
	case name == AddNewSentinel:
		m.reg = &Registration{Type: RegistrationOption, RowID: id}
		return nil, nil
	case name == "":
		m.options.setName(id, "")
		delete(m.pending, id)
		m.markError(id, func(e *RowErrors) { e.Name = MsgNameRequired })
		return nil, nil
	case m.options.NameTakenByOther(id, name):
		return nil, ErrDuplicateOptionName
	case !m.vocab.HasName(name):
		return nil, ErrUnknownOptionName
	}

	m.markError(id, func(e *RowErrors) { e.Name = "" })
	if row.Name == name {
		return nil, nil
	}
	m.options.setName(id, name)
	m.markError(id, func(e *RowErrors) { e.Value = "" })
	if m.reg != nil && m.reg.Type == RegistrationValue && m.reg.RowID == id {
		m.reg = nil
	}
	return m.requestValues(id, name), nil
}

func (m *Matrix) requestValues(id, name string) *ValueFetch {
	m.generation++
	fetch := ValueFetch{RowID: id, Name: name, Generation: m.generation}
	m.pending[id] = fetch
	return &fetch
}

// ApplyOptionValues stores a fetched value list and reports whether it was applied.
// Responses for deleted rows, renamed rows or superseded requests are dropped.
// Callers pass a nil list when the fetch failed.
func (m *Matrix) ApplyOptionValues(fetch ValueFetch, values []string) bool {
	current, ok := m.pending[fetch.RowID]
	if !ok || current != fetch {
		return false
	}
	delete(m.pending, fetch.RowID)
	row, ok := m.options.Get(fetch.RowID)
	if !ok || row.Name != fetch.Name {
		return false
	}
	m.vocab.AddValues(fetch.Name, values...)
	m.options.setValues(fetch.RowID, append(append([]string(nil), values...), m.vocab.Values(fetch.Name)...))
	return true
}

// RefreshAll requests a fresh value list for every named row.
func (m *Matrix) RefreshAll() []ValueFetch {
	return m.refresh(false)
}

// RefreshMissing requests value lists only for named rows that have none loaded.
func (m *Matrix) RefreshMissing() []ValueFetch {
	return m.refresh(true)
}

func (m *Matrix) refresh(missingOnly bool) []ValueFetch {
	var out []ValueFetch
	for _, r := range m.options.rows {
		if r.Name == "" {
			continue
		}
		if _, loaded := m.options.values[r.ID]; loaded && missingOnly {
			continue
		}
		out = append(out, *m.requestValues(r.ID, r.Name))
	}
	return out
}

// SetOptionValue records the product-level value of a row. An empty value marks
// the row invalid. The sentinel opens value registration for the row's name.
func (m *Matrix) SetOptionValue(id, value string) error {
	row, ok := m.options.Get(id)
	if !ok {
		return ErrRowNotFound
	}
	value = strings.TrimSpace(value)

	switch {
	case value == AddNewSentinel:
		if row.Name == "" {
			return ErrOptionNameNotSet
		}
		m.reg = &Registration{Type: RegistrationValue, RowID: id, OptionName: row.Name}
		return nil
	case value == "":
		m.options.setValue(id, "")
		m.markError(id, func(e *RowErrors) { e.Value = MsgValueRequired })
		return nil
	case row.Name == "":
		return ErrOptionNameNotSet
	case !contains(m.candidateValues(id, row.Name), value):
		return ErrUnknownOptionValue
	}

	m.options.setValue(id, value)
	m.markError(id, func(e *RowErrors) { e.Value = "" })
	return nil
}

// OptionNameChoices returns the names assignable to a row: every known name not
// chosen by another row, followed by the sentinel.
func (m *Matrix) OptionNameChoices(id string) ([]string, error) {
	if _, ok := m.options.Get(id); !ok {
		return nil, ErrRowNotFound
	}
	var out []string
	for _, n := range m.vocab.Names() {
		if !m.options.NameTakenByOther(id, n) {
			out = append(out, n)
		}
	}
	return append(out, AddNewSentinel), nil
}

// OptionValueChoices returns the value list of a row followed by the sentinel.
func (m *Matrix) OptionValueChoices(id string) ([]string, error) {
	row, ok := m.options.Get(id)
	if !ok {
		return nil, ErrRowNotFound
	}
	if row.Name == "" {
		return nil, ErrOptionNameNotSet
	}
	out := m.candidateValues(id, row.Name)
	if row.Value != "" && !contains(out, row.Value) {
		out = append(out, row.Value)
	}
	return append(out, AddNewSentinel), nil
}

func (m *Matrix) candidateValues(rowID, name string) []string {
	cached, _ := m.options.Values(rowID)
	return dedupe(append(cached, m.vocab.Values(name)...))
}

// AddVariantRow appends an unsaved variant with no option assignment.
func (m *Matrix) AddVariantRow(fields models.VariantFields) int {
	row := models.VariantRow{Option: map[string]string{}}
	fields.Apply(&row)
	return m.variants.Append(row)
}

func (m *Matrix) UpdateVariantRow(index int, fields models.VariantFields) error {
	return m.variants.update(index, func(r *models.VariantRow) error {
		fields.Apply(r)
		return nil
	})
}

// VariantValueChoices returns the values variant row index may take for name:
// the known values minus those other rows already claim, plus the row's own
// current value, plus the sentinel.
func (m *Matrix) VariantValueChoices(index int, name string) ([]string, error) {
	row, err := m.variants.Get(index)
	if err != nil {
		return nil, err
	}
	opt, ok := m.options.ByName(name)
	if !ok {
		return nil, ErrOptionNotDefined
	}
	taken := m.variants.TakenValues(index, name)
	var out []string
	for _, v := range m.candidateValues(opt.ID, name) {
		if !taken[v] {
			out = append(out, v)
		}
	}
	if own := row.Option[name]; own != "" && !contains(out, own) {
		out = append(out, own)
	}
	return append(out, AddNewSentinel), nil
}

// SetVariantOption pins variant row index to value for name. An empty value
// removes the assignment. The sentinel opens value registration for the row.
func (m *Matrix) SetVariantOption(index int, name, value string) error {
	row, err := m.variants.Get(index)
	if err != nil {
		return err
	}
	opt, ok := m.options.ByName(name)
	if !ok {
		return ErrOptionNotDefined
	}
	value = strings.TrimSpace(value)

	switch {
	case value == AddNewSentinel:
		idx := index
		m.reg = &Registration{Type: RegistrationValue, VariantIndex: &idx, OptionName: name}
		return nil
	case value == "":
		return m.variants.update(index, func(r *models.VariantRow) error {
			delete(r.Option, name)
			return nil
		})
	case row.Option[name] == value:
		return nil
	case m.variants.TakenValues(index, name)[value]:
		return ErrDuplicateVariantValue
	case !contains(m.candidateValues(opt.ID, name), value):
		return ErrUnknownOptionValue
	}

	return m.variants.update(index, func(r *models.VariantRow) error {
		r.Option[name] = value
		return nil
	})
}

// DeleteVariantRow removes the row and returns it so a failed remote delete can restore it.
func (m *Matrix) DeleteVariantRow(index int) (models.VariantRow, error) {
	row, err := m.variants.Remove(index)
	if err != nil {
		return models.VariantRow{}, err
	}
	if m.reg != nil && m.reg.VariantIndex != nil {
		switch {
		case *m.reg.VariantIndex == index:
			m.reg = nil
		case *m.reg.VariantIndex > index:
			*m.reg.VariantIndex--
		}
	}
	return row, nil
}

// RestoreVariantRow puts a deleted row back at index.
func (m *Matrix) RestoreVariantRow(index int, row models.VariantRow) int {
	at := m.variants.Insert(index, row)
	if m.reg != nil && m.reg.VariantIndex != nil && *m.reg.VariantIndex >= at {
		*m.reg.VariantIndex++
	}
	return at
}

func (m *Matrix) AddVariantImage(index int, img models.VariantImage, maxAlt int) error {
	return m.variants.update(index, func(r *models.VariantRow) error {
		images, err := models.AddImage(r.Images, img, maxAlt)
		if err != nil {
			return err
		}
		r.Images = images
		return nil
	})
}

func (m *Matrix) RemoveVariantImage(index, imageIndex int) error {
	return m.variants.update(index, func(r *models.VariantRow) error {
		images, err := models.RemoveImage(r.Images, imageIndex)
		if err != nil {
			return err
		}
		r.Images = images
		return nil
	})
}

// ValidateBeforeSubmit flags every row with a blank name or value and returns
// the errors in row order, name before value. Zero rows is valid.
func (m *Matrix) ValidateBeforeSubmit() ([]FieldError, bool) {
	m.errors = make(map[string]RowErrors)
	var out []FieldError
	for i, r := range m.options.rows {
		var e RowErrors
		if strings.TrimSpace(r.Name) == "" {
			e.Name = MsgNameRequired
			out = append(out, FieldError{RowID: r.ID, Index: i, Field: "name", Message: MsgNameRequired})
		}
		if strings.TrimSpace(r.Value) == "" {
			e.Value = MsgValueRequired
			out = append(out, FieldError{RowID: r.ID, Index: i, Field: "value", Message: MsgValueRequired})
		}
		if e != (RowErrors{}) {
			m.errors[r.ID] = e
		}
	}
	return out, len(out) == 0
}

// PruneOrphanedAssignments drops variant option keys that no option row names
// and returns how many were removed.
func (m *Matrix) PruneOrphanedAssignments() int {
	pruned := 0
	for i := range m.variants.rows {
		for name := range m.variants.rows[i].Option {
			if _, ok := m.options.ByName(name); !ok {
				delete(m.variants.rows[i].Option, name)
				pruned++
			}
		}
	}
	return pruned
}

func (m *Matrix) markError(id string, fn func(*RowErrors)) {
	e := m.errors[id]
	fn(&e)
	if e == (RowErrors{}) {
		delete(m.errors, id)
		return
	}
	m.errors[id] = e
}

// Rows returns the option rows with their errors and loading state.
func (m *Matrix) Rows() []RowState {
	out := make([]RowState, 0, m.options.Len())
	for _, r := range m.options.rows {
		_, loading := m.pending[r.ID]
		out = append(out, RowState{OptionRow: r, Errors: m.errors[r.ID], Loading: loading})
	}
	return out
}

func (m *Matrix) Options() []models.OptionRow {
	return m.options.Rows()
}

func (m *Matrix) Variants() []models.VariantRow {
	return m.variants.Rows()
}
