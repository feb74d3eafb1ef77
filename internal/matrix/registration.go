package matrix

import (
	"errors"
	"strings"
)

type RegistrationType string

const (
	RegistrationOption RegistrationType = "option"
	RegistrationValue  RegistrationType = "value"
)

var (
	ErrNoRegistration          = errors.New("no registration in progress")
	ErrInvalidRegistrationType = errors.New("registration type must be option or value")
	ErrRegistrationEmpty       = errors.New("name is required")
	ErrRegistrationDuplicate   = errors.New("already exists")
)

// Registration is the open "add new" sub-flow. A value registration targets
// either an option row (RowID) or a variant row's assignment (VariantIndex, OptionName).
type Registration struct {
	Type         RegistrationType `json:"type"`
	RowID        string           `json:"rowId,omitempty"`
	VariantIndex *int             `json:"variantIndex,omitempty"`
	OptionName   string           `json:"optionName,omitempty"`
}

func (r Registration) clone() *Registration {
	if r.VariantIndex != nil {
		idx := *r.VariantIndex
		r.VariantIndex = &idx
	}
	return &r
}

// Registered describes a confirmed registration. The caller persists it to the
// remote vocabulary and runs Fetch when set.
type Registered struct {
	Type       RegistrationType
	OptionName string
	Value      string
	Fetch      *ValueFetch
}

// OpenRegistration starts the sub-flow for the given target, replacing any open one.
func (m *Matrix) OpenRegistration(r Registration) error {
	switch r.Type {
	case RegistrationOption:
		if _, ok := m.options.Get(r.RowID); !ok {
			return ErrRowNotFound
		}
		r.VariantIndex = nil
		r.OptionName = ""
	case RegistrationValue:
		if r.VariantIndex != nil {
			if _, err := m.variants.Get(*r.VariantIndex); err != nil {
				return err
			}
			if _, ok := m.options.ByName(r.OptionName); !ok {
				return ErrOptionNotDefined
			}
			r.RowID = ""
			break
		}
		row, ok := m.options.Get(r.RowID)
		if !ok {
			return ErrRowNotFound
		}
		if row.Name == "" {
			return ErrOptionNameNotSet
		}
		r.OptionName = row.Name
	default:
		return ErrInvalidRegistrationType
	}
	m.reg = r.clone()
	return nil
}

// Registration returns the open sub-flow, or nil.
func (m *Matrix) Registration() *Registration {
	if m.reg == nil {
		return nil
	}
	return m.reg.clone()
}

func (m *Matrix) CancelRegistration() {
	m.reg = nil
}

// ConfirmRegistration validates input against the registration's scope, adds it
// to the session vocabulary and selects it into the row that opened the sub-flow.
// A rejected input leaves the sub-flow open.
func (m *Matrix) ConfirmRegistration(input string) (*Registered, error) {
	if m.reg == nil {
		return nil, ErrNoRegistration
	}
	reg := *m.reg.clone()
	item := strings.TrimSpace(input)
	if item == "" {
		return nil, ErrRegistrationEmpty
	}

	switch reg.Type {
	case RegistrationOption:
		if containsFold(m.vocab.Names(), item) || m.options.NameTakenByOther("", item) {
			return nil, ErrRegistrationDuplicate
		}
		m.vocab.AddNames(item)
		m.reg = nil
		fetch, err := m.SetOptionName(reg.RowID, item)
		if err != nil {
			return nil, err
		}
		return &Registered{Type: reg.Type, OptionName: item, Fetch: fetch}, nil

	case RegistrationValue:
		rowID := reg.RowID
		if reg.VariantIndex != nil {
			opt, ok := m.options.ByName(reg.OptionName)
			if !ok {
				m.reg = nil
				return nil, ErrOptionNotDefined
			}
			rowID = opt.ID
		}
		if containsFold(m.candidateValues(rowID, reg.OptionName), item) {
			return nil, ErrRegistrationDuplicate
		}
		m.vocab.AddValues(reg.OptionName, item)
		m.options.appendValue(rowID, item)
		m.reg = nil

		var err error
		if reg.VariantIndex != nil {
			err = m.SetVariantOption(*reg.VariantIndex, reg.OptionName, item)
		} else {
			err = m.SetOptionValue(rowID, item)
		}
		if err != nil {
			return nil, err
		}
		return &Registered{Type: reg.Type, OptionName: reg.OptionName, Value: item}, nil
	}
	return nil, ErrInvalidRegistrationType
}
