package matrix

// Vocabulary is the session's copy of the known option names and values.
// It is owned by one Matrix and lives as long as the edit session.
type Vocabulary struct {
	names  []string
	values map[string][]string
}

func NewVocabulary(names []string) *Vocabulary {
	v := &Vocabulary{values: make(map[string][]string)}
	v.AddNames(names...)
	return v
}

func (v *Vocabulary) Names() []string {
	return append([]string(nil), v.names...)
}

func (v *Vocabulary) HasName(name string) bool {
	return contains(v.names, name)
}

// AddNames merges names not already known.
func (v *Vocabulary) AddNames(names ...string) {
	for _, n := range names {
		if n != "" && !contains(v.names, n) {
			v.names = append(v.names, n)
		}
	}
}

func (v *Vocabulary) Values(name string) []string {
	return append([]string(nil), v.values[name]...)
}

// AddValues merges values for name not already known.
func (v *Vocabulary) AddValues(name string, values ...string) {
	if name == "" {
		return
	}
	for _, val := range values {
		if val != "" && !contains(v.values[name], val) {
			v.values[name] = append(v.values[name], val)
		}
	}
}
