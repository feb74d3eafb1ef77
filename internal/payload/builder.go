package payload

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"catalog-admin-service/internal/models"
)

// Mode selects the payload shape.
type Mode string

const (
	// ModeCreate is a new product with its variants.
	ModeCreate Mode = "create"
	// ModeEditParent edits a persisted parent product.
	ModeEditParent Mode = "edit_parent"
	// ModeEditVariant edits one child variant from the per-variant dialog.
	ModeEditVariant Mode = "edit_variant"
)

var (
	ErrInvalidMode      = errors.New("mode must be create, edit_parent or edit_variant")
	ErrMissingOriginal  = errors.New("edit payload requires the originally fetched product")
	ErrUnresolvedImage  = errors.New("image has neither an id nor a file")
	ErrNoVariantToWrite = errors.New("variant dialog has no variant row")
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeCreate, ModeEditParent, ModeEditVariant:
		return m, nil
	}
	return "", ErrInvalidMode
}

// IsEdit reports whether the mode works on a persisted product.
func (m Mode) IsEdit() bool {
	return m == ModeEditParent || m == ModeEditVariant
}

// Input is everything the serializer reads. Images must be resolved first.
type Input struct {
	Mode     Mode
	Fields   models.Fields
	Original *models.Product
	Options  []models.OptionRow
	Variants []models.VariantRow
	Images   []models.VariantImage
}

// Keys the form builds itself; same-named scalar fields are never copied through.
var reservedKeys = map[string]bool{
	"id":               true,
	"parent_id":        true,
	"variants_options": true,
	"variants":         true,
	"variant":          true,
	"images":           true,
	"deleted_images":   true,
}

// Omitted from the top level when the edited record is a child variant.
var parentPriceKeys = map[string]bool{
	"price":       true,
	"rrp":         true,
	"store_price": true,
}

// topLevelSkip returns the scalar keys kept out of the top level for orig.
func topLevelSkip(orig *models.Product) map[string]bool {
	if orig.IsVariant() {
		return parentPriceKeys
	}
	return nil
}

// Build produces the flat path-keyed form for in.Mode.
func Build(in Input) (*Form, error) {
	switch in.Mode {
	case ModeCreate:
		return buildCreate(in)
	case ModeEditParent, ModeEditVariant:
		if in.Original == nil {
			return nil, ErrMissingOriginal
		}
		if in.Mode == ModeEditParent {
			return buildEditParent(in)
		}
		return buildEditVariant(in)
	}
	return nil, ErrInvalidMode
}

func buildCreate(in Input) (*Form, error) {
	f := &Form{}
	for _, field := range in.Fields {
		if !reservedKeys[field.Key] {
			f.Add(field.Key, field.Value)
		}
	}
	// The variant blocks carry the options once there are any; a simple
	// product keeps them as variants_options.
	writeOptions(f, in.Options)
	if len(in.Variants) > 0 {
		f.DelPrefix("variants_options[")
	}
	for i, v := range in.Variants {
		if err := writeVariant(f, i, v); err != nil {
			return nil, err
		}
	}
	if err := writeImages(f, "images", in.Images); err != nil {
		return nil, err
	}
	return f, nil
}

func buildEditParent(in Input) (*Form, error) {
	orig := in.Original
	f := &Form{}
	writeIdentifiers(f, orig)
	writeChangedFields(f, in.Fields, orig.Fields, topLevelSkip(orig))

	if optionsChanged(in.Options, orig.VariantsOptions) {
		writeOptions(f, in.Options)
	}
	if variantsChanged(in.Variants, orig.VariantRows()) {
		for i, v := range in.Variants {
			if err := writeVariant(f, i, v); err != nil {
				return nil, err
			}
		}
	}
	if imagesChanged(in.Images, persistedImages(orig.Images)) {
		if err := writeImages(f, "images", in.Images); err != nil {
			return nil, err
		}
	}

	// Images of variants deleted during the session went with the variant.
	present := make(map[int64]bool, len(in.Variants))
	for _, v := range in.Variants {
		if v.ID != nil {
			present[*v.ID] = true
		}
	}
	original := orig.ImageIDs()
	for _, v := range orig.Variants {
		if v.ID == nil || !present[*v.ID] {
			continue
		}
		for _, img := range v.Images {
			if img.ID != nil {
				original = append(original, *img.ID)
			}
		}
	}
	current := [][]models.VariantImage{in.Images}
	for _, v := range in.Variants {
		current = append(current, v.Images)
	}
	writeDeletedImages(f, original, current...)
	return f, nil
}

func buildEditVariant(in Input) (*Form, error) {
	orig := in.Original
	if len(in.Variants) == 0 {
		return nil, ErrNoVariantToWrite
	}
	row := variantDialogRow(in)

	f := &Form{}
	writeIdentifiers(f, orig)
	writeChangedFields(f, in.Fields, orig.Fields, topLevelSkip(orig))
	if err := writeVariant(f, 0, row); err != nil {
		return nil, err
	}
	writeDeletedImages(f, orig.ImageIDs(), row.Images)
	return f, nil
}

// variantDialogRow is the single row of the variant dialog as it will be sent.
// The dialog's option rows are the variant's own options, and scalar fields
// edited at the top level override the row's copy of them.
func variantDialogRow(in Input) models.VariantRow {
	row := in.Variants[0].Clone()

	row.Option = make(map[string]string, len(in.Options))
	for _, o := range in.Options {
		name, value := strings.TrimSpace(o.Name), strings.TrimSpace(o.Value)
		if name != "" && value != "" {
			row.Option[name] = value
		}
	}

	for _, field := range in.Fields {
		old, existed := in.Original.Fields.Get(field.Key)
		if existed && !FieldChanged(old, field.Value) {
			continue
		}
		if !existed && field.Value == "" {
			continue
		}
		row.SetScalar(field.Key, field.Value)
	}
	return row
}

func writeIdentifiers(f *Form, orig *models.Product) {
	if orig.ID != nil {
		f.Add("id", strconv.FormatInt(*orig.ID, 10))
	}
	if orig.ParentID != nil {
		f.Add("parent_id", strconv.FormatInt(*orig.ParentID, 10))
	}
}

// writeChangedFields adds the fields whose value differs from the fetched product.
func writeChangedFields(f *Form, current, original models.Fields, skip map[string]bool) {
	for _, field := range current {
		if reservedKeys[field.Key] || skip[field.Key] {
			continue
		}
		old, existed := original.Get(field.Key)
		if !existed && field.Value == "" {
			continue
		}
		if existed && !FieldChanged(old, field.Value) {
			continue
		}
		f.Add(field.Key, field.Value)
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FieldChanged compares a fetched value with an edited one. Two dates are equal
// when their calendar date matches, whatever the time of day.
func FieldChanged(old, current string) bool {
	if old == current {
		return false
	}
	a, okA := parseDate(old)
	b, okB := parseDate(current)
	if okA && okB {
		ay, am, ad := a.Date()
		by, bm, bd := b.Date()
		return ay != by || am != bm || ad != bd
	}
	return true
}

func writeOptions(f *Form, options []models.OptionRow) {
	k := 0
	for _, o := range options {
		name, value := strings.TrimSpace(o.Name), strings.TrimSpace(o.Value)
		if name == "" || value == "" {
			continue
		}
		f.Add(fmt.Sprintf("variants_options[%d][name]", k), name)
		f.Add(fmt.Sprintf("variants_options[%d][value]", k), value)
		k++
	}
}

func writeVariant(f *Form, i int, v models.VariantRow) error {
	prefix := fmt.Sprintf("variant[%d]", i)
	if v.ID != nil {
		f.Add(prefix+"[id]", strconv.FormatInt(*v.ID, 10))
	}
	for _, field := range v.ScalarFields() {
		f.Add(prefix+"["+field.Key+"]", field.Value)
	}
	for _, name := range v.OptionNames() {
		value := v.Option[name]
		if strings.TrimSpace(name) == "" || strings.TrimSpace(value) == "" {
			continue
		}
		f.Add(prefix+"[option]["+name+"]", value)
	}
	return writeImages(f, prefix+"[images]", v.Images)
}

// writeImages emits id for persisted images and file for new ones, always with type.
func writeImages(f *Form, prefix string, images []models.VariantImage) error {
	for j, img := range images {
		key := fmt.Sprintf("%s[%d]", prefix, j)
		switch {
		case img.ID != nil:
			f.Add(key+"[id]", strconv.FormatInt(*img.ID, 10))
		case img.File != nil:
			f.AddFile(key+"[file]", img.File)
		default:
			return fmt.Errorf("%w: %s", ErrUnresolvedImage, key)
		}
		t := img.Type
		if t != models.ImageTypeMain {
			t = models.ImageTypeAlt
		}
		f.Add(key+"[type]", string(t))
	}
	return nil
}

// writeDeletedImages lists the fetched image ids no longer present in any current set.
func writeDeletedImages(f *Form, original []int64, current ...[]models.VariantImage) {
	keep := make(map[int64]bool)
	for _, set := range current {
		for _, img := range set {
			if img.ID != nil {
				keep[*img.ID] = true
			}
		}
	}
	k := 0
	seen := make(map[int64]bool)
	for _, id := range original {
		if keep[id] || seen[id] {
			continue
		}
		seen[id] = true
		f.Add(fmt.Sprintf("deleted_images[%d]", k), strconv.FormatInt(id, 10))
		k++
	}
}

func persistedImages(images []models.ProductImage) []models.VariantImage {
	out := make([]models.VariantImage, 0, len(images))
	for _, img := range images {
		out = append(out, img.ToVariantImage())
	}
	return out
}

func optionsChanged(current []models.OptionRow, original models.VariantOptions) bool {
	var a, b []models.OptionPair
	for _, o := range current {
		if name, value := strings.TrimSpace(o.Name), strings.TrimSpace(o.Value); name != "" && value != "" {
			a = append(a, models.OptionPair{Name: name, Value: value})
		}
	}
	for _, p := range original {
		if name, value := strings.TrimSpace(p.Name), strings.TrimSpace(p.Value); name != "" && value != "" {
			b = append(b, models.OptionPair{Name: name, Value: value})
		}
	}
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}

func variantsChanged(current, original []models.VariantRow) bool {
	if len(current) != len(original) {
		return true
	}
	for i := range current {
		if !sameVariant(current[i], original[i]) {
			return true
		}
	}
	return false
}

func sameVariant(a, b models.VariantRow) bool {
	if (a.ID == nil) != (b.ID == nil) || (a.ID != nil && *a.ID != *b.ID) {
		return false
	}
	fa, fb := a.ScalarFields(), b.ScalarFields()
	for i := range fa {
		if fa[i].Value != fb[i].Value {
			return false
		}
	}
	if !sameOptions(a.Option, b.Option) {
		return false
	}
	return !imagesChanged(a.Images, b.Images)
}

func sameOptions(a, b map[string]string) bool {
	count := 0
	for k, v := range a {
		if v == "" {
			continue
		}
		if b[k] != v {
			return false
		}
		count++
	}
	for _, v := range b {
		if v != "" {
			count--
		}
	}
	return count == 0
}

func imagesChanged(current, original []models.VariantImage) bool {
	if len(current) != len(original) {
		return true
	}
	for i := range current {
		c, o := current[i], original[i]
		if c.File != nil || c.Type != o.Type || c.URL != o.URL {
			return true
		}
		if (c.ID == nil) != (o.ID == nil) || (c.ID != nil && *c.ID != *o.ID) {
			return true
		}
	}
	return false
}
