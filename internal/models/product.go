package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// OptionPair is one name/value entry of a persisted variants_options payload.
type OptionPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// VariantOptions is the normalized form of variants_options / variant_options.
//
// The commerce API stores the field as JSON text or as a JSON value, and the value has
// been written in three shapes over time:
//
//	[{"name":"Color","value":"Red"}, ...]   list of pairs
//	{"Color":"Red","Size":"M"}              plain map, document order kept
//	{"name":"Color","value":"Red"}          single pair
//
// All of them decode into the same ordered list of pairs.
type VariantOptions []OptionPair

func (v *VariantOptions) UnmarshalJSON(b []byte) error {
	pairs, err := parseVariantOptions(b, 0)
	if err != nil {
		return fmt.Errorf("variants_options: %w", err)
	}
	*v = pairs
	return nil
}

// Map returns the pairs as a name to value map, dropping blank names.
func (v VariantOptions) Map() map[string]string {
	out := make(map[string]string, len(v))
	for _, p := range v {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		if _, ok := out[p.Name]; !ok {
			out[p.Name] = p.Value
		}
	}
	return out
}

// maxEncodingDepth bounds how many times a JSON string may wrap another JSON document.
const maxEncodingDepth = 2

func parseVariantOptions(b []byte, depth int) (VariantOptions, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil, nil
	}

	switch b[0] {
	case '"':
		if depth >= maxEncodingDepth {
			return nil, fmt.Errorf("%w: nested JSON text", ErrUnsupportedShape)
		}
		var text string
		if err := json.Unmarshal(b, &text); err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, nil
		}
		return parseVariantOptions([]byte(text), depth+1)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return nil, err
		}
		var out VariantOptions
		for _, item := range items {
			pairs, err := parseVariantOptions(item, depth)
			if err != nil {
				return nil, err
			}
			out = append(out, pairs...)
		}
		return out, nil
	case '{':
		keys, values, err := orderedObject(b)
		if err != nil {
			return nil, err
		}
		if _, single := values["name"]; single {
			name, err := scalarText(values["name"])
			if err != nil {
				return nil, err
			}
			value, err := scalarText(values["value"])
			if err != nil {
				return nil, err
			}
			return VariantOptions{{Name: name, Value: value}}, nil
		}
		out := make(VariantOptions, 0, len(keys))
		for _, k := range keys {
			if !isScalar(values[k]) {
				continue
			}
			value, err := scalarText(values[k])
			if err != nil {
				return nil, err
			}
			out = append(out, OptionPair{Name: k, Value: value})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedShape, string(b))
	}
}

// ProductImage is an image as read back from the commerce API.
type ProductImage struct {
	ID        *int64    `json:"id,omitempty"`
	ImagePath string    `json:"image_path"`
	Type      ImageType `json:"type"`
}

func (p *ProductImage) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID        json.RawMessage `json:"id"`
		ImagePath FlexString      `json:"image_path"`
		URL       FlexString      `json:"url"`
		Type      FlexString      `json:"type"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	id, err := parseID(raw.ID)
	if err != nil {
		return err
	}
	p.ID = id
	p.ImagePath = raw.ImagePath.String()
	if p.ImagePath == "" {
		p.ImagePath = raw.URL.String()
	}
	p.Type = ImageType(strings.ToLower(raw.Type.String()))
	if p.Type != ImageTypeMain {
		p.Type = ImageTypeAlt
	}
	return nil
}

// ToVariantImage converts a persisted image into its editable form.
func (p ProductImage) ToVariantImage() VariantImage {
	img := VariantImage{URL: p.ImagePath, Type: p.Type}
	if p.ID != nil {
		id := *p.ID
		img.ID = &id
	}
	return img
}

// Variant is a variant record as read back from the commerce API.
type Variant struct {
	ID             *int64
	Name           string
	SKU            string
	Qty            string
	Price          string
	RRP            string
	StorePrice     string
	VariantOptions VariantOptions
	Images         []ProductImage
}

func (v *Variant) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID             json.RawMessage `json:"id"`
		Name           FlexString      `json:"name"`
		SKU            FlexString      `json:"sku"`
		Qty            FlexString      `json:"qty"`
		Price          FlexString      `json:"price"`
		RRP            FlexString      `json:"rrp"`
		StorePrice     FlexString      `json:"store_price"`
		VariantOptions VariantOptions  `json:"variant_options"`
		Option         VariantOptions  `json:"option"`
		Images         []ProductImage  `json:"images"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	id, err := parseID(raw.ID)
	if err != nil {
		return err
	}
	*v = Variant{
		ID:             id,
		Name:           raw.Name.String(),
		SKU:            raw.SKU.String(),
		Qty:            raw.Qty.String(),
		Price:          raw.Price.String(),
		RRP:            raw.RRP.String(),
		StorePrice:     raw.StorePrice.String(),
		VariantOptions: raw.VariantOptions,
		Images:         raw.Images,
	}
	if len(v.VariantOptions) == 0 {
		v.VariantOptions = raw.Option
	}
	return nil
}

// ToRow converts a persisted variant into a Variant Row Store entry.
func (v Variant) ToRow() VariantRow {
	row := VariantRow{
		ID:         v.ID,
		Name:       v.Name,
		SKU:        v.SKU,
		Qty:        v.Qty,
		Price:      v.Price,
		RRP:        v.RRP,
		StorePrice: v.StorePrice,
		Option:     v.VariantOptions.Map(),
	}
	for _, img := range v.Images {
		row.Images = append(row.Images, img.ToVariantImage())
	}
	return row
}

// VariantList flattens the variants payload. Older records group variants in nested
// arrays; the list is always exposed flat and in document order.
type VariantList []Variant

func (l *VariantList) UnmarshalJSON(b []byte) error {
	out, err := flattenVariants(b)
	if err != nil {
		return fmt.Errorf("variants: %w", err)
	}
	*l = out
	return nil
}

func flattenVariants(b []byte) ([]Variant, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil, nil
	}
	switch b[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return nil, err
		}
		var out []Variant
		for _, item := range items {
			nested, err := flattenVariants(item)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		}
		return out, nil
	case '{':
		var v Variant
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return []Variant{v}, nil
	case '"':
		var text string
		if err := json.Unmarshal(b, &text); err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return flattenVariants([]byte(text))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedShape, string(b))
	}
}

// Product is a product record as fetched from GET /products/{id}.
// Every top-level scalar lands in Fields; structural keys are decoded separately.
type Product struct {
	ID              *int64
	ParentID        *int64
	Fields          Fields
	VariantsOptions VariantOptions
	Variants        VariantList
	Images          []ProductImage
}

var structuralKeys = map[string]bool{
	"id":               true,
	"parent_id":        true,
	"variants_options": true,
	"variants":         true,
	"images":           true,
}

func (p *Product) UnmarshalJSON(b []byte) error {
	keys, values, err := orderedObject(b)
	if err != nil {
		return err
	}

	var out Product
	if out.ID, err = parseID(values["id"]); err != nil {
		return err
	}
	if out.ParentID, err = parseID(values["parent_id"]); err != nil {
		return err
	}
	if raw, ok := values["variants_options"]; ok {
		if err := json.Unmarshal(raw, &out.VariantsOptions); err != nil {
			return err
		}
	}
	if raw, ok := values["variants"]; ok {
		if err := json.Unmarshal(raw, &out.Variants); err != nil {
			return err
		}
	}
	if raw, ok := values["images"]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if err := json.Unmarshal(raw, &out.Images); err != nil {
			return fmt.Errorf("images: %w", err)
		}
	}

	for _, k := range keys {
		if structuralKeys[k] || !isScalar(values[k]) {
			continue
		}
		s, err := scalarText(values[k])
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		out.Fields = append(out.Fields, Field{Key: k, Value: s})
	}

	*p = out
	return nil
}

// IsVariant reports whether the record is a child variant of another product.
func (p *Product) IsVariant() bool {
	return p != nil && p.ParentID != nil
}

// ImageIDs returns the ids of the product's persisted images.
func (p *Product) ImageIDs() []int64 {
	if p == nil {
		return nil
	}
	var ids []int64
	for _, img := range p.Images {
		if img.ID != nil {
			ids = append(ids, *img.ID)
		}
	}
	return ids
}

// VariantRows converts every persisted variant into a store row.
func (p *Product) VariantRows() []VariantRow {
	if p == nil {
		return nil
	}
	rows := make([]VariantRow, 0, len(p.Variants))
	for _, v := range p.Variants {
		rows = append(rows, v.ToRow())
	}
	return rows
}

// AsVariantRow builds the single Variant Row of a child product opened in the variant dialog.
func (p *Product) AsVariantRow() VariantRow {
	get := func(key string) string {
		v, _ := p.Fields.Get(key)
		return v
	}
	row := VariantRow{
		ID:         p.ID,
		Name:       get("name"),
		SKU:        get("sku"),
		Qty:        get("qty"),
		Price:      get("price"),
		RRP:        get("rrp"),
		StorePrice: get("store_price"),
		Option:     p.VariantsOptions.Map(),
	}
	for _, img := range p.Images {
		row.Images = append(row.Images, img.ToVariantImage())
	}
	return row
}
