package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

// ImageType tags an image as the primary image or an alternate.
type ImageType string

const (
	ImageTypeMain ImageType = "main"
	ImageTypeAlt  ImageType = "alt"
)

// BlobURLPrefix marks an image staged in the session and not yet uploaded.
const BlobURLPrefix = "blob:"

// DefaultMaxAltImages is the number of alternate images an image set may carry.
const DefaultMaxAltImages = 20

var (
	ErrInvalidImageType = errors.New("image type must be main or alt")
	ErrTooManyAltImages = errors.New("too many alternate images")
	ErrImageNotFound    = errors.New("image not found")
	ErrEmptyImageSource = errors.New("image has no file, id or url")
)

// FileRef is a binary file payload ready for a multipart upload.
type FileRef struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	Data        []byte `json:"data,omitempty"`
}

// VariantImage describes one image of a product or variant.
// Exactly one of File, ID or URL identifies where the bytes live.
type VariantImage struct {
	ID   *int64    `json:"id,omitempty"`
	URL  string    `json:"url,omitempty"`
	Type ImageType `json:"type"`
	File *FileRef  `json:"-"`
}

// IsBlob reports whether the image still points at a staged local upload.
func (i VariantImage) IsBlob() bool {
	return strings.HasPrefix(i.URL, BlobURLPrefix)
}

// BlobID returns the staged upload id for blob images.
func (i VariantImage) BlobID() string {
	return strings.TrimPrefix(i.URL, BlobURLPrefix)
}

// AddImage appends img to images. A new main image replaces the previous one.
func AddImage(images []VariantImage, img VariantImage, maxAlt int) ([]VariantImage, error) {
	if img.File == nil && img.ID == nil && img.URL == "" {
		return images, ErrEmptyImageSource
	}
	switch img.Type {
	case ImageTypeMain:
		out := make([]VariantImage, 0, len(images)+1)
		out = append(out, img)
		for _, existing := range images {
			if existing.Type != ImageTypeMain {
				out = append(out, existing)
			}
		}
		return out, nil
	case ImageTypeAlt:
		if maxAlt <= 0 {
			maxAlt = DefaultMaxAltImages
		}
		alts := 0
		for _, existing := range images {
			if existing.Type == ImageTypeAlt {
				alts++
			}
		}
		if alts >= maxAlt {
			return images, ErrTooManyAltImages
		}
		return append(append([]VariantImage(nil), images...), img), nil
	default:
		return images, ErrInvalidImageType
	}
}

// RemoveImage drops the image at index.
func RemoveImage(images []VariantImage, index int) ([]VariantImage, error) {
	if index < 0 || index >= len(images) {
		return images, ErrImageNotFound
	}
	out := make([]VariantImage, 0, len(images)-1)
	out = append(out, images[:index]...)
	return append(out, images[index+1:]...), nil
}

// OptionRow is one option dimension of a product or variant.
type OptionRow struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// VariantRow is one variant of a parent product with its option assignment.
type VariantRow struct {
	ID         *int64            `json:"id,omitempty"`
	Name       string            `json:"name"`
	SKU        string            `json:"sku"`
	Qty        string            `json:"qty"`
	Price      string            `json:"price"`
	RRP        string            `json:"rrp"`
	StorePrice string            `json:"store_price"`
	Option     map[string]string `json:"option"`
	Images     []VariantImage    `json:"images"`
}

// Clone returns a deep copy so store snapshots never alias live rows.
func (v VariantRow) Clone() VariantRow {
	out := v
	if v.ID != nil {
		id := *v.ID
		out.ID = &id
	}
	out.Option = make(map[string]string, len(v.Option))
	for k, val := range v.Option {
		out.Option[k] = val
	}
	out.Images = append([]VariantImage(nil), v.Images...)
	return out
}

// ScalarFields lists the variant's scalar columns in wire order.
func (v VariantRow) ScalarFields() Fields {
	return Fields{
		{Key: "name", Value: v.Name},
		{Key: "sku", Value: v.SKU},
		{Key: "qty", Value: v.Qty},
		{Key: "price", Value: v.Price},
		{Key: "rrp", Value: v.RRP},
		{Key: "store_price", Value: v.StorePrice},
	}
}

// SetScalar sets the scalar column named key and reports whether key is one.
func (v *VariantRow) SetScalar(key, value string) bool {
	switch key {
	case "name":
		v.Name = value
	case "sku":
		v.SKU = value
	case "qty":
		v.Qty = value
	case "price":
		v.Price = value
	case "rrp":
		v.RRP = value
	case "store_price":
		v.StorePrice = value
	default:
		return false
	}
	return true
}

// OptionNames returns the assigned option names sorted for stable output.
func (v VariantRow) OptionNames() []string {
	names := make([]string, 0, len(v.Option))
	for name := range v.Option {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Field is one top-level scalar product field.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Fields is an ordered set of scalar fields. Order drives the multipart field order.
type Fields []Field

func (f Fields) Get(key string) (string, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return "", false
}

// Set replaces the value of key or appends it.
func (f *Fields) Set(key, value string) {
	for i := range *f {
		if (*f)[i].Key == key {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Key: key, Value: value})
}

func (f *Fields) Delete(key string) {
	out := (*f)[:0]
	for _, field := range *f {
		if field.Key != key {
			out = append(out, field)
		}
	}
	*f = out
}

// Merge applies updates; keys new to f are appended in sorted order.
func (f *Fields) Merge(updates map[string]string) {
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f.Set(k, updates[k])
	}
}

func (f Fields) Clone() Fields {
	return append(Fields(nil), f...)
}

// MarshalJSON writes the fields as a JSON object in their current order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(field.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of scalars, keeping document order.
func (f *Fields) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*f = nil
		return nil
	}
	keys, values, err := orderedObject(b)
	if err != nil {
		return err
	}
	out := make(Fields, 0, len(keys))
	for _, k := range keys {
		s, err := scalarText(values[k])
		if err != nil {
			return err
		}
		out = append(out, Field{Key: k, Value: s})
	}
	*f = out
	return nil
}
