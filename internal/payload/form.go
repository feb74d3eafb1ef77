package payload

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"catalog-admin-service/internal/models"
)

// Part is one multipart field. File is set for file parts.
type Part struct {
	Key   string
	Value string
	File  *models.FileRef
}

// Form is an ordered multipart form. Field order is the order of Add calls.
type Form struct {
	parts []Part
}

func (f *Form) Add(key, value string) {
	f.parts = append(f.parts, Part{Key: key, Value: value})
}

func (f *Form) AddFile(key string, file *models.FileRef) {
	f.parts = append(f.parts, Part{Key: key, File: file})
}

// Get returns the first text value for key.
func (f *Form) Get(key string) (string, bool) {
	for _, p := range f.parts {
		if p.Key == key && p.File == nil {
			return p.Value, true
		}
	}
	return "", false
}

func (f *Form) Has(key string) bool {
	for _, p := range f.parts {
		if p.Key == key {
			return true
		}
	}
	return false
}

// DelPrefix removes every part whose key starts with prefix.
func (f *Form) DelPrefix(prefix string) {
	out := f.parts[:0]
	for _, p := range f.parts {
		if !strings.HasPrefix(p.Key, prefix) {
			out = append(out, p)
		}
	}
	f.parts = out
}

func (f *Form) Keys() []string {
	keys := make([]string, len(f.parts))
	for i, p := range f.parts {
		keys[i] = p.Key
	}
	return keys
}

func (f *Form) Parts() []Part {
	return append([]Part(nil), f.parts...)
}

func (f *Form) Len() int {
	return len(f.parts)
}

// Encode writes the form as multipart/form-data and returns the body with its content type.
func (f *Form) Encode() (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, p := range f.parts {
		if p.File == nil {
			if err := w.WriteField(p.Key, p.Value); err != nil {
				return nil, "", fmt.Errorf("failed to write field %s: %w", p.Key, err)
			}
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(p.Key), escapeQuotes(p.File.Filename)))
		contentType := p.File.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part %s: %w", p.Key, err)
		}
		if _, err := part.Write(p.File.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write file part %s: %w", p.Key, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
