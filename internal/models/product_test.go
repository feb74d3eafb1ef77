package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantOptions_ArrayOfPairs(t *testing.T) {
	var opts VariantOptions
	err := json.Unmarshal([]byte(`[{"name":"Color","value":"Red"},{"name":"Size","value":"M"}]`), &opts)

	require.NoError(t, err)
	assert.Equal(t, VariantOptions{{Name: "Color", Value: "Red"}, {Name: "Size", Value: "M"}}, opts)
}

func TestVariantOptions_PlainMapKeepsOrder(t *testing.T) {
	var opts VariantOptions
	err := json.Unmarshal([]byte(`{"Size":"M","Color":"Red","Weight":2}`), &opts)

	require.NoError(t, err)
	assert.Equal(t, VariantOptions{
		{Name: "Size", Value: "M"},
		{Name: "Color", Value: "Red"},
		{Name: "Weight", Value: "2"},
	}, opts)
}

func TestVariantOptions_SingleObject(t *testing.T) {
	var opts VariantOptions
	err := json.Unmarshal([]byte(`{"name":"Color","value":"Blue"}`), &opts)

	require.NoError(t, err)
	assert.Equal(t, VariantOptions{{Name: "Color", Value: "Blue"}}, opts)
}

func TestVariantOptions_JSONText(t *testing.T) {
	var opts VariantOptions
	err := json.Unmarshal([]byte(`"[{\"name\":\"Color\",\"value\":\"Red\"}]"`), &opts)

	require.NoError(t, err)
	assert.Equal(t, VariantOptions{{Name: "Color", Value: "Red"}}, opts)
}

func TestVariantOptions_EmptyForms(t *testing.T) {
	for _, input := range []string{`null`, `""`, `[]`, `{}`} {
		var opts VariantOptions
		require.NoError(t, json.Unmarshal([]byte(input), &opts), input)
		assert.Empty(t, opts, input)
	}
}

func TestVariantOptions_RejectsUnknownShape(t *testing.T) {
	var opts VariantOptions
	err := json.Unmarshal([]byte(`42`), &opts)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedShape))
}

func TestVariantOptions_Map(t *testing.T) {
	opts := VariantOptions{{Name: "Color", Value: "Red"}, {Name: " ", Value: "x"}, {Name: "Color", Value: "Blue"}}

	assert.Equal(t, map[string]string{"Color": "Red"}, opts.Map())
}

func TestVariantList_FlattensNestedGroups(t *testing.T) {
	var list VariantList
	err := json.Unmarshal([]byte(`[[{"id":1,"sku":"A"},{"id":2,"sku":"B"}],{"id":"3","sku":"C"}]`), &list)

	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(1), *list[0].ID)
	assert.Equal(t, "B", list[1].SKU)
	assert.Equal(t, int64(3), *list[2].ID)
}

func TestProduct_Unmarshal(t *testing.T) {
	raw := `{
		"id": 10,
		"parent_id": null,
		"name": "Shirt",
		"rrp": 10,
		"qty": "5",
		"published": true,
		"category": {"id": 3},
		"variants_options": "{\"Color\":\"Red\"}",
		"variants": [{
			"id": 11,
			"sku": "SH-R",
			"price": 4.5,
			"variant_options": [{"name":"Color","value":"Red"}],
			"images": [{"id": 42, "image_path": "https://cdn/img.png", "type": "main"}]
		}],
		"images": [{"id": 7, "image_path": "https://cdn/a.png", "type": "ALT"}]
	}`

	var p Product
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	assert.Equal(t, int64(10), *p.ID)
	assert.Nil(t, p.ParentID)
	assert.False(t, p.IsVariant())
	assert.Equal(t, Fields{
		{Key: "name", Value: "Shirt"},
		{Key: "rrp", Value: "10"},
		{Key: "qty", Value: "5"},
		{Key: "published", Value: "true"},
	}, p.Fields)
	assert.Equal(t, VariantOptions{{Name: "Color", Value: "Red"}}, p.VariantsOptions)
	assert.Equal(t, []int64{7}, p.ImageIDs())
	assert.Equal(t, ImageTypeAlt, p.Images[0].Type)

	rows := p.VariantRows()
	require.Len(t, rows, 1)
	assert.Equal(t, "4.5", rows[0].Price)
	assert.Equal(t, map[string]string{"Color": "Red"}, rows[0].Option)
	require.Len(t, rows[0].Images, 1)
	assert.Equal(t, int64(42), *rows[0].Images[0].ID)
	assert.Equal(t, ImageTypeMain, rows[0].Images[0].Type)
}

func TestProduct_AsVariantRow(t *testing.T) {
	raw := `{"id": 11, "parent_id": "10", "name": "Shirt Red", "sku": "SH-R", "price": "4",
		"variants_options": {"name": "Color", "value": "Red"},
		"images": [{"id": 5, "image_path": "https://cdn/r.png", "type": "main"}]}`

	var p Product
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	assert.True(t, p.IsVariant())
	row := p.AsVariantRow()
	assert.Equal(t, int64(11), *row.ID)
	assert.Equal(t, "SH-R", row.SKU)
	assert.Equal(t, "4", row.Price)
	assert.Equal(t, map[string]string{"Color": "Red"}, row.Option)
	require.Len(t, row.Images, 1)
	assert.Equal(t, int64(5), *row.Images[0].ID)
}

func TestFields_OrderedJSON(t *testing.T) {
	f := Fields{{Key: "sku", Value: "A1"}, {Key: "rrp", Value: "10"}}
	f.Set("qty", "7")
	f.Set("rrp", "12")

	b, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Equal(t, `{"sku":"A1","rrp":"12","qty":"7"}`, string(b))

	var back Fields
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, f, back)

	back.Delete("sku")
	_, ok := back.Get("sku")
	assert.False(t, ok)
}

func TestAddImage_MainReplacesMain(t *testing.T) {
	id := int64(1)
	images := []VariantImage{{ID: &id, URL: "https://cdn/old.png", Type: ImageTypeMain}, {URL: "blob:a", Type: ImageTypeAlt}}

	out, err := AddImage(images, VariantImage{URL: "blob:b", Type: ImageTypeMain}, 0)

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "blob:b", out[0].URL)
	assert.Equal(t, "blob:a", out[1].URL)
}

func TestAddImage_AltLimit(t *testing.T) {
	images := []VariantImage{{URL: "blob:a", Type: ImageTypeAlt}, {URL: "blob:b", Type: ImageTypeAlt}}

	_, err := AddImage(images, VariantImage{URL: "blob:c", Type: ImageTypeAlt}, 2)
	assert.ErrorIs(t, err, ErrTooManyAltImages)

	_, err = AddImage(images, VariantImage{URL: "blob:c", Type: "banner"}, 2)
	assert.ErrorIs(t, err, ErrInvalidImageType)

	_, err = AddImage(images, VariantImage{Type: ImageTypeAlt}, 2)
	assert.ErrorIs(t, err, ErrEmptyImageSource)
}

func TestRemoveImage(t *testing.T) {
	images := []VariantImage{{URL: "blob:a", Type: ImageTypeMain}, {URL: "blob:b", Type: ImageTypeAlt}}

	out, err := RemoveImage(images, 0)
	require.NoError(t, err)
	assert.Equal(t, []VariantImage{{URL: "blob:b", Type: ImageTypeAlt}}, out)

	_, err = RemoveImage(images, 5)
	assert.ErrorIs(t, err, ErrImageNotFound)
}
