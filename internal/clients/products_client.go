package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"catalog-admin-service/internal/models"
	"catalog-admin-service/internal/payload"
)

// ProductsClient fetches, saves and deletes products on the commerce API
type ProductsClient struct {
	commerce *CommerceClient
}

func NewProductsClient(commerce *CommerceClient) *ProductsClient {
	return &ProductsClient{commerce: commerce}
}

// SubmitResult is the commerce API's answer to a product save
type SubmitResult struct {
	ProductID *int64          `json:"productId,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// unwrapData returns the "data" member of a { data: {...} } envelope, or body itself.
func unwrapData(body []byte) json.RawMessage {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if trimmed := bytes.TrimSpace(envelope.Data); len(trimmed) > 0 && trimmed[0] == '{' {
			return trimmed
		}
	}
	return bytes.TrimSpace(body)
}

// GetProduct fetches a product and returns it with its raw JSON document
func (c *ProductsClient) GetProduct(ctx context.Context, id int64) (*models.Product, json.RawMessage, error) {
	body, err := c.commerce.do(ctx, "get product", request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/products/%d", id),
		retry:  true,
	})
	if err != nil {
		return nil, nil, err
	}

	raw := unwrapData(body)
	var product models.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		return nil, nil, fmt.Errorf("get product: failed to decode response: %w", err)
	}
	return &product, raw, nil
}

// CreateProduct posts a new product as multipart/form-data
func (c *ProductsClient) CreateProduct(ctx context.Context, form *payload.Form) (*SubmitResult, error) {
	return c.submit(ctx, "create product", "/products", form)
}

// UpdateProduct saves an existing product; the API expects POST with a PUT override
func (c *ProductsClient) UpdateProduct(ctx context.Context, id int64, form *payload.Form) (*SubmitResult, error) {
	return c.submit(ctx, "update product", fmt.Sprintf("/products/%d?_method=PUT", id), form)
}

func (c *ProductsClient) submit(ctx context.Context, operation, path string, form *payload.Form) (*SubmitResult, error) {
	body, contentType, err := form.Encode()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	respBody, err := c.commerce.do(ctx, operation, request{
		method:      http.MethodPost,
		path:        path,
		body:        body.Bytes(),
		contentType: contentType,
	})
	if err != nil {
		return nil, err
	}

	result := &SubmitResult{}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return result, nil
	}
	result.Raw = unwrapData(respBody)

	var ids struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(result.Raw, &ids); err == nil && len(ids.ID) > 0 {
		var id json.Number
		if json.Unmarshal(bytes.Trim(ids.ID, `"`), &id) == nil {
			if n, err := id.Int64(); err == nil {
				result.ProductID = &n
			}
		}
	}
	return result, nil
}

// DeleteProduct deletes a product by id; a product that is already gone counts as deleted
func (c *ProductsClient) DeleteProduct(ctx context.Context, id int64) error {
	_, err := c.commerce.do(ctx, "delete product", request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("/products/%d", id),
		retry:  true,
	})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
