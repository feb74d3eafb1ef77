package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"catalog-admin-service/internal/models"
)

// VocabularyClient reads and extends the catalog's option name/value vocabulary
type VocabularyClient struct {
	commerce *CommerceClient
}

func NewVocabularyClient(commerce *CommerceClient) *VocabularyClient {
	return &VocabularyClient{commerce: commerce}
}

// listResponse is the { data: string[] } envelope of the vocabulary endpoints
type listResponse struct {
	Data []models.FlexString `json:"data"`
}

func decodeList(body []byte) ([]string, error) {
	var result listResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(result.Data))
	for _, v := range result.Data {
		if s := v.String(); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// ListOptionNames returns every option name used across the catalog
func (c *VocabularyClient) ListOptionNames(ctx context.Context) ([]string, error) {
	body, err := c.commerce.do(ctx, "list option names", request{
		method: http.MethodGet,
		path:   "/variant-keys",
		retry:  true,
	})
	if err != nil {
		return nil, err
	}
	names, err := decodeList(body)
	if err != nil {
		return nil, fmt.Errorf("list option names: failed to decode response: %w", err)
	}
	return names, nil
}

// ListOptionValues returns every value used for the option name
func (c *VocabularyClient) ListOptionValues(ctx context.Context, name string) ([]string, error) {
	payload, err := json.Marshal(map[string]string{"option_name": name})
	if err != nil {
		return nil, err
	}
	body, err := c.commerce.do(ctx, "list option values", request{
		method:      http.MethodPost,
		path:        "/variants-options",
		body:        payload,
		contentType: "application/json",
		retry:       true,
	})
	if err != nil {
		return nil, err
	}
	values, err := decodeList(body)
	if err != nil {
		return nil, fmt.Errorf("list option values: failed to decode response: %w", err)
	}
	return values, nil
}

// RegisterOptionName stores a new option name
func (c *VocabularyClient) RegisterOptionName(ctx context.Context, name string) error {
	payload, err := json.Marshal(map[string]string{"option_name": name})
	if err != nil {
		return err
	}
	_, err = c.commerce.do(ctx, "register option name", request{
		method:      http.MethodPost,
		path:        "/variant-keys",
		body:        payload,
		contentType: "application/json",
	})
	return err
}

// RegisterOptionValue stores a new value for the option name
func (c *VocabularyClient) RegisterOptionValue(ctx context.Context, name, value string) error {
	payload, err := json.Marshal(map[string]string{"option_name": name, "option_value": value})
	if err != nil {
		return err
	}
	_, err = c.commerce.do(ctx, "register option value", request{
		method:      http.MethodPost,
		path:        "/variants-options/store",
		body:        payload,
		contentType: "application/json",
	})
	return err
}
