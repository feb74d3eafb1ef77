package models

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     Error  `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Field   string      `json:"field,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

// OpenSessionRequest starts a matrix edit session for a dialog.
type OpenSessionRequest struct {
	Mode      string `json:"mode" binding:"required"`
	ProductID *int64 `json:"productId,omitempty"`
}

// UpdateFieldsRequest sets top-level scalar product fields on a session.
type UpdateFieldsRequest struct {
	Fields map[string]string `json:"fields"`
	Remove []string          `json:"remove,omitempty"`
}

type SetOptionNameRequest struct {
	Name string `json:"name"`
}

type SetOptionValueRequest struct {
	Value string `json:"value"`
}

// VariantFields carries the scalar columns of a variant row. Nil fields are left untouched.
type VariantFields struct {
	Name       *string `json:"name,omitempty"`
	SKU        *string `json:"sku,omitempty"`
	Qty        *string `json:"qty,omitempty"`
	Price      *string `json:"price,omitempty"`
	RRP        *string `json:"rrp,omitempty"`
	StorePrice *string `json:"store_price,omitempty"`
}

// Apply copies the set fields onto row.
func (f VariantFields) Apply(row *VariantRow) {
	if f.Name != nil {
		row.Name = *f.Name
	}
	if f.SKU != nil {
		row.SKU = *f.SKU
	}
	if f.Qty != nil {
		row.Qty = *f.Qty
	}
	if f.Price != nil {
		row.Price = *f.Price
	}
	if f.RRP != nil {
		row.RRP = *f.RRP
	}
	if f.StorePrice != nil {
		row.StorePrice = *f.StorePrice
	}
}

type SetVariantOptionRequest struct {
	Name  string `json:"name" binding:"required"`
	Value string `json:"value"`
}

// OpenRegistrationRequest opens the "add new" sub-flow for an option name or value.
type OpenRegistrationRequest struct {
	Type         string `json:"type" binding:"required"`
	RowID        string `json:"rowId,omitempty"`
	VariantIndex *int   `json:"variantIndex,omitempty"`
	OptionName   string `json:"optionName,omitempty"`
}

type ConfirmRegistrationRequest struct {
	Input string `json:"input"`
}
