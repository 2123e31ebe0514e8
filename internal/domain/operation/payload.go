package operation

import (
	"encoding/json"
	"fmt"
	"time"
)

// Payload is the kind-specific data needed to rebuild the remote call.
// The set of implementations is closed to this package.
type Payload interface {
	Kind() Kind
	isPayload()
}

// CreateProduct adds a product to the merchant's inventory.
type CreateProduct struct {
	Name        string   `json:"name" validate:"required"`
	PriceNGN    float64  `json:"price_ngn" validate:"gte=0"`
	StockLevel  int      `json:"stock_level" validate:"gte=0"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	VoiceTags   []string `json:"voice_tags,omitempty"`
}

// UpdateProduct is a partial update: nil fields are left untouched remotely.
type UpdateProduct struct {
	ProductID   string    `json:"product_id" validate:"required"`
	Name        *string   `json:"name,omitempty"`
	PriceNGN    *float64  `json:"price_ngn,omitempty" validate:"omitempty,gte=0"`
	StockLevel  *int      `json:"stock_level,omitempty" validate:"omitempty,gte=0"`
	Description *string   `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	VoiceTags   *[]string `json:"voice_tags,omitempty"`
}

// Restock increments a product's stock level by Quantity.
type Restock struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type OrderItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// CreateOrder places an order on behalf of a customer (identified by phone number).
type CreateOrder struct {
	UserID string      `json:"user_id" validate:"required"`
	Items  []OrderItem `json:"items" validate:"required,min=1,dive"`
}

const ExpenseTypeBusiness = "BUSINESS"

// LogExpense records a business expense. Amount is in naira.
type LogExpense struct {
	Amount          float64    `json:"amount" validate:"gt=0"`
	Description     string     `json:"description" validate:"required"`
	Category        string     `json:"category" validate:"required"`
	ExpenseType     string     `json:"expense_type,omitempty"`
	Date            *time.Time `json:"date,omitempty"`
	ReceiptImageURL string     `json:"receipt_image_url,omitempty" validate:"omitempty,url"`
}

// Unknown holds a persisted payload whose kind this build does not recognise.
// Replaying it always fails, which lets it age out through the retry budget.
type Unknown struct {
	RawKind Kind
	Raw     json.RawMessage
}

func (CreateProduct) Kind() Kind { return KindCreateProduct }
func (UpdateProduct) Kind() Kind { return KindUpdateProduct }
func (Restock) Kind() Kind       { return KindRestock }
func (CreateOrder) Kind() Kind   { return KindCreateOrder }
func (LogExpense) Kind() Kind    { return KindLogExpense }
func (u Unknown) Kind() Kind     { return u.RawKind }

func (CreateProduct) isPayload() {}
func (UpdateProduct) isPayload() {}
func (Restock) isPayload()       {}
func (CreateOrder) isPayload()   {}
func (LogExpense) isPayload()    {}
func (Unknown) isPayload()       {}

// DecodePayload parses raw into the payload variant for kind.
// Unrecognised kinds yield Unknown rather than an error.
func DecodePayload(kind Kind, raw json.RawMessage) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch kind {
	case KindCreateProduct:
		var v CreateProduct
		err = unmarshalPayload(raw, &v)
		p = v
	case KindUpdateProduct:
		var v UpdateProduct
		err = unmarshalPayload(raw, &v)
		p = v
	case KindRestock:
		var v Restock
		err = unmarshalPayload(raw, &v)
		p = v
	case KindCreateOrder:
		var v CreateOrder
		err = unmarshalPayload(raw, &v)
		p = v
	case KindLogExpense:
		var v LogExpense
		err = unmarshalPayload(raw, &v)
		p = v
	default:
		return Unknown{RawKind: kind, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return p, nil
}

func unmarshalPayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func encodePayload(p Payload) (json.RawMessage, error) {
	if u, ok := p.(Unknown); ok {
		if len(u.Raw) == 0 {
			return json.RawMessage("null"), nil
		}
		return u.Raw, nil
	}
	return json.Marshal(p)
}
