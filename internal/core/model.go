package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementType classifies an inventory movement.
type MovementType string

const (
	MovementIn         MovementType = "in"         // replenishment, positive magnitude
	MovementOut        MovementType = "out"        // consumption, stored as a negative delta
	MovementAdjustment MovementType = "adjustment" // manual correction, caller-signed
)

// TransactionStatus is the lifecycle state of a sale transaction.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Reference types recorded on inventory movements. Purely descriptive; never
// enforced as foreign keys.
const (
	RefTransaction             = "transaction"
	RefTransactionCancellation = "transaction_cancellation"
	RefTransactionCompletion   = "transaction_completion"
	RefManual                  = "manual"
)

type Product struct {
	ID            int             `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// InventoryMovement is one immutable entry in the stock ledger. Quantity holds
// the signed delta actually applied to stock_quantity: positive for "in",
// negative for "out", caller-signed for "adjustment". Summing Quantity over a
// product's movements reproduces its stock drift since creation.
type InventoryMovement struct {
	ID            int          `json:"id"`
	ProductID     int          `json:"product_id"`
	ProductName   string       `json:"product_name,omitempty"` // joined from products in list queries
	MovementType  MovementType `json:"movement_type"`
	Quantity      int          `json:"quantity"`
	ReferenceType *string      `json:"reference_type,omitempty"`
	ReferenceID   *int         `json:"reference_id,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

type SaleTransaction struct {
	ID             int               `json:"id"`
	CustomerID     *int              `json:"customer_id,omitempty"`
	UserID         int               `json:"user_id"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
	FinalAmount    decimal.Decimal   `json:"final_amount"` // always total_amount - discount_amount
	Status         TransactionStatus `json:"status"`
	PaymentMethod  *string           `json:"payment_method,omitempty"`
	Notes          *string           `json:"notes,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Items          []TransactionItem `json:"items"`
}

type TransactionItem struct {
	ID            int             `json:"id"`
	TransactionID int             `json:"transaction_id"`
	ProductID     int             `json:"product_id"`
	ProductName   string          `json:"product_name"` // joined from products
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalPrice    decimal.Decimal `json:"total_price"` // = quantity × unit_price
}

// StockLevel is a read view of a product's current on-hand quantity.
type StockLevel struct {
	ProductID     int    `json:"product_id"`
	ProductName   string `json:"product_name"`
	StockQuantity int    `json:"stock_quantity"`
}

// MovementInput describes a ledger entry to record. Quantity follows the API
// sign convention: positive magnitude for "in" and "out" (out is negated
// internally), caller-signed for "adjustment".
type MovementInput struct {
	ProductID     int
	Type          MovementType
	Quantity      int
	ReferenceType *string
	ReferenceID   *int
	Notes         string
}

type TransactionItemInput struct {
	ProductID int             `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateTransactionInput carries everything needed to create a completed sale.
// TotalAmount is caller-supplied, not derived from the items; upstream callers
// may apply tax or rounding the item totals don't reflect.
type CreateTransactionInput struct {
	CustomerID     *int
	UserID         int
	Items          []TransactionItemInput
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	PaymentMethod  *string
	Notes          *string
}

// TransactionPatch is a partial update; nil fields are left unchanged.
type TransactionPatch struct {
	CustomerID     *int
	TotalAmount    *decimal.Decimal
	DiscountAmount *decimal.Decimal
	Status         *TransactionStatus
	PaymentMethod  *string
	Notes          *string
}

// MovementSort selects the ordering key for movement listings.
type MovementSort string

const (
	SortByCreatedAt MovementSort = "created_at"
	SortByQuantity  MovementSort = "quantity"
)

// MovementFilter narrows and orders movement listings. Zero Limit means no
// limit. SortBy defaults to SortByCreatedAt.
type MovementFilter struct {
	ProductID     *int
	Type          *MovementType
	From          *time.Time
	To            *time.Time
	ReferenceType *string
	ReferenceID   *int
	SortBy        MovementSort
	SortDesc      bool
	Limit         int
	Offset        int
}
