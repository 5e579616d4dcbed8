package domain

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnsavedIDPrefix marks line items that were created in the editor and have
// never been persisted by the platform. Delete semantics depend on it: unsaved
// lines are removed immediately, persisted lines require confirmation.
const UnsavedIDPrefix = "unsaved_"

// Per-line validation messages. These are a fixed contract with the UI and
// must not be reworded.
const (
	MsgProductRequired   = "Product is required"
	MsgQtyRequired       = "Qty is required and it must be a positive number"
	MsgUnitPriceRequired = "Unit Price is required and it cannot be a negative amount"
)

// LineItem is one product row of an order draft.
type LineItem struct {
	// UniqueID is the platform record id for persisted lines, or a synthetic
	// "unsaved_"-prefixed id for lines created in the editor.
	UniqueID string `json:"unique_id"`

	// ProductID is the selected product reference; empty until chosen.
	ProductID string `json:"product_id,omitempty"`

	// Descriptive fields copied from the product on selection.
	Name        string `json:"name,omitempty"`
	ProductCode string `json:"product_code,omitempty"`
	ProductSKU  string `json:"product_sku,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Finish      string `json:"finish,omitempty"`
	IsActive    bool   `json:"is_active,omitempty"`

	Qty           int             `json:"qty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	HandlingPrice decimal.Decimal `json:"handling_price"`

	Depth        *float64 `json:"depth,omitempty"`
	Width        *float64 `json:"width,omitempty"`
	Height       *float64 `json:"height,omitempty"`
	DeliveryType string   `json:"delivery_type,omitempty"`

	// TotalPrice is derived: UnitPrice*Qty + HandlingPrice. Every mutation
	// recomputes it before the line is observable again.
	TotalPrice decimal.Decimal `json:"total_price"`

	// Editing state.
	IsDeleting   bool   `json:"is_deleting"`
	IsDisabled   bool   `json:"is_disabled"`
	IsValid      bool   `json:"is_valid"`
	ErrorMessage string `json:"error_message,omitempty"`

	// RequestedProductID tags an in-flight product selection. A resolution
	// result is merged only while the tag still matches the resolved id, so a
	// stale resolution can never clobber a newer selection.
	RequestedProductID string `json:"requested_product_id,omitempty"`
}

// NewLineItem creates an empty unsaved line with editor defaults.
func NewLineItem() LineItem {
	return LineItem{
		UniqueID:   UnsavedIDPrefix + uuid.New().String(),
		Qty:        1,
		UnitPrice:  decimal.Zero,
		TotalPrice: decimal.Zero,
		IsValid:    true,
	}
}

// IsNew reports whether the line has never been persisted by the platform.
func (li *LineItem) IsNew() bool {
	return strings.HasPrefix(li.UniqueID, UnsavedIDPrefix)
}

// Recalculate refreshes the derived total from the current price fields.
func (li *LineItem) Recalculate() {
	li.TotalPrice = li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Qty))).Add(li.HandlingPrice)
}

// Validate checks the line against the field rules and annotates it with the
// result. It returns true when the line is valid. Validation never blocks
// further edits; it only sets IsValid and ErrorMessage.
func (li *LineItem) Validate() bool {
	var issues []string

	if li.ProductID == "" {
		issues = append(issues, MsgProductRequired)
	}
	if li.Qty < 1 {
		issues = append(issues, MsgQtyRequired)
	}
	if li.UnitPrice.IsNegative() {
		issues = append(issues, MsgUnitPriceRequired)
	}

	if len(issues) > 0 {
		li.IsValid = false
		li.ErrorMessage = strings.Join(issues, "\n")
		return false
	}

	li.IsValid = true
	li.ErrorMessage = ""
	return true
}

// FieldEdits is a typed partial update for a line item. A nil field leaves the
// current value untouched.
type FieldEdits struct {
	Qty           *int             `json:"qty,omitempty"`
	UnitPrice     *decimal.Decimal `json:"unit_price,omitempty"`
	HandlingPrice *decimal.Decimal `json:"handling_price,omitempty"`
	Depth         *float64         `json:"depth,omitempty"`
	Width         *float64         `json:"width,omitempty"`
	Height        *float64         `json:"height,omitempty"`
	DeliveryType  *string          `json:"delivery_type,omitempty"`
}

// IsEmpty reports whether the edit carries no changes.
func (e FieldEdits) IsEmpty() bool {
	return e.Qty == nil && e.UnitPrice == nil && e.HandlingPrice == nil &&
		e.Depth == nil && e.Width == nil && e.Height == nil && e.DeliveryType == nil
}

// Apply merges the edits into the line and recomputes the derived total, so a
// consumer can never observe a stale TotalPrice.
func (e FieldEdits) Apply(li *LineItem) {
	if e.Qty != nil {
		li.Qty = *e.Qty
	}
	if e.UnitPrice != nil {
		li.UnitPrice = *e.UnitPrice
	}
	if e.HandlingPrice != nil {
		li.HandlingPrice = *e.HandlingPrice
	}
	if e.Depth != nil {
		li.Depth = e.Depth
	}
	if e.Width != nil {
		li.Width = e.Width
	}
	if e.Height != nil {
		li.Height = e.Height
	}
	if e.DeliveryType != nil {
		li.DeliveryType = *e.DeliveryType
	}
	li.Recalculate()
}

// ProductDetails holds the descriptive fields fetched from the platform's
// product catalog for a selected product.
type ProductDetails struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ProductCode string   `json:"product_code"`
	SKU         string   `json:"sku"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Depth       *float64 `json:"depth,omitempty"`
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	Finish      string   `json:"finish,omitempty"`
	IsActive    bool     `json:"is_active"`
}

// ApplyProduct merges the product's descriptive fields into the line, the same
// mapping the editor performs when a product is picked from the lookup.
func (li *LineItem) ApplyProduct(p ProductDetails) {
	li.ProductID = p.ID
	li.Name = p.Name
	li.ProductCode = p.ProductCode
	li.ProductSKU = p.SKU
	li.Description = p.Description
	li.Category = p.Category
	li.Depth = p.Depth
	li.Width = p.Width
	li.Height = p.Height
	li.Finish = p.Finish
	li.IsActive = p.IsActive
	li.Recalculate()
}

// ClearProduct removes the product reference from the line, used when the
// lookup selection is cleared.
func (li *LineItem) ClearProduct() {
	li.ProductID = ""
	li.RequestedProductID = ""
}
