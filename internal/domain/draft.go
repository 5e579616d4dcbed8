package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Draft status constants.
const (
	StatusEditing    = "editing"
	StatusSaving     = "saving"
	StatusSaved      = "saved"
	StatusSaveFailed = "save_failed"
	StatusDiscarded  = "discarded"
)

// Draft is the server-side editing session for one order's product lines. The
// draft is the single owner of the live line list; consumers only ever see
// immutable snapshots of it.
type Draft struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`

	Status string `json:"status"`

	Items []LineItem `json:"items"`

	// DeletedIDs holds the ids of persisted lines the user confirmed for
	// removal; they are deleted by the platform on the next save.
	DeletedIDs []string `json:"deleted_ids"`

	Discounts decimal.Decimal `json:"discounts"`

	// Dirty is set on every mutation and reports unsaved changes.
	Dirty bool `json:"dirty"`

	// Version supports optimistic concurrency on the draft store.
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidStatuses returns all valid draft statuses.
func ValidStatuses() []string {
	return []string{
		StatusEditing,
		StatusSaving,
		StatusSaved,
		StatusSaveFailed,
		StatusDiscarded,
	}
}

// AllowedTransitions defines which status transitions are valid. Saved and
// discarded are terminal.
func AllowedTransitions() map[string][]string {
	return map[string][]string{
		StatusEditing:    {StatusSaving, StatusDiscarded},
		StatusSaving:     {StatusSaved, StatusSaveFailed},
		StatusSaveFailed: {StatusSaving, StatusEditing, StatusDiscarded},
		StatusSaved:      {},
		StatusDiscarded:  {},
	}
}

// CanTransitionTo checks if the draft can transition to the target status.
func (d *Draft) CanTransitionTo(target string) bool {
	allowed, ok := AllowedTransitions()[d.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// TransitionTo moves the draft to the target status. Re-asserting the current
// status is a no-op; any other move must be an allowed transition.
func (d *Draft) TransitionTo(target string) error {
	if target == d.Status {
		return nil
	}
	if !d.CanTransitionTo(target) {
		return fmt.Errorf("cannot transition draft from %s to %s", d.Status, target)
	}
	d.Status = target
	return nil
}

// IsTerminal reports whether the draft reached a final state.
func (d *Draft) IsTerminal() bool {
	return d.Status == StatusSaved || d.Status == StatusDiscarded
}

// Editable reports whether line mutations are currently allowed.
func (d *Draft) Editable() bool {
	return d.Status == StatusEditing || d.Status == StatusSaveFailed
}

// Title is the screen heading derived from the order header.
func (d *Draft) Title() string {
	return fmt.Sprintf("Order #%s's Products", d.OrderNumber)
}

// ItemIndexValid reports whether idx addresses an existing line.
func (d *Draft) ItemIndexValid(idx int) bool {
	return idx >= 0 && idx < len(d.Items)
}

// ValidateItems runs per-line validation, annotating each line, and returns
// true only when every line is valid.
func (d *Draft) ValidateItems() bool {
	all := true
	for i := range d.Items {
		if !d.Items[i].Validate() {
			all = false
		}
	}
	return all
}

// Snapshot is an immutable copy of the full draft state broadcast to
// consumers after every mutation. Mutating a snapshot never affects the draft.
type Snapshot struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	Title       string `json:"title"`

	Status string `json:"status"`
	Dirty  bool   `json:"dirty"`

	Items      []LineItem `json:"items"`
	DeletedIDs []string   `json:"deleted_ids"`

	Totals Totals `json:"totals"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot builds an immutable copy of the draft with freshly computed totals.
func (d *Draft) Snapshot() Snapshot {
	items := make([]LineItem, len(d.Items))
	copy(items, d.Items)

	deleted := make([]string, len(d.DeletedIDs))
	copy(deleted, d.DeletedIDs)

	return Snapshot{
		OrderID:     d.OrderID,
		OrderNumber: d.OrderNumber,
		AccountID:   d.AccountID,
		AccountName: d.AccountName,
		Title:       d.Title(),
		Status:      d.Status,
		Dirty:       d.Dirty,
		Items:       items,
		DeletedIDs:  deleted,
		Totals:      CalculateTotals(d.Items, d.Discounts),
		UpdatedAt:   d.UpdatedAt,
	}
}
