package domain

import "github.com/shopspring/decimal"

type Outcome string

const (
	OutcomeOK                   Outcome = "ok"
	OutcomeAmbiguousReference   Outcome = "ambiguous_reference"
	OutcomeInventoryExhausted   Outcome = "inventory_exhausted"
	OutcomePaymentDeclined      Outcome = "payment_declined"
	OutcomePaymentForcedInStore Outcome = "payment_forced_in_store"
	OutcomeCartEmpty            Outcome = "cart_empty"
	OutcomeNotUnderstood        Outcome = "not_understood"
	OutcomeOrderFailed          Outcome = "order_failed"
	OutcomeInvalidInput         Outcome = "invalid_input"
	OutcomeInternalError        Outcome = "internal_error"
)

type ActionType string

const (
	ActionAddToCart         ActionType = "add_to_cart"
	ActionOrderPlaced       ActionType = "order_placed"
	ActionPaymentDeclined   ActionType = "payment_declined"
	ActionRedirectToStore   ActionType = "redirect_to_store"
	ActionInventoryReleased ActionType = "inventory_released"
)

// Action is a side effect the surrounding application may persist or relay.
type Action struct {
	Type      ActionType `json:"type"`
	ProductID string     `json:"product_id,omitempty"`
	Size      Size       `json:"size,omitempty"`
	Quantity  int        `json:"qty,omitempty"`
	OrderID   string     `json:"order_id,omitempty"`
	Attempt   int        `json:"attempt,omitempty"`
}

type ProductCard struct {
	ProductID string          `json:"pid"`
	Title     string          `json:"title"`
	Subtitle  string          `json:"subtitle"`
	Price     decimal.Decimal `json:"price"`
}

// UIPayload is the structured half of a reply. Fields are optional and only
// the ones relevant to the turn are set.
type UIPayload struct {
	Title       string           `json:"title,omitempty"`
	Subtitle    string           `json:"subtitle,omitempty"`
	Description string           `json:"description,omitempty"`
	Cards       []ProductCard    `json:"cards,omitempty"`
	Item        *CartLine        `json:"item,omitempty"`
	OrderID     string           `json:"order_id,omitempty"`
	Items       []OrderItem      `json:"items,omitempty"`
	Total       *decimal.Decimal `json:"total,omitempty"`
	Attempt     int              `json:"attempt,omitempty"`
	CanRetry    bool             `json:"can_retry,omitempty"`
}

type TurnResponse struct {
	Intent  Intent     `json:"intent"`
	Outcome Outcome    `json:"outcome"`
	Reply   string     `json:"reply"`
	UI      *UIPayload `json:"ui,omitempty"`
	Actions []Action   `json:"actions"`
}
