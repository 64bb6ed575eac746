package domain

import (
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type HistoryEntry struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"ts"`
}

type CartLine struct {
	ProductID string    `json:"product_id"`
	Size      Size      `json:"size"`
	Quantity  int       `json:"qty"`
	AddedAt   time.Time `json:"added_at"`
}

type DialogueStep string

const (
	StepAskProduct     DialogueStep = "ask_product"
	StepSelectProduct  DialogueStep = "select_product"
	StepSelectSize     DialogueStep = "select_size"
	StepCartDecision   DialogueStep = "cart_decision"
	StepRecommendation DialogueStep = "recommendation"
	StepShopMore       DialogueStep = "shop_more"
	StepApplyOffer     DialogueStep = "apply_offer"
	StepPayment        DialogueStep = "payment"
	StepPaymentRetry   DialogueStep = "payment_retry"
	StepSupport        DialogueStep = "support"
	StepCSAT           DialogueStep = "csat"
	StepEnd            DialogueStep = "end"
)

// FlowState carries the step dialogue's position and scratch values.
type FlowState struct {
	Step         DialogueStep    `json:"step"`
	Category     string          `json:"category,omitempty"`
	ProductID    string          `json:"product_id,omitempty"`
	Size         Size            `json:"size,omitempty"`
	Suggested    []string        `json:"suggested,omitempty"`
	OfferCode    string          `json:"offer_code,omitempty"`
	Discount     decimal.Decimal `json:"discount"`
	PendingLines []CartLine      `json:"pending_lines,omitempty"`
	Order        *Order          `json:"order,omitempty"`
	InStore      bool            `json:"in_store,omitempty"`
	Rating       int             `json:"rating,omitempty"`
}

// Session is the memory of one conversation. It is owned by the session
// store and must only be mutated while holding that session's lock.
type Session struct {
	ID              string         `json:"session_id"`
	History         []HistoryEntry `json:"history"`
	Cart            []CartLine     `json:"cart"`
	LastRecommended []string       `json:"last_recommended"`
	LastMentioned   string         `json:"last_mentioned,omitempty"`
	LastQuery       string         `json:"last_query,omitempty"`
	PaymentAttempts map[string]int `json:"payment_attempts,omitempty"`
	Flow            FlowState      `json:"flow"`
	CreatedAt       time.Time      `json:"created_at"`
}

func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Flow:      FlowState{Step: StepAskProduct},
		CreatedAt: now,
	}
}

func (s *Session) AppendHistory(role Role, text string, at time.Time) {
	s.History = append(s.History, HistoryEntry{Role: role, Text: text, Timestamp: at})
}

// ClearCart drops every cart line and returns what was removed.
func (s *Session) ClearCart() []CartLine {
	lines := s.Cart
	s.Cart = nil
	return lines
}

// Attempts is the number of declined payments counted against a checkout
// profile since its last resolution.
func (s *Session) Attempts(profile string) int {
	return s.PaymentAttempts[profile]
}

// CountDecline records one more declined payment for profile.
func (s *Session) CountDecline(profile string) int {
	if s.PaymentAttempts == nil {
		s.PaymentAttempts = make(map[string]int)
	}
	s.PaymentAttempts[profile]++
	return s.PaymentAttempts[profile]
}

func (s *Session) ResetAttempts(profile string) {
	delete(s.PaymentAttempts, profile)
}

// Clone returns a deep copy safe to hand out of the store.
func (s *Session) Clone() Session {
	c := *s
	c.History = append([]HistoryEntry(nil), s.History...)
	c.Cart = append([]CartLine(nil), s.Cart...)
	c.LastRecommended = append([]string(nil), s.LastRecommended...)
	c.PaymentAttempts = maps.Clone(s.PaymentAttempts)
	c.Flow.Suggested = append([]string(nil), s.Flow.Suggested...)
	c.Flow.PendingLines = append([]CartLine(nil), s.Flow.PendingLines...)
	if s.Flow.Order != nil {
		o := *s.Flow.Order
		o.Items = append([]OrderItem(nil), s.Flow.Order.Items...)
		c.Flow.Order = &o
	}
	return c
}
