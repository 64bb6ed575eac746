package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/shopassist/internal/clock"
	"github.com/rl1809/shopassist/internal/core/domain"
	"github.com/rl1809/shopassist/internal/metrics"
	"github.com/rl1809/shopassist/internal/port"
)

// Offer is a bank discount the step dialogue can apply before payment.
type Offer struct {
	Code   string
	Label  string
	Amount decimal.Decimal
}

// CheckoutPolicy carries the knobs that differ between the two surfaces.
type CheckoutPolicy struct {
	Name               string
	MaxPaymentAttempts int
	Offers             []Offer
}

func AgentPolicy(maxAttempts int) CheckoutPolicy {
	return CheckoutPolicy{Name: "agent", MaxPaymentAttempts: maxAttempts}
}

func DialoguePolicy(maxAttempts int, offers []Offer) CheckoutPolicy {
	return CheckoutPolicy{Name: "dialogue", MaxPaymentAttempts: maxAttempts, Offers: offers}
}

// DefaultOffers is the stock bank offer table.
func DefaultOffers() []Offer {
	return []Offer{
		{Code: "1", Label: "HDFC Bank", Amount: decimal.NewFromInt(300)},
		{Code: "2", Label: "ICICI Bank", Amount: decimal.NewFromInt(250)},
		{Code: "3", Label: "SBI Bank", Amount: decimal.NewFromInt(200)},
	}
}

// Offer looks up an offer by code.
func (p CheckoutPolicy) Offer(code string) (Offer, bool) {
	for _, o := range p.Offers {
		if o.Code == code {
			return o, true
		}
	}
	return Offer{}, false
}

type Quote struct {
	Items    []domain.OrderItem
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

type CheckoutStatus string

const (
	StatusEmpty         CheckoutStatus = "empty"
	StatusPaid          CheckoutStatus = "paid"
	StatusDeclined      CheckoutStatus = "declined"
	StatusForcedInStore CheckoutStatus = "forced_in_store"
	StatusFailed        CheckoutStatus = "failed"
)

type CheckoutResult struct {
	Status      CheckoutStatus
	Order       *domain.Order
	Quote       Quote
	Attempt     int
	MaxAttempts int
	CanRetry    bool
	// Released holds the cart lines whose stock went back to the ledger.
	Released []domain.CartLine
	Err      error
}

type CheckoutOption func(*CheckoutService)

func WithCheckoutLogger(l *zap.Logger) CheckoutOption {
	return func(s *CheckoutService) { s.logger = l }
}

func WithCheckoutMetrics(m *metrics.Metrics) CheckoutOption {
	return func(s *CheckoutService) { s.metrics = m }
}

func WithCheckoutClock(c clock.Clock) CheckoutOption {
	return func(s *CheckoutService) { s.clock = c }
}

// WithOrderIDs replaces the default ORD00001 style sequence.
func WithOrderIDs(next func() string) CheckoutOption {
	return func(s *CheckoutService) { s.nextOrderID = next }
}

type CheckoutService struct {
	catalog     ProductLookup
	ledger      port.InventoryLedger
	orders      port.OrderRepository
	gateway     port.PaymentGateway
	logger      *zap.Logger
	metrics     *metrics.Metrics
	clock       clock.Clock
	nextOrderID func() string
}

// ProductLookup resolves product ids to catalog entries.
type ProductLookup interface {
	Get(id string) (domain.Product, bool)
}

func NewCheckoutService(catalog ProductLookup, ledger port.InventoryLedger, orders port.OrderRepository, gateway port.PaymentGateway, opts ...CheckoutOption) *CheckoutService {
	s := &CheckoutService{
		catalog: catalog,
		ledger:  ledger,
		orders:  orders,
		gateway: gateway,
		logger:  zap.NewNop(),
		clock:   clock.NewSystem(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.nextOrderID == nil {
		var seq atomic.Int64
		s.nextOrderID = func() string {
			return fmt.Sprintf("ORD%05d", seq.Add(1))
		}
	}
	return s
}

// Quote prices the cart from current catalog prices. The discount is capped
// at the subtotal.
func (s *CheckoutService) Quote(sess *domain.Session, discount decimal.Decimal) (Quote, error) {
	q := Quote{Items: make([]domain.OrderItem, 0, len(sess.Cart))}
	for _, line := range sess.Cart {
		p, ok := s.catalog.Get(line.ProductID)
		if !ok {
			return Quote{}, fmt.Errorf("%w: %s", ErrUnknownProduct, line.ProductID)
		}
		item := domain.OrderItem{
			ProductID: line.ProductID,
			Size:      line.Size,
			Quantity:  line.Quantity,
			Price:     p.Price,
		}
		q.Items = append(q.Items, item)
		q.Subtotal = q.Subtotal.Add(item.LineTotal())
	}

	if discount.IsNegative() {
		discount = decimal.Zero
	}
	q.Discount = decimal.Min(discount, q.Subtotal)
	q.Total = q.Subtotal.Sub(q.Discount)
	return q, nil
}

// Checkout charges the cart online. The caller must hold the session lock.
func (s *CheckoutService) Checkout(ctx context.Context, userID string, sess *domain.Session, policy CheckoutPolicy, discount decimal.Decimal) CheckoutResult {
	res := CheckoutResult{MaxAttempts: policy.MaxPaymentAttempts}
	if len(sess.Cart) == 0 {
		res.Status = StatusEmpty
		return res
	}

	q, err := s.Quote(sess, discount)
	if err != nil {
		return s.fail(ctx, sess, res, err)
	}
	res.Quote = q
	res.Attempt = sess.Attempts(policy.Name) + 1

	payment, err := s.gateway.Charge(ctx, port.PaymentRequest{
		SessionID: sess.ID,
		UserID:    userID,
		Amount:    q.Total,
		Attempt:   res.Attempt,
	})
	if err != nil {
		s.metrics.ObservePayment("error")
		return s.fail(ctx, sess, res, fmt.Errorf("charge: %w", err))
	}

	if !payment.Success {
		s.metrics.ObservePayment("declined")
		return s.decline(ctx, sess, policy, res)
	}
	s.metrics.ObservePayment("success")

	order := s.newOrder(userID, q, domain.FulfillmentOnline, domain.PaymentStatusPaid)
	order.TransactionID = payment.TransactionID

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		// payment went through but the order was not recorded
		if rerr := s.gateway.Refund(context.WithoutCancel(ctx), payment.TransactionID, q.Total); rerr != nil {
			s.logger.Error("refund failed",
				zap.String("session_id", sess.ID),
				zap.String("transaction_id", payment.TransactionID),
				zap.Error(rerr),
			)
		}
		return s.fail(ctx, sess, res, fmt.Errorf("persist order: %w", err))
	}

	s.finalize(sess, policy, &order)
	res.Status = StatusPaid
	res.Order = &order
	s.logger.Info("order placed",
		zap.String("session_id", sess.ID),
		zap.String("order_id", order.ID),
		zap.String("total", q.Total.String()),
	)
	return res
}

// Orders returns the orders placed by userID, oldest first. No history is an
// empty slice.
func (s *CheckoutService) Orders(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.orders.ListOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// PlaceInStore records the cart as an order to be paid at the store. The
// reservations are kept.
func (s *CheckoutService) PlaceInStore(ctx context.Context, userID string, sess *domain.Session, policy CheckoutPolicy, discount decimal.Decimal) CheckoutResult {
	res := CheckoutResult{}
	if len(sess.Cart) == 0 {
		res.Status = StatusEmpty
		return res
	}

	q, err := s.Quote(sess, discount)
	if err != nil {
		return s.fail(ctx, sess, res, err)
	}
	res.Quote = q

	order := s.newOrder(userID, q, domain.FulfillmentStore, domain.PaymentStatusPayAtStore)
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return s.fail(ctx, sess, res, fmt.Errorf("persist order: %w", err))
	}

	s.finalize(sess, policy, &order)
	res.Status = StatusPaid
	res.Order = &order
	s.logger.Info("store order placed",
		zap.String("session_id", sess.ID),
		zap.String("order_id", order.ID),
	)
	return res
}

func (s *CheckoutService) newOrder(userID string, q Quote, f domain.Fulfillment, ps domain.PaymentStatus) domain.Order {
	return domain.Order{
		ID:            s.nextOrderID(),
		UserID:        userID,
		Items:         q.Items,
		Subtotal:      q.Subtotal,
		Discount:      q.Discount,
		Total:         q.Total,
		Fulfillment:   f,
		PaymentStatus: ps,
		CreatedAt:     s.clock.Now(),
	}
}

func (s *CheckoutService) finalize(sess *domain.Session, policy CheckoutPolicy, order *domain.Order) {
	sess.ClearCart()
	sess.ResetAttempts(policy.Name)
	sess.AppendHistory(domain.RoleAssistant,
		fmt.Sprintf("Order %s placed. Total Rs%s", order.ID, order.Total.String()),
		s.clock.Now(),
	)
	s.metrics.ObserveOrder()
}

func (s *CheckoutService) decline(ctx context.Context, sess *domain.Session, policy CheckoutPolicy, res CheckoutResult) CheckoutResult {
	res.Released = s.rollback(ctx, sess)
	res.Attempt = sess.CountDecline(policy.Name)

	if res.Attempt < res.MaxAttempts {
		res.Status = StatusDeclined
		res.CanRetry = true
		return res
	}

	sess.ResetAttempts(policy.Name)
	res.Status = StatusForcedInStore
	s.logger.Info("payment attempts exhausted",
		zap.String("session_id", sess.ID),
		zap.Int("attempts", res.Attempt),
	)
	return res
}

func (s *CheckoutService) fail(ctx context.Context, sess *domain.Session, res CheckoutResult, err error) CheckoutResult {
	s.logger.Error("checkout failed", zap.String("session_id", sess.ID), zap.Error(err))
	res.Released = s.rollback(ctx, sess)
	res.Status = StatusFailed
	res.Err = err
	return res
}

// rollback empties the cart and returns its stock to the ledger.
func (s *CheckoutService) rollback(ctx context.Context, sess *domain.Session) []domain.CartLine {
	lines := sess.ClearCart()
	released, err := releaseLines(ctx, s.ledger, lines)
	if err != nil {
		s.logger.Error("release inventory failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
	return released
}
