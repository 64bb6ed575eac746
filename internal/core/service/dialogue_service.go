package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/shopassist/internal/clock"
	"github.com/rl1809/shopassist/internal/core/domain"
	"github.com/rl1809/shopassist/internal/core/resolver"
	"github.com/rl1809/shopassist/internal/core/session"
	"github.com/rl1809/shopassist/internal/core/tokenize"
	"github.com/rl1809/shopassist/internal/metrics"
	"github.com/rl1809/shopassist/internal/port"
)

const recommendLimit = 2

// defaultAvgPrice stands in for the cart's average price when it is empty.
var defaultAvgPrice = decimal.NewFromInt(2000)

// complementary lists the categories suggested after adding an item.
var complementary = map[string][]string{
	"shirts":     {"pants"},
	"pants":      {"shirts"},
	"ethnic":     {"ethnic"},
	"athleisure": {"athleisure"},
}

var (
	yesWords = map[string]bool{"yes": true, "y": true, "yeah": true, "yep": true, "sure": true, "ok": true, "okay": true}
	noWords  = map[string]bool{"no": true, "n": true, "nope": true, "nah": true}
)

type DialogueReply struct {
	Step    domain.DialogueStep `json:"step"`
	Reply   string              `json:"reply"`
	Actions []domain.Action     `json:"actions"`
}

type DialogueOption func(*DialogueService)

func WithDialogueLogger(l *zap.Logger) DialogueOption {
	return func(s *DialogueService) { s.logger = l }
}

func WithDialogueMetrics(m *metrics.Metrics) DialogueOption {
	return func(s *DialogueService) { s.metrics = m }
}

func WithDialogueClock(c clock.Clock) DialogueOption {
	return func(s *DialogueService) { s.clock = c }
}

func WithDialoguePublisher(p port.EventPublisher) DialogueOption {
	return func(s *DialogueService) { s.publisher = p }
}

// WithInvoiceIDs replaces the random 8 character invoice id.
func WithInvoiceIDs(next func() string) DialogueOption {
	return func(s *DialogueService) { s.nextInvoiceID = next }
}

// DialogueService walks a customer through a fixed sequence of named steps,
// from picking a category to rating the experience.
type DialogueService struct {
	catalog       Catalog
	ledger        port.InventoryLedger
	sessions      *session.Store
	checkout      *CheckoutService
	resolver      *resolver.Resolver
	policy        CheckoutPolicy
	publisher     port.EventPublisher
	logger        *zap.Logger
	metrics       *metrics.Metrics
	clock         clock.Clock
	nextInvoiceID func() string
}

func NewDialogueService(c Catalog, ledger port.InventoryLedger, sessions *session.Store, checkout *CheckoutService, policy CheckoutPolicy, opts ...DialogueOption) *DialogueService {
	s := &DialogueService{
		catalog:   c,
		ledger:    ledger,
		sessions:  sessions,
		checkout:  checkout,
		resolver:  resolver.New(c),
		policy:    policy,
		publisher: port.NopPublisher{},
		logger:    zap.NewNop(),
		clock:     clock.NewSystem(),
		nextInvoiceID: func() string {
			return uuid.NewString()[:8]
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type stepHandler func(s *DialogueService, ctx context.Context, userID string, sess *domain.Session, text string) DialogueReply

var stepHandlers map[domain.DialogueStep]stepHandler

func init() {
	stepHandlers = map[domain.DialogueStep]stepHandler{
		domain.StepAskProduct:     (*DialogueService).askProduct,
		domain.StepSelectProduct:  (*DialogueService).selectProduct,
		domain.StepSelectSize:     (*DialogueService).selectSize,
		domain.StepCartDecision:   (*DialogueService).cartDecision,
		domain.StepRecommendation: (*DialogueService).recommendation,
		domain.StepShopMore:       (*DialogueService).shopMore,
		domain.StepApplyOffer:     (*DialogueService).applyOffer,
		domain.StepPayment:        (*DialogueService).payment,
		domain.StepPaymentRetry:   (*DialogueService).paymentRetry,
		domain.StepSupport:        (*DialogueService).support,
		domain.StepCSAT:           (*DialogueService).csat,
		domain.StepEnd:            (*DialogueService).restart,
	}
}

// HandleMessage advances the session's dialogue by one user message.
func (s *DialogueService) HandleMessage(ctx context.Context, sessionID, userID, text string) DialogueReply {
	var reply DialogueReply
	s.sessions.Do(sessionID, func(sess *domain.Session) {
		sess.AppendHistory(domain.RoleUser, text, s.clock.Now())

		handler, ok := stepHandlers[sess.Flow.Step]
		if !ok {
			handler = (*DialogueService).restart
		}
		reply = handler(s, ctx, userID, sess, text)
		sess.Flow.Step = reply.Step

		sess.AppendHistory(domain.RoleAssistant, reply.Reply, s.clock.Now())
	})

	if reply.Actions == nil {
		reply.Actions = []domain.Action{}
	}
	if len(reply.Actions) > 0 {
		if err := s.publisher.Publish(ctx, sessionID, reply.Actions); err != nil {
			s.logger.Warn("publish actions failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	s.metrics.ObserveTurn("dialogue", string(reply.Step))
	s.metrics.SetSessions(s.sessions.Len())
	return reply
}

func (s *DialogueService) askProduct(ctx context.Context, _ string, sess *domain.Session, text string) DialogueReply {
	folded := tokenize.Fold(text)
	for _, cat := range s.catalog.Categories() {
		if !strings.Contains(folded, cat) && !strings.Contains(folded, strings.TrimSuffix(cat, "s")) {
			continue
		}
		return s.listCategory(ctx, sess, cat)
	}

	return DialogueReply{
		Step:  domain.StepAskProduct,
		Reply: fmt.Sprintf("What are you shopping for? (%s)", strings.Join(s.catalog.Categories(), " / ")),
	}
}

func (s *DialogueService) listCategory(ctx context.Context, sess *domain.Session, cat string) DialogueReply {
	var ids []string
	var b strings.Builder
	fmt.Fprintf(&b, "Available %s:\n", cat)
	for _, p := range s.catalog.ByCategory(cat) {
		if !s.inStock(ctx, p.ID) {
			continue
		}
		ids = append(ids, p.ID)
		fmt.Fprintf(&b, "%d. %s (%s) Rs%s\n", len(ids), p.Title, p.ID, p.Price.String())
	}

	if len(ids) == 0 {
		return DialogueReply{
			Step:  domain.StepAskProduct,
			Reply: fmt.Sprintf("Sorry, all %s are sold out right now. What else are you shopping for?", cat),
		}
	}

	sess.Flow.Category = cat
	sess.Flow.Suggested = ids
	sess.LastRecommended = ids
	b.WriteString("\nWhich one would you like?")
	return DialogueReply{Step: domain.StepSelectProduct, Reply: b.String()}
}

func (s *DialogueService) selectProduct(_ context.Context, _ string, sess *domain.Session, text string) DialogueReply {
	pid, ok := s.matchListed(text, sess.Flow.Suggested)
	if !ok {
		return DialogueReply{
			Step:  domain.StepSelectProduct,
			Reply: "Please pick one of the listed items by name, id or number.",
		}
	}

	sess.Flow.ProductID = pid
	sess.LastMentioned = pid
	return DialogueReply{Step: domain.StepSelectSize, Reply: "Select size: S / M / L / XL"}
}

// matchListed finds the listed product a message names by title, then by
// id, ordinal or pronoun.
func (s *DialogueService) matchListed(text string, listed []string) (string, bool) {
	folded := strings.TrimSpace(tokenize.Fold(text))
	for _, id := range listed {
		p, ok := s.catalog.Get(id)
		if ok && folded != "" && strings.Contains(folded, tokenize.Fold(p.Title)) {
			return id, true
		}
	}

	if n, err := strconv.Atoi(folded); err == nil && n >= 1 && n <= len(listed) {
		return listed[n-1], true
	}

	pid, ok := s.resolver.ResolveAmong(text, listed)
	if !ok {
		return "", false
	}
	for _, id := range listed {
		if id == pid {
			return pid, true
		}
	}
	return "", false
}

func (s *DialogueService) selectSize(_ context.Context, _ string, sess *domain.Session, text string) DialogueReply {
	size, ok := domain.NormalizeSize(text)
	if !ok {
		size, ok = resolver.ParseSize(text)
	}
	if !ok {
		return DialogueReply{Step: domain.StepSelectSize, Reply: "Please choose a size: S / M / L / XL"}
	}

	sess.Flow.Size = size
	return DialogueReply{
		Step:  domain.StepCartDecision,
		Reply: fmt.Sprintf("Add %s (size %s) to cart? (yes / no)", s.title(sess.Flow.ProductID), size),
	}
}

func (s *DialogueService) cartDecision(ctx context.Context, _ string, sess *domain.Session, text string) DialogueReply {
	switch {
	case isNo(text):
		return DialogueReply{Step: domain.StepAskProduct, Reply: "Okay. What else would you like to shop for?"}
	case !isYes(text):
		return DialogueReply{Step: domain.StepCartDecision, Reply: "Please answer yes or no."}
	}

	pid := sess.Flow.ProductID
	line, err := addToCart(ctx, s.ledger, sess, pid, sess.Flow.Size, 1, s.clock.Now())
	if errors.Is(err, ErrInventoryExhausted) {
		s.metrics.ObserveReservation("exhausted")
		return DialogueReply{
			Step:  domain.StepAskProduct,
			Reply: fmt.Sprintf("Sorry, %s is out of stock in every size. What else would you like to shop for?", s.title(pid)),
		}
	}
	if err != nil {
		s.metrics.ObserveReservation("error")
		s.logger.Error("add to cart failed", zap.String("session_id", sess.ID), zap.String("product_id", pid), zap.Error(err))
		return DialogueReply{Step: domain.StepCartDecision, Reply: "Something went wrong on our side. Add to cart? (yes / no)"}
	}
	s.metrics.ObserveReservation("reserved")

	var b strings.Builder
	b.WriteString("Item added to cart.")
	if line.Size != sess.Flow.Size {
		fmt.Fprintf(&b, " Size %s was unavailable, so we reserved size %s.", sess.Flow.Size, line.Size)
	}
	actions := []domain.Action{addAction(line)}

	recs := s.recommend(ctx, sess)
	if len(recs) == 0 {
		b.WriteString("\nShop more? (yes / no)")
		return DialogueReply{Step: domain.StepShopMore, Reply: b.String(), Actions: actions}
	}

	sess.Flow.Suggested = recs
	b.WriteString("\n\nRecommended for you:\n")
	for i, id := range recs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.title(id))
	}
	b.WriteString("\nAdd a recommended item? (yes / no)")
	return DialogueReply{Step: domain.StepRecommendation, Reply: b.String(), Actions: actions}
}

func (s *DialogueService) recommendation(ctx context.Context, _ string, sess *domain.Session, text string) DialogueReply {
	if !isYes(text) || len(sess.Flow.Suggested) == 0 {
		return DialogueReply{Step: domain.StepShopMore, Reply: "No problem. Shop more? (yes / no)"}
	}

	pid := sess.Flow.Suggested[0]
	line, err := addToCart(ctx, s.ledger, sess, pid, domain.DefaultSize, 1, s.clock.Now())
	if err != nil {
		s.metrics.ObserveReservation("exhausted")
		if !errors.Is(err, ErrInventoryExhausted) {
			s.logger.Error("add recommendation failed", zap.String("product_id", pid), zap.Error(err))
		}
		return DialogueReply{
			Step:  domain.StepShopMore,
			Reply: fmt.Sprintf("Sorry, %s just sold out. Shop more? (yes / no)", s.title(pid)),
		}
	}
	s.metrics.ObserveReservation("reserved")

	return DialogueReply{
		Step:    domain.StepShopMore,
		Reply:   fmt.Sprintf("%s (size %s) added. Shop more? (yes / no)", s.title(pid), line.Size),
		Actions: []domain.Action{addAction(line)},
	}
}

// recommend suggests in-stock complementary products nearest in price to
// the cart's average unit price.
func (s *DialogueService) recommend(ctx context.Context, sess *domain.Session) []string {
	inCart := make(map[string]bool, len(sess.Cart))
	sum := decimal.Zero
	for _, l := range sess.Cart {
		inCart[l.ProductID] = true
		if p, ok := s.catalog.Get(l.ProductID); ok {
			sum = sum.Add(p.Price)
		}
	}
	avg := defaultAvgPrice
	if len(sess.Cart) > 0 {
		avg = sum.Div(decimal.NewFromInt(int64(len(sess.Cart))))
	}

	cats, ok := complementary[sess.Flow.Category]
	if !ok {
		cats = []string{sess.Flow.Category}
	}

	type candidate struct {
		id    string
		score float64
	}
	var candidates []candidate
	for _, cat := range cats {
		for _, p := range s.catalog.ByCategory(cat) {
			if inCart[p.ID] || !s.inStock(ctx, p.ID) {
				continue
			}
			diff, _ := p.Price.Sub(avg).Abs().Float64()
			candidates = append(candidates, candidate{id: p.ID, score: 1 / (1 + diff)})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > recommendLimit {
		candidates = candidates[:recommendLimit]
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	return ids
}

func (s *DialogueService) shopMore(_ context.Context, _ string, sess *domain.Session, text string) DialogueReply {
	if isYes(text) {
		return DialogueReply{Step: domain.StepAskProduct, Reply: "What would you like next?"}
	}
	if len(sess.Cart) == 0 {
		return DialogueReply{Step: domain.StepAskProduct, Reply: "Your cart is empty. What are you shopping for?"}
	}

	q, err := s.checkout.Quote(sess, decimal.Zero)
	if err != nil {
		s.logger.Error("quote failed", zap.String("session_id", sess.ID), zap.Error(err))
		return DialogueReply{Step: domain.StepShopMore, Reply: "Something went wrong on our side. Shop more? (yes / no)"}
	}

	var b strings.Builder
	b.WriteString("CART SUMMARY:\n")
	for _, item := range q.Items {
		fmt.Fprintf(&b, "%s (Size %s) x%d - Rs%s\n", s.title(item.ProductID), item.Size, item.Quantity, item.LineTotal().String())
	}
	fmt.Fprintf(&b, "\nSubtotal: Rs%s\n", q.Subtotal.String())

	if len(s.policy.Offers) == 0 {
		sess.Flow.Discount = decimal.Zero
		fmt.Fprintf(&b, "\nFinal amount: Rs%s\nBuy online or store?", q.Total.String())
		return DialogueReply{Step: domain.StepPayment, Reply: b.String()}
	}

	b.WriteString("\nOffers:\n")
	for _, o := range s.policy.Offers {
		fmt.Fprintf(&b, "%s) %s Rs%s\n", o.Code, o.Label, o.Amount.String())
	}
	b.WriteString("Choose offer:")
	return DialogueReply{Step: domain.StepApplyOffer, Reply: b.String()}
}

func (s *DialogueService) applyOffer(_ context.Context, _ string, sess *domain.Session, text string) DialogueReply {
	code := strings.TrimSpace(text)
	discount := decimal.Zero
	if o, ok := s.policy.Offer(code); ok {
		discount = o.Amount
		sess.Flow.OfferCode = o.Code
	}

	q, err := s.checkout.Quote(sess, discount)
	if err != nil {
		s.logger.Error("quote failed", zap.String("session_id", sess.ID), zap.Error(err))
		return DialogueReply{Step: domain.StepApplyOffer, Reply: "Something went wrong on our side. Choose offer:"}
	}
	sess.Flow.Discount = q.Discount

	return DialogueReply{
		Step:  domain.StepPayment,
		Reply: fmt.Sprintf("Final amount: Rs%s\nBuy online or store?", q.Total.String()),
	}
}

func (s *DialogueService) payment(ctx context.Context, userID string, sess *domain.Session, text string) DialogueReply {
	if containsWord(text, "store") {
		res := s.checkout.PlaceInStore(ctx, userID, sess, s.policy, sess.Flow.Discount)
		switch res.Status {
		case StatusPaid:
			sess.Flow.Order = res.Order
			sess.Flow.InStore = true
			return DialogueReply{
				Step:    domain.StepSupport,
				Reply:   fmt.Sprintf("Order %s is reserved for you. Please complete payment at the nearest store.", res.Order.ID),
				Actions: []domain.Action{{Type: domain.ActionOrderPlaced, OrderID: res.Order.ID}},
			}
		case StatusEmpty:
			return DialogueReply{Step: domain.StepAskProduct, Reply: "Your cart is empty. What are you shopping for?"}
		default:
			return s.orderFailed(sess, res)
		}
	}
	return s.payOnline(ctx, userID, sess)
}

func (s *DialogueService) payOnline(ctx context.Context, userID string, sess *domain.Session) DialogueReply {
	res := s.checkout.Checkout(ctx, userID, sess, s.policy, sess.Flow.Discount)

	switch res.Status {
	case StatusPaid:
		sess.Flow.Order = res.Order
		sess.Flow.PendingLines = nil
		return DialogueReply{
			Step:    domain.StepSupport,
			Reply:   fmt.Sprintf("Payment successful! Order %s placed. Delivery in 3-5 days.", res.Order.ID),
			Actions: []domain.Action{{Type: domain.ActionOrderPlaced, OrderID: res.Order.ID}},
		}

	case StatusDeclined:
		sess.Flow.PendingLines = res.Released
		actions := append([]domain.Action{{Type: domain.ActionPaymentDeclined, Attempt: res.Attempt}}, releasedActions(res.Released)...)
		return DialogueReply{
			Step:    domain.StepPaymentRetry,
			Reply:   "Payment failed. Your items have been released. Retry? (yes / no)",
			Actions: actions,
		}

	case StatusForcedInStore:
		sess.Flow.PendingLines = nil
		sess.Flow.InStore = true
		actions := []domain.Action{
			{Type: domain.ActionPaymentDeclined, Attempt: res.Attempt},
			{Type: domain.ActionRedirectToStore},
		}
		return DialogueReply{
			Step:    domain.StepSupport,
			Reply:   fmt.Sprintf("Payment failed %s. Please pay at store.", times(res.Attempt)),
			Actions: append(actions, releasedActions(res.Released)...),
		}

	case StatusEmpty:
		return DialogueReply{Step: domain.StepAskProduct, Reply: "Your cart is empty. What are you shopping for?"}

	default:
		return s.orderFailed(sess, res)
	}
}

func (s *DialogueService) paymentRetry(ctx context.Context, userID string, sess *domain.Session, text string) DialogueReply {
	switch {
	case isNo(text):
		sess.Flow.PendingLines = nil
		sess.Flow.InStore = true
		sess.ResetAttempts(s.policy.Name)
		return DialogueReply{
			Step:    domain.StepSupport,
			Reply:   "Okay. Please complete your purchase at the nearest store.",
			Actions: []domain.Action{{Type: domain.ActionRedirectToStore}},
		}
	case !isYes(text):
		return DialogueReply{Step: domain.StepPaymentRetry, Reply: "Please answer yes or no."}
	}

	lines := sess.Flow.PendingLines
	if err := reserveLines(ctx, s.ledger, lines); err != nil {
		if !errors.Is(err, ErrInventoryExhausted) {
			s.logger.Error("re-reserve failed", zap.String("session_id", sess.ID), zap.Error(err))
		}
		sess.Flow.PendingLines = nil
		sess.ResetAttempts(s.policy.Name)
		return DialogueReply{
			Step:  domain.StepAskProduct,
			Reply: "Sorry, some of your items sold out in the meantime. What would you like to shop for?",
		}
	}

	sess.Cart = append([]domain.CartLine(nil), lines...)
	sess.Flow.PendingLines = nil
	return s.payOnline(ctx, userID, sess)
}

func (s *DialogueService) orderFailed(sess *domain.Session, res CheckoutResult) DialogueReply {
	sess.Flow = domain.FlowState{Step: domain.StepAskProduct}
	return DialogueReply{
		Step:    domain.StepAskProduct,
		Reply:   "We couldn't complete your order and your cart has been cleared. What would you like to shop for?",
		Actions: releasedActions(res.Released),
	}
}

func (s *DialogueService) support(_ context.Context, _ string, sess *domain.Session, _ string) DialogueReply {
	const ask = "Please rate your experience (1-5):"

	order := sess.Flow.Order
	if order == nil {
		return DialogueReply{
			Step:  domain.StepCSAT,
			Reply: "Thanks for shopping with us. Please visit your nearest store to complete your purchase.\n\n" + ask,
		}
	}

	invoice := RenderInvoice(s.nextInvoiceID(), *order, s.title, s.clock.Now())
	return DialogueReply{
		Step:  domain.StepCSAT,
		Reply: "Order completed successfully!\n\nINVOICE:\n" + invoice + "\n\n" + ask,
	}
}

func (s *DialogueService) csat(_ context.Context, _ string, sess *domain.Session, text string) DialogueReply {
	rating, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || rating < 1 || rating > 5 {
		return DialogueReply{Step: domain.StepCSAT, Reply: "Please rate from 1 to 5."}
	}

	sess.Flow.Rating = rating
	s.logger.Info("csat recorded", zap.String("session_id", sess.ID), zap.Int("rating", rating))
	return DialogueReply{
		Step:  domain.StepEnd,
		Reply: fmt.Sprintf("Thank you for your %d-star rating! Have a great day!", rating),
	}
}

// restart begins a new flow and treats the message as its first answer.
func (s *DialogueService) restart(ctx context.Context, userID string, sess *domain.Session, text string) DialogueReply {
	sess.Flow = domain.FlowState{Step: domain.StepAskProduct}
	return s.askProduct(ctx, userID, sess, text)
}

func (s *DialogueService) inStock(ctx context.Context, productID string) bool {
	stock, err := s.ledger.Stock(ctx, productID)
	if err != nil {
		s.logger.Warn("stock lookup failed", zap.String("product_id", productID), zap.Error(err))
		return false
	}
	for _, n := range stock {
		if n > 0 {
			return true
		}
	}
	return false
}

func (s *DialogueService) title(id string) string {
	if p, ok := s.catalog.Get(id); ok {
		return p.Title
	}
	return id
}

func addAction(l domain.CartLine) domain.Action {
	return domain.Action{
		Type:      domain.ActionAddToCart,
		ProductID: l.ProductID,
		Size:      l.Size,
		Quantity:  l.Quantity,
	}
}

func isYes(text string) bool {
	words := tokenize.Words(text)
	return len(words) > 0 && yesWords[words[0]]
}

func isNo(text string) bool {
	words := tokenize.Words(text)
	return len(words) > 0 && noWords[words[0]]
}

func containsWord(text, word string) bool {
	for _, w := range tokenize.Words(text) {
		if w == word {
			return true
		}
	}
	return false
}
