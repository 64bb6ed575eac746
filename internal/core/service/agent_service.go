package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/shopassist/internal/clock"
	"github.com/rl1809/shopassist/internal/core/catalog"
	"github.com/rl1809/shopassist/internal/core/domain"
	"github.com/rl1809/shopassist/internal/core/intent"
	"github.com/rl1809/shopassist/internal/core/resolver"
	"github.com/rl1809/shopassist/internal/core/session"
	"github.com/rl1809/shopassist/internal/metrics"
	"github.com/rl1809/shopassist/internal/port"
)

const defaultSearchK = 3

// Catalog is what the conversational surfaces read from the catalog index.
type Catalog interface {
	resolver.Catalog
	ByCategory(category string) []domain.Product
	Categories() []string
}

type AgentOption func(*AgentService)

func WithAgentLogger(l *zap.Logger) AgentOption {
	return func(s *AgentService) { s.logger = l }
}

func WithAgentMetrics(m *metrics.Metrics) AgentOption {
	return func(s *AgentService) { s.metrics = m }
}

func WithAgentClock(c clock.Clock) AgentOption {
	return func(s *AgentService) { s.clock = c }
}

func WithPublisher(p port.EventPublisher) AgentOption {
	return func(s *AgentService) { s.publisher = p }
}

func WithPhraseGenerator(g port.PhraseGenerator) AgentOption {
	return func(s *AgentService) { s.phrases = g }
}

// WithSearchK sets how many products a browse turn recommends.
func WithSearchK(k int) AgentOption {
	return func(s *AgentService) { s.searchK = k }
}

// AgentService handles free-text turns: it classifies each utterance and
// routes it to search, details, inventory, cart or checkout.
type AgentService struct {
	catalog   Catalog
	ledger    port.InventoryLedger
	sessions  *session.Store
	checkout  *CheckoutService
	resolver  *resolver.Resolver
	policy    CheckoutPolicy
	publisher port.EventPublisher
	phrases   port.PhraseGenerator
	logger    *zap.Logger
	metrics   *metrics.Metrics
	clock     clock.Clock
	searchK   int
}

func NewAgentService(c Catalog, ledger port.InventoryLedger, sessions *session.Store, checkout *CheckoutService, policy CheckoutPolicy, opts ...AgentOption) *AgentService {
	s := &AgentService{
		catalog:   c,
		ledger:    ledger,
		sessions:  sessions,
		checkout:  checkout,
		resolver:  resolver.New(c),
		policy:    policy,
		publisher: port.NopPublisher{},
		logger:    zap.NewNop(),
		clock:     clock.NewSystem(),
		searchK:   defaultSearchK,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.searchK <= 0 {
		s.searchK = defaultSearchK
	}
	return s
}

// turn is a reply under construction. history overrides the reply text in
// the session log; recorded means the log entry was already written.
type turn struct {
	resp     domain.TurnResponse
	facts    map[string]string
	history  string
	recorded bool
}

// HandleTurn processes one user utterance. Turns for the same session run
// one at a time. Failures are reported through the response outcome.
func (s *AgentService) HandleTurn(ctx context.Context, sessionID, userID, utterance string) domain.TurnResponse {
	var t turn
	s.sessions.Do(sessionID, func(sess *domain.Session) {
		sess.AppendHistory(domain.RoleUser, utterance, s.clock.Now())
		t = s.route(ctx, userID, sess, utterance)
		if !t.recorded {
			entry := t.history
			if entry == "" {
				entry = t.resp.Reply
			}
			sess.AppendHistory(domain.RoleAssistant, entry, s.clock.Now())
		}
	})

	resp := t.resp
	if resp.Actions == nil {
		resp.Actions = []domain.Action{}
	}
	resp.Reply = s.phrase(ctx, resp.Intent, resp.Reply, t.facts)

	if len(resp.Actions) > 0 {
		if err := s.publisher.Publish(ctx, sessionID, resp.Actions); err != nil {
			s.logger.Warn("publish actions failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	s.metrics.ObserveTurn(string(resp.Intent), string(resp.Outcome))
	s.metrics.SetSessions(s.sessions.Len())
	s.logger.Debug("turn handled",
		zap.String("session_id", sessionID),
		zap.String("intent", string(resp.Intent)),
		zap.String("outcome", string(resp.Outcome)),
	)
	return resp
}

// Orders lists the user's order history.
func (s *AgentService) Orders(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.checkout.Orders(ctx, userID)
}

// Recommend ranks catalog products for a query.
func (s *AgentService) Recommend(ctx context.Context, query string, k int) []catalog.Hit {
	if k <= 0 {
		k = s.searchK
	}
	return s.catalog.Search(ctx, query, k)
}

// Session returns a snapshot of a session that has already been created.
func (s *AgentService) Session(id string) (domain.Session, bool) {
	if !s.sessions.Exists(id) {
		return domain.Session{}, false
	}
	return s.sessions.GetOrCreate(id), true
}

func (s *AgentService) route(ctx context.Context, userID string, sess *domain.Session, utterance string) turn {
	in := intent.Classify(utterance)

	var t turn
	switch in {
	case domain.IntentBrowse:
		t = s.browse(ctx, sess, utterance)
	case domain.IntentProductDetails:
		t = s.details(ctx, sess, utterance)
	case domain.IntentAddToCart:
		t = s.addToCart(ctx, sess, utterance)
	case domain.IntentInventory:
		t = s.inventory(ctx, sess, utterance)
	case domain.IntentCheckout:
		t = s.checkoutTurn(ctx, userID, sess)
	default:
		t = turn{resp: domain.TurnResponse{
			Outcome: domain.OutcomeNotUnderstood,
			Reply:   "I did not understand the request.",
		}}
	}
	t.resp.Intent = in
	return t
}

func (s *AgentService) browse(ctx context.Context, sess *domain.Session, utterance string) turn {
	hits := s.catalog.Search(ctx, utterance, s.searchK)

	ids := make([]string, 0, len(hits))
	cards := make([]domain.ProductCard, 0, len(hits))
	for _, h := range hits {
		p, ok := s.catalog.Get(h.ProductID)
		if !ok {
			continue
		}
		ids = append(ids, p.ID)
		cards = append(cards, resolver.Card(p))
	}

	if len(ids) == 0 {
		return turn{resp: domain.TurnResponse{
			Outcome: domain.OutcomeOK,
			Reply:   "I couldn't find anything matching that.",
		}}
	}

	sess.LastRecommended = ids
	sess.LastQuery = utterance

	return turn{
		resp: domain.TurnResponse{
			Outcome: domain.OutcomeOK,
			Reply:   fmt.Sprintf("Here are %d picks for you.", len(ids)),
			UI: &domain.UIPayload{
				Title:    "Recommended for you",
				Subtitle: "Based on your query",
				Cards:    cards,
			},
		},
		facts:   map[string]string{"query": utterance, "products": strings.Join(ids, ",")},
		history: "Recommended " + strings.Join(ids, ", "),
	}
}

func (s *AgentService) details(ctx context.Context, sess *domain.Session, utterance string) turn {
	pid, ok := s.resolver.Resolve(utterance, sess)
	if !ok {
		return s.clarify(ctx, sess, utterance, "Which product do you mean?")
	}
	p, ok := s.catalog.Get(pid)
	if !ok {
		return s.clarify(ctx, sess, utterance, "Product not found.")
	}

	answer := fmt.Sprintf("%s: %s Price Rs%s", p.Title, p.Description, p.Price.String())
	return turn{
		resp: domain.TurnResponse{
			Outcome: domain.OutcomeOK,
			Reply:   answer,
			UI: &domain.UIPayload{
				Title:       "Details about " + p.ID,
				Description: answer,
			},
		},
		facts: map[string]string{"product": p.ID, "title": p.Title},
	}
}

func (s *AgentService) addToCart(ctx context.Context, sess *domain.Session, utterance string) turn {
	pid, ok := s.resolver.Resolve(utterance, sess)
	if !ok {
		return s.clarify(ctx, sess, utterance, "I need to clarify which product you mean.")
	}

	size, ok := resolver.ParseSize(utterance)
	if !ok {
		size = domain.DefaultSize
	}
	qty := resolver.ParseQuantity(utterance)

	line, err := addToCart(ctx, s.ledger, sess, pid, size, qty, s.clock.Now())
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		s.metrics.ObserveReservation("invalid")
		return turn{resp: domain.TurnResponse{
			Outcome: domain.OutcomeInvalidInput,
			Reply:   "Quantity must be at least 1.",
		}}
	case errors.Is(err, ErrInventoryExhausted):
		s.metrics.ObserveReservation("exhausted")
		return turn{resp: domain.TurnResponse{
			Outcome: domain.OutcomeInventoryExhausted,
			Reply:   fmt.Sprintf("Sorry, we couldn't reserve %d of %s in any size.", qty, pid),
		}}
	case err != nil:
		s.metrics.ObserveReservation("error")
		s.logger.Error("add to cart failed", zap.String("session_id", sess.ID), zap.String("product_id", pid), zap.Error(err))
		return internalError()
	}

	s.metrics.ObserveReservation("reserved")
	if line.Size != size {
		s.logger.Info("size substituted",
			zap.String("product_id", pid),
			zap.String("requested", string(size)),
			zap.String("reserved", string(line.Size)),
		)
	}

	return turn{
		resp: domain.TurnResponse{
			Outcome: domain.OutcomeOK,
			Reply:   fmt.Sprintf("Added %d of %s (size %s) to your cart.", line.Quantity, line.ProductID, line.Size),
			UI:      &domain.UIPayload{Title: "Added to cart", Item: &line},
			Actions: []domain.Action{{
				Type:      domain.ActionAddToCart,
				ProductID: line.ProductID,
				Size:      line.Size,
				Quantity:  line.Quantity,
			}},
		},
		facts:   map[string]string{"product": line.ProductID, "size": string(line.Size)},
		history: fmt.Sprintf("Added %d x %s size %s to cart", line.Quantity, line.ProductID, line.Size),
	}
}

func (s *AgentService) inventory(ctx context.Context, sess *domain.Session, utterance string) turn {
	pid, ok := s.resolver.Resolve(utterance, sess)
	if !ok {
		return s.clarify(ctx, sess, utterance, "Which product do you mean?")
	}

	size, ok := resolver.ParseSize(utterance)
	if !ok {
		size = domain.DefaultSize
	}

	available, qty, err := s.ledger.Check(ctx, pid, size)
	if err != nil {
		s.logger.Error("inventory check failed", zap.String("product_id", pid), zap.Error(err))
		return internalError()
	}

	status := "no"
	if available {
		status = "yes"
	} else {
		qty = 0
	}
	reply := fmt.Sprintf("Inventory for %s size %s: %s (%d)", pid, size, status, qty)
	return turn{
		resp:  domain.TurnResponse{Outcome: domain.OutcomeOK, Reply: reply},
		facts: map[string]string{"product": pid, "size": string(size), "available": status},
	}
}

func (s *AgentService) checkoutTurn(ctx context.Context, userID string, sess *domain.Session) turn {
	res := s.checkout.Checkout(ctx, userID, sess, s.policy, decimal.Zero)

	switch res.Status {
	case StatusEmpty:
		return turn{resp: domain.TurnResponse{Outcome: domain.OutcomeCartEmpty, Reply: "Your cart is empty."}}

	case StatusPaid:
		total := res.Order.Total
		return turn{
			resp: domain.TurnResponse{
				Outcome: domain.OutcomeOK,
				Reply:   fmt.Sprintf("Payment succeeded. Order %s placed.", res.Order.ID),
				UI: &domain.UIPayload{
					Title:   "Order Confirmed",
					OrderID: res.Order.ID,
					Items:   res.Order.Items,
					Total:   &total,
				},
				Actions: []domain.Action{{Type: domain.ActionOrderPlaced, OrderID: res.Order.ID}},
			},
			facts:    map[string]string{"order_id": res.Order.ID, "total": total.String()},
			recorded: true,
		}

	case StatusDeclined:
		reply := fmt.Sprintf("Payment declined (attempt %d of %d). Your cart has been cleared and the stock released. Add the items again to retry.",
			res.Attempt, res.MaxAttempts)
		actions := append([]domain.Action{{Type: domain.ActionPaymentDeclined, Attempt: res.Attempt}}, releasedActions(res.Released)...)
		return turn{
			resp: domain.TurnResponse{
				Outcome: domain.OutcomePaymentDeclined,
				Reply:   reply,
				UI:      &domain.UIPayload{Title: "Payment declined", Attempt: res.Attempt, CanRetry: true},
				Actions: actions,
			},
		}

	case StatusForcedInStore:
		reply := fmt.Sprintf("Payment declined %s. Please complete payment at your nearest store.", times(res.Attempt))
		actions := []domain.Action{
			{Type: domain.ActionPaymentDeclined, Attempt: res.Attempt},
			{Type: domain.ActionRedirectToStore},
		}
		actions = append(actions, releasedActions(res.Released)...)
		return turn{
			resp: domain.TurnResponse{
				Outcome: domain.OutcomePaymentForcedInStore,
				Reply:   reply,
				UI:      &domain.UIPayload{Title: "Complete payment in store", Attempt: res.Attempt},
				Actions: actions,
			},
		}

	default:
		reply := "We couldn't complete your order. Your cart has been cleared and the items released."
		return turn{
			resp: domain.TurnResponse{
				Outcome: domain.OutcomeOrderFailed,
				Reply:   reply,
				Actions: releasedActions(res.Released),
			},
		}
	}
}

func (s *AgentService) clarify(ctx context.Context, sess *domain.Session, utterance, reply string) turn {
	ui := s.resolver.Clarify(ctx, utterance, sess, resolver.ClarifyLimit)
	return turn{resp: domain.TurnResponse{
		Outcome: domain.OutcomeAmbiguousReference,
		Reply:   reply,
		UI:      &ui,
	}}
}

// phrase rewords a reply with the optional generator, keeping the template
// on error or empty output.
func (s *AgentService) phrase(ctx context.Context, in domain.Intent, template string, facts map[string]string) string {
	if s.phrases == nil {
		return template
	}
	out, err := s.phrases.Phrase(ctx, string(in), template, facts)
	if err != nil {
		s.logger.Warn("phrase generator failed", zap.String("intent", string(in)), zap.Error(err))
		return template
	}
	if strings.TrimSpace(out) == "" {
		return template
	}
	return out
}

func internalError() turn {
	return turn{resp: domain.TurnResponse{
		Outcome: domain.OutcomeInternalError,
		Reply:   "Something went wrong on our side. Please try again.",
	}}
}

func times(n int) string {
	switch n {
	case 1:
		return "once"
	case 2:
		return "twice"
	default:
		return fmt.Sprintf("%d times", n)
	}
}
