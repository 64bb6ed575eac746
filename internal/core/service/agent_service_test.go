package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/shopassist/internal/core/domain"
	"github.com/rl1809/shopassist/internal/metrics"
)

func TestHandleTurn_BrowseThenPronoun(t *testing.T) {
	f := newFixture()
	agent := f.agent()
	ctx := context.Background()

	resp := agent.HandleTurn(ctx, "s1", "u1", "show me recommended shirts")
	assert.Equal(t, domain.IntentBrowse, resp.Intent)
	assert.Equal(t, domain.OutcomeOK, resp.Outcome)
	require.NotNil(t, resp.UI)
	assert.Equal(t, "Recommended for you", resp.UI.Title)
	require.Len(t, resp.UI.Cards, 3)

	sess, ok := agent.Session("s1")
	require.True(t, ok)
	assert.Equal(t, []string{"p01", "p02", "p03"}, sess.LastRecommended)
	assert.Equal(t, "show me recommended shirts", sess.LastQuery)

	resp = agent.HandleTurn(ctx, "s1", "u1", "add it to cart")
	assert.Equal(t, domain.IntentAddToCart, resp.Intent)
	assert.Equal(t, domain.OutcomeOK, resp.Outcome)
	assert.Equal(t, "Added 1 of p01 (size M) to your cart.", resp.Reply)
	require.Len(t, resp.Actions, 1)
	assert.Equal(t, domain.Action{Type: domain.ActionAddToCart, ProductID: "p01", Size: domain.SizeM, Quantity: 1}, resp.Actions[0])

	sess, _ = agent.Session("s1")
	assert.Equal(t, "p01", sess.LastMentioned)
	require.Len(t, sess.Cart, 1)
	assert.Equal(t, 4, f.ledger.get("p01", domain.SizeM))
}

func TestHandleTurn_OrdinalReference(t *testing.T) {
	f := newFixture()
	agent := f.agent()
	ctx := context.Background()

	agent.HandleTurn(ctx, "s1", "u1", "show me shirts")
	resp := agent.HandleTurn(ctx, "s1", "u1", "add the second one, size L")

	assert.Equal(t, "Added 1 of p02 (size L) to your cart.", resp.Reply)
	assert.Equal(t, 1, f.ledger.get("p02", domain.SizeL))
}

func TestHandleTurn_SizeFallback(t *testing.T) {
	f := newFixture()
	agent := f.agent()

	resp := agent.HandleTurn(context.Background(), "s1", "u1", "add p03 size L")

	assert.Equal(t, domain.OutcomeOK, resp.Outcome)
	assert.Equal(t, "Added 1 of p03 (size M) to your cart.", resp.Reply)
	require.NotNil(t, resp.UI)
	require.NotNil(t, resp.UI.Item)
	assert.Equal(t, domain.SizeM, resp.UI.Item.Size)
	assert.Equal(t, 3, f.ledger.get("p03", domain.SizeM))
	assert.Zero(t, f.ledger.get("p03", domain.SizeL))
}

func TestHandleTurn_InventoryExhausted(t *testing.T) {
	f := newFixture()
	agent := f.agent()
	before := f.ledger.total()

	resp := agent.HandleTurn(context.Background(), "s1", "u1", "add 2 of p06 to cart")

	assert.Equal(t, domain.OutcomeInventoryExhausted, resp.Outcome)
	assert.Equal(t, "Sorry, we couldn't reserve 2 of p06 in any size.", resp.Reply)
	assert.Empty(t, resp.Actions)
	assert.Equal(t, before, f.ledger.total())

	sess, _ := agent.Session("s1")
	assert.Empty(t, sess.Cart)
}

func TestHandleTurn_InvalidQuantity(t *testing.T) {
	f := newFixture()
	resp := f.agent().HandleTurn(context.Background(), "s1", "u1", "add 0 of p01")
	assert.Equal(t, domain.OutcomeInvalidInput, resp.Outcome)
}

func TestHandleTurn_AmbiguousReference(t *testing.T) {
	f := newFixture()
	agent := f.agent()

	resp := agent.HandleTurn(context.Background(), "s1", "u1", "add it to cart")

	assert.Equal(t, domain.OutcomeAmbiguousReference, resp.Outcome)
	require.NotNil(t, resp.UI)
	assert.Equal(t, "Which one did you mean?", resp.UI.Title)
	assert.Len(t, resp.UI.Cards, 5)

	sess, _ := agent.Session("s1")
	assert.Empty(t, sess.LastMentioned)
	assert.Empty(t, sess.LastRecommended)
}

func TestHandleTurn_Details(t *testing.T) {
	f := newFixture()
	resp := f.agent().HandleTurn(context.Background(), "s1", "u1", "tell me the details of p02")

	assert.Equal(t, domain.IntentProductDetails, resp.Intent)
	assert.Equal(t, "Blue Denim Shirt: Casual blue denim shirt Price Rs1899", resp.Reply)
	require.NotNil(t, resp.UI)
	assert.Equal(t, "Details about p02", resp.UI.Title)
}

func TestHandleTurn_Inventory(t *testing.T) {
	f := newFixture()
	agent := f.agent()
	ctx := context.Background()

	resp := agent.HandleTurn(ctx, "s1", "u1", "is p01 available in size L")
	assert.Equal(t, domain.IntentInventory, resp.Intent)
	assert.Equal(t, "Inventory for p01 size L: yes (3)", resp.Reply)

	resp = agent.HandleTurn(ctx, "s1", "u1", "is p06 available")
	assert.Equal(t, "Inventory for p06 size M: no (0)", resp.Reply)

	f.ledger.err = errBoom
	resp = agent.HandleTurn(ctx, "s1", "u1", "is p01 available")
	assert.Equal(t, domain.OutcomeInternalError, resp.Outcome)
}

func TestHandleTurn_CheckoutPaid(t *testing.T) {
	f := newFixture(true)
	pub := &recordingPublisher{}
	agent := f.agent(WithPublisher(pub))
	ctx := context.Background()

	agent.HandleTurn(ctx, "s1", "u1", "add p01")
	resp := agent.HandleTurn(ctx, "s1", "u1", "checkout")

	assert.Equal(t, domain.IntentCheckout, resp.Intent)
	assert.Equal(t, domain.OutcomeOK, resp.Outcome)
	assert.Equal(t, "Payment succeeded. Order ORD00001 placed.", resp.Reply)
	require.NotNil(t, resp.UI)
	assert.Equal(t, "Order Confirmed", resp.UI.Title)
	require.NotNil(t, resp.UI.Total)
	assert.Equal(t, "1299", resp.UI.Total.String())

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.actions, 2)
	assert.Equal(t, domain.ActionAddToCart, pub.actions[0].Type)
	assert.Equal(t, domain.ActionOrderPlaced, pub.actions[1].Type)
	assert.Equal(t, "ORD00001", pub.actions[1].OrderID)
}

func TestHandleTurn_CheckoutEmpty(t *testing.T) {
	f := newFixture()
	resp := f.agent().HandleTurn(context.Background(), "s1", "u1", "checkout")

	assert.Equal(t, domain.OutcomeCartEmpty, resp.Outcome)
	assert.Equal(t, "Your cart is empty.", resp.Reply)
	assert.Zero(t, f.gateway.chargeCount())
}

func TestHandleTurn_DeclineThenForcedInStore(t *testing.T) {
	f := newFixture(false, false)
	agent := f.agent()
	ctx := context.Background()

	agent.HandleTurn(ctx, "s1", "u1", "add 2 of p01")
	require.Equal(t, 3, f.ledger.get("p01", domain.SizeM))

	resp := agent.HandleTurn(ctx, "s1", "u1", "checkout")
	assert.Equal(t, domain.OutcomePaymentDeclined, resp.Outcome)
	assert.Contains(t, resp.Reply, "attempt 1 of 2")
	require.NotNil(t, resp.UI)
	assert.True(t, resp.UI.CanRetry)
	require.Len(t, resp.Actions, 2)
	assert.Equal(t, domain.Action{Type: domain.ActionPaymentDeclined, Attempt: 1}, resp.Actions[0])
	assert.Equal(t, domain.ActionInventoryReleased, resp.Actions[1].Type)
	assert.Equal(t, 5, f.ledger.get("p01", domain.SizeM))

	agent.HandleTurn(ctx, "s1", "u1", "add 2 of p01")
	resp = agent.HandleTurn(ctx, "s1", "u1", "checkout")
	assert.Equal(t, domain.OutcomePaymentForcedInStore, resp.Outcome)
	assert.Equal(t, "Payment declined twice. Please complete payment at your nearest store.", resp.Reply)
	require.GreaterOrEqual(t, len(resp.Actions), 2)
	assert.Equal(t, domain.ActionRedirectToStore, resp.Actions[1].Type)
	assert.Equal(t, 5, f.ledger.get("p01", domain.SizeM))

	sess, _ := agent.Session("s1")
	assert.Empty(t, sess.Cart)
	assert.Zero(t, sess.Attempts("agent"))
	assert.Zero(t, f.orders.count())
}

func TestHandleTurn_NotUnderstood(t *testing.T) {
	f := newFixture()
	resp := f.agent().HandleTurn(context.Background(), "s1", "u1", "hello there")

	assert.Equal(t, domain.IntentOther, resp.Intent)
	assert.Equal(t, domain.OutcomeNotUnderstood, resp.Outcome)
	assert.Equal(t, "I did not understand the request.", resp.Reply)
	assert.NotNil(t, resp.Actions)
}

func TestHandleTurn_History(t *testing.T) {
	f := newFixture()
	agent := f.agent()

	agent.HandleTurn(context.Background(), "s1", "u1", "add p01")

	sess, _ := agent.Session("s1")
	require.Len(t, sess.History, 2)
	assert.Equal(t, domain.RoleUser, sess.History[0].Role)
	assert.Equal(t, "add p01", sess.History[0].Text)
	assert.Equal(t, "Added 1 x p01 size M to cart", sess.History[1].Text)
}

func TestHandleTurn_PhraseGenerator(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	resp := f.agent(WithPhraseGenerator(stubPhrases{out: "Done! p01 is in your bag."})).
		HandleTurn(ctx, "s1", "u1", "add p01")
	assert.Equal(t, "Done! p01 is in your bag.", resp.Reply)

	resp = f.agent(WithPhraseGenerator(stubPhrases{err: errBoom})).
		HandleTurn(ctx, "s2", "u1", "add p01")
	assert.Equal(t, "Added 1 of p01 (size M) to your cart.", resp.Reply)

	resp = f.agent(WithPhraseGenerator(stubPhrases{out: "  "})).
		HandleTurn(ctx, "s3", "u1", "add p01")
	assert.Equal(t, "Added 1 of p01 (size M) to your cart.", resp.Reply)
}

func TestHandleTurn_PublishErrorIgnored(t *testing.T) {
	f := newFixture()
	agent := f.agent(WithPublisher(&recordingPublisher{err: errBoom}))

	resp := agent.HandleTurn(context.Background(), "s1", "u1", "add p01")
	assert.Equal(t, domain.OutcomeOK, resp.Outcome)
}

func TestHandleTurn_Metrics(t *testing.T) {
	f := newFixture()
	m := metrics.New(prometheus.NewRegistry(), "test")
	agent := f.agent(WithAgentMetrics(m))
	ctx := context.Background()

	agent.HandleTurn(ctx, "s1", "u1", "add p01")
	agent.HandleTurn(ctx, "s2", "u1", "hello")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Turns.WithLabelValues("add_to_cart", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Turns.WithLabelValues("other", "not_understood")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reservations.WithLabelValues("reserved")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Sessions))
}

func TestHandleTurn_ConcurrentSameSessionNeverOversells(t *testing.T) {
	f := newFixture()
	agent := f.agent()

	// p01 holds 5 in M and 3 in L, nothing in S or XL
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agent.HandleTurn(context.Background(), "shared", "u1", "add p01")
		}()
	}
	wg.Wait()

	sess, _ := agent.Session("shared")
	assert.Len(t, sess.Cart, 8)
	assert.Zero(t, f.ledger.get("p01", domain.SizeM))
	assert.Zero(t, f.ledger.get("p01", domain.SizeL))
	assert.Len(t, sess.History, 40)
}

func TestHandleTurn_ConcurrentSessionsShareStock(t *testing.T) {
	f := newFixture()
	agent := f.agent()

	// p07 holds 1 in M and 1 in L
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agent.HandleTurn(context.Background(), fmt.Sprintf("s%d", i), "u1", "add p07")
		}(i)
	}
	wg.Wait()

	carts := 0
	for i := 0; i < 10; i++ {
		sess, _ := agent.Session(fmt.Sprintf("s%d", i))
		carts += len(sess.Cart)
	}
	assert.Equal(t, 2, carts)
	assert.Zero(t, f.ledger.get("p07", domain.SizeM))
	assert.Zero(t, f.ledger.get("p07", domain.SizeL))
}

func TestRecommend(t *testing.T) {
	f := newFixture()
	agent := f.agent()

	hits := agent.Recommend(context.Background(), "anything", 0)
	assert.Len(t, hits, 3)

	hits = agent.Recommend(context.Background(), "anything", 6)
	assert.Len(t, hits, 6)
}

func TestSession_Unknown(t *testing.T) {
	f := newFixture()
	_, ok := f.agent().Session("missing")
	assert.False(t, ok)
}
