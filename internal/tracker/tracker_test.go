package tracker

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"folio/internal/models"
	"folio/internal/quotes"
	"folio/internal/scope"
	"folio/internal/state"
	"folio/internal/testutil"
)

type stubProvider struct {
	assetType models.AssetType
	prices    map[string]float64
}

func (p *stubProvider) Name() string                      { return "stub" }
func (p *stubProvider) Supports(at models.AssetType) bool { return at == p.assetType }

func (p *stubProvider) GetQuote(ctx context.Context, symbol string) (*quotes.Quote, error) {
	price, ok := p.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}
	return &quotes.Quote{Symbol: symbol, Price: price}, nil
}

func (p *stubProvider) GetBatchQuotes(ctx context.Context, symbols []string) (map[string]quotes.Quote, error) {
	out := make(map[string]quotes.Quote)
	for _, s := range symbols {
		if price, ok := p.prices[s]; ok {
			out[s] = quotes.Quote{Symbol: s, Price: price}
		}
	}
	return out, nil
}

type fixture struct {
	tracker   *Tracker
	container *state.Container
	viewer    *models.Owner
	portfolio models.Portfolio
	brokerA   models.Account
	brokerB   models.Account
	plan      *models.SellPlan
	stocks    *stubProvider
	completed int
}

// setup seeds 60/40 AAPL across two accounts plus 50 VTI, and persists a
// plan selling 50 shares at $50: broker A sells 30 and reinvests into VTI,
// broker B sells 20 with no reinvestment.
func setup(t *testing.T) *fixture {
	t.Helper()
	c := state.NewContainer(testutil.NewMemoryGateway(), zap.NewNop().Sugar(), time.Second)

	portfolio := testutil.NewPortfolio("Family")
	if _, err := c.AddPortfolio(portfolio); err != nil {
		t.Fatalf("add portfolio: %v", err)
	}
	brokerA := testutil.NewAccount(portfolio.ID, "Broker A")
	brokerB := testutil.NewAccount(portfolio.ID, "Broker B")
	for _, a := range []models.Account{brokerA, brokerB} {
		if _, err := c.AddAccount(a); err != nil {
			t.Fatalf("add account: %v", err)
		}
	}
	seed := []models.Transaction{
		testutil.NewBuy(portfolio.ID, brokerA.ID, "AAPL", models.AssetTypeStock, 60, 40, 0),
		testutil.NewBuy(portfolio.ID, brokerB.ID, "AAPL", models.AssetTypeStock, 40, 40, 1),
		testutil.NewBuy(portfolio.ID, brokerA.ID, "VTI", models.AssetTypeStock, 50, 90, 2),
	}
	for _, tx := range seed {
		if _, err := c.AppendTransaction(tx); err != nil {
			t.Fatalf("seed transaction: %v", err)
		}
	}

	plan, err := c.AddPlan(models.SellPlan{
		PortfolioID:  portfolio.ID,
		Symbol:       "AAPL",
		AssetType:    models.AssetTypeStock,
		Percentage:   25,
		CurrentPrice: 50,
		AccountAllocations: []models.AccountAllocation{
			{
				AccountID: brokerA.ID, AccountName: "Broker A", ToSell: 30,
				BuyAllocations: []models.BuyAllocation{
					{Symbol: "VTI", AssetType: models.AssetTypeStock, Percentage: 100},
				},
			},
			{AccountID: brokerB.ID, AccountName: "Broker B", ToSell: 20},
		},
	})
	if err != nil {
		t.Fatalf("add plan: %v", err)
	}

	stocks := &stubProvider{
		assetType: models.AssetTypeStock,
		prices:    map[string]float64{"AAPL": 50, "VTI": 100},
	}
	f := &fixture{
		container: c,
		viewer:    testutil.NewOwner("viewer", models.RoleOwner),
		portfolio: portfolio,
		brokerA:   brokerA,
		brokerB:   brokerB,
		plan:      plan,
		stocks:    stocks,
	}
	f.tracker = New(c, quotes.NewService(stocks), zap.NewNop().Sugar())
	f.tracker.OnCompleted = func(*models.SellPlan) { f.completed++ }
	return f
}

func lastTx(t *testing.T, c *state.Container) models.Transaction {
	t.Helper()
	txs := c.Transactions()
	if len(txs) == 0 {
		t.Fatal("ledger is empty")
	}
	return txs[len(txs)-1]
}

func TestMarkSellCompleted(t *testing.T) {
	t.Run("emits_one_sell_at_plan_price", func(t *testing.T) {
		f := setup(t)
		ctx := context.Background()
		before := len(f.container.Transactions())

		testutil.AssertNoError(t, f.tracker.MarkSellCompleted(ctx, f.plan.ID, f.brokerA.ID, f.viewer))

		tx := lastTx(t, f.container)
		if tx.Side != models.TransactionSell || tx.Quantity != 30 || tx.Price != 50 {
			t.Errorf("expected sell of 30 at plan price 50, got %+v", tx)
		}
		if tx.Source != models.SourcePlan {
			t.Errorf("expected plan source, got %s", tx.Source)
		}

		// Re-marking is a no-op.
		testutil.AssertNoError(t, f.tracker.MarkSellCompleted(ctx, f.plan.ID, f.brokerA.ID, f.viewer))
		if got := len(f.container.Transactions()); got != before+1 {
			t.Errorf("expected exactly one emitted transaction, got %d new", got-before)
		}
	})

	t.Run("unknown_account", func(t *testing.T) {
		f := setup(t)
		err := f.tracker.MarkSellCompleted(context.Background(), f.plan.ID, "nope", f.viewer)
		testutil.AssertAppError(t, err, "ALLOCATION_NOT_FOUND")
	})

	t.Run("unknown_plan", func(t *testing.T) {
		f := setup(t)
		err := f.tracker.MarkSellCompleted(context.Background(), "nope", f.brokerA.ID, f.viewer)
		testutil.AssertAppError(t, err, "PLAN_NOT_FOUND")
	})
}

func TestMarkBuyCompleted(t *testing.T) {
	t.Run("emits_one_buy_at_live_price", func(t *testing.T) {
		f := setup(t)
		ctx := context.Background()

		testutil.AssertNoError(t, f.tracker.MarkBuyCompleted(ctx, f.plan.ID, f.brokerA.ID, "VTI", 15, f.viewer))

		tx := lastTx(t, f.container)
		if tx.Side != models.TransactionBuy || tx.Quantity != 15 || tx.Price != 100 {
			t.Errorf("expected buy of 15 at live price 100, got %+v", tx)
		}
		if tx.Source != models.SourcePlan {
			t.Errorf("expected plan source, got %s", tx.Source)
		}
	})

	t.Run("requires_positive_shares", func(t *testing.T) {
		f := setup(t)
		err := f.tracker.MarkBuyCompleted(context.Background(), f.plan.ID, f.brokerA.ID, "VTI", 0, f.viewer)
		testutil.AssertAppError(t, err, "INVALID_QUANTITY")
	})

	t.Run("unknown_buy_symbol", func(t *testing.T) {
		f := setup(t)
		err := f.tracker.MarkBuyCompleted(context.Background(), f.plan.ID, f.brokerA.ID, "BND", 5, f.viewer)
		testutil.AssertAppError(t, err, "ALLOCATION_NOT_FOUND")
	})

	t.Run("missing_quote_blocks_the_leg", func(t *testing.T) {
		f := setup(t)
		delete(f.stocks.prices, "VTI")

		err := f.tracker.MarkBuyCompleted(context.Background(), f.plan.ID, f.brokerA.ID, "VTI", 15, f.viewer)
		testutil.AssertAppError(t, err, "PRICE_UNAVAILABLE")
		if f.container.HasCompletion(models.BuyCompletionKey(f.plan.ID, f.brokerA.ID, "VTI")) {
			t.Error("failed leg must not be recorded as complete")
		}
	})
}

func TestFullCompletion(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	testutil.AssertNoError(t, f.tracker.MarkSellCompleted(ctx, f.plan.ID, f.brokerA.ID, f.viewer))
	testutil.AssertNoError(t, f.tracker.MarkBuyCompleted(ctx, f.plan.ID, f.brokerA.ID, "VTI", 15, f.viewer))
	if f.completed != 0 {
		t.Fatal("plan must not complete while a leg is open")
	}

	// The final leg completes, snapshots and archives the plan.
	testutil.AssertNoError(t, f.tracker.MarkSellCompleted(ctx, f.plan.ID, f.brokerB.ID, f.viewer))
	if f.completed != 1 {
		t.Fatalf("expected OnCompleted once, got %d", f.completed)
	}

	_, err := f.container.PlanByID(f.plan.ID)
	testutil.AssertAppError(t, err, "PLAN_NOT_FOUND")
	for _, key := range f.plan.CompletionKeys() {
		if f.container.HasCompletion(key) {
			t.Errorf("expected key %s cleared after archival", key)
		}
	}

	snapshots := f.container.SnapshotsFor(scope.Portfolio(f.portfolio.ID).Key())
	if len(snapshots) != 1 {
		t.Fatalf("expected one allocation snapshot, got %d", len(snapshots))
	}
	var pctSum float64
	for _, entry := range snapshots[0].Entries {
		pctSum += entry.Percentage
	}
	if math.Abs(pctSum-100) > 0.01 {
		t.Errorf("expected snapshot percentages to sum to 100, got %f", pctSum)
	}
}

func TestDeletePlan(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	testutil.AssertNoError(t, f.tracker.MarkSellCompleted(ctx, f.plan.ID, f.brokerA.ID, f.viewer))
	ledgerLen := len(f.container.Transactions())

	testutil.AssertNoError(t, f.tracker.DeletePlan(f.plan.ID, f.viewer))

	_, err := f.container.PlanByID(f.plan.ID)
	testutil.AssertAppError(t, err, "PLAN_NOT_FOUND")
	if f.container.HasCompletion(models.SellCompletionKey(f.plan.ID, f.brokerA.ID)) {
		t.Error("expected completion keys discarded with the plan")
	}
	// Already-emitted transactions stay in the ledger.
	if got := len(f.container.Transactions()); got != ledgerLen {
		t.Errorf("expected ledger untouched, got %d vs %d", got, ledgerLen)
	}
	if f.completed != 0 {
		t.Error("deleting a plan must not fire the completion hook")
	}
}
