package planner

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"folio/internal/models"
	"folio/internal/quotes"
	"folio/internal/state"
	"folio/internal/testutil"
)

// stubProvider serves quotes from a fixed price map for one asset type.
type stubProvider struct {
	assetType models.AssetType
	prices    map[string]float64
}

func (p *stubProvider) Name() string                            { return "stub" }
func (p *stubProvider) Supports(at models.AssetType) bool       { return at == p.assetType }
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
	svc       *Service
	container *state.Container
	viewer    *models.Owner
	portfolio models.Portfolio
	brokerA   models.Account
	brokerB   models.Account
	stocks    *stubProvider
}

// setup builds a $10,000 portfolio: 100 AAPL at $50 split 60/40 across two
// accounts, plus 50 VTI at $100 in the first.
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

	stocks := &stubProvider{
		assetType: models.AssetTypeStock,
		prices:    map[string]float64{"AAPL": 50, "VTI": 100},
	}
	return &fixture{
		svc:       NewService(c, quotes.NewService(stocks)),
		container: c,
		viewer:    testutil.NewOwner("viewer", models.RoleOwner),
		portfolio: portfolio,
		brokerA:   brokerA,
		brokerB:   brokerB,
		stocks:    stocks,
	}
}

func (f *fixture) startAt(t *testing.T, pct float64) *Draft {
	t.Helper()
	ctx := context.Background()
	d, err := f.svc.Start(f.portfolio.ID, f.viewer)
	testutil.AssertNoError(t, err)
	_, err = f.svc.ChooseSymbol(ctx, d.ID, "AAPL", f.viewer)
	testutil.AssertNoError(t, err)
	d, err = f.svc.SetPercentage(ctx, d.ID, pct, f.viewer)
	testutil.AssertNoError(t, err)
	return d
}

func TestPercentageStage(t *testing.T) {
	t.Run("quarter_of_portfolio", func(t *testing.T) {
		f := setup(t)
		// 25% of $10,000 is $2,500; at $50 a share that is 50 shares.
		d := f.startAt(t, 25)
		if d.TargetShares != 50 {
			t.Errorf("expected 50 target shares, got %f", d.TargetShares)
		}
		if d.CurrentPrice != 50 {
			t.Errorf("expected draft price 50, got %f", d.CurrentPrice)
		}
	})

	t.Run("symbol_not_held", func(t *testing.T) {
		f := setup(t)
		d, err := f.svc.Start(f.portfolio.ID, f.viewer)
		testutil.AssertNoError(t, err)
		_, err = f.svc.ChooseSymbol(context.Background(), d.ID, "TSLA", f.viewer)
		testutil.AssertAppError(t, err, "SYMBOL_NOT_HELD")
	})

	t.Run("missing_quote_blocks_until_manual_price", func(t *testing.T) {
		f := setup(t)
		delete(f.stocks.prices, "AAPL")

		d, err := f.svc.Start(f.portfolio.ID, f.viewer)
		testutil.AssertNoError(t, err)
		_, err = f.svc.ChooseSymbol(context.Background(), d.ID, "AAPL", f.viewer)
		testutil.AssertAppError(t, err, "PRICE_UNAVAILABLE")

		// The percentage stage is gated until a price exists.
		_, err = f.svc.SetPercentage(context.Background(), d.ID, 25, f.viewer)
		testutil.AssertAppError(t, err, "STAGE_INCOMPLETE")

		d, err = f.svc.SetManualPrice(d.ID, 50)
		testutil.AssertNoError(t, err)
		d, err = f.svc.SetPercentage(context.Background(), d.ID, 25, f.viewer)
		testutil.AssertNoError(t, err)
		if d.TargetShares != 50 {
			t.Errorf("expected 50 target shares with manual price, got %f", d.TargetShares)
		}
	})

	t.Run("percentage_exceeding_position", func(t *testing.T) {
		f := setup(t)
		d, err := f.svc.Start(f.portfolio.ID, f.viewer)
		testutil.AssertNoError(t, err)
		_, err = f.svc.ChooseSymbol(context.Background(), d.ID, "AAPL", f.viewer)
		testutil.AssertNoError(t, err)

		// 80% of $10,000 is $8,000, or 160 shares; only 100 are held.
		_, err = f.svc.SetPercentage(context.Background(), d.ID, 80, f.viewer)
		testutil.AssertAppError(t, err, "INSUFFICIENT_SHARES")
	})

	t.Run("entire_position_shortcut", func(t *testing.T) {
		f := setup(t)
		ctx := context.Background()
		d, err := f.svc.Start(f.portfolio.ID, f.viewer)
		testutil.AssertNoError(t, err)
		_, err = f.svc.ChooseSymbol(ctx, d.ID, "AAPL", f.viewer)
		testutil.AssertNoError(t, err)

		// The AAPL position is half the portfolio, so selling all of it is 50%.
		d, err = f.svc.UseShortcut(ctx, d.ID, EntirePosition, f.viewer)
		testutil.AssertNoError(t, err)
		if math.Abs(d.Percentage-50) > 0.001 {
			t.Errorf("expected 50%%, got %f", d.Percentage)
		}
		if d.TargetShares != 100 {
			t.Errorf("expected the full 100 shares, got %f", d.TargetShares)
		}
	})

	t.Run("half_position_shortcut", func(t *testing.T) {
		f := setup(t)
		ctx := context.Background()
		d, err := f.svc.Start(f.portfolio.ID, f.viewer)
		testutil.AssertNoError(t, err)
		_, err = f.svc.ChooseSymbol(ctx, d.ID, "AAPL", f.viewer)
		testutil.AssertNoError(t, err)

		d, err = f.svc.UseShortcut(ctx, d.ID, HalfOfPosition, f.viewer)
		testutil.AssertNoError(t, err)
		if d.TargetShares != 50 {
			t.Errorf("expected 50 shares, got %f", d.TargetShares)
		}
	})

	t.Run("stage_gating", func(t *testing.T) {
		f := setup(t)
		d, err := f.svc.Start(f.portfolio.ID, f.viewer)
		testutil.AssertNoError(t, err)
		_, err = f.svc.SelectAccounts(d.ID, []string{f.brokerA.ID}, f.viewer)
		testutil.AssertAppError(t, err, "STAGE_INCOMPLETE")
	})
}

func TestSelectAccounts(t *testing.T) {
	t.Run("pro_rata_split", func(t *testing.T) {
		f := setup(t)
		d := f.startAt(t, 25)

		// 50 shares over holders of 60 and 40: 30 and 20.
		d, err := f.svc.SelectAccounts(d.ID, []string{f.brokerA.ID, f.brokerB.ID}, f.viewer)
		testutil.AssertNoError(t, err)
		if len(d.Allocations) != 2 {
			t.Fatalf("expected 2 allocations, got %d", len(d.Allocations))
		}
		if d.Allocations[0].ToSell != 30 || d.Allocations[1].ToSell != 20 {
			t.Errorf("expected 30/20 split, got %f/%f", d.Allocations[0].ToSell, d.Allocations[1].ToSell)
		}
	})

	t.Run("remainder_goes_to_largest_holder", func(t *testing.T) {
		f := setup(t)
		ctx := context.Background()
		d, err := f.svc.Start(f.portfolio.ID, f.viewer)
		testutil.AssertNoError(t, err)
		_, err = f.svc.ChooseSymbol(ctx, d.ID, "AAPL", f.viewer)
		testutil.AssertNoError(t, err)

		// 5.5% of $10,000 is $550, or 11 whole shares. Pro rata over 60/40
		// floors to 6 and 4; the leftover share lands on the larger holder.
		d, err = f.svc.SetPercentage(ctx, d.ID, 5.5, f.viewer)
		testutil.AssertNoError(t, err)
		if d.TargetShares != 11 {
			t.Fatalf("expected 11 target shares, got %f", d.TargetShares)
		}
		d, err = f.svc.SelectAccounts(d.ID, []string{f.brokerA.ID, f.brokerB.ID}, f.viewer)
		testutil.AssertNoError(t, err)

		total := d.Allocations[0].ToSell + d.Allocations[1].ToSell
		if total != 11 {
			t.Errorf("expected allocations to sum to the target, got %f", total)
		}
		if d.Allocations[0].ToSell != 7 {
			t.Errorf("expected remainder on broker A (7), got %f", d.Allocations[0].ToSell)
		}
	})

	t.Run("remainder_capped_at_each_holders_position", func(t *testing.T) {
		c := state.NewContainer(testutil.NewMemoryGateway(), zap.NewNop().Sugar(), time.Second)
		portfolio := testutil.NewPortfolio("Even")
		if _, err := c.AddPortfolio(portfolio); err != nil {
			t.Fatalf("add portfolio: %v", err)
		}
		accounts := make([]models.Account, 3)
		for i := range accounts {
			accounts[i] = testutil.NewAccount(portfolio.ID, fmt.Sprintf("Broker %d", i+1))
			if _, err := c.AddAccount(accounts[i]); err != nil {
				t.Fatalf("add account: %v", err)
			}
			if _, err := c.AppendTransaction(testutil.NewBuy(portfolio.ID, accounts[i].ID, "AAPL", models.AssetTypeStock, 5, 40, i)); err != nil {
				t.Fatalf("seed transaction: %v", err)
			}
		}
		if _, err := c.AppendTransaction(testutil.NewBuy(portfolio.ID, accounts[0].ID, "VTI", models.AssetTypeStock, 5, 40, 3)); err != nil {
			t.Fatalf("seed transaction: %v", err)
		}
		stocks := &stubProvider{
			assetType: models.AssetTypeStock,
			prices:    map[string]float64{"AAPL": 50, "VTI": 50},
		}
		svc := NewService(c, quotes.NewService(stocks))
		viewer := testutil.NewOwner("viewer", models.RoleOwner)

		ctx := context.Background()
		d, err := svc.Start(portfolio.ID, viewer)
		testutil.AssertNoError(t, err)
		_, err = svc.ChooseSymbol(ctx, d.ID, "AAPL", viewer)
		testutil.AssertNoError(t, err)

		// 70% of $1,000 is $700, or 14 shares over three holders of 5 each.
		// Pro rata floors to 4/4/4; the 2-share leftover must spread instead
		// of landing on one holder, which only has room for 1 more.
		d, err = svc.SetPercentage(ctx, d.ID, 70, viewer)
		testutil.AssertNoError(t, err)
		if d.TargetShares != 14 {
			t.Fatalf("expected 14 target shares, got %f", d.TargetShares)
		}
		d, err = svc.SelectAccounts(d.ID,
			[]string{accounts[0].ID, accounts[1].ID, accounts[2].ID}, viewer)
		testutil.AssertNoError(t, err)

		var sum float64
		for _, alloc := range d.Allocations {
			if alloc.ToSell > 5 {
				t.Errorf("allocation for %s exceeds the 5 shares held: %f", alloc.AccountName, alloc.ToSell)
			}
			sum += alloc.ToSell
		}
		if sum != 14 {
			t.Errorf("expected allocations to sum to 14, got %f", sum)
		}
	})

	t.Run("single_account_takes_all", func(t *testing.T) {
		f := setup(t)
		d := f.startAt(t, 25)
		d, err := f.svc.SelectAccounts(d.ID, []string{f.brokerA.ID}, f.viewer)
		testutil.AssertNoError(t, err)
		if d.Allocations[0].ToSell != 50 {
			t.Errorf("expected single account to carry all 50, got %f", d.Allocations[0].ToSell)
		}
	})

	t.Run("account_without_position", func(t *testing.T) {
		f := setup(t)
		empty := testutil.NewAccount(f.portfolio.ID, "Empty")
		if _, err := f.container.AddAccount(empty); err != nil {
			t.Fatalf("add account: %v", err)
		}
		d := f.startAt(t, 25)
		_, err := f.svc.SelectAccounts(d.ID, []string{empty.ID}, f.viewer)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("selected_accounts_cannot_cover_target", func(t *testing.T) {
		f := setup(t)
		d := f.startAt(t, 25)
		// Broker B holds only 40 shares against a 50-share target.
		_, err := f.svc.SelectAccounts(d.ID, []string{f.brokerB.ID}, f.viewer)
		testutil.AssertAppError(t, err, "INSUFFICIENT_SHARES")
	})
}

func TestBuyStagesAndConfirm(t *testing.T) {
	toBuyStage := func(t *testing.T, f *fixture) *Draft {
		t.Helper()
		d := f.startAt(t, 25)
		d, err := f.svc.SelectAccounts(d.ID, []string{f.brokerA.ID, f.brokerB.ID}, f.viewer)
		testutil.AssertNoError(t, err)
		return d
	}

	t.Run("confirm_with_60_40_reinvestment", func(t *testing.T) {
		f := setup(t)
		d := toBuyStage(t, f)

		_, err := f.svc.SetBuySymbols(d.ID, f.brokerA.ID, []BuyTarget{
			{Symbol: "VTI", AssetType: models.AssetTypeStock},
			{Symbol: "BND", AssetType: models.AssetTypeStock},
		})
		testutil.AssertNoError(t, err)
		_, err = f.svc.SetBuyPercentages(d.ID, f.brokerA.ID, map[string]float64{"VTI": 60, "BND": 40})
		testutil.AssertNoError(t, err)
		// Broker B leaves its proceeds uninvested.

		plan, err := f.svc.Confirm(d.ID, f.viewer)
		testutil.AssertNoError(t, err)
		if plan.ID == "" {
			t.Fatal("expected persisted plan id")
		}
		if plan.CurrentPrice != 50 || plan.Symbol != "AAPL" {
			t.Errorf("unexpected plan header: %+v", plan)
		}
		buys := plan.AccountAllocations[0].BuyAllocations
		if len(buys) != 2 || buys[0].Percentage != 60 || buys[1].Percentage != 40 {
			t.Errorf("expected 60/40 buys, got %+v", buys)
		}
		if len(plan.AccountAllocations[1].BuyAllocations) != 0 {
			t.Errorf("expected no buys for broker B")
		}

		// The draft is gone once confirmed.
		_, err = f.svc.Draft(d.ID)
		testutil.AssertAppError(t, err, "DRAFT_NOT_FOUND")

		got, err := f.container.PlanByID(plan.ID)
		testutil.AssertNoError(t, err)
		if got.AccountAllocations[0].SellPlanID != plan.ID {
			t.Error("expected allocation linked to plan")
		}
	})

	t.Run("confirm_refuses_bad_percentages", func(t *testing.T) {
		f := setup(t)
		d := toBuyStage(t, f)

		_, err := f.svc.SetBuySymbols(d.ID, f.brokerA.ID, []BuyTarget{
			{Symbol: "VTI", AssetType: models.AssetTypeStock},
			{Symbol: "BND", AssetType: models.AssetTypeStock},
		})
		testutil.AssertNoError(t, err)
		_, err = f.svc.SetBuyPercentages(d.ID, f.brokerA.ID, map[string]float64{"VTI": 60, "BND": 30})
		testutil.AssertNoError(t, err)

		_, err = f.svc.Confirm(d.ID, f.viewer)
		testutil.AssertAppError(t, err, "PERCENTAGES_NOT_100")

		// The draft survives the failed confirmation.
		_, err = f.svc.Draft(d.ID)
		testutil.AssertNoError(t, err)
	})

	t.Run("tolerance_accepts_near_100", func(t *testing.T) {
		f := setup(t)
		d := toBuyStage(t, f)

		_, err := f.svc.SetBuySymbols(d.ID, f.brokerA.ID, []BuyTarget{
			{Symbol: "VTI", AssetType: models.AssetTypeStock},
			{Symbol: "BND", AssetType: models.AssetTypeStock},
			{Symbol: "QQQ", AssetType: models.AssetTypeStock},
		})
		testutil.AssertNoError(t, err)
		_, err = f.svc.SetBuyPercentages(d.ID, f.brokerA.ID,
			map[string]float64{"VTI": 33.33, "BND": 33.33, "QQQ": 33.34})
		testutil.AssertNoError(t, err)

		_, err = f.svc.Confirm(d.ID, f.viewer)
		testutil.AssertNoError(t, err)
	})

	t.Run("duplicate_buy_symbol", func(t *testing.T) {
		f := setup(t)
		d := toBuyStage(t, f)

		// A repeated symbol would produce two buy legs sharing one completion
		// key, so it is rejected outright (case-insensitively).
		_, err := f.svc.SetBuySymbols(d.ID, f.brokerA.ID, []BuyTarget{
			{Symbol: "VTI", AssetType: models.AssetTypeStock},
			{Symbol: "vti", AssetType: models.AssetTypeStock},
		})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("percentages_for_unlisted_symbol", func(t *testing.T) {
		f := setup(t)
		d := toBuyStage(t, f)

		_, err := f.svc.SetBuySymbols(d.ID, f.brokerA.ID, []BuyTarget{
			{Symbol: "VTI", AssetType: models.AssetTypeStock},
		})
		testutil.AssertNoError(t, err)
		_, err = f.svc.SetBuyPercentages(d.ID, f.brokerA.ID, map[string]float64{"VTI": 50, "BND": 50})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("discard", func(t *testing.T) {
		f := setup(t)
		d := toBuyStage(t, f)
		testutil.AssertNoError(t, f.svc.Discard(d.ID))
		_, err := f.svc.Draft(d.ID)
		testutil.AssertAppError(t, err, "DRAFT_NOT_FOUND")
	})
}
