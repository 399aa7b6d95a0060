// Package tracker drives the execution of confirmed sell plans. Marking a
// leg complete emits the corresponding ledger transaction exactly once;
// when the last leg lands the plan is snapshotted and archived.
package tracker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/quotes"
	"folio/internal/scope"
	"folio/internal/state"
)

// Tracker marks sell-plan legs complete and archives finished plans.
type Tracker struct {
	container *state.Container
	quotes    *quotes.Service
	log       *zap.SugaredLogger

	// OnCompleted fires exactly once when a plan reaches full completion,
	// after the snapshot is recorded and the plan archived.
	OnCompleted func(plan *models.SellPlan)
}

// New creates a tracker over the state container and quote service.
func New(container *state.Container, quoteSvc *quotes.Service, log *zap.SugaredLogger) *Tracker {
	return &Tracker{container: container, quotes: quoteSvc, log: log}
}

// MarkSellCompleted records one account's sell leg. The emitted transaction
// is priced at the plan's recorded price, not the live one: the user already
// executed the sale the plan instructed. Re-marking a completed leg is a
// no-op.
func (t *Tracker) MarkSellCompleted(ctx context.Context, planID, accountID string, viewer *models.Owner) error {
	plan, err := t.visiblePlan(planID, viewer)
	if err != nil {
		return err
	}
	alloc := findAllocation(plan.AccountAllocations, accountID)
	if alloc == nil {
		return apperrors.ErrAllocationNotFound
	}

	key := models.SellCompletionKey(plan.ID, accountID)
	if t.container.HasCompletion(key) {
		return nil
	}

	_, err = t.container.CompleteLeg(plan.ID, key, models.Transaction{
		PortfolioID: plan.PortfolioID,
		AccountID:   accountID,
		Symbol:      plan.Symbol,
		AssetType:   plan.AssetType,
		Side:        models.TransactionSell,
		Quantity:    alloc.ToSell,
		Price:       plan.CurrentPrice,
		Date:        time.Now(),
		Source:      models.SourcePlan,
	})
	if err != nil {
		return err
	}
	return t.finishIfComplete(ctx, plan, viewer)
}

// MarkBuyCompleted records one account's buy leg. The user enters how many
// shares they actually bought; the transaction is priced at the live quote.
// Re-marking a completed leg is a no-op.
func (t *Tracker) MarkBuyCompleted(ctx context.Context, planID, accountID, buySymbol string, sharesEntered float64, viewer *models.Owner) error {
	if sharesEntered <= 0 {
		return apperrors.ErrInvalidQuantity
	}
	plan, err := t.visiblePlan(planID, viewer)
	if err != nil {
		return err
	}
	alloc := findAllocation(plan.AccountAllocations, accountID)
	if alloc == nil {
		return apperrors.ErrAllocationNotFound
	}
	var buy *models.BuyAllocation
	for i := range alloc.BuyAllocations {
		if alloc.BuyAllocations[i].Symbol == buySymbol {
			buy = &alloc.BuyAllocations[i]
			break
		}
	}
	if buy == nil {
		return apperrors.ErrAllocationNotFound
	}

	key := models.BuyCompletionKey(plan.ID, accountID, buySymbol)
	if t.container.HasCompletion(key) {
		return nil
	}

	quote, err := t.quotes.GetQuote(ctx, buySymbol, buy.AssetType)
	if err != nil {
		return err
	}

	_, err = t.container.CompleteLeg(plan.ID, key, models.Transaction{
		PortfolioID: plan.PortfolioID,
		AccountID:   accountID,
		Symbol:      buySymbol,
		AssetType:   buy.AssetType,
		Side:        models.TransactionBuy,
		Quantity:    sharesEntered,
		Price:       quote.Price,
		Date:        time.Now(),
		Source:      models.SourcePlan,
	})
	if err != nil {
		return err
	}
	return t.finishIfComplete(ctx, plan, viewer)
}

// DeletePlan discards an unfinished plan. Its completion keys go with it
// and no transactions are emitted or removed.
func (t *Tracker) DeletePlan(planID string, viewer *models.Owner) error {
	if _, err := t.visiblePlan(planID, viewer); err != nil {
		return err
	}
	return t.container.DeletePlan(planID)
}

// Progress reports which completion keys of a plan are done.
func (t *Tracker) Progress(planID string, viewer *models.Owner) (map[string]bool, error) {
	plan, err := t.visiblePlan(planID, viewer)
	if err != nil {
		return nil, err
	}
	progress := make(map[string]bool)
	for _, key := range plan.CompletionKeys() {
		progress[key] = t.container.HasCompletion(key)
	}
	return progress, nil
}

// finishIfComplete archives the plan once every sell and buy key is present.
// The archive mutation succeeds for exactly one caller, so OnCompleted and
// the snapshot happen once even under concurrent marking.
func (t *Tracker) finishIfComplete(ctx context.Context, plan *models.SellPlan, viewer *models.Owner) error {
	for _, key := range plan.CompletionKeys() {
		if !t.container.HasCompletion(key) {
			return nil
		}
	}

	snapshot := t.snapshot(ctx, plan, viewer)
	if err := t.container.ArchivePlan(plan.ID, snapshot); err != nil {
		// Another caller archived first.
		if err == apperrors.ErrPlanNotFound {
			return nil
		}
		return err
	}
	t.log.Infow("sell plan completed",
		"plan_id", plan.ID,
		"symbol", plan.Symbol,
	)
	if t.OnCompleted != nil {
		t.OnCompleted(plan)
	}
	return nil
}

// snapshot captures the portfolio's symbol allocation after the final leg.
// Symbols are priced live where possible and at average cost otherwise; the
// snapshot must never fail plan completion over a quote outage.
func (t *Tracker) snapshot(ctx context.Context, plan *models.SellPlan, viewer *models.Owner) models.AllocationSnapshot {
	portfolioScope := scope.Portfolio(plan.PortfolioID)
	snapshot := models.AllocationSnapshot{
		ScopeKey:   portfolioScope.Key(),
		RecordedAt: time.Now(),
	}

	r := scope.NewResolver(
		t.container.Portfolios(),
		t.container.Accounts(),
		t.container.Groups(),
		t.container.Transactions(),
	)
	holdings, err := r.Holdings(portfolioScope, viewer)
	if err != nil {
		t.log.Warnw("snapshot holdings unavailable", "plan_id", plan.ID, "error", err)
		return snapshot
	}

	prices := t.livePrices(ctx, holdings)
	total := decimal.Zero
	values := make([]decimal.Decimal, len(holdings))
	for i, h := range holdings {
		price := h.AverageCost
		if quote, ok := prices[h.Symbol]; ok {
			price = quote.Price
		}
		values[i] = decimal.NewFromFloat(h.Quantity).Mul(decimal.NewFromFloat(price))
		total = total.Add(values[i])
	}

	for i, h := range holdings {
		pct := decimal.Zero
		if !total.IsZero() {
			pct = values[i].Div(total).Mul(decimal.NewFromInt(100)).Round(4)
		}
		pctF, _ := pct.Float64()
		valueF, _ := values[i].Round(2).Float64()
		snapshot.Entries = append(snapshot.Entries, models.SnapshotEntry{
			Symbol:     h.Symbol,
			Percentage: pctF,
			Value:      valueF,
		})
	}
	return snapshot
}

func (t *Tracker) livePrices(ctx context.Context, holdings []models.Holding) map[string]quotes.Quote {
	byType := make(map[models.AssetType][]string)
	for _, h := range holdings {
		byType[h.AssetType] = append(byType[h.AssetType], h.Symbol)
	}
	prices := make(map[string]quotes.Quote)
	for assetType, symbols := range byType {
		batch, err := t.quotes.GetBatchQuotes(ctx, symbols, assetType)
		if err != nil {
			continue
		}
		for sym, q := range batch {
			prices[sym] = q
		}
	}
	return prices
}

func (t *Tracker) visiblePlan(planID string, viewer *models.Owner) (*models.SellPlan, error) {
	plan, err := t.container.PlanByID(planID)
	if err != nil {
		return nil, err
	}
	r := scope.NewResolver(
		t.container.Portfolios(),
		t.container.Accounts(),
		t.container.Groups(),
		t.container.Transactions(),
	)
	if _, err := r.Accounts(scope.Portfolio(plan.PortfolioID), viewer); err != nil {
		return nil, err
	}
	return plan, nil
}

func findAllocation(allocs []models.AccountAllocation, accountID string) *models.AccountAllocation {
	for i := range allocs {
		if allocs[i].AccountID == accountID {
			return &allocs[i]
		}
	}
	return nil
}
