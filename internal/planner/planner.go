// Package planner implements the five-stage sell-plan wizard. A draft is
// assembled incrementally and only persisted as a SellPlan on confirmation;
// every stage validation failure returns an error and leaves the draft
// unchanged so the caller stays on the current stage.
package planner

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	apperrors "folio/internal/errors"
	"folio/internal/ledger"
	"folio/internal/models"
	"folio/internal/quotes"
	"folio/internal/scope"
	"folio/internal/state"
	"folio/internal/uuid"
)

// Shortcut is a preset percentage choice expressed as a fraction of the
// position. It is converted to a percentage of total portfolio value so the
// unit stays consistent with a manually entered percentage.
type Shortcut string

const (
	ThirdOfPosition Shortcut = "third_of_position"
	HalfOfPosition  Shortcut = "half_of_position"
	EntirePosition  Shortcut = "entire_position"
)

// percentTolerance is the slack allowed when buy percentages are checked
// against 100.
const percentTolerance = 0.01

// Wizard stages, in order. A draft can only move forward.
type stage int

const (
	stageSymbol stage = iota + 1
	stagePercentage
	stageAccounts
	stageBuys
)

// BuyTarget is one symbol an account will reinvest its proceeds into.
type BuyTarget struct {
	Symbol    string           `json:"symbol"`
	AssetType models.AssetType `json:"asset_type"`
}

// Draft is an in-progress sell plan. It lives only in the planner service;
// nothing is persisted until Confirm.
type Draft struct {
	ID           string                     `json:"id"`
	PortfolioID  string                     `json:"portfolio_id"`
	Symbol       string                     `json:"symbol"`
	AssetType    models.AssetType           `json:"asset_type"`
	CurrentPrice float64                    `json:"current_price"`
	Percentage   float64                    `json:"percentage"`
	TargetShares float64                    `json:"target_shares"`
	Allocations  []models.AccountAllocation `json:"allocations"`

	stage stage
}

// Service holds the active drafts and builds sell plans from them. Drafts
// are keyed by id so the HTTP layer stays stateless.
type Service struct {
	mu        sync.Mutex
	container *state.Container
	quotes    *quotes.Service
	drafts    map[string]*Draft
}

// NewService creates a planner over the state container and quote service.
func NewService(container *state.Container, quoteSvc *quotes.Service) *Service {
	return &Service{
		container: container,
		quotes:    quoteSvc,
		drafts:    make(map[string]*Draft),
	}
}

// Start opens a new draft for a portfolio the viewer can see.
func (s *Service) Start(portfolioID string, viewer *models.Owner) (*Draft, error) {
	if _, err := s.holdings(portfolioID, viewer); err != nil {
		return nil, err
	}

	d := &Draft{
		ID:          uuid.New(),
		PortfolioID: portfolioID,
		stage:       stageSymbol,
	}
	s.mu.Lock()
	s.drafts[d.ID] = d
	s.mu.Unlock()

	out := *d
	return &out, nil
}

// Draft returns a copy of an active draft.
func (s *Service) Draft(id string) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[id]
	if !ok {
		return nil, apperrors.ErrDraftNotFound
	}
	out := *d
	return &out, nil
}

// Discard drops a draft without persisting anything.
func (s *Service) Discard(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[id]; !ok {
		return apperrors.ErrDraftNotFound
	}
	delete(s.drafts, id)
	return nil
}

// ChooseSymbol selects the held symbol to liquidate and resolves its current
// price. When no price is available the symbol is remembered but the stage
// does not advance; the caller may supply one via SetManualPrice.
func (s *Service) ChooseSymbol(ctx context.Context, draftID, symbol string, viewer *models.Owner) (*Draft, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	s.mu.Lock()
	d, ok := s.drafts[draftID]
	s.mu.Unlock()
	if !ok {
		return nil, apperrors.ErrDraftNotFound
	}

	holdings, err := s.holdings(d.PortfolioID, viewer)
	if err != nil {
		return nil, err
	}
	holding := findHolding(holdings, symbol)
	if holding == nil {
		return nil, apperrors.ErrSymbolNotHeld
	}

	quote, quoteErr := s.quotes.GetQuote(ctx, symbol, holding.AssetType)

	s.mu.Lock()
	defer s.mu.Unlock()
	d.Symbol = symbol
	d.AssetType = holding.AssetType
	if quoteErr != nil {
		// Stay on the symbol stage until a manual price arrives.
		return nil, quoteErr
	}
	d.CurrentPrice = quote.Price
	d.stage = stagePercentage
	out := *d
	return &out, nil
}

// SetManualPrice supplies a price when no provider could, unblocking the
// percentage stage.
func (s *Service) SetManualPrice(draftID string, price float64) (*Draft, error) {
	if price <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Price must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[draftID]
	if !ok {
		return nil, apperrors.ErrDraftNotFound
	}
	if d.Symbol == "" {
		return nil, apperrors.ErrStageIncomplete
	}
	d.CurrentPrice = price
	d.stage = stagePercentage
	out := *d
	return &out, nil
}

// SetPercentage sets the share of total portfolio value to liquidate and
// computes the target share count.
func (s *Service) SetPercentage(ctx context.Context, draftID string, pct float64, viewer *models.Owner) (*Draft, error) {
	if pct <= 0 || pct > 100 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Percentage must be between 0 and 100")
	}
	return s.applyPercentage(ctx, draftID, decimal.NewFromFloat(pct), viewer)
}

// UseShortcut converts a fraction of the position into the equivalent
// percentage of total portfolio value and applies it.
func (s *Service) UseShortcut(ctx context.Context, draftID string, shortcut Shortcut, viewer *models.Owner) (*Draft, error) {
	var fraction decimal.Decimal
	switch shortcut {
	case ThirdOfPosition:
		fraction = decimal.NewFromInt(1).Div(decimal.NewFromInt(3))
	case HalfOfPosition:
		fraction = decimal.NewFromFloat(0.5)
	case EntirePosition:
		fraction = decimal.NewFromInt(1)
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown shortcut "+string(shortcut))
	}

	s.mu.Lock()
	d, ok := s.drafts[draftID]
	s.mu.Unlock()
	if !ok {
		return nil, apperrors.ErrDraftNotFound
	}
	if d.stage < stagePercentage {
		return nil, apperrors.ErrStageIncomplete
	}

	holdings, err := s.holdings(d.PortfolioID, viewer)
	if err != nil {
		return nil, err
	}
	portfolioValue, positionValue, err := s.values(ctx, holdings, d)
	if err != nil {
		return nil, err
	}
	if portfolioValue.IsZero() {
		return nil, apperrors.ErrSymbolNotHeld
	}

	pct := positionValue.Div(portfolioValue).Mul(fraction).Mul(decimal.NewFromInt(100))
	return s.applyPercentage(ctx, draftID, pct, viewer)
}

func (s *Service) applyPercentage(ctx context.Context, draftID string, pct decimal.Decimal, viewer *models.Owner) (*Draft, error) {
	s.mu.Lock()
	d, ok := s.drafts[draftID]
	s.mu.Unlock()
	if !ok {
		return nil, apperrors.ErrDraftNotFound
	}
	if d.stage < stagePercentage {
		return nil, apperrors.ErrStageIncomplete
	}

	holdings, err := s.holdings(d.PortfolioID, viewer)
	if err != nil {
		return nil, err
	}
	holding := findHolding(holdings, d.Symbol)
	if holding == nil {
		return nil, apperrors.ErrSymbolNotHeld
	}
	portfolioValue, _, err := s.values(ctx, holdings, d)
	if err != nil {
		return nil, err
	}

	price := decimal.NewFromFloat(d.CurrentPrice)
	dollars := portfolioValue.Mul(pct).Div(decimal.NewFromInt(100))
	shares := roundShares(dollars.Div(price), d.AssetType)

	if shares.GreaterThan(decimal.NewFromFloat(holding.Quantity)) {
		return nil, apperrors.ErrInsufficientShares
	}
	if shares.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Percentage resolves to zero shares")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d.Percentage, _ = pct.Float64()
	d.TargetShares, _ = shares.Float64()
	d.Allocations = nil
	d.stage = stageAccounts
	out := *d
	return &out, nil
}

// SelectAccounts picks the participating accounts and splits the target
// shares pro rata by each account's share of the symbol quantity. The
// rounding remainder spills onto the largest holders with spare quantity
// so the split sums exactly to the target without overselling any account.
func (s *Service) SelectAccounts(draftID string, accountIDs []string, viewer *models.Owner) (*Draft, error) {
	if len(accountIDs) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "At least one account is required")
	}

	s.mu.Lock()
	d, ok := s.drafts[draftID]
	s.mu.Unlock()
	if !ok {
		return nil, apperrors.ErrDraftNotFound
	}
	if d.stage < stageAccounts {
		return nil, apperrors.ErrStageIncomplete
	}

	r := s.resolver()
	accounts, err := r.Accounts(scope.Portfolio(d.PortfolioID), viewer)
	if err != nil {
		return nil, err
	}
	txs, err := r.Transactions(scope.Portfolio(d.PortfolioID), viewer)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Account, len(accounts))
	for i := range accounts {
		byID[accounts[i].ID] = &accounts[i]
	}

	type holder struct {
		account  *models.Account
		quantity decimal.Decimal
	}
	holders := make([]holder, 0, len(accountIDs))
	total := decimal.Zero
	for _, id := range accountIDs {
		account, ok := byID[id]
		if !ok {
			return nil, apperrors.ErrAccountNotFound
		}
		qty := ledger.Quantity(filterByAccount(txs, id), d.Symbol, d.AssetType)
		if qty <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
				fmt.Sprintf("Account %s does not hold %s", account.Name, d.Symbol))
		}
		dq := decimal.NewFromFloat(qty)
		holders = append(holders, holder{account: account, quantity: dq})
		total = total.Add(dq)
	}

	target := decimal.NewFromFloat(d.TargetShares)
	if total.LessThan(target) {
		return nil, apperrors.ErrInsufficientShares
	}

	shares := make([]decimal.Decimal, len(holders))
	allocated := decimal.Zero
	for i, h := range holders {
		share := roundShares(target.Mul(h.quantity).Div(total), d.AssetType)
		if share.GreaterThan(h.quantity) {
			share = h.quantity
		}
		shares[i] = share
		allocated = allocated.Add(share)
	}

	remainder := target.Sub(allocated)
	if remainder.IsNegative() {
		// Half-up crypto rounding can overshoot by a few decimals; the
		// excess comes back off the largest allocation.
		largest := 0
		for i := range shares {
			if shares[i].GreaterThan(shares[largest]) {
				largest = i
			}
		}
		shares[largest] = shares[largest].Add(remainder)
		remainder = decimal.Zero
	}
	// Spill the rounding shortfall onto holders with spare quantity, largest
	// holder first, never past a holder's position. The total >= target check
	// above guarantees the loop places the full remainder.
	for remainder.IsPositive() {
		best := -1
		for i, h := range holders {
			if shares[i].GreaterThanOrEqual(h.quantity) {
				continue
			}
			if best == -1 || h.quantity.GreaterThan(holders[best].quantity) {
				best = i
			}
		}
		if best == -1 {
			return nil, apperrors.ErrInsufficientShares
		}
		add := decimal.Min(remainder, holders[best].quantity.Sub(shares[best]))
		shares[best] = shares[best].Add(add)
		remainder = remainder.Sub(add)
	}

	allocations := make([]models.AccountAllocation, len(holders))
	for i, h := range holders {
		toSell, _ := shares[i].Float64()
		allocations[i] = models.AccountAllocation{
			AccountID:   h.account.ID,
			AccountName: h.account.Name,
			ToSell:      toSell,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d.Allocations = allocations
	d.stage = stageBuys
	out := *d
	return &out, nil
}

// SetBuySymbols lists the symbols one account will reinvest into. Zero
// symbols is allowed; the account's proceeds then sit uninvested.
func (s *Service) SetBuySymbols(draftID, accountID string, targets []BuyTarget) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[draftID]
	if !ok {
		return nil, apperrors.ErrDraftNotFound
	}
	if d.stage < stageBuys {
		return nil, apperrors.ErrStageIncomplete
	}
	alloc := findAllocation(d.Allocations, accountID)
	if alloc == nil {
		return nil, apperrors.ErrAllocationNotFound
	}

	buys := make([]models.BuyAllocation, len(targets))
	seen := make(map[string]bool, len(targets))
	for i, bt := range targets {
		symbol := strings.ToUpper(strings.TrimSpace(bt.Symbol))
		if seen[symbol] {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
				fmt.Sprintf("%s is listed more than once", symbol))
		}
		seen[symbol] = true
		buys[i] = models.BuyAllocation{
			Symbol:    symbol,
			AssetType: bt.AssetType,
		}
	}
	alloc.BuyAllocations = buys
	out := *d
	return &out, nil
}

// SetBuyPercentages assigns each buy symbol's share of one account's
// proceeds. Every listed symbol must receive a percentage.
func (s *Service) SetBuyPercentages(draftID, accountID string, pcts map[string]float64) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[draftID]
	if !ok {
		return nil, apperrors.ErrDraftNotFound
	}
	if d.stage < stageBuys {
		return nil, apperrors.ErrStageIncomplete
	}
	alloc := findAllocation(d.Allocations, accountID)
	if alloc == nil {
		return nil, apperrors.ErrAllocationNotFound
	}

	assigned := make(map[string]bool, len(pcts))
	next := make([]models.BuyAllocation, len(alloc.BuyAllocations))
	for i, buy := range alloc.BuyAllocations {
		pct, ok := pcts[buy.Symbol]
		if !ok {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
				fmt.Sprintf("Missing percentage for %s", buy.Symbol))
		}
		if pct <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
				fmt.Sprintf("Percentage for %s must be positive", buy.Symbol))
		}
		next[i] = buy
		next[i].Percentage = pct
		assigned[buy.Symbol] = true
	}
	for symbol := range pcts {
		if !assigned[symbol] {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
				fmt.Sprintf("%s is not a buy symbol of this account", symbol))
		}
	}

	alloc.BuyAllocations = next
	out := *d
	return &out, nil
}

// Confirm validates every account's buy percentages and persists the plan.
// The draft is discarded on success.
func (s *Service) Confirm(draftID string, viewer *models.Owner) (*models.SellPlan, error) {
	s.mu.Lock()
	d, ok := s.drafts[draftID]
	if !ok {
		s.mu.Unlock()
		return nil, apperrors.ErrDraftNotFound
	}
	if d.stage < stageBuys {
		s.mu.Unlock()
		return nil, apperrors.ErrStageIncomplete
	}

	for _, alloc := range d.Allocations {
		if len(alloc.BuyAllocations) == 0 {
			continue
		}
		sum := decimal.Zero
		for _, buy := range alloc.BuyAllocations {
			sum = sum.Add(decimal.NewFromFloat(buy.Percentage))
		}
		diff := sum.Sub(decimal.NewFromInt(100)).Abs()
		if diff.GreaterThan(decimal.NewFromFloat(percentTolerance)) {
			s.mu.Unlock()
			return nil, apperrors.WithMessage(apperrors.ErrPercentagesNot100,
				fmt.Sprintf("Buy percentages for %s sum to %s", alloc.AccountName, sum.String()))
		}
	}

	plan := models.SellPlan{
		PortfolioID:        d.PortfolioID,
		Symbol:             d.Symbol,
		AssetType:          d.AssetType,
		Percentage:         d.Percentage,
		CurrentPrice:       d.CurrentPrice,
		AccountAllocations: d.Allocations,
	}
	delete(s.drafts, draftID)
	s.mu.Unlock()

	return s.container.AddPlan(plan)
}

func (s *Service) resolver() *scope.Resolver {
	return scope.NewResolver(
		s.container.Portfolios(),
		s.container.Accounts(),
		s.container.Groups(),
		s.container.Transactions(),
	)
}

func (s *Service) holdings(portfolioID string, viewer *models.Owner) ([]models.Holding, error) {
	return s.resolver().Holdings(scope.Portfolio(portfolioID), viewer)
}

// values returns the total portfolio value and the draft symbol's position
// value. Holdings are priced live where a quote exists; positions without a
// quote fall back to average cost, and the draft symbol always uses the
// draft's recorded price.
func (s *Service) values(ctx context.Context, holdings []models.Holding, d *Draft) (portfolio, position decimal.Decimal, err error) {
	prices := s.livePrices(ctx, holdings, d.Symbol)

	portfolio = decimal.Zero
	for _, h := range holdings {
		price := h.AverageCost
		if h.Symbol == d.Symbol {
			price = d.CurrentPrice
		} else if quote, ok := prices[h.Symbol]; ok {
			price = quote.Price
		}
		value := decimal.NewFromFloat(h.Quantity).Mul(decimal.NewFromFloat(price))
		portfolio = portfolio.Add(value)
		if h.Symbol == d.Symbol {
			position = value
		}
	}
	return portfolio, position, nil
}

// livePrices batch-fetches quotes per asset type. Fetch failures are
// tolerated; the caller falls back to average cost for missing symbols.
func (s *Service) livePrices(ctx context.Context, holdings []models.Holding, skip string) map[string]quotes.Quote {
	byType := make(map[models.AssetType][]string)
	for _, h := range holdings {
		if h.Symbol == skip {
			continue
		}
		byType[h.AssetType] = append(byType[h.AssetType], h.Symbol)
	}

	prices := make(map[string]quotes.Quote)
	for assetType, symbols := range byType {
		batch, err := s.quotes.GetBatchQuotes(ctx, symbols, assetType)
		if err != nil {
			continue
		}
		for sym, q := range batch {
			prices[sym] = q
		}
	}
	return prices
}

// roundShares applies the asset rounding policy: equities trade in whole
// shares (rounded down so a split never oversells), crypto in 8 decimals.
func roundShares(v decimal.Decimal, assetType models.AssetType) decimal.Decimal {
	if assetType == models.AssetTypeCrypto {
		return v.Round(8)
	}
	return v.RoundDown(0)
}

func findHolding(holdings []models.Holding, symbol string) *models.Holding {
	for i := range holdings {
		if holdings[i].Symbol == symbol {
			return &holdings[i]
		}
	}
	return nil
}

func findAllocation(allocs []models.AccountAllocation, accountID string) *models.AccountAllocation {
	for i := range allocs {
		if allocs[i].AccountID == accountID {
			return &allocs[i]
		}
	}
	return nil
}

func filterByAccount(txs []models.Transaction, accountID string) []models.Transaction {
	var out []models.Transaction
	for i := range txs {
		if txs[i].AccountID == accountID {
			out = append(out, txs[i])
		}
	}
	return out
}
