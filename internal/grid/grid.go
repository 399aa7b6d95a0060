// Package grid builds the quick-overview matrix of accounts versus symbols
// for a scope, and turns direct cell edits into ledger transactions.
package grid

import (
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "folio/internal/errors"
	"folio/internal/ledger"
	"folio/internal/models"
	"folio/internal/scope"
	"folio/internal/state"
)

// quantityEpsilon matches the ledger's dust threshold: deltas below it are
// treated as no change.
const quantityEpsilon = 1e-9

// AccountRow is one account's positions across the grid's symbol set.
// Symbols the account never touched map to 0.
type AccountRow struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Holdings map[string]float64 `json:"holdings"`
}

// Grid is the overview matrix for a scope: every symbol the scope has
// transacted or tracks, crossed with every account in the scope.
type Grid struct {
	Symbols     []string                    `json:"symbols"`
	SymbolTypes map[string]models.AssetType `json:"symbol_types"`
	Accounts    []AccountRow                `json:"accounts"`
	Totals      map[string]float64          `json:"totals"`
}

// Builder assembles grids from the current application state.
type Builder struct {
	container *state.Container
	log       *zap.SugaredLogger
}

// NewBuilder creates a grid builder over the state container.
func NewBuilder(container *state.Container, log *zap.SugaredLogger) *Builder {
	return &Builder{container: container, log: log}
}

func (b *Builder) resolver() *scope.Resolver {
	return scope.NewResolver(
		b.container.Portfolios(),
		b.container.Accounts(),
		b.container.Groups(),
		b.container.Transactions(),
	)
}

// Build assembles the grid for a scope. The symbol set is the union of
// symbols appearing in the scope's transactions and symbols tracked for the
// scope key, so a watched symbol shows a zero row before any position exists.
func (b *Builder) Build(s scope.Scope, viewer *models.Owner) (*Grid, error) {
	r := b.resolver()

	txs, err := r.Transactions(s, viewer)
	if err != nil {
		return nil, err
	}
	accounts, err := r.Accounts(s, viewer)
	if err != nil {
		return nil, err
	}

	symbolTypes := make(map[string]models.AssetType)
	for i := range txs {
		symbolTypes[txs[i].Symbol] = txs[i].AssetType
	}
	for _, ts := range b.container.TrackedFor(s.Key()) {
		if _, ok := symbolTypes[ts.Symbol]; !ok {
			symbolTypes[ts.Symbol] = ts.AssetType
		}
	}

	symbols := make([]string, 0, len(symbolTypes))
	for sym := range symbolTypes {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	totals := make(map[string]float64, len(symbols))
	rows := make([]AccountRow, 0, len(accounts))
	for _, account := range accounts {
		accountTxs := filterByAccount(txs, account.ID)
		row := AccountRow{
			ID:       account.ID,
			Name:     account.Name,
			Holdings: make(map[string]float64, len(symbols)),
		}
		for _, sym := range symbols {
			qty := ledger.Quantity(accountTxs, sym, symbolTypes[sym])
			row.Holdings[sym] = qty
			totals[sym] += qty
		}
		rows = append(rows, row)
	}

	return &Grid{
		Symbols:     symbols,
		SymbolTypes: symbolTypes,
		Accounts:    rows,
		Totals:      totals,
	}, nil
}

// SetQuantity reconciles a grid cell to newQty by appending a single
// adjustment transaction covering the difference against the computed
// position. Negative targets clamp to zero. A zero delta appends nothing
// and returns nil.
func (b *Builder) SetQuantity(
	s scope.Scope, viewer *models.Owner,
	accountID, symbol string, assetType models.AssetType,
	newQty, price float64,
) (*models.Transaction, error) {
	r := b.resolver()

	accounts, err := r.Accounts(s, viewer)
	if err != nil {
		return nil, err
	}
	var account *models.Account
	for i := range accounts {
		if accounts[i].ID == accountID {
			account = &accounts[i]
			break
		}
	}
	if account == nil {
		return nil, apperrors.ErrAccountNotFound
	}

	if newQty < 0 {
		b.log.Warnw("negative grid quantity clamped to zero",
			"account_id", accountID,
			"symbol", symbol,
			"requested", newQty,
		)
		newQty = 0
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	txs, err := r.Transactions(s, viewer)
	if err != nil {
		return nil, err
	}
	current := ledger.Quantity(filterByAccount(txs, accountID), symbol, assetType)

	delta := newQty - current
	if math.Abs(delta) < quantityEpsilon {
		return nil, nil
	}

	side := models.TransactionBuy
	if delta < 0 {
		side = models.TransactionSell
	}
	return b.container.AppendTransaction(models.Transaction{
		PortfolioID: account.PortfolioID,
		AccountID:   account.ID,
		Symbol:      symbol,
		AssetType:   assetType,
		Side:        side,
		Quantity:    math.Abs(delta),
		Price:       price,
		Date:        time.Now(),
		Source:      models.SourceManual,
	})
}

// Track adds a watched symbol to the scope's grid.
func (b *Builder) Track(s scope.Scope, viewer *models.Owner, symbol string, assetType models.AssetType) error {
	if _, err := b.resolver().Accounts(s, viewer); err != nil {
		return err
	}
	return b.container.Track(s.Key(), strings.ToUpper(strings.TrimSpace(symbol)), assetType)
}

// Untrack removes a watched symbol from the scope's grid. Positions built
// through transactions keep their rows.
func (b *Builder) Untrack(s scope.Scope, viewer *models.Owner, symbol string) error {
	if _, err := b.resolver().Accounts(s, viewer); err != nil {
		return err
	}
	return b.container.Untrack(s.Key(), strings.ToUpper(strings.TrimSpace(symbol)))
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
