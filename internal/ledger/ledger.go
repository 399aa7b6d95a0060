// Package ledger derives net holdings from an append-only list of buy/sell
// transactions. It is pure: no I/O, no clock, no state.
package ledger

import (
	"sort"

	"folio/internal/models"
)

// quantityEpsilon absorbs float noise when deciding whether a position is
// fully exited.
const quantityEpsilon = 1e-9

type positionKey struct {
	Symbol    string
	AssetType models.AssetType
}

// ComputeHoldings reduces transactions into one Holding per (symbol, asset
// type). The input order does not matter: transactions are sorted by date
// before reducing, with CreatedAt and ID as tie-breakers so that permuting
// the input slice yields the same result.
//
// A buy folds its price into the running weighted average cost; a sell
// reduces quantity and leaves the average cost unchanged (realized gains are
// not tracked here). Positions with quantity <= 0 after reduction produce no
// Holding. Input is assumed validated: positive quantities, known asset
// types.
func ComputeHoldings(transactions []models.Transaction) []models.Holding {
	if len(transactions) == 0 {
		return []models.Holding{}
	}

	sorted := make([]models.Transaction, len(transactions))
	copy(sorted, transactions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	positions := make(map[positionKey]*models.Holding)
	var order []positionKey

	for i := range sorted {
		tx := &sorted[i]
		key := positionKey{Symbol: tx.Symbol, AssetType: tx.AssetType}

		pos, ok := positions[key]
		if !ok {
			pos = &models.Holding{Symbol: tx.Symbol, AssetType: tx.AssetType}
			positions[key] = pos
			order = append(order, key)
		}

		switch tx.Side {
		case models.TransactionBuy:
			newQty := pos.Quantity + tx.Quantity
			if newQty > 0 {
				pos.AverageCost = (pos.Quantity*pos.AverageCost + tx.Quantity*tx.Price) / newQty
			}
			pos.Quantity = newQty
		case models.TransactionSell:
			pos.Quantity -= tx.Quantity
		}
	}

	holdings := make([]models.Holding, 0, len(order))
	for _, key := range order {
		pos := positions[key]
		if pos.Quantity <= quantityEpsilon {
			continue
		}
		holdings = append(holdings, *pos)
	}

	sort.Slice(holdings, func(i, j int) bool {
		if holdings[i].Symbol != holdings[j].Symbol {
			return holdings[i].Symbol < holdings[j].Symbol
		}
		return holdings[i].AssetType < holdings[j].AssetType
	})
	return holdings
}

// Quantity returns the net quantity of a single symbol within the given
// transactions, including fully exited positions (which ComputeHoldings
// drops).
func Quantity(transactions []models.Transaction, symbol string, assetType models.AssetType) float64 {
	var qty float64
	for i := range transactions {
		tx := &transactions[i]
		if tx.Symbol != symbol || tx.AssetType != assetType {
			continue
		}
		qty += tx.SignedQuantity()
	}
	return qty
}
