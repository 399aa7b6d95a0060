package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"folio/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// NewOwner builds an in-memory owner with the given id and role.
func NewOwner(id string, role models.OwnerRole) *models.Owner {
	return &models.Owner{
		Base:     models.Base{ID: id},
		Email:    fmt.Sprintf("%s@test.local", id),
		Name:     id,
		Role:     role,
		IsActive: true,
	}
}

// NewPortfolio builds a portfolio included in combined-all, owned by the
// given owner ids (none means visible to everyone).
func NewPortfolio(name string, ownerIDs ...string) models.Portfolio {
	return models.Portfolio{
		Base:              models.Base{ID: fmt.Sprintf("portfolio-%d", nextID())},
		Name:              name,
		OwnerIDs:          ownerIDs,
		IncludeInCombined: true,
	}
}

// NewAccount builds an account under the given portfolio.
func NewAccount(portfolioID, name string) models.Account {
	return models.Account{
		Base:        models.Base{ID: fmt.Sprintf("account-%d", nextID())},
		PortfolioID: portfolioID,
		Name:        name,
	}
}

// NewBuy builds a buy transaction dated by day offset from a fixed epoch,
// so fixtures stay chronologically ordered without touching the clock.
func NewBuy(portfolioID, accountID, symbol string, assetType models.AssetType, qty, price float64, dayOffset int) models.Transaction {
	return newTx(portfolioID, accountID, symbol, assetType, models.TransactionBuy, qty, price, dayOffset)
}

// NewSell builds a sell transaction.
func NewSell(portfolioID, accountID, symbol string, assetType models.AssetType, qty, price float64, dayOffset int) models.Transaction {
	return newTx(portfolioID, accountID, symbol, assetType, models.TransactionSell, qty, price, dayOffset)
}

func newTx(portfolioID, accountID, symbol string, assetType models.AssetType, side models.TransactionSide, qty, price float64, dayOffset int) models.Transaction {
	epoch := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return models.Transaction{
		Base:        models.Base{ID: fmt.Sprintf("tx-%d", nextID())},
		PortfolioID: portfolioID,
		AccountID:   accountID,
		Symbol:      symbol,
		AssetType:   assetType,
		Side:        side,
		Quantity:    qty,
		Price:       price,
		Date:        epoch.AddDate(0, 0, dayOffset),
		Source:      models.SourceUser,
	}
}
