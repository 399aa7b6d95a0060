package models

import "time"

// AssetType represents the type of investment asset.
type AssetType string

const (
	AssetTypeStock  AssetType = "stock"
	AssetTypeCrypto AssetType = "crypto"
)

// TransactionSide represents the direction of a trade.
type TransactionSide string

const (
	TransactionBuy  TransactionSide = "buy"
	TransactionSell TransactionSide = "sell"
)

// TransactionSource records how a transaction entered the ledger, so that
// synthetic adjustments stay distinguishable from real trades.
type TransactionSource string

const (
	// SourceUser is a trade entered by hand.
	SourceUser TransactionSource = "user"
	// SourceManual is a synthetic adjustment created by a quantity edit in
	// the quick-overview grid.
	SourceManual TransactionSource = "manual"
	// SourcePlan is a leg emitted by the sell-plan execution tracker.
	SourcePlan TransactionSource = "plan"
)

// Transaction is one buy or sell event. The append-only transaction list is
// the sole source of truth for holdings; a transaction is immutable once
// created except for deletion.
type Transaction struct {
	Base
	PortfolioID string            `gorm:"type:uuid;not null;index" json:"portfolio_id"`
	AccountID   string            `gorm:"type:uuid;not null;index" json:"account_id"`
	Symbol      string            `gorm:"not null" json:"symbol"`
	AssetType   AssetType         `gorm:"not null" json:"asset_type"`
	Side        TransactionSide   `gorm:"not null" json:"side"`
	Quantity    float64           `gorm:"not null" json:"quantity"`
	Price       float64           `gorm:"not null" json:"price"`
	Date        time.Time         `gorm:"not null;index" json:"date"`
	Notes       string            `json:"notes,omitempty"`
	Source      TransactionSource `gorm:"not null;default:'user'" json:"source"`
}

// SignedQuantity returns the quantity with sells negated.
func (t *Transaction) SignedQuantity() float64 {
	if t.Side == TransactionSell {
		return -t.Quantity
	}
	return t.Quantity
}
