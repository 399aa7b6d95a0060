package models

import "fmt"

// SellPlan is a persisted multi-account sell-then-reinvest instruction set.
// Percentage is a share of total portfolio value, not of the position.
// CurrentPrice is the price of Symbol recorded at plan creation; sell legs
// execute at this price, buy legs are priced live at execution time.
type SellPlan struct {
	Base
	PortfolioID  string    `gorm:"type:uuid;not null;index" json:"portfolio_id"`
	Symbol       string    `gorm:"not null" json:"symbol"`
	AssetType    AssetType `gorm:"not null" json:"asset_type"`
	Percentage   float64   `gorm:"not null" json:"percentage"`
	CurrentPrice float64   `gorm:"not null" json:"current_price"`

	AccountAllocations []AccountAllocation `gorm:"foreignKey:SellPlanID" json:"account_allocations"`
}

// AccountAllocation is one account's slice of a sell plan. ToSell is fixed
// at plan creation from the account's pro-rata share of the position.
type AccountAllocation struct {
	Base
	SellPlanID  string  `gorm:"type:uuid;not null;index" json:"sell_plan_id"`
	AccountID   string  `gorm:"type:uuid;not null" json:"account_id"`
	AccountName string  `json:"account_name"`
	ToSell      float64 `gorm:"not null" json:"to_sell"`

	BuyAllocations []BuyAllocation `gorm:"foreignKey:AccountAllocationID" json:"buy_allocations"`
}

// BuyAllocation assigns a percentage of one account's sell proceeds to a
// buy symbol. Within an AccountAllocation the percentages sum to 100.
type BuyAllocation struct {
	Base
	AccountAllocationID string    `gorm:"type:uuid;not null;index" json:"account_allocation_id"`
	Symbol              string    `gorm:"not null" json:"symbol"`
	AssetType           AssetType `gorm:"not null" json:"asset_type"`
	Percentage          float64   `gorm:"not null" json:"percentage"`
}

// PlanCompletion is one completed leg of a sell plan, persisted as its
// completion key.
type PlanCompletion struct {
	Base
	SellPlanID string `gorm:"type:uuid;not null;index" json:"sell_plan_id"`
	Key        string `gorm:"uniqueIndex;not null" json:"key"`
}

// SellCompletionKey identifies a completed sell leg.
func SellCompletionKey(planID, accountID string) string {
	return fmt.Sprintf("%s:%s", planID, accountID)
}

// BuyCompletionKey identifies a completed buy leg.
func BuyCompletionKey(planID, accountID, buySymbol string) string {
	return fmt.Sprintf("%s:%s:%s", planID, accountID, buySymbol)
}

// CompletionKeys returns every key that must be present for the plan to be
// fully completed: one sell key per account allocation and one buy key per
// buy allocation under it.
func (p *SellPlan) CompletionKeys() []string {
	var keys []string
	for _, alloc := range p.AccountAllocations {
		keys = append(keys, SellCompletionKey(p.ID, alloc.AccountID))
		for _, buy := range alloc.BuyAllocations {
			keys = append(keys, BuyCompletionKey(p.ID, alloc.AccountID, buy.Symbol))
		}
	}
	return keys
}
