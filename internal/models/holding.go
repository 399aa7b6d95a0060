package models

// Holding is the derived net position for a symbol within a scope. It is
// recomputed from transactions on every read and never persisted.
type Holding struct {
	Symbol      string    `json:"symbol"`
	AssetType   AssetType `json:"asset_type"`
	Quantity    float64   `json:"quantity"`
	AverageCost float64   `json:"average_cost"`
}
