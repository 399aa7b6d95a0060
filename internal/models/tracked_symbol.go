package models

// TrackedSymbol is a symbol watched within a scope without necessarily
// holding a position. Tracked symbols with zero net quantity still appear
// as columns in the quick-overview grid.
type TrackedSymbol struct {
	Base
	ScopeKey  string    `gorm:"not null;index:idx_tracked_scope_symbol,unique" json:"scope_key"`
	Symbol    string    `gorm:"not null;index:idx_tracked_scope_symbol,unique" json:"symbol"`
	AssetType AssetType `gorm:"not null" json:"asset_type"`
}
