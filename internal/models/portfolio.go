package models

// Portfolio groups the accounts that are managed together (e.g. one per
// brokerage). OwnerIDs is empty for portfolios visible to everyone in the
// household.
type Portfolio struct {
	Base
	Name              string     `gorm:"not null" json:"name"`
	OwnerIDs          StringList `gorm:"serializer:json" json:"owner_ids"`
	IncludeInCombined bool       `gorm:"default:true" json:"include_in_combined"`

	// Relationships
	Accounts []Account `gorm:"foreignKey:PortfolioID" json:"accounts,omitempty"`
}

// Unowned reports whether the portfolio has no assigned owners.
func (p *Portfolio) Unowned() bool { return len(p.OwnerIDs) == 0 }

// OwnedBy reports whether ownerID is listed as an owner of the portfolio.
func (p *Portfolio) OwnedBy(ownerID string) bool { return p.OwnerIDs.Contains(ownerID) }

// Account is a single brokerage or wallet account. Owned by exactly one
// portfolio.
type Account struct {
	Base
	PortfolioID string `gorm:"type:uuid;not null;index" json:"portfolio_id"`
	Name        string `gorm:"not null" json:"name"`
}

// StringList is a []string stored as a JSON column.
type StringList []string

// Contains reports whether the list includes s.
func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}
