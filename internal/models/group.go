package models

// CombinedGroup is a named view over multiple portfolios. It never owns
// transactions; resolving a group always resolves its member portfolios.
// Access is restricted to the creator, the owners in AllowedOwnerIDs, and
// masters.
type CombinedGroup struct {
	Base
	Name            string     `gorm:"not null" json:"name"`
	PortfolioIDs    StringList `gorm:"serializer:json" json:"portfolio_ids"`
	CreatorOwnerID  string     `gorm:"type:uuid;not null" json:"creator_owner_id"`
	AllowedOwnerIDs StringList `gorm:"serializer:json" json:"allowed_owner_ids"`
}

// AccessibleBy reports whether the given owner may resolve this group's data.
func (g *CombinedGroup) AccessibleBy(owner *Owner) bool {
	if owner.IsMaster() {
		return true
	}
	if g.CreatorOwnerID == owner.ID {
		return true
	}
	return g.AllowedOwnerIDs.Contains(owner.ID)
}
