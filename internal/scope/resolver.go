package scope

import (
	apperrors "folio/internal/errors"
	"folio/internal/ledger"
	"folio/internal/models"
)

// combinedOptInThreshold is the visible-portfolio count at or below which
// every visible portfolio joins the combined-all scope regardless of its
// IncludeInCombined flag. Small households don't need to opt in explicitly.
const combinedOptInThreshold = 2

// Resolver filters and merges transactions for a scope and enforces
// owner-visibility rules. It operates over an immutable snapshot of the
// application state taken at construction time.
type Resolver struct {
	portfolios   []models.Portfolio
	accounts     []models.Account
	groups       []models.CombinedGroup
	transactions []models.Transaction
}

// NewResolver creates a resolver over a state snapshot.
func NewResolver(
	portfolios []models.Portfolio,
	accounts []models.Account,
	groups []models.CombinedGroup,
	transactions []models.Transaction,
) *Resolver {
	return &Resolver{
		portfolios:   portfolios,
		accounts:     accounts,
		groups:       groups,
		transactions: transactions,
	}
}

// VisiblePortfolios returns the portfolios the viewer may see: a guest sees
// only unowned portfolios, a master sees all, a regular owner sees unowned
// portfolios plus those listing them as an owner.
func (r *Resolver) VisiblePortfolios(viewer *models.Owner) []models.Portfolio {
	var visible []models.Portfolio
	for i := range r.portfolios {
		p := &r.portfolios[i]
		switch {
		case viewer.IsMaster():
			visible = append(visible, *p)
		case p.Unowned():
			visible = append(visible, *p)
		case !viewer.IsGuest() && p.OwnedBy(viewer.ID):
			visible = append(visible, *p)
		}
	}
	return visible
}

// Transactions resolves the raw transaction list for a scope.
func (r *Resolver) Transactions(s Scope, viewer *models.Owner) ([]models.Transaction, error) {
	switch s.Kind {
	case KindAccount:
		account, err := r.visibleAccount(s.ID, viewer)
		if err != nil {
			return nil, err
		}
		return r.filter(func(tx *models.Transaction) bool {
			return tx.AccountID == account.ID
		}), nil

	case KindPortfolio:
		if _, err := r.visiblePortfolio(s.ID, viewer); err != nil {
			return nil, err
		}
		return r.filter(func(tx *models.Transaction) bool {
			return tx.PortfolioID == s.ID
		}), nil

	case KindCombinedAll:
		members := r.combinedMembers(viewer)
		return r.filter(func(tx *models.Transaction) bool {
			return members[tx.PortfolioID]
		}), nil

	case KindGroup:
		group, err := r.accessibleGroup(s.ID, viewer)
		if err != nil {
			return nil, err
		}
		members := make(map[string]bool, len(group.PortfolioIDs))
		for _, id := range group.PortfolioIDs {
			members[id] = true
		}
		return r.filter(func(tx *models.Transaction) bool {
			return members[tx.PortfolioID]
		}), nil

	default:
		return nil, apperrors.ErrInvalidScope
	}
}

// Holdings resolves net holdings for a scope. Transactions from all member
// portfolios are merged before reducing, so the same symbol held in two
// member portfolios produces a single Holding.
func (r *Resolver) Holdings(s Scope, viewer *models.Owner) ([]models.Holding, error) {
	txs, err := r.Transactions(s, viewer)
	if err != nil {
		return nil, err
	}
	return ledger.ComputeHoldings(txs), nil
}

// Accounts returns the accounts belonging to the scope, in state order.
func (r *Resolver) Accounts(s Scope, viewer *models.Owner) ([]models.Account, error) {
	switch s.Kind {
	case KindAccount:
		account, err := r.visibleAccount(s.ID, viewer)
		if err != nil {
			return nil, err
		}
		return []models.Account{*account}, nil

	case KindPortfolio:
		if _, err := r.visiblePortfolio(s.ID, viewer); err != nil {
			return nil, err
		}
		return r.accountsOf(map[string]bool{s.ID: true}), nil

	case KindCombinedAll:
		return r.accountsOf(r.combinedMembers(viewer)), nil

	case KindGroup:
		group, err := r.accessibleGroup(s.ID, viewer)
		if err != nil {
			return nil, err
		}
		members := make(map[string]bool, len(group.PortfolioIDs))
		for _, id := range group.PortfolioIDs {
			members[id] = true
		}
		return r.accountsOf(members), nil

	default:
		return nil, apperrors.ErrInvalidScope
	}
}

// combinedMembers returns the portfolio id set for the combined-all scope:
// visible portfolios with IncludeInCombined set, or every visible portfolio
// when the viewer sees combinedOptInThreshold or fewer.
func (r *Resolver) combinedMembers(viewer *models.Owner) map[string]bool {
	visible := r.VisiblePortfolios(viewer)
	members := make(map[string]bool, len(visible))
	includeAll := len(visible) <= combinedOptInThreshold
	for i := range visible {
		if includeAll || visible[i].IncludeInCombined {
			members[visible[i].ID] = true
		}
	}
	return members
}

func (r *Resolver) visiblePortfolio(id string, viewer *models.Owner) (*models.Portfolio, error) {
	for i := range r.portfolios {
		p := &r.portfolios[i]
		if p.ID != id {
			continue
		}
		if viewer.IsMaster() || p.Unowned() || (!viewer.IsGuest() && p.OwnedBy(viewer.ID)) {
			return p, nil
		}
		return nil, apperrors.ErrForbidden
	}
	return nil, apperrors.ErrPortfolioNotFound
}

func (r *Resolver) visibleAccount(id string, viewer *models.Owner) (*models.Account, error) {
	for i := range r.accounts {
		a := &r.accounts[i]
		if a.ID != id {
			continue
		}
		if _, err := r.visiblePortfolio(a.PortfolioID, viewer); err != nil {
			return nil, err
		}
		return a, nil
	}
	return nil, apperrors.ErrAccountNotFound
}

func (r *Resolver) accessibleGroup(id string, viewer *models.Owner) (*models.CombinedGroup, error) {
	for i := range r.groups {
		g := &r.groups[i]
		if g.ID != id {
			continue
		}
		if !g.AccessibleBy(viewer) {
			return nil, apperrors.ErrForbidden
		}
		return g, nil
	}
	return nil, apperrors.ErrGroupNotFound
}

func (r *Resolver) accountsOf(portfolioIDs map[string]bool) []models.Account {
	var accounts []models.Account
	for i := range r.accounts {
		if portfolioIDs[r.accounts[i].PortfolioID] {
			accounts = append(accounts, r.accounts[i])
		}
	}
	return accounts
}

func (r *Resolver) filter(keep func(*models.Transaction) bool) []models.Transaction {
	var txs []models.Transaction
	for i := range r.transactions {
		if keep(&r.transactions[i]) {
			txs = append(txs, r.transactions[i])
		}
	}
	return txs
}
