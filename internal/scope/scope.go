// Package scope resolves a requested view (account, portfolio, combined-all
// or combined group) into the transactions and holdings visible to an owner.
package scope

import (
	apperrors "folio/internal/errors"
)

// Kind tags the scope variant. The variant is resolved once at the HTTP
// boundary instead of being re-sniffed from id shapes downstream.
type Kind string

const (
	KindAccount     Kind = "account"
	KindPortfolio   Kind = "portfolio"
	KindCombinedAll Kind = "combined"
	KindGroup       Kind = "group"
)

// Scope identifies the granularity over which holdings and transactions are
// resolved. ID is empty for the combined-all scope.
type Scope struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id,omitempty"`
}

// Parse validates a (kind, id) pair coming off the wire.
func Parse(kind, id string) (Scope, error) {
	switch Kind(kind) {
	case KindAccount, KindPortfolio, KindGroup:
		if id == "" {
			return Scope{}, apperrors.WithMessage(apperrors.ErrInvalidScope, "Scope id is required for kind "+kind)
		}
		return Scope{Kind: Kind(kind), ID: id}, nil
	case KindCombinedAll:
		return Scope{Kind: KindCombinedAll}, nil
	default:
		return Scope{}, apperrors.ErrInvalidScope
	}
}

// Account returns the scope for a single account.
func Account(id string) Scope { return Scope{Kind: KindAccount, ID: id} }

// Portfolio returns the scope for a single portfolio.
func Portfolio(id string) Scope { return Scope{Kind: KindPortfolio, ID: id} }

// CombinedAll returns the synthetic scope over every included portfolio.
func CombinedAll() Scope { return Scope{Kind: KindCombinedAll} }

// Group returns the scope for a combined group.
func Group(id string) Scope { return Scope{Kind: KindGroup, ID: id} }

// Key returns a stable string key for the scope, used to key tracked
// symbols and allocation snapshots.
func (s Scope) Key() string {
	if s.Kind == KindCombinedAll {
		return string(KindCombinedAll)
	}
	return string(s.Kind) + ":" + s.ID
}
