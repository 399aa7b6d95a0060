// Package quotes fetches current market prices from external data sources.
// The engine only consumes prices; when none is available the affected
// operation is disabled rather than defaulted to zero.
package quotes

import (
	"context"

	apperrors "folio/internal/errors"
	"folio/internal/models"
)

// Quote is a successfully fetched price for a symbol.
type Quote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Name   string  `json:"name,omitempty"`
}

// Provider fetches current market prices for one asset type family.
type Provider interface {
	// Name returns the provider's display name (e.g., "Yahoo Finance").
	Name() string

	// Supports returns true if this provider can fetch prices for the given asset type.
	Supports(assetType models.AssetType) bool

	// GetQuote fetches the current quote for a single symbol.
	GetQuote(ctx context.Context, symbol string) (*Quote, error)

	// GetBatchQuotes fetches quotes for several symbols at once. Symbols
	// without a price are absent from the result; a provider returns as
	// many quotes as possible.
	GetBatchQuotes(ctx context.Context, symbols []string) (map[string]Quote, error)
}

// Service routes quote requests to the provider supporting the asset type.
type Service struct {
	providers []Provider
}

// NewService creates a quote service over the given providers.
func NewService(providers ...Provider) *Service {
	return &Service{providers: providers}
}

func (s *Service) providerFor(assetType models.AssetType) (Provider, error) {
	for _, p := range s.providers {
		if p.Supports(assetType) {
			return p, nil
		}
	}
	return nil, apperrors.WithMessage(apperrors.ErrPriceUnavailable, "No quote provider for asset type "+string(assetType))
}

// GetQuote returns the current quote for a symbol, or ErrPriceUnavailable
// when no provider can price it.
func (s *Service) GetQuote(ctx context.Context, symbol string, assetType models.AssetType) (*Quote, error) {
	p, err := s.providerFor(assetType)
	if err != nil {
		return nil, err
	}
	quote, err := p.GetQuote(ctx, symbol)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPriceUnavailable, err)
	}
	return quote, nil
}

// GetBatchQuotes returns quotes for the given symbols of one asset type.
// Missing symbols are absent from the map; only transport-level failures
// return an error.
func (s *Service) GetBatchQuotes(ctx context.Context, symbols []string, assetType models.AssetType) (map[string]Quote, error) {
	if len(symbols) == 0 {
		return map[string]Quote{}, nil
	}
	p, err := s.providerFor(assetType)
	if err != nil {
		return nil, err
	}
	batch, err := p.GetBatchQuotes(ctx, symbols)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPriceUnavailable, err)
	}
	return batch, nil
}
