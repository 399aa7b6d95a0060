package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"folio/internal/models"
)

// coinIDs maps common ticker symbols to CoinGecko coin ids. Symbols not in
// the map are passed through lowercased, which works for coins whose id
// matches their ticker.
var coinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"ADA":   "cardano",
	"XRP":   "ripple",
	"DOT":   "polkadot",
	"DOGE":  "dogecoin",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"MATIC": "matic-network",
	"LTC":   "litecoin",
	"UNI":   "uniswap",
	"ATOM":  "cosmos",
	"XLM":   "stellar",
}

// CoinGeckoProvider fetches crypto prices from CoinGecko.
type CoinGeckoProvider struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
}

// NewCoinGeckoProvider creates a new CoinGecko price provider.
func NewCoinGeckoProvider(httpClient *http.Client, baseURL string) *CoinGeckoProvider {
	return &CoinGeckoProvider{httpClient: httpClient, baseURL: baseURL}
}

// Name returns the provider's display name.
func (p *CoinGeckoProvider) Name() string { return "CoinGecko" }

// Supports returns true for the crypto asset type only.
func (p *CoinGeckoProvider) Supports(assetType models.AssetType) bool {
	return assetType == models.AssetTypeCrypto
}

func coinID(symbol string) string {
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	if id, ok := coinIDs[upper]; ok {
		return id
	}
	return strings.ToLower(upper)
}

// GetQuote fetches the current quote for a single symbol.
func (p *CoinGeckoProvider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	batch, err := p.GetBatchQuotes(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	quote, ok := batch[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}
	return &quote, nil
}

// GetBatchQuotes fetches USD prices for several symbols from the
// simple/price endpoint.
func (p *CoinGeckoProvider) GetBatchQuotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	idToSymbol := make(map[string]string, len(symbols))
	ids := make([]string, 0, len(symbols))
	for _, s := range symbols {
		id := coinID(s)
		idToSymbol[id] = strings.ToUpper(strings.TrimSpace(s))
		ids = append(ids, id)
	}

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", p.baseURL, strings.Join(ids, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// Response shape: {"bitcoin": {"usd": 64000.12}, ...}
	var body map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	quotes := make(map[string]Quote, len(body))
	for id, prices := range body {
		symbol, ok := idToSymbol[id]
		if !ok {
			continue
		}
		usd, ok := prices["usd"]
		if !ok || usd <= 0 {
			continue
		}
		quotes[symbol] = Quote{Symbol: symbol, Price: usd}
	}
	return quotes, nil
}
