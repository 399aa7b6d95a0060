package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"folio/internal/models"
)

const (
	yahooBatchMax = 50
	yahooUA       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"
)

// yahooQuoteResponse is the top-level Yahoo Finance API response.
type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []yahooQuoteResult `json:"result"`
		Error  *json.RawMessage   `json:"error"`
	} `json:"quoteResponse"`
}

// yahooQuoteResult is a single quote result from Yahoo Finance.
type yahooQuoteResult struct {
	Symbol             string  `json:"symbol"`
	ShortName          string  `json:"shortName"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
}

// YahooProvider fetches stock prices from Yahoo Finance.
type YahooProvider struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
}

// NewYahooProvider creates a new Yahoo Finance price provider.
func NewYahooProvider(httpClient *http.Client, baseURL string) *YahooProvider {
	return &YahooProvider{httpClient: httpClient, baseURL: baseURL}
}

// Name returns the provider's display name.
func (p *YahooProvider) Name() string { return "Yahoo Finance" }

// Supports returns true for the stock asset type.
func (p *YahooProvider) Supports(assetType models.AssetType) bool {
	return assetType == models.AssetTypeStock
}

// GetQuote fetches the current quote for a single symbol.
func (p *YahooProvider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
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

// GetBatchQuotes fetches quotes for several symbols, batching requests at
// yahooBatchMax symbols each.
func (p *YahooProvider) GetBatchQuotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	tickers := make([]string, 0, len(symbols))
	for _, s := range symbols {
		tickers = append(tickers, strings.ToUpper(strings.TrimSpace(s)))
	}

	quotes := make(map[string]Quote, len(tickers))
	for i := 0; i < len(tickers); i += yahooBatchMax {
		end := min(i+yahooBatchMax, len(tickers))
		if err := p.fetchBatch(ctx, tickers[i:end], quotes); err != nil {
			return nil, err
		}
	}
	return quotes, nil
}

// fetchBatch fetches prices for a single batch of tickers.
func (p *YahooProvider) fetchBatch(ctx context.Context, tickers []string, out map[string]Quote) error {
	url := p.baseURL + "?symbols=" + strings.Join(tickers, ",")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", yahooUA)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var quoteResp yahooQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteResp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if quoteResp.QuoteResponse.Error != nil {
		return fmt.Errorf("yahoo error: %s", string(*quoteResp.QuoteResponse.Error))
	}

	for _, r := range quoteResp.QuoteResponse.Result {
		if r.RegularMarketPrice <= 0 {
			continue
		}
		out[r.Symbol] = Quote{Symbol: r.Symbol, Price: r.RegularMarketPrice, Name: r.ShortName}
	}
	return nil
}
