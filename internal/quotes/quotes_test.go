package quotes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"folio/internal/models"
	"folio/internal/testutil"
)

// newYahooMockServer serves v7 quote responses for the symbols in priceMap;
// symbols not in the map are omitted from the result set.
func newYahooMockServer(priceMap map[string]float64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbols := strings.Split(r.URL.Query().Get("symbols"), ",")
		var resp yahooQuoteResponse
		for _, s := range symbols {
			price, ok := priceMap[s]
			if !ok {
				continue
			}
			resp.QuoteResponse.Result = append(resp.QuoteResponse.Result, yahooQuoteResult{
				Symbol: s, ShortName: s + " Inc", RegularMarketPrice: price,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

// newCoinGeckoMockServer serves simple/price responses keyed by coin id.
func newCoinGeckoMockServer(priceMap map[string]float64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		body := make(map[string]map[string]float64)
		for _, id := range ids {
			if price, ok := priceMap[id]; ok {
				body[id] = map[string]float64{"usd": price}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func TestYahooProvider(t *testing.T) {
	t.Run("batch_quotes", func(t *testing.T) {
		srv := newYahooMockServer(map[string]float64{"AAPL": 50, "MSFT": 310.5})
		defer srv.Close()
		p := NewYahooProvider(srv.Client(), srv.URL)

		quotes, err := p.GetBatchQuotes(context.Background(), []string{"aapl", "MSFT", "GONE"})
		testutil.AssertNoError(t, err)
		if len(quotes) != 2 {
			t.Fatalf("expected 2 quotes, got %d", len(quotes))
		}
		if quotes["AAPL"].Price != 50 {
			t.Errorf("expected AAPL at 50, got %f", quotes["AAPL"].Price)
		}
		if _, ok := quotes["GONE"]; ok {
			t.Error("unknown symbol must be absent, not zero-priced")
		}
	})

	t.Run("single_quote_not_found", func(t *testing.T) {
		srv := newYahooMockServer(map[string]float64{})
		defer srv.Close()
		p := NewYahooProvider(srv.Client(), srv.URL)

		if _, err := p.GetQuote(context.Background(), "GONE"); err == nil {
			t.Error("expected error for unknown symbol")
		}
	})

	t.Run("http_error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()
		p := NewYahooProvider(srv.Client(), srv.URL)

		if _, err := p.GetQuote(context.Background(), "AAPL"); err == nil {
			t.Error("expected error on non-200 response")
		}
	})

	t.Run("supports", func(t *testing.T) {
		p := NewYahooProvider(http.DefaultClient, "")
		if !p.Supports(models.AssetTypeStock) || p.Supports(models.AssetTypeCrypto) {
			t.Error("yahoo must support stock only")
		}
	})
}

func TestCoinGeckoProvider(t *testing.T) {
	t.Run("maps_symbols_to_coin_ids", func(t *testing.T) {
		srv := newCoinGeckoMockServer(map[string]float64{"bitcoin": 64000.5, "ethereum": 3200})
		defer srv.Close()
		p := NewCoinGeckoProvider(srv.Client(), srv.URL)

		quotes, err := p.GetBatchQuotes(context.Background(), []string{"BTC", "eth"})
		testutil.AssertNoError(t, err)
		if quotes["BTC"].Price != 64000.5 {
			t.Errorf("expected BTC at 64000.5, got %f", quotes["BTC"].Price)
		}
		if quotes["ETH"].Price != 3200 {
			t.Errorf("expected ETH at 3200, got %f", quotes["ETH"].Price)
		}
	})

	t.Run("unknown_coin_absent", func(t *testing.T) {
		srv := newCoinGeckoMockServer(map[string]float64{})
		defer srv.Close()
		p := NewCoinGeckoProvider(srv.Client(), srv.URL)

		quotes, err := p.GetBatchQuotes(context.Background(), []string{"NOPE"})
		testutil.AssertNoError(t, err)
		if len(quotes) != 0 {
			t.Fatalf("expected no quotes, got %v", quotes)
		}
	})
}

func TestService(t *testing.T) {
	yahoo := newYahooMockServer(map[string]float64{"AAPL": 50})
	defer yahoo.Close()
	gecko := newCoinGeckoMockServer(map[string]float64{"bitcoin": 64000})
	defer gecko.Close()

	svc := NewService(
		NewYahooProvider(yahoo.Client(), yahoo.URL),
		NewCoinGeckoProvider(gecko.Client(), gecko.URL),
	)

	t.Run("routes_by_asset_type", func(t *testing.T) {
		q, err := svc.GetQuote(context.Background(), "AAPL", models.AssetTypeStock)
		testutil.AssertNoError(t, err)
		if q.Price != 50 {
			t.Errorf("expected 50, got %f", q.Price)
		}

		q, err = svc.GetQuote(context.Background(), "BTC", models.AssetTypeCrypto)
		testutil.AssertNoError(t, err)
		if q.Price != 64000 {
			t.Errorf("expected 64000, got %f", q.Price)
		}
	})

	t.Run("missing_price_is_price_unavailable", func(t *testing.T) {
		_, err := svc.GetQuote(context.Background(), "GONE", models.AssetTypeStock)
		testutil.AssertAppError(t, err, "PRICE_UNAVAILABLE")
	})

	t.Run("unknown_asset_type", func(t *testing.T) {
		_, err := svc.GetQuote(context.Background(), "X", models.AssetType("bond"))
		testutil.AssertAppError(t, err, "PRICE_UNAVAILABLE")
	})

	t.Run("empty_batch_is_empty_map", func(t *testing.T) {
		got, err := svc.GetBatchQuotes(context.Background(), nil, models.AssetTypeStock)
		testutil.AssertNoError(t, err)
		if len(got) != 0 {
			t.Errorf("expected empty map, got %v", got)
		}
	})
}
