package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// PriceLookup returns a current price for a token identifier, or an error
// wrapping ErrPriceUnavailable when no price can be obtained. No retry loop
// lives here; callers drop the candidate and retry on the next batch pass.
type PriceLookup interface {
	Price(ctx context.Context, tokenID string) (decimal.Decimal, error)
}

// ErrPriceUnavailable marks a token whose price could not be fetched.
var ErrPriceUnavailable = fmt.Errorf("price unavailable")

const priceCacheTTL = 30 * time.Second

// PriceService fetches token prices from CoinGecko with a short in-memory
// cache. The cache is a read-through convenience only, never a source of
// truth for settlement.
type PriceService struct {
	baseURL string
	client  *http.Client

	pricesMux sync.RWMutex
	prices    map[string]decimal.Decimal
	lastFetch map[string]time.Time
}

// NewPriceService creates a new PriceService
func NewPriceService(baseURL string) *PriceService {
	return &PriceService{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		prices:    make(map[string]decimal.Decimal),
		lastFetch: make(map[string]time.Time),
	}
}

// Price returns the current USD price for a CoinGecko token id.
func (ps *PriceService) Price(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	ps.pricesMux.RLock()
	price, hasPrice := ps.prices[tokenID]
	fetched, hasFetch := ps.lastFetch[tokenID]
	ps.pricesMux.RUnlock()

	if hasPrice && hasFetch && time.Since(fetched) < priceCacheTTL {
		return price, nil
	}

	fresh, err := ps.fetchPrice(ctx, tokenID)
	if err != nil {
		// Serve a stale cached price over no price at all.
		if hasPrice {
			log.Printf("[PriceService] Using stale price for %s: %v", tokenID, err)
			return price, nil
		}
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, tokenID, err)
	}

	ps.pricesMux.Lock()
	ps.prices[tokenID] = fresh
	ps.lastFetch[tokenID] = time.Now()
	ps.pricesMux.Unlock()

	return fresh, nil
}

// fetchPrice calls CoinGecko's simple price endpoint.
// Example: GET {base}/simple/price?ids=solana&vs_currencies=usd
// Response: {"solana":{"usd":195.83}}
func (ps *PriceService) fetchPrice(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd",
		ps.baseURL, url.QueryEscape(tokenID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := ps.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return decimal.Zero, fmt.Errorf("returned %d: %s", resp.StatusCode, string(body))
	}

	var result map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return decimal.Zero, fmt.Errorf("parse error: %w", err)
	}

	usd, ok := result[tokenID]["usd"]
	if !ok || usd == 0 {
		return decimal.Zero, fmt.Errorf("no USD price in response")
	}

	return decimal.NewFromFloat(usd), nil
}
