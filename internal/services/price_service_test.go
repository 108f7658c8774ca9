package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func priceServer(t *testing.T, prices map[string]float64, calls *int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		id := r.URL.Query().Get("ids")
		usd, ok := prices[id]
		if !ok {
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprintf(w, `{"%s":{"usd":%v}}`, id, usd)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPriceFetchAndCache(t *testing.T) {
	var calls int64
	srv := priceServer(t, map[string]float64{"solana": 195.83}, &calls)
	svc := NewPriceService(srv.URL)

	price, err := svc.Price(context.Background(), "solana")
	if err != nil {
		t.Fatalf("Price failed: %v", err)
	}
	if price.String() != "195.83" {
		t.Errorf("expected 195.83, got %s", price)
	}

	// Second lookup inside the TTL comes from cache.
	if _, err := svc.Price(context.Background(), "solana"); err != nil {
		t.Fatalf("cached Price failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls)
	}
}

func TestPriceUnknownToken(t *testing.T) {
	var calls int64
	srv := priceServer(t, nil, &calls)
	svc := NewPriceService(srv.URL)

	_, err := svc.Price(context.Background(), "no-such-token")
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestPriceStaleFallback(t *testing.T) {
	var calls int64
	healthy := priceServer(t, map[string]float64{"solana": 100}, &calls)
	svc := NewPriceService(healthy.URL)

	if _, err := svc.Price(context.Background(), "solana"); err != nil {
		t.Fatalf("warm-up fetch failed: %v", err)
	}

	// Upstream dies and the cache entry ages out; the stale price is still
	// served rather than failing the lookup.
	healthy.Close()
	svc.lastFetch["solana"] = svc.lastFetch["solana"].Add(-2 * priceCacheTTL)

	price, err := svc.Price(context.Background(), "solana")
	if err != nil {
		t.Fatalf("expected stale price, got error: %v", err)
	}
	if price.String() != "100" {
		t.Errorf("expected stale price 100, got %s", price)
	}
}

func TestPriceServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)
	svc := NewPriceService(srv.URL)

	_, err := svc.Price(context.Background(), "solana")
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
}
