package services

import (
	"context"
	"fmt"
	"testing"

	"oracle/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Well-known 32-byte base58 addresses, reused as test wallets.
const (
	walletA = "11111111111111111111111111111111"
	walletB = "So11111111111111111111111111111111111111112"
	walletC = "SysvarRent111111111111111111111111111111111"
	walletD = "Stake11111111111111111111111111111111111111"
)

// setupTestDB opens an isolated in-memory database per test. The named
// shared-cache DSN keeps the database alive across the pool's connections.
func setupTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(
		&models.UserProfile{},
		&models.LedgerEntry{},
		&models.Market{},
		&models.Prediction{},
		&models.Tournament{},
		&models.TournamentParticipant{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

// fakePrices is a PriceLookup backed by a fixed map. Tokens missing from the
// map are unavailable.
type fakePrices struct {
	prices map[string]decimal.Decimal
}

func (f *fakePrices) Price(_ context.Context, tokenID string) (decimal.Decimal, error) {
	p, ok := f.prices[tokenID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, tokenID)
	}
	return p, nil
}

// mustEncodeOptions builds the stored candidate set or fails the test.
func mustEncodeOptions(t *testing.T, opts []models.MarketOption) datatypes.JSON {
	t.Helper()
	raw, err := models.EncodeOptions(opts)
	if err != nil {
		t.Fatalf("failed to encode options: %v", err)
	}
	return raw
}
