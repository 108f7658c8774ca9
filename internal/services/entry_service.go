package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"oracle/internal/models"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"gorm.io/gorm"
)

// BalanceGate checks that a wallet holds the minimum token balance required
// to enter prize-bearing markets.
type BalanceGate interface {
	HasMinimumBalance(ctx context.Context, wallet string) (bool, error)
}

// EntryService validates and records market entries. The OP deduction and the
// Prediction insert run in one database transaction, so a failed insert rolls
// the fee back without a compensation step; the loud compensation path exists
// for stores where that guarantee cannot hold.
type EntryService struct {
	db           *gorm.DB
	ledger       *LedgerService
	gate         BalanceGate
	adminWallets map[string]bool
}

// NewEntryService creates a new EntryService
func NewEntryService(db *gorm.DB, ledger *LedgerService, gate BalanceGate, adminWallets []string) *EntryService {
	admins := make(map[string]bool, len(adminWallets))
	for _, w := range adminWallets {
		admins[w] = true
	}
	return &EntryService{
		db:           db,
		ledger:       ledger,
		gate:         gate,
		adminWallets: admins,
	}
}

// EnterPrediction validates the market window and balance, deducts the entry
// fee and inserts the Prediction. At most one prediction per (wallet, market)
// can exist; the store's unique index is the final arbiter under concurrency.
func (s *EntryService) EnterPrediction(ctx context.Context, wallet string, marketID uint, optionID string) (*models.Prediction, error) {
	if err := validateWallet(wallet); err != nil {
		return nil, err
	}

	var market models.Market
	if err := s.db.First(&market, marketID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, fmt.Errorf("failed to load market: %w", err)
	}

	now := time.Now().UTC()
	if market.Status != models.MarketStatusActive || !now.Before(market.EndTime) {
		return nil, ErrMarketNotOpen
	}
	if !market.HasOption(optionID) {
		return nil, ErrInvalidChoice
	}

	// Prize-bearing markets are token gated; admins bypass the check.
	if market.PrizePoolLamports > 0 && s.gate != nil && !s.adminWallets[wallet] {
		ok, err := s.gate.HasMinimumBalance(ctx, wallet)
		if err != nil {
			return nil, fmt.Errorf("token gate check failed: %w", err)
		}
		if !ok {
			return nil, ErrTokenGate
		}
	}

	if _, err := s.ledger.GetOrCreateUser(wallet); err != nil {
		return nil, err
	}

	// Cheap pre-check; the unique index still catches the race.
	var count int64
	err := s.db.Model(&models.Prediction{}).
		Where("market_id = ? AND wallet = ?", marketID, wallet).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check existing entry: %w", err)
	}
	if count > 0 {
		return nil, ErrAlreadyEntered
	}

	prediction := &models.Prediction{
		ID:        uuid.New(),
		MarketID:  marketID,
		Wallet:    wallet,
		OptionID:  optionID,
		OPWagered: market.EntryCostOP,
		CreatedAt: now,
	}

	ref := marketRef(marketID)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.ledger.DeductTx(tx, wallet, market.EntryCostOP, models.LedgerTypeEntryFee, ref); err != nil {
			return err
		}
		if err := tx.Create(prediction).Error; err != nil {
			return err
		}
		return tx.Model(&models.UserProfile{}).
			Where("wallet = ?", wallet).
			Update("total_markets_entered", gorm.Expr("total_markets_entered + 1")).Error
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			return nil, err
		}
		if isUniqueViolation(err) {
			return nil, ErrAlreadyEntered
		}
		return nil, fmt.Errorf("failed to record entry: %w", err)
	}

	log.Printf("[Entry] %s entered market %d on %s for %d OP", wallet, marketID, optionID, market.EntryCostOP)
	return prediction, nil
}

// validateWallet checks the address is well-formed base58 of key length.
func validateWallet(wallet string) error {
	raw, err := base58.Decode(wallet)
	if err != nil || len(raw) != 32 {
		return ErrInvalidWallet
	}
	return nil
}

// marketRef renders a market id as a ledger reference.
func marketRef(marketID uint) *string {
	ref := fmt.Sprintf("market:%d", marketID)
	return &ref
}
