package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"oracle/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DailyClaimCooldown is the minimum interval between daily bonus claims.
const DailyClaimCooldown = 24 * time.Hour

// LedgerService owns every OP balance mutation. Each deduct or credit writes
// exactly one LedgerEntry and adjusts UserProfile.OPBalance in the same
// database transaction, so a reader never sees one without the other.
type LedgerService struct {
	db          *gorm.DB
	signupBonus int64
	dailyBonus  int64
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(db *gorm.DB, signupBonus, dailyBonus int64) *LedgerService {
	return &LedgerService{
		db:          db,
		signupBonus: signupBonus,
		dailyBonus:  dailyBonus,
	}
}

// GetOrCreateUser returns the profile for wallet, creating it with the signup
// bonus on first touch. The bonus itself is a ledger entry.
func (s *LedgerService) GetOrCreateUser(wallet string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := s.db.Where("wallet = ?", wallet).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		profile = models.UserProfile{Wallet: wallet}
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		if s.signupBonus > 0 {
			if _, err := s.CreditTx(tx, wallet, s.signupBonus, models.LedgerTypeSignupBonus, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// A concurrent first touch may have created the row already.
		if isUniqueViolation(err) {
			var existing models.UserProfile
			if ferr := s.db.Where("wallet = ?", wallet).First(&existing).Error; ferr == nil {
				return &existing, nil
			}
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	if err := s.db.Where("wallet = ?", wallet).First(&profile).Error; err != nil {
		return nil, fmt.Errorf("failed to reload profile: %w", err)
	}
	log.Printf("[Ledger] Created profile for %s with signup bonus %d OP", wallet, s.signupBonus)
	return &profile, nil
}

// Deduct removes amount OP from wallet. It fails closed with
// ErrInsufficientBalance and never drives a balance negative.
func (s *LedgerService) Deduct(wallet string, amount int64, txType string, refID *string) (int64, error) {
	var newBalance int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		newBalance, err = s.DeductTx(tx, wallet, amount, txType, refID)
		return err
	})
	return newBalance, err
}

// DeductTx is Deduct running inside a caller-owned transaction, so callers can
// make the deduction atomic with their own writes (e.g. a Prediction insert).
func (s *LedgerService) DeductTx(tx *gorm.DB, wallet string, amount int64, txType string, refID *string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("deduct amount must be positive, got %d", amount)
	}

	// Conditional decrement: the balance check and the update are one
	// statement, so two concurrent deductions cannot both pass the check.
	res := tx.Model(&models.UserProfile{}).
		Where("wallet = ? AND op_balance >= ?", wallet, amount).
		Updates(map[string]interface{}{
			"op_balance":     gorm.Expr("op_balance - ?", amount),
			"total_op_spent": gorm.Expr("total_op_spent + ?", amount),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to deduct balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, ErrInsufficientBalance
	}

	return s.appendEntryTx(tx, wallet, -amount, txType, refID)
}

// Credit adds amount OP to wallet and records the matching ledger entry.
func (s *LedgerService) Credit(wallet string, amount int64, txType string, refID *string) (int64, error) {
	var newBalance int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		newBalance, err = s.CreditTx(tx, wallet, amount, txType, refID)
		return err
	})
	return newBalance, err
}

// CreditTx is Credit running inside a caller-owned transaction.
func (s *LedgerService) CreditTx(tx *gorm.DB, wallet string, amount int64, txType string, refID *string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	updates := map[string]interface{}{
		"op_balance": gorm.Expr("op_balance + ?", amount),
	}
	switch txType {
	case models.LedgerTypeRefund:
		// A refund restores spent OP rather than earning new OP.
		updates["total_op_spent"] = gorm.Expr("total_op_spent - ?", amount)
	default:
		updates["total_op_earned"] = gorm.Expr("total_op_earned + ?", amount)
	}

	res := tx.Model(&models.UserProfile{}).Where("wallet = ?", wallet).Updates(updates)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to credit balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("no profile for wallet %s", wallet)
	}

	return s.appendEntryTx(tx, wallet, amount, txType, refID)
}

// Compensate issues the compensating credit for a committed deduction whose
// follow-up step failed. A failure here is real balance drift and is surfaced
// as ErrCompensationFailed, never swallowed.
func (s *LedgerService) Compensate(wallet string, amount int64, refID *string) (int64, error) {
	newBalance, err := s.Credit(wallet, amount, models.LedgerTypeRefund, refID)
	if err != nil {
		log.Printf("[Ledger] CRITICAL: compensating credit of %d OP to %s lost: %v", amount, wallet, err)
		return 0, fmt.Errorf("%w: %v", ErrCompensationFailed, err)
	}
	log.Printf("[Ledger] Compensated %s with %d OP after failed entry", wallet, amount)
	return newBalance, nil
}

// ClaimDailyBonus credits the daily bonus once per 24-hour window.
func (s *LedgerService) ClaimDailyBonus(wallet string) (int64, error) {
	if _, err := s.GetOrCreateUser(wallet); err != nil {
		return 0, err
	}

	var newBalance int64
	now := time.Now().UTC()
	cutoff := now.Add(-DailyClaimCooldown)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Claim the cooldown slot first; losing the conditional update means
		// a claim already happened inside the window.
		res := tx.Model(&models.UserProfile{}).
			Where("wallet = ? AND (last_daily_claim IS NULL OR last_daily_claim <= ?)", wallet, cutoff).
			Update("last_daily_claim", now)
		if res.Error != nil {
			return fmt.Errorf("failed to stamp daily claim: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyClaimed
		}

		var err error
		newBalance, err = s.CreditTx(tx, wallet, s.dailyBonus, models.LedgerTypeDailyClaim, nil)
		return err
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// History returns the wallet's ledger entries, newest first.
func (s *LedgerService) History(wallet string, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.LedgerEntry
	err := s.db.Where("wallet = ?", wallet).
		Order("created_at DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger history: %w", err)
	}
	return entries, nil
}

// ReconcileWallet recomputes the ledger sum for a wallet and returns the
// drift against the stored balance. Zero drift is the core invariant.
func (s *LedgerService) ReconcileWallet(wallet string) (int64, error) {
	var profile models.UserProfile
	if err := s.db.Where("wallet = ?", wallet).First(&profile).Error; err != nil {
		return 0, fmt.Errorf("failed to load profile: %w", err)
	}

	var sum int64
	err := s.db.Model(&models.LedgerEntry{}).
		Where("wallet = ?", wallet).
		Select("COALESCE(SUM(amount), 0)").Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger: %w", err)
	}

	drift := profile.OPBalance - sum
	if drift != 0 {
		log.Printf("[Ledger] CRITICAL: wallet %s balance drift %d (balance=%d ledger=%d)",
			wallet, drift, profile.OPBalance, sum)
	}
	return drift, nil
}

// appendEntryTx writes one audit record with the post-mutation balance snapshot.
func (s *LedgerService) appendEntryTx(tx *gorm.DB, wallet string, amount int64, txType string, refID *string) (int64, error) {
	var profile models.UserProfile
	if err := tx.Where("wallet = ?", wallet).First(&profile).Error; err != nil {
		return 0, fmt.Errorf("failed to reload profile: %w", err)
	}

	entry := models.LedgerEntry{
		ID:           uuid.New(),
		Wallet:       wallet,
		Amount:       amount,
		BalanceAfter: profile.OPBalance,
		Type:         txType,
		ReferenceID:  refID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, fmt.Errorf("failed to write ledger entry: %w", err)
	}
	return profile.OPBalance, nil
}

// isUniqueViolation matches unique constraint errors from both the Postgres
// and the sqlite drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
