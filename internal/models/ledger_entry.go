package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger transaction types
const (
	LedgerTypeSignupBonus = "signup_bonus"
	LedgerTypeEntryFee    = "entry_fee"
	LedgerTypePayout      = "payout"
	LedgerTypeDailyClaim  = "daily_claim"
	LedgerTypeAchievement = "achievement"
	LedgerTypeRefund      = "refund"
)

// LedgerEntry is an append-only audit record of one OP balance mutation.
// Entries are never updated or deleted.
type LedgerEntry struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Wallet       string    `gorm:"size:64;not null;index" json:"wallet"`
	Amount       int64     `gorm:"not null" json:"amount"` // signed; negative for deductions
	BalanceAfter int64     `gorm:"not null" json:"balance_after"`
	Type         string    `gorm:"size:50;not null;index" json:"type"`
	ReferenceID  *string   `gorm:"size:64" json:"reference_id,omitempty"` // usually a market id
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for LedgerEntry model
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
