package models

import (
	"time"

	"gorm.io/datatypes"
)

// UserProfile represents one wallet's points balance and reputation state.
// OPBalance must always equal the sum of the wallet's LedgerEntry amounts.
type UserProfile struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Wallet              string         `gorm:"uniqueIndex;not null" json:"wallet"`
	OPBalance           int64          `gorm:"not null;default:0" json:"op_balance"`
	TotalOPEarned       int64          `gorm:"not null;default:0" json:"total_op_earned"`
	TotalOPSpent        int64          `gorm:"not null;default:0" json:"total_op_spent"`
	ReputationScore     float64        `gorm:"not null;default:1000" json:"reputation_score"`
	ReputationTier      string         `gorm:"size:20;not null;default:novice" json:"reputation_tier"`
	CurrentStreak       int            `gorm:"not null;default:0" json:"current_streak"`
	BestStreak          int            `gorm:"not null;default:0" json:"best_streak"`
	TotalMarketsEntered int            `gorm:"not null;default:0" json:"total_markets_entered"`
	TotalMarketsWon     int            `gorm:"not null;default:0" json:"total_markets_won"`
	Achievements        datatypes.JSON `json:"achievements,omitempty"`
	LastDailyClaim      *time.Time     `json:"last_daily_claim,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// TableName specifies the table name for UserProfile model
func (UserProfile) TableName() string {
	return "user_profiles"
}
