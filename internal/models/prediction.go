package models

import (
	"time"

	"github.com/google/uuid"
)

// Prediction represents one participant's wager in one market. A wallet can
// hold at most one prediction per market; the store enforces this with a
// unique index on (market_id, wallet). Payout fields stay zero until the
// market settles, then are written exactly once.
type Prediction struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MarketID          uint      `gorm:"not null;index;uniqueIndex:idx_predictions_market_wallet" json:"market_id"`
	Wallet            string    `gorm:"size:64;not null;index;uniqueIndex:idx_predictions_market_wallet" json:"wallet"`
	OptionID          string    `gorm:"size:64;not null" json:"option_id"`
	OPWagered         int64     `gorm:"not null" json:"op_wagered"`
	OPPayout          int64     `gorm:"not null;default:0" json:"op_payout"`
	IsWinner          *bool     `json:"is_winner,omitempty"` // nil until settlement
	Rank              int       `gorm:"default:0" json:"rank"`
	ReputationApplied bool      `gorm:"not null;default:false" json:"reputation_applied"`
	CreatedAt         time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for Prediction model
func (Prediction) TableName() string {
	return "predictions"
}
