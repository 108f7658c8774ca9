package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Market status values
const (
	MarketStatusActive    = "active"
	MarketStatusResolving = "resolving"
	MarketStatusSettled   = "settled"
	MarketStatusCancelled = "cancelled"
)

// Market types
const (
	MarketTypePrice   = "price_prediction"
	MarketTypeOutcome = "outcome_based"
)

// MarketOption is one entry of a market's candidate set. For price markets
// TokenID is the price-feed identifier and StartPrice is the price recorded
// at market creation. Outcome markets only carry ID and Label.
type MarketOption struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	TokenID    string `json:"token_id,omitempty"`
	StartPrice string `json:"start_price,omitempty"`
}

// Market represents one prediction round
type Market struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Title             string         `gorm:"size:500;not null" json:"title"`
	MarketType        string         `gorm:"size:50;not null;index" json:"market_type"` // price_prediction, outcome_based
	Status            string         `gorm:"size:50;default:active;index" json:"status"`
	StartTime         time.Time      `gorm:"not null" json:"start_time"`
	EndTime           time.Time      `gorm:"not null;index" json:"end_time"`
	EntryCostOP       int64          `gorm:"not null" json:"entry_cost_op"`
	Options           datatypes.JSON `gorm:"not null" json:"options"`
	PrizePoolLamports int64          `gorm:"default:0" json:"prize_pool_lamports"`
	AutoResolve       bool           `gorm:"default:true" json:"auto_resolve"`
	ResolutionSource  string         `gorm:"size:100" json:"resolution_source,omitempty"` // strategy key for outcome_based markets
	CreatedBy         string         `gorm:"size:64" json:"created_by,omitempty"`
	WinningOptionID   *string        `gorm:"size:64" json:"winning_option_id,omitempty"`
	ResolutionData    datatypes.JSON `json:"resolution_data,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	SettledAt         *time.Time     `json:"settled_at,omitempty"`
}

// TableName specifies the table name for Market model
func (Market) TableName() string {
	return "markets"
}

// OptionList decodes the stored candidate set, preserving stored order.
func (m *Market) OptionList() ([]MarketOption, error) {
	var opts []MarketOption
	if err := json.Unmarshal(m.Options, &opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// HasOption reports whether id is part of the candidate set.
func (m *Market) HasOption(id string) bool {
	opts, err := m.OptionList()
	if err != nil {
		return false
	}
	for _, o := range opts {
		if o.ID == id {
			return true
		}
	}
	return false
}

// EncodeOptions serializes a candidate set for storage.
func EncodeOptions(opts []MarketOption) (datatypes.JSON, error) {
	raw, err := json.Marshal(opts)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
