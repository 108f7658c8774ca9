package models

import (
	"time"
)

// Tournament status values
const (
	TournamentStatusUpcoming = "upcoming"
	TournamentStatusActive   = "active"
	TournamentStatusEnded    = "ended"
)

// Tournament scoring types
const (
	ScoringOPEarned = "op_earned"
	ScoringWinCount = "win_count"
	ScoringAccuracy = "accuracy"
)

// Tournament is a scoring window over many markets.
type Tournament struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"size:200;not null" json:"name"`
	Status            string    `gorm:"size:50;default:upcoming;index" json:"status"`
	StartTime         time.Time `gorm:"not null" json:"start_time"`
	EndTime           time.Time `gorm:"not null" json:"end_time"`
	PrizePoolLamports int64     `gorm:"default:0" json:"prize_pool_lamports"`
	ScoringType       string    `gorm:"size:50;not null;default:op_earned" json:"scoring_type"`
	CreatedAt         time.Time `json:"created_at"`
}

// TableName specifies the table name for Tournament model
func (Tournament) TableName() string {
	return "tournaments"
}

// TournamentParticipant records one wallet's membership in a tournament.
type TournamentParticipant struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TournamentID uint      `gorm:"not null;index;uniqueIndex:idx_tournament_wallet" json:"tournament_id"`
	Wallet       string    `gorm:"size:64;not null;uniqueIndex:idx_tournament_wallet" json:"wallet"`
	JoinedAt     time.Time `json:"joined_at"`
}

// TableName specifies the table name for TournamentParticipant model
func (TournamentParticipant) TableName() string {
	return "tournament_participants"
}

// LeaderboardEntry is one derived row of a tournament leaderboard. It is
// recomputed on read and never persisted.
type LeaderboardEntry struct {
	Rank           int     `json:"rank"`
	Wallet         string  `json:"wallet"`
	Score          float64 `json:"score"`
	MarketsEntered int     `json:"markets_entered"`
	MarketsWon     int     `json:"markets_won"`
	OPEarned       int64   `json:"op_earned"`
}
