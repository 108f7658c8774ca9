package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"oracle/internal/models"

	"gorm.io/gorm"
)

// LeaderboardCache is an optional read-through cache for computed
// leaderboards. Scores are always recomputed from predictions when the cache
// misses; the cache is never a source of truth.
type LeaderboardCache interface {
	GetLeaderboard(ctx context.Context, tournamentID uint) ([]models.LeaderboardEntry, bool)
	SetLeaderboard(ctx context.Context, tournamentID uint, entries []models.LeaderboardEntry)
}

// TournamentService rolls per-market outcomes into leaderboard scores for a
// bounded competition window.
type TournamentService struct {
	db    *gorm.DB
	cache LeaderboardCache
}

// NewTournamentService creates a new TournamentService. cache may be nil.
func NewTournamentService(db *gorm.DB, cache LeaderboardCache) *TournamentService {
	return &TournamentService{db: db, cache: cache}
}

// Join registers a wallet in a tournament. A wallet can join once.
func (s *TournamentService) Join(ctx context.Context, wallet string, tournamentID uint) error {
	if err := validateWallet(wallet); err != nil {
		return err
	}

	var tournament models.Tournament
	if err := s.db.First(&tournament, tournamentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTournamentNotFound
		}
		return fmt.Errorf("failed to load tournament: %w", err)
	}
	if tournament.Status == models.TournamentStatusEnded ||
		time.Now().UTC().After(tournament.EndTime) {
		return fmt.Errorf("tournament %d has ended", tournamentID)
	}

	participant := models.TournamentParticipant{
		TournamentID: tournamentID,
		Wallet:       wallet,
		JoinedAt:     time.Now().UTC(),
	}
	if err := s.db.Create(&participant).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyJoined
		}
		return fmt.Errorf("failed to join tournament: %w", err)
	}

	log.Printf("[Tournament] %s joined tournament %d", wallet, tournamentID)
	return nil
}

// leaderboardRow is the aggregate scanned per wallet.
type leaderboardRow struct {
	Wallet   string
	Entered  int
	Wins     int
	OPEarned int64
}

// Leaderboard recomputes the tournament leaderboard from settled predictions
// whose market ended inside the tournament window, scored by the
// tournament's scoring type and sorted descending with a stable wallet
// tie-break.
func (s *TournamentService) Leaderboard(ctx context.Context, tournamentID uint) ([]models.LeaderboardEntry, error) {
	var tournament models.Tournament
	if err := s.db.First(&tournament, tournamentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament: %w", err)
	}

	if s.cache != nil {
		if entries, ok := s.cache.GetLeaderboard(ctx, tournamentID); ok {
			return entries, nil
		}
	}

	var rows []leaderboardRow
	err := s.db.Model(&models.Prediction{}).
		Select(`predictions.wallet AS wallet,
			COUNT(*) AS entered,
			SUM(CASE WHEN predictions.is_winner THEN 1 ELSE 0 END) AS wins,
			SUM(predictions.op_payout) AS op_earned`).
		Joins("JOIN markets ON markets.id = predictions.market_id").
		Joins("JOIN tournament_participants ON tournament_participants.wallet = predictions.wallet AND tournament_participants.tournament_id = ?", tournamentID).
		Where("markets.status = ?", models.MarketStatusSettled).
		Where("markets.end_time >= ? AND markets.end_time <= ?", tournament.StartTime, tournament.EndTime).
		Where("predictions.is_winner IS NOT NULL").
		Group("predictions.wallet").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate leaderboard: %w", err)
	}

	entries := make([]models.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		entry := models.LeaderboardEntry{
			Wallet:         r.Wallet,
			MarketsEntered: r.Entered,
			MarketsWon:     r.Wins,
			OPEarned:       r.OPEarned,
		}
		switch tournament.ScoringType {
		case models.ScoringWinCount:
			entry.Score = float64(r.Wins)
		case models.ScoringAccuracy:
			if r.Entered > 0 {
				entry.Score = float64(r.Wins) / float64(r.Entered)
			}
		default: // op_earned
			entry.Score = float64(r.OPEarned)
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Wallet < entries[j].Wallet
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	if s.cache != nil {
		s.cache.SetLeaderboard(ctx, tournamentID, entries)
	}
	return entries, nil
}

// List returns tournaments, newest first.
func (s *TournamentService) List(limit int) ([]models.Tournament, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var tournaments []models.Tournament
	err := s.db.Order("start_time DESC").Limit(limit).Find(&tournaments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return tournaments, nil
}
