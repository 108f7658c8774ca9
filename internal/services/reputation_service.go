package services

import (
	"encoding/json"
	"fmt"
	"log"

	"oracle/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Reputation tiers, ascending. The tier is a pure function of the score.
const (
	TierNovice  = "novice"
	TierSkilled = "skilled"
	TierExpert  = "expert"
	TierOracle  = "oracle"
)

// Score thresholds and movement constants.
const (
	tierSkilledMin = 1100.0
	tierExpertMin  = 1300.0
	tierOracleMin  = 1600.0

	winBaseDelta  = 25.0 // scaled by market difficulty
	lossBaseDelta = 15.0
)

// achievementAwards maps achievement keys to their OP award.
var achievementAwards = map[string]int64{
	"first_win":   100,
	"streak_five": 250,
	"markets_ten": 100,
	"wins_ten":    500,
}

// TierForScore maps a reputation score to its tier band.
func TierForScore(score float64) string {
	switch {
	case score >= tierOracleMin:
		return TierOracle
	case score >= tierExpertMin:
		return TierExpert
	case score >= tierSkilledMin:
		return TierSkilled
	default:
		return TierNovice
	}
}

// TierBonusMultiplier returns the payout-bonus multiplier a tier confers on
// prize-pool distribution.
func TierBonusMultiplier(tier string) float64 {
	switch tier {
	case TierOracle:
		return 1.5
	case TierExpert:
		return 1.25
	case TierSkilled:
		return 1.1
	default:
		return 1.0
	}
}

// ReputationService updates each participant's skill estimate and win streak.
// Idempotency per (wallet, market) is the caller's job: settlement flips the
// Prediction row's ReputationApplied flag before calling in here.
type ReputationService struct {
	db     *gorm.DB
	ledger *LedgerService
}

// NewReputationService creates a new ReputationService
func NewReputationService(db *gorm.DB, ledger *LedgerService) *ReputationService {
	return &ReputationService{db: db, ledger: ledger}
}

// UpdateStreak increments the wallet's streak on a win, resets it on a loss,
// and raises the best streak when surpassed.
func (s *ReputationService) UpdateStreak(wallet string, isWinner bool) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var profile models.UserProfile
		if err := tx.Where("wallet = ?", wallet).First(&profile).Error; err != nil {
			return fmt.Errorf("failed to load profile: %w", err)
		}

		if isWinner {
			profile.CurrentStreak++
			if profile.CurrentStreak > profile.BestStreak {
				profile.BestStreak = profile.CurrentStreak
			}
		} else {
			profile.CurrentStreak = 0
		}

		return tx.Model(&profile).Updates(map[string]interface{}{
			"current_streak": profile.CurrentStreak,
			"best_streak":    profile.BestStreak,
		}).Error
	})
}

// UpdateReputation moves the score up on a win, scaled by market difficulty
// so harder correct calls move it more, and down on a loss. The tier is
// recomputed from the resulting score.
func (s *ReputationService) UpdateReputation(wallet string, isWinner bool, difficulty float64) error {
	if difficulty < 1 {
		difficulty = 1
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var profile models.UserProfile
		if err := tx.Where("wallet = ?", wallet).First(&profile).Error; err != nil {
			return fmt.Errorf("failed to load profile: %w", err)
		}

		score := profile.ReputationScore
		if isWinner {
			score += winBaseDelta * difficulty
		} else {
			score -= lossBaseDelta
			if score < 0 {
				score = 0
			}
		}

		return tx.Model(&profile).Updates(map[string]interface{}{
			"reputation_score": score,
			"reputation_tier":  TierForScore(score),
		}).Error
	})
}

// RecordResult applies one settled prediction to the wallet's stats: streak,
// reputation, win/enter counters and achievement grants.
func (s *ReputationService) RecordResult(wallet string, isWinner bool, difficulty float64) error {
	if err := s.UpdateStreak(wallet, isWinner); err != nil {
		return err
	}
	if err := s.UpdateReputation(wallet, isWinner, difficulty); err != nil {
		return err
	}
	if isWinner {
		err := s.db.Model(&models.UserProfile{}).
			Where("wallet = ?", wallet).
			Update("total_markets_won", gorm.Expr("total_markets_won + 1")).Error
		if err != nil {
			return fmt.Errorf("failed to bump win count: %w", err)
		}
	}

	if err := s.grantAchievements(wallet); err != nil {
		// Achievement grants ride along with settlement; a failure here must
		// not fail the payout.
		log.Printf("[Reputation] Achievement check failed for %s: %v", wallet, err)
	}
	return nil
}

// grantAchievements grants any newly reached achievements and pays the fixed
// OP award for each through the ledger.
func (s *ReputationService) grantAchievements(wallet string) error {
	var profile models.UserProfile
	if err := s.db.Where("wallet = ?", wallet).First(&profile).Error; err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	held := make(map[string]bool)
	var list []string
	if len(profile.Achievements) > 0 {
		if err := json.Unmarshal(profile.Achievements, &list); err != nil {
			return fmt.Errorf("failed to decode achievements: %w", err)
		}
		for _, a := range list {
			held[a] = true
		}
	}

	earned := []string{}
	if profile.TotalMarketsWon >= 1 && !held["first_win"] {
		earned = append(earned, "first_win")
	}
	if profile.CurrentStreak >= 5 && !held["streak_five"] {
		earned = append(earned, "streak_five")
	}
	if profile.TotalMarketsEntered >= 10 && !held["markets_ten"] {
		earned = append(earned, "markets_ten")
	}
	if profile.TotalMarketsWon >= 10 && !held["wins_ten"] {
		earned = append(earned, "wins_ten")
	}
	if len(earned) == 0 {
		return nil
	}

	list = append(list, earned...)
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	err = s.db.Model(&models.UserProfile{}).
		Where("wallet = ?", wallet).
		Update("achievements", datatypes.JSON(raw)).Error
	if err != nil {
		return fmt.Errorf("failed to store achievements: %w", err)
	}

	for _, key := range earned {
		ref := key
		if _, err := s.ledger.Credit(wallet, achievementAwards[key], models.LedgerTypeAchievement, &ref); err != nil {
			log.Printf("[Reputation] Failed to pay achievement %s to %s: %v", key, wallet, err)
			continue
		}
		log.Printf("[Reputation] Granted %s to %s (+%d OP)", key, wallet, achievementAwards[key])
	}
	return nil
}
