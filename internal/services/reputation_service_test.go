package services

import (
	"encoding/json"
	"testing"

	"oracle/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierForScore(t *testing.T) {
	cases := []struct {
		score float64
		tier  string
	}{
		{0, TierNovice},
		{1000, TierNovice},
		{1099.9, TierNovice},
		{1100, TierSkilled},
		{1299, TierSkilled},
		{1300, TierExpert},
		{1599, TierExpert},
		{1600, TierOracle},
		{5000, TierOracle},
	}
	for _, c := range cases {
		assert.Equal(t, c.tier, TierForScore(c.score), "score %v", c.score)
	}
}

func TestTierBonusMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, TierBonusMultiplier(TierNovice))
	assert.Equal(t, 1.1, TierBonusMultiplier(TierSkilled))
	assert.Equal(t, 1.25, TierBonusMultiplier(TierExpert))
	assert.Equal(t, 1.5, TierBonusMultiplier(TierOracle))
	assert.Equal(t, 1.0, TierBonusMultiplier("garbage"))
}

func TestUpdateReputationWinScalesWithDifficulty(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db, 0, 0)
	reputation := NewReputationService(db, ledger)

	if _, err := ledger.GetOrCreateUser(walletA); err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}

	require.NoError(t, reputation.UpdateReputation(walletA, true, 2.0))

	var profile models.UserProfile
	require.NoError(t, db.Where("wallet = ?", walletA).First(&profile).Error)
	assert.Equal(t, 1050.0, profile.ReputationScore) // 1000 + 25*2
	assert.Equal(t, TierNovice, profile.ReputationTier)

	// Difficulty below 1 is clamped, never shrinking a win.
	require.NoError(t, reputation.UpdateReputation(walletA, true, 0.5))
	require.NoError(t, db.Where("wallet = ?", walletA).First(&profile).Error)
	assert.Equal(t, 1075.0, profile.ReputationScore)
}

func TestUpdateReputationLossFloorsAtZero(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db, 0, 0)
	reputation := NewReputationService(db, ledger)

	if _, err := ledger.GetOrCreateUser(walletA); err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}
	db.Model(&models.UserProfile{}).Where("wallet = ?", walletA).
		Update("reputation_score", 10.0)

	require.NoError(t, reputation.UpdateReputation(walletA, false, 1.0))

	var profile models.UserProfile
	require.NoError(t, db.Where("wallet = ?", walletA).First(&profile).Error)
	assert.Equal(t, 0.0, profile.ReputationScore)
	assert.Equal(t, TierNovice, profile.ReputationTier)
}

func TestUpdateReputationTierPromotion(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db, 0, 0)
	reputation := NewReputationService(db, ledger)

	if _, err := ledger.GetOrCreateUser(walletA); err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}
	db.Model(&models.UserProfile{}).Where("wallet = ?", walletA).
		Update("reputation_score", 1090.0)

	require.NoError(t, reputation.UpdateReputation(walletA, true, 1.0))

	var profile models.UserProfile
	require.NoError(t, db.Where("wallet = ?", walletA).First(&profile).Error)
	assert.Equal(t, 1115.0, profile.ReputationScore)
	assert.Equal(t, TierSkilled, profile.ReputationTier)
}

func TestUpdateStreak(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db, 0, 0)
	reputation := NewReputationService(db, ledger)

	if _, err := ledger.GetOrCreateUser(walletA); err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, reputation.UpdateStreak(walletA, true))
	}
	var profile models.UserProfile
	require.NoError(t, db.Where("wallet = ?", walletA).First(&profile).Error)
	assert.Equal(t, 3, profile.CurrentStreak)
	assert.Equal(t, 3, profile.BestStreak)

	// A loss resets the current streak but keeps the best.
	require.NoError(t, reputation.UpdateStreak(walletA, false))
	require.NoError(t, db.Where("wallet = ?", walletA).First(&profile).Error)
	assert.Zero(t, profile.CurrentStreak)
	assert.Equal(t, 3, profile.BestStreak)

	// Best only moves when surpassed.
	require.NoError(t, reputation.UpdateStreak(walletA, true))
	require.NoError(t, db.Where("wallet = ?", walletA).First(&profile).Error)
	assert.Equal(t, 1, profile.CurrentStreak)
	assert.Equal(t, 3, profile.BestStreak)
}

func TestRecordResultGrantsAchievements(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db, 0, 0)
	reputation := NewReputationService(db, ledger)

	if _, err := ledger.GetOrCreateUser(walletA); err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}

	require.NoError(t, reputation.RecordResult(walletA, true, 1.0))

	var profile models.UserProfile
	require.NoError(t, db.Where("wallet = ?", walletA).First(&profile).Error)
	assert.Equal(t, 1, profile.TotalMarketsWon)

	var held []string
	require.NoError(t, json.Unmarshal(profile.Achievements, &held))
	assert.Equal(t, []string{"first_win"}, held)
	assert.Equal(t, int64(100), profile.OPBalance)

	// The award shows up on the ledger, keyed by the achievement.
	var entry models.LedgerEntry
	require.NoError(t, db.Where("wallet = ? AND type = ?", walletA, models.LedgerTypeAchievement).First(&entry).Error)
	require.NotNil(t, entry.ReferenceID)
	assert.Equal(t, "first_win", *entry.ReferenceID)

	// A second win must not re-grant first_win.
	require.NoError(t, reputation.RecordResult(walletA, true, 1.0))
	require.NoError(t, db.Where("wallet = ?", walletA).First(&profile).Error)
	require.NoError(t, json.Unmarshal(profile.Achievements, &held))
	assert.Equal(t, []string{"first_win"}, held)
	assert.Equal(t, int64(100), profile.OPBalance)
}

func TestStreakFiveAchievement(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db, 0, 0)
	reputation := NewReputationService(db, ledger)

	if _, err := ledger.GetOrCreateUser(walletB); err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		require.NoError(t, reputation.RecordResult(walletB, true, 1.0))
	}

	var profile models.UserProfile
	require.NoError(t, db.Where("wallet = ?", walletB).First(&profile).Error)
	assert.Equal(t, 5, profile.CurrentStreak)

	var held []string
	require.NoError(t, json.Unmarshal(profile.Achievements, &held))
	assert.Contains(t, held, "first_win")
	assert.Contains(t, held, "streak_five")
	// 100 for first_win plus 250 for the streak.
	assert.Equal(t, int64(350), profile.OPBalance)
}
