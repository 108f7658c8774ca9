package services

import (
	"context"
	"testing"
	"time"

	"oracle/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedTournament(t *testing.T, db *gorm.DB, scoring string) *models.Tournament {
	t.Helper()
	tournament := &models.Tournament{
		Name:        "Weekly Oracle Cup",
		Status:      models.TournamentStatusActive,
		StartTime:   time.Now().UTC().Add(-24 * time.Hour),
		EndTime:     time.Now().UTC().Add(24 * time.Hour),
		ScoringType: scoring,
	}
	if err := db.Create(tournament).Error; err != nil {
		t.Fatalf("failed to seed tournament: %v", err)
	}
	return tournament
}

// seedSettledResults writes a settled market plus finished predictions so the
// leaderboard aggregate has rows to chew on.
func seedSettledResults(t *testing.T, db *gorm.DB, results map[string]struct {
	won    bool
	payout int64
}) {
	t.Helper()

	winner := "a"
	market := seedMarket(t, db, 100, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, db.Model(market).Updates(map[string]interface{}{
		"status":            models.MarketStatusSettled,
		"winning_option_id": winner,
	}).Error)

	for wallet, r := range results {
		optionID := "b"
		if r.won {
			optionID = winner
		}
		won := r.won
		p := models.Prediction{
			ID:        uuid.New(),
			MarketID:  market.ID,
			Wallet:    wallet,
			OptionID:  optionID,
			OPWagered: 100,
			OPPayout:  r.payout,
			IsWinner:  &won,
			CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
		}
		require.NoError(t, db.Create(&p).Error)
	}
}

func TestTournamentJoin(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTournamentService(db, nil)
	tournament := seedTournament(t, db, models.ScoringOPEarned)

	require.NoError(t, svc.Join(context.Background(), walletA, tournament.ID))

	// Same wallet twice is a conflict, not a second row.
	err := svc.Join(context.Background(), walletA, tournament.ID)
	require.ErrorIs(t, err, ErrAlreadyJoined)

	var count int64
	db.Model(&models.TournamentParticipant{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestTournamentJoinValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTournamentService(db, nil)

	err := svc.Join(context.Background(), walletA, 999)
	require.ErrorIs(t, err, ErrTournamentNotFound)

	err = svc.Join(context.Background(), "garbage", 1)
	require.ErrorIs(t, err, ErrInvalidWallet)

	ended := seedTournament(t, db, models.ScoringOPEarned)
	db.Model(ended).Update("status", models.TournamentStatusEnded)
	err = svc.Join(context.Background(), walletA, ended.ID)
	require.Error(t, err)
}

func TestLeaderboardByOPEarned(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTournamentService(db, nil)
	tournament := seedTournament(t, db, models.ScoringOPEarned)

	for _, w := range []string{walletA, walletB, walletC} {
		require.NoError(t, svc.Join(context.Background(), w, tournament.ID))
	}
	seedSettledResults(t, db, map[string]struct {
		won    bool
		payout int64
	}{
		walletA: {won: true, payout: 150},
		walletB: {won: true, payout: 300},
		walletC: {won: false, payout: 0},
	})

	entries, err := svc.Leaderboard(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, walletB, entries[0].Wallet)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 300.0, entries[0].Score)
	assert.Equal(t, walletA, entries[1].Wallet)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, walletC, entries[2].Wallet)
	assert.Equal(t, 3, entries[2].Rank)
	assert.Zero(t, entries[2].Score)
}

func TestLeaderboardByWinCountTieBreak(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTournamentService(db, nil)
	tournament := seedTournament(t, db, models.ScoringWinCount)

	for _, w := range []string{walletA, walletB} {
		require.NoError(t, svc.Join(context.Background(), w, tournament.ID))
	}
	// Both win once; payouts differ but win_count scoring ignores them, so
	// the tie breaks on wallet order.
	seedSettledResults(t, db, map[string]struct {
		won    bool
		payout int64
	}{
		walletA: {won: true, payout: 500},
		walletB: {won: true, payout: 100},
	})

	entries, err := svc.Leaderboard(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, 1.0, entries[0].Score)
	assert.Equal(t, 1.0, entries[1].Score)
	assert.True(t, entries[0].Wallet < entries[1].Wallet)
}

func TestLeaderboardByAccuracy(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTournamentService(db, nil)
	tournament := seedTournament(t, db, models.ScoringAccuracy)

	for _, w := range []string{walletA, walletB} {
		require.NoError(t, svc.Join(context.Background(), w, tournament.ID))
	}
	// walletA: 1/2 settled markets won. walletB: 1/1.
	seedSettledResults(t, db, map[string]struct {
		won    bool
		payout int64
	}{
		walletA: {won: true, payout: 150},
	})
	seedSettledResults(t, db, map[string]struct {
		won    bool
		payout int64
	}{
		walletA: {won: false, payout: 0},
		walletB: {won: true, payout: 200},
	})

	entries, err := svc.Leaderboard(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, walletB, entries[0].Wallet)
	assert.Equal(t, 1.0, entries[0].Score)
	assert.Equal(t, walletA, entries[1].Wallet)
	assert.Equal(t, 0.5, entries[1].Score)
	assert.Equal(t, 2, entries[1].MarketsEntered)
	assert.Equal(t, 1, entries[1].MarketsWon)
}

func TestLeaderboardExcludesNonParticipants(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTournamentService(db, nil)
	tournament := seedTournament(t, db, models.ScoringOPEarned)

	require.NoError(t, svc.Join(context.Background(), walletA, tournament.ID))
	// walletB never joined but has settled results in the window.
	seedSettledResults(t, db, map[string]struct {
		won    bool
		payout int64
	}{
		walletA: {won: true, payout: 150},
		walletB: {won: true, payout: 900},
	})

	entries, err := svc.Leaderboard(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, walletA, entries[0].Wallet)
}

func TestLeaderboardExcludesMarketsOutsideWindow(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTournamentService(db, nil)
	tournament := seedTournament(t, db, models.ScoringOPEarned)
	require.NoError(t, svc.Join(context.Background(), walletA, tournament.ID))

	// A settled market that ended before the tournament started.
	won := true
	old := seedMarket(t, db, 100, time.Now().UTC().Add(-48*time.Hour))
	require.NoError(t, db.Model(old).Update("status", models.MarketStatusSettled).Error)
	require.NoError(t, db.Create(&models.Prediction{
		ID:        uuid.New(),
		MarketID:  old.ID,
		Wallet:    walletA,
		OptionID:  "a",
		OPWagered: 100,
		OPPayout:  150,
		IsWinner:  &won,
	}).Error)

	entries, err := svc.Leaderboard(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// memoryCache records leaderboard reads and writes in-process.
type memoryCache struct {
	stored map[uint][]models.LeaderboardEntry
	hits   int
	sets   int
}

func (c *memoryCache) GetLeaderboard(_ context.Context, id uint) ([]models.LeaderboardEntry, bool) {
	entries, ok := c.stored[id]
	if ok {
		c.hits++
	}
	return entries, ok
}

func (c *memoryCache) SetLeaderboard(_ context.Context, id uint, entries []models.LeaderboardEntry) {
	c.stored[id] = entries
	c.sets++
}

func TestLeaderboardUsesCache(t *testing.T) {
	db := setupTestDB(t)
	cache := &memoryCache{stored: map[uint][]models.LeaderboardEntry{}}
	svc := NewTournamentService(db, cache)
	tournament := seedTournament(t, db, models.ScoringOPEarned)

	require.NoError(t, svc.Join(context.Background(), walletA, tournament.ID))
	seedSettledResults(t, db, map[string]struct {
		won    bool
		payout int64
	}{
		walletA: {won: true, payout: 150},
	})

	first, err := svc.Leaderboard(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Zero(t, cache.hits)

	second, err := svc.Leaderboard(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first, second)
}
