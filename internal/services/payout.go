package services

import (
	"sort"

	"oracle/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayoutResult is one participant's settlement outcome.
type PayoutResult struct {
	PredictionID uuid.UUID
	Wallet       string
	OPPayout     int64
	IsWinner     bool
	Rank         int
}

// ComputePayouts turns a market's predictions and its winning choice into
// per-participant payouts plus the market difficulty. The function is pure:
// identical inputs always reproduce the identical output, so settlement
// retries are safe.
//
// Winners receive their wager back plus a share of the losing pot
// proportional to wager size: payout = wager + floor(losingPot * wager /
// winningPot). Losers get 0. Rank is dense across winners (1 = best), ordered
// by wager descending, then submission time, then prediction id.
func ComputePayouts(predictions []models.Prediction, winningOptionID string) ([]PayoutResult, float64) {
	results := make([]PayoutResult, len(predictions))
	index := make(map[uuid.UUID]int, len(predictions))

	var winners []models.Prediction
	var winningPot, losingPot int64

	for i, p := range predictions {
		results[i] = PayoutResult{PredictionID: p.ID, Wallet: p.Wallet}
		index[p.ID] = i
		if p.OptionID == winningOptionID {
			winners = append(winners, p)
			winningPot += p.OPWagered
		} else {
			losingPot += p.OPWagered
		}
	}

	sort.SliceStable(winners, func(i, j int) bool {
		if winners[i].OPWagered != winners[j].OPWagered {
			return winners[i].OPWagered > winners[j].OPWagered
		}
		if !winners[i].CreatedAt.Equal(winners[j].CreatedAt) {
			return winners[i].CreatedAt.Before(winners[j].CreatedAt)
		}
		return winners[i].ID.String() < winners[j].ID.String()
	})

	pot := decimal.NewFromInt(losingPot)
	winPot := decimal.NewFromInt(winningPot)

	for rank, w := range winners {
		share := int64(0)
		if winningPot > 0 && losingPot > 0 {
			share = pot.Mul(decimal.NewFromInt(w.OPWagered)).Div(winPot).IntPart()
		}
		i := index[w.ID]
		results[i].IsWinner = true
		results[i].Rank = rank + 1
		results[i].OPPayout = w.OPWagered + share
	}

	difficulty := float64(len(predictions)) / float64(max(1, len(winners)))
	return results, difficulty
}

// PrizePoolShares apportions a native-currency prize pool among n ranked
// winners with a halving split: rank 1 gets pool/2, rank 2 pool/4 and so on,
// with the integer remainder going to rank 1.
func PrizePoolShares(pool int64, n int) []int64 {
	if pool <= 0 || n <= 0 {
		return nil
	}

	shares := make([]int64, n)
	remaining := pool
	for i := 0; i < n; i++ {
		share := remaining / 2
		shares[i] = share
		remaining -= share
	}
	shares[0] += remaining
	return shares
}
