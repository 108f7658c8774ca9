package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"oracle/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SettlementReport is the per-market outcome of one settlement attempt.
// Batch mode returns one report per market instead of a single boolean.
type SettlementReport struct {
	MarketID        uint     `json:"market_id"`
	Status          string   `json:"status"`
	WinningOptionID string   `json:"winning_option_id,omitempty"`
	Difficulty      float64  `json:"difficulty,omitempty"`
	Predictions     int      `json:"predictions"`
	Winners         int      `json:"winners"`
	Credited        int      `json:"credited"`
	Failed          int      `json:"failed"`
	AlreadySettled  bool     `json:"already_settled,omitempty"`
	Retryable       bool     `json:"retryable,omitempty"`
	Errors          []string `json:"errors,omitempty"`
}

// RefundReport summarises a market cancellation.
type RefundReport struct {
	MarketID   uint     `json:"market_id"`
	Refunded   int      `json:"refunded"`
	Failed     int      `json:"failed"`
	OPReturned int64    `json:"op_returned"`
	Errors     []string `json:"errors,omitempty"`
}

// PrizeAward records one winner's slice of a market's native-currency prize
// pool. Awards go into the settlement payload; the transfer itself happens
// outside this engine.
type PrizeAward struct {
	Wallet   string `json:"wallet"`
	Rank     int    `json:"rank"`
	Lamports int64  `json:"lamports"`
}

// settlementPayload is what lands on Market.ResolutionData after settlement.
type settlementPayload struct {
	Resolution  json.RawMessage `json:"resolution"`
	Difficulty  float64         `json:"difficulty"`
	PrizeAwards []PrizeAward    `json:"prize_awards,omitempty"`
}

// SettlementService drives one market through resolve, payout, reputation
// update and ledger writes, and batches this across all expired markets.
type SettlementService struct {
	db         *gorm.DB
	resolver   *ResolverService
	ledger     *LedgerService
	reputation *ReputationService
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(db *gorm.DB, resolver *ResolverService, ledger *LedgerService, reputation *ReputationService) *SettlementService {
	return &SettlementService{
		db:         db,
		resolver:   resolver,
		ledger:     ledger,
		reputation: reputation,
	}
}

// SettleMarket settles a single market. Settling an already-settled market
// is a no-op that returns the existing settlement. Two concurrent callers
// cannot double-pay: the active→resolving transition is a compare-and-set on
// market status and only the winner proceeds.
func (s *SettlementService) SettleMarket(ctx context.Context, marketID uint) (*SettlementReport, error) {
	var market models.Market
	if err := s.db.First(&market, marketID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMarketNotFound
		}
		return nil, fmt.Errorf("failed to load market: %w", err)
	}

	switch market.Status {
	case models.MarketStatusSettled:
		return s.existingSettlement(&market), nil
	case models.MarketStatusCancelled:
		return nil, fmt.Errorf("market %d is cancelled", marketID)
	case models.MarketStatusResolving:
		return nil, ErrSettlementInProgress
	}

	if time.Now().UTC().Before(market.EndTime) {
		return nil, fmt.Errorf("market %d has not ended: %w", marketID, ErrMarketNotOpen)
	}

	// Claim the market. Losing the CAS means another settlement run got here
	// first; re-read to report its outcome.
	res := s.db.Model(&models.Market{}).
		Where("id = ? AND status = ?", marketID, models.MarketStatusActive).
		Update("status", models.MarketStatusResolving)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to claim market: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if err := s.db.First(&market, marketID).Error; err == nil &&
			market.Status == models.MarketStatusSettled {
			return s.existingSettlement(&market), nil
		}
		return nil, ErrSettlementInProgress
	}

	winnerID, resolution, err := s.resolver.Resolve(ctx, &market)
	if err != nil {
		// Release the claim so the next batch pass retries; the market must
		// never settle with a fabricated winner.
		s.releaseClaim(marketID)
		report := &SettlementReport{
			MarketID:  marketID,
			Status:    models.MarketStatusActive,
			Retryable: RetryableResolution(err),
			Errors:    []string{err.Error()},
		}
		if report.Retryable {
			log.Printf("[Settlement] Market %d not resolvable yet, will retry: %v", marketID, err)
		} else {
			log.Printf("[Settlement] Market %d resolution failed: %v", marketID, err)
		}
		return report, err
	}

	var predictions []models.Prediction
	if err := s.db.Where("market_id = ?", marketID).Order("created_at ASC").Find(&predictions).Error; err != nil {
		s.releaseClaim(marketID)
		return nil, fmt.Errorf("failed to load predictions: %w", err)
	}

	payouts, difficulty := ComputePayouts(predictions, winnerID)
	awards := s.prizeAwards(&market, payouts)

	payload, err := json.Marshal(settlementPayload{
		Resolution:  json.RawMessage(resolution),
		Difficulty:  difficulty,
		PrizeAwards: awards,
	})
	if err != nil {
		s.releaseClaim(marketID)
		return nil, fmt.Errorf("failed to encode settlement payload: %w", err)
	}

	// The market is settled once the winner is persisted. Per-prediction
	// failures after this point are counted, not rolled back: each paid
	// prediction row is marked, so a blind re-run cannot double-pay.
	now := time.Now().UTC()
	err = s.db.Model(&models.Market{}).
		Where("id = ? AND status = ?", marketID, models.MarketStatusResolving).
		Updates(map[string]interface{}{
			"status":            models.MarketStatusSettled,
			"winning_option_id": winnerID,
			"resolution_data":   datatypes.JSON(payload),
			"settled_at":        now,
		}).Error
	if err != nil {
		s.releaseClaim(marketID)
		return nil, fmt.Errorf("failed to persist settlement: %w", err)
	}

	report := &SettlementReport{
		MarketID:        marketID,
		Status:          models.MarketStatusSettled,
		WinningOptionID: winnerID,
		Difficulty:      difficulty,
		Predictions:     len(predictions),
	}
	ref := marketRef(marketID)

	for _, p := range payouts {
		if p.IsWinner {
			report.Winners++
		}

		if p.OPPayout > 0 {
			if _, err := s.ledger.Credit(p.Wallet, p.OPPayout, models.LedgerTypePayout, ref); err != nil {
				report.Failed++
				report.Errors = append(report.Errors,
					fmt.Sprintf("credit %s: %v", p.Wallet, err))
				log.Printf("[Settlement] Market %d: failed to credit %d OP to %s: %v",
					marketID, p.OPPayout, p.Wallet, err)
				continue
			}
			report.Credited++
		}

		isWinner := p.IsWinner
		err := s.db.Model(&models.Prediction{}).
			Where("id = ?", p.PredictionID).
			Updates(map[string]interface{}{
				"op_payout": p.OPPayout,
				"is_winner": &isWinner,
				"rank":      p.Rank,
			}).Error
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors,
				fmt.Sprintf("prediction %s: %v", p.PredictionID, err))
			continue
		}

		if err := s.applyReputation(p, difficulty); err != nil {
			report.Errors = append(report.Errors,
				fmt.Sprintf("reputation %s: %v", p.Wallet, err))
		}
	}

	log.Printf("[Settlement] Market %d settled: winner=%s predictions=%d winners=%d credited=%d failed=%d",
		marketID, winnerID, report.Predictions, report.Winners, report.Credited, report.Failed)
	return report, nil
}

// SettleAllExpired settles every auto-resolving market past its end time.
// One market's failure never blocks the others; each gets its own report.
func (s *SettlementService) SettleAllExpired(ctx context.Context) []*SettlementReport {
	var markets []models.Market
	err := s.db.Where("status = ? AND auto_resolve = ? AND end_time <= ?",
		models.MarketStatusActive, true, time.Now().UTC()).
		Order("end_time ASC").Find(&markets).Error
	if err != nil {
		log.Printf("[Settlement] Failed to list expired markets: %v", err)
		return nil
	}

	reports := make([]*SettlementReport, 0, len(markets))
	for _, m := range markets {
		report, err := s.SettleMarket(ctx, m.ID)
		if report == nil {
			report = &SettlementReport{MarketID: m.ID, Errors: []string{err.Error()}}
		}
		reports = append(reports, report)
	}
	return reports
}

// CancelMarket aborts an active market and refunds every wagered OP. A
// refund that fails after the cancellation is committed is a compensation
// failure and reported loudly.
func (s *SettlementService) CancelMarket(ctx context.Context, marketID uint) (*RefundReport, error) {
	res := s.db.Model(&models.Market{}).
		Where("id = ? AND status = ?", marketID, models.MarketStatusActive).
		Update("status", models.MarketStatusCancelled)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to cancel market: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var market models.Market
		if err := s.db.First(&market, marketID).Error; err != nil {
			return nil, ErrMarketNotFound
		}
		return nil, fmt.Errorf("market %d is %s, cannot cancel", marketID, market.Status)
	}

	var predictions []models.Prediction
	if err := s.db.Where("market_id = ?", marketID).Find(&predictions).Error; err != nil {
		return nil, fmt.Errorf("failed to load predictions: %w", err)
	}

	report := &RefundReport{MarketID: marketID}
	ref := marketRef(marketID)

	for _, p := range predictions {
		if _, err := s.ledger.Compensate(p.Wallet, p.OPWagered, ref); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("refund %s: %v", p.Wallet, err))
			continue
		}
		report.Refunded++
		report.OPReturned += p.OPWagered
	}

	log.Printf("[Settlement] Market %d cancelled: refunded=%d failed=%d op=%d",
		marketID, report.Refunded, report.Failed, report.OPReturned)
	return report, nil
}

// applyReputation applies streak and reputation updates for one prediction.
// The ReputationApplied flag on the row is flipped with a compare-and-set so
// a retried settlement cannot double-count.
func (s *SettlementService) applyReputation(p PayoutResult, difficulty float64) error {
	res := s.db.Model(&models.Prediction{}).
		Where("id = ? AND reputation_applied = ?", p.PredictionID, false).
		Update("reputation_applied", true)
	if res.Error != nil {
		return fmt.Errorf("failed to mark reputation applied: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil // already processed on a previous attempt
	}
	return s.reputation.RecordResult(p.Wallet, p.IsWinner, difficulty)
}

// prizeAwards apportions the market's prize pool among winners by rank,
// scaled by each winner's reputation-tier bonus.
func (s *SettlementService) prizeAwards(market *models.Market, payouts []PayoutResult) []PrizeAward {
	if market.PrizePoolLamports <= 0 {
		return nil
	}

	var winners []PayoutResult
	for _, p := range payouts {
		if p.IsWinner {
			winners = append(winners, p)
		}
	}
	if len(winners) == 0 {
		return nil
	}

	shares := PrizePoolShares(market.PrizePoolLamports, len(winners))
	awards := make([]PrizeAward, 0, len(winners))
	for _, w := range winners {
		base := shares[w.Rank-1]

		multiplier := 1.0
		var profile models.UserProfile
		if err := s.db.Where("wallet = ?", w.Wallet).First(&profile).Error; err == nil {
			multiplier = TierBonusMultiplier(profile.ReputationTier)
		}

		amount := decimal.NewFromInt(base).
			Mul(decimal.NewFromFloat(multiplier)).IntPart()
		awards = append(awards, PrizeAward{Wallet: w.Wallet, Rank: w.Rank, Lamports: amount})
	}
	return awards
}

// existingSettlement rebuilds a report from an already-settled market row.
func (s *SettlementService) existingSettlement(market *models.Market) *SettlementReport {
	report := &SettlementReport{
		MarketID:       market.ID,
		Status:         models.MarketStatusSettled,
		AlreadySettled: true,
	}
	if market.WinningOptionID != nil {
		report.WinningOptionID = *market.WinningOptionID
	}

	var count int64
	s.db.Model(&models.Prediction{}).Where("market_id = ?", market.ID).Count(&count)
	report.Predictions = int(count)
	s.db.Model(&models.Prediction{}).
		Where("market_id = ? AND is_winner = ?", market.ID, true).Count(&count)
	report.Winners = int(count)
	return report
}

// releaseClaim reverts a resolving market back to active after a failed run.
func (s *SettlementService) releaseClaim(marketID uint) {
	err := s.db.Model(&models.Market{}).
		Where("id = ? AND status = ?", marketID, models.MarketStatusResolving).
		Update("status", models.MarketStatusActive).Error
	if err != nil {
		log.Printf("[Settlement] CRITICAL: failed to release claim on market %d: %v", marketID, err)
	}
}
