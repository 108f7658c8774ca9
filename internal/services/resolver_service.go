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
)

// OutcomeStrategy decides the winner of an outcome_based market. Concrete
// strategies are domain-specific and registered by key; a strategy must
// return exactly one winning option id or ErrNotResolvable when it cannot
// decide yet.
type OutcomeStrategy interface {
	ResolveOutcome(ctx context.Context, market *models.Market) (string, error)
}

// CandidateResult records how one candidate fared during price resolution.
type CandidateResult struct {
	OptionID   string `json:"option_id"`
	TokenID    string `json:"token_id,omitempty"`
	StartPrice string `json:"start_price,omitempty"`
	EndPrice   string `json:"end_price,omitempty"`
	ChangePct  string `json:"change_pct,omitempty"`
	Valid      bool   `json:"valid"`
}

// ResolutionData is the free-form settlement payload persisted on the market.
type ResolutionData struct {
	Method     string            `json:"method"`
	ResolvedAt time.Time         `json:"resolved_at"`
	Candidates []CandidateResult `json:"candidates,omitempty"`
	Strategy   string            `json:"strategy,omitempty"`
}

// ResolverService decides a winning choice for a single market.
type ResolverService struct {
	prices     PriceLookup
	strategies map[string]OutcomeStrategy
}

// NewResolverService creates a new ResolverService
func NewResolverService(prices PriceLookup) *ResolverService {
	return &ResolverService{
		prices:     prices,
		strategies: make(map[string]OutcomeStrategy),
	}
}

// RegisterStrategy binds an outcome strategy to a resolution source key.
func (s *ResolverService) RegisterStrategy(key string, strategy OutcomeStrategy) {
	s.strategies[key] = strategy
}

// Resolve returns the winning option id and the resolution payload for a
// market. Resolution is deterministic given identical price inputs.
func (s *ResolverService) Resolve(ctx context.Context, market *models.Market) (string, datatypes.JSON, error) {
	switch market.MarketType {
	case models.MarketTypePrice:
		return s.resolveByPrice(ctx, market)
	case models.MarketTypeOutcome:
		return s.resolveByStrategy(ctx, market)
	default:
		return "", nil, fmt.Errorf("unknown market type %q", market.MarketType)
	}
}

// resolveByPrice picks the candidate with the highest percentage price change
// since market start. Candidates without a usable price are excluded, not
// treated as 0%. Equal changes keep the first candidate in stored order.
func (s *ResolverService) resolveByPrice(ctx context.Context, market *models.Market) (string, datatypes.JSON, error) {
	options, err := market.OptionList()
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode candidate set: %w", err)
	}
	if len(options) == 0 {
		return "", nil, fmt.Errorf("market %d has no candidates", market.ID)
	}

	data := ResolutionData{
		Method:     models.MarketTypePrice,
		ResolvedAt: time.Now().UTC(),
	}

	var winnerID string
	var bestChange decimal.Decimal
	haveWinner := false

	for _, opt := range options {
		result := CandidateResult{
			OptionID:   opt.ID,
			TokenID:    opt.TokenID,
			StartPrice: opt.StartPrice,
		}

		start, perr := decimal.NewFromString(opt.StartPrice)
		if perr != nil || start.IsZero() {
			log.Printf("[Resolver] Market %d candidate %s has no usable start price", market.ID, opt.ID)
			data.Candidates = append(data.Candidates, result)
			continue
		}

		current, perr := s.prices.Price(ctx, opt.TokenID)
		if perr != nil {
			if !errors.Is(perr, ErrPriceUnavailable) {
				log.Printf("[Resolver] Market %d candidate %s price lookup failed: %v", market.ID, opt.ID, perr)
			}
			data.Candidates = append(data.Candidates, result)
			continue
		}

		change := current.Sub(start).Div(start)
		result.EndPrice = current.String()
		result.ChangePct = change.Mul(decimal.NewFromInt(100)).Round(4).String()
		result.Valid = true
		data.Candidates = append(data.Candidates, result)

		// Strictly-greater keeps the first candidate on an exact tie.
		if !haveWinner || change.GreaterThan(bestChange) {
			haveWinner = true
			bestChange = change
			winnerID = opt.ID
		}
	}

	if !haveWinner {
		// Never settle with a fabricated winner: leave the market active.
		return "", nil, fmt.Errorf("market %d: %w", market.ID, ErrNoValidPrices)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode resolution data: %w", err)
	}
	return winnerID, datatypes.JSON(payload), nil
}

// resolveByStrategy delegates to the registered strategy for the market's
// resolution source.
func (s *ResolverService) resolveByStrategy(ctx context.Context, market *models.Market) (string, datatypes.JSON, error) {
	strategy, ok := s.strategies[market.ResolutionSource]
	if !ok {
		return "", nil, fmt.Errorf("no outcome strategy registered for %q", market.ResolutionSource)
	}

	winnerID, err := strategy.ResolveOutcome(ctx, market)
	if err != nil {
		return "", nil, fmt.Errorf("strategy %q: %w", market.ResolutionSource, err)
	}
	if !market.HasOption(winnerID) {
		return "", nil, fmt.Errorf("strategy %q returned %q: %w", market.ResolutionSource, winnerID, ErrInvalidChoice)
	}

	payload, err := json.Marshal(ResolutionData{
		Method:     models.MarketTypeOutcome,
		ResolvedAt: time.Now().UTC(),
		Strategy:   market.ResolutionSource,
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode resolution data: %w", err)
	}
	return winnerID, datatypes.JSON(payload), nil
}
