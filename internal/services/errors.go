package services

import "errors"

// Sentinel errors for the engine's failure taxonomy. Handlers and the
// settlement job classify on these with errors.Is.
var (
	// ErrInsufficientBalance rejects a deduction before any mutation.
	ErrInsufficientBalance = errors.New("insufficient OP balance")

	// ErrAlreadyEntered rejects a second prediction for the same (wallet, market).
	ErrAlreadyEntered = errors.New("wallet already entered this market")

	// ErrMarketNotOpen rejects entry or settlement of a market outside its window.
	ErrMarketNotOpen = errors.New("market is not open")

	// ErrMarketNotFound is returned for unknown market ids.
	ErrMarketNotFound = errors.New("market not found")

	// ErrInvalidChoice rejects an option id outside the market's candidate set.
	ErrInvalidChoice = errors.New("choice is not part of this market")

	// ErrInvalidWallet rejects malformed wallet addresses.
	ErrInvalidWallet = errors.New("invalid wallet address")

	// ErrTokenGate rejects entry into a prize-bearing market when the wallet
	// does not hold the required token balance.
	ErrTokenGate = errors.New("wallet does not meet the token balance requirement")

	// ErrAlreadyClaimed rejects a daily bonus claim inside the cooldown window.
	ErrAlreadyClaimed = errors.New("daily bonus already claimed")

	// ErrNoValidPrices is a transient resolution failure: no candidate had a
	// usable price. The market stays active and is retried on the next sweep.
	ErrNoValidPrices = errors.New("no candidate has a valid price")

	// ErrNotResolvable signals an outcome strategy that cannot decide yet.
	// Like ErrNoValidPrices it leaves the market active for retry.
	ErrNotResolvable = errors.New("outcome cannot be resolved yet")

	// ErrSettlementInProgress means another caller holds the resolving status.
	ErrSettlementInProgress = errors.New("settlement already in progress")

	// ErrCompensationFailed is the loud error class for a refund or credit that
	// failed after a committed deduction. It represents real balance drift and
	// must never be swallowed.
	ErrCompensationFailed = errors.New("compensating credit failed: balance drift")

	// ErrAlreadyJoined rejects a duplicate tournament join.
	ErrAlreadyJoined = errors.New("wallet already joined this tournament")

	// ErrTournamentNotFound is returned for unknown tournament ids.
	ErrTournamentNotFound = errors.New("tournament not found")
)

// RetryableResolution reports whether a resolution error leaves the market
// active for the next batch pass instead of failing it permanently.
func RetryableResolution(err error) bool {
	return errors.Is(err, ErrNoValidPrices) || errors.Is(err, ErrNotResolvable)
}
