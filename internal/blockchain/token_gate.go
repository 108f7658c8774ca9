package blockchain

import (
	"context"
	"fmt"
	"log"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

// TokenGate checks SPL token balances over Solana RPC. It gates entry into
// prize-bearing markets behind a minimum holding of a configured mint.
type TokenGate struct {
	rpcClient  *rpc.Client
	mint       solana.PublicKey
	minBalance uint64
	enabled    bool
}

// NewTokenGate creates a TokenGate for the given network and mint. An empty
// mint or a zero minimum disables the gate; every wallet passes.
func NewTokenGate(network, mintAddress string, minBalance uint64) (*TokenGate, error) {
	var rpcURL string
	switch network {
	case "mainnet-beta":
		rpcURL = "https://api.mainnet-beta.solana.com"
	case "devnet":
		rpcURL = "https://api.devnet.solana.com"
	case "testnet":
		rpcURL = "https://api.testnet.solana.com"
	default:
		rpcURL = network // custom RPC endpoint
	}

	gate := &TokenGate{
		rpcClient:  rpc.New(rpcURL),
		minBalance: minBalance,
	}

	if mintAddress == "" || minBalance == 0 {
		log.Printf("[TokenGate] Gate disabled (mint=%q min=%d)", mintAddress, minBalance)
		return gate, nil
	}

	mint, err := solana.PublicKeyFromBase58(mintAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid mint address: %w", err)
	}
	gate.mint = mint
	gate.enabled = true
	return gate, nil
}

// HasMinimumBalance reports whether the wallet holds at least the configured
// token balance.
func (g *TokenGate) HasMinimumBalance(ctx context.Context, wallet string) (bool, error) {
	if !g.enabled {
		return true, nil
	}

	balance, err := g.TokenBalance(ctx, wallet)
	if err != nil {
		return false, err
	}
	return balance >= g.minBalance, nil
}

// TokenBalance sums the wallet's token accounts for the gated mint.
func (g *TokenGate) TokenBalance(ctx context.Context, wallet string) (uint64, error) {
	owner, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return 0, fmt.Errorf("invalid owner address: %w", err)
	}

	resp, err := g.rpcClient.GetTokenAccountsByOwner(
		ctx,
		owner,
		&rpc.GetTokenAccountsConfig{
			Mint: &g.mint,
		},
		&rpc.GetTokenAccountsOpts{
			Encoding: solana.EncodingBase64,
		},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to get token accounts: %w", err)
	}

	if len(resp.Value) == 0 {
		return 0, nil // no account means 0 balance
	}

	var totalBalance uint64
	for _, account := range resp.Value {
		var tokenAccount token.Account
		decoder := bin.NewBinDecoder(account.Account.Data.GetBinary())
		if err := tokenAccount.UnmarshalWithDecoder(decoder); err != nil {
			log.Printf("[TokenGate] Warning: failed to decode token account data: %v", err)
			continue
		}
		totalBalance += tokenAccount.Amount
	}

	return totalBalance, nil
}
