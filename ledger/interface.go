package ledger

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Reader is the read side of the ledger client. Planners depend on this
// interface only, so tests can drive them against an in-memory ledger.
type Reader interface {
	// ReadAccount returns the raw account data, or
	// common.ErrAccountNotFound if the account does not exist
	ReadAccount(ctx context.Context, addr solana.PublicKey) ([]byte, error)
	// TokenBalance returns the amount held by a token account
	TokenBalance(ctx context.Context, addr solana.PublicKey) (uint64, error)
	// MinimumReserve returns the rent-exempt reserve for an account of the
	// given data size
	MinimumReserve(ctx context.Context, size uint64) (uint64, error)
}

// Submitter sends one batch of instructions as a single atomic transaction
// and waits for confirmation.
type Submitter interface {
	Submit(ctx context.Context, instructions []solana.Instruction,
		signers []solana.PrivateKey) (solana.Signature, error)
}

// Client is the full ledger collaborator
type Client interface {
	Reader
	Submitter
	// Payer is the fee-paying identity transactions are signed with
	Payer() solana.PublicKey
}
