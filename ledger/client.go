package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/hermeznetwork/tracerr"

	"github.com/metaprize/settler-node/common"
	"github.com/metaprize/settler-node/log"
)

// RPCClientConfig tunes the production ledger client
type RPCClientConfig struct {
	// URL of the JSON-RPC endpoint
	URL string
	// Commitment level used for reads and confirmation
	Commitment rpc.CommitmentType
	// ConfirmTimeout bounds the wait for one transaction to confirm
	ConfirmTimeout time.Duration
	// PollInterval between signature status checks
	PollInterval time.Duration
}

// RPCClient is the production Client backed by a JSON-RPC node. It holds
// the fee payer key; per-batch ephemeral signers are passed to Submit.
type RPCClient struct {
	rpc   *rpc.Client
	payer solana.PrivateKey
	cfg   RPCClientConfig
}

// NewRPCClient creates a ledger client for the given endpoint
func NewRPCClient(cfg RPCClientConfig, payer solana.PrivateKey) *RPCClient {
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &RPCClient{
		rpc:   rpc.New(cfg.URL),
		payer: payer,
		cfg:   cfg,
	}
}

// Payer returns the fee-paying identity
func (c *RPCClient) Payer() solana.PublicKey {
	return c.payer.PublicKey()
}

// ReadAccount implements Reader
func (c *RPCClient) ReadAccount(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	res, err := c.rpc.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{
		Commitment: c.cfg.Commitment,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, tracerr.Wrap(common.ErrAccountNotFound)
		}
		return nil, tracerr.Wrap(err)
	}
	if res == nil || res.Value == nil {
		return nil, tracerr.Wrap(common.ErrAccountNotFound)
	}
	return res.Value.Data.GetBinary(), nil
}

// TokenBalance implements Reader
func (c *RPCClient) TokenBalance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	res, err := c.rpc.GetTokenAccountBalance(ctx, addr, c.cfg.Commitment)
	if err != nil {
		return 0, tracerr.Wrap(err)
	}
	amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, tracerr.Wrap(err)
	}
	return amount, nil
}

// MinimumReserve implements Reader
func (c *RPCClient) MinimumReserve(ctx context.Context, size uint64) (uint64, error) {
	reserve, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, size, c.cfg.Commitment)
	if err != nil {
		return 0, tracerr.Wrap(err)
	}
	return reserve, nil
}

// Submit signs and sends one atomic batch, then waits for it to reach the
// configured commitment. The signature is returned even on confirmation
// timeout so the caller can inspect the transaction later.
func (c *RPCClient) Submit(ctx context.Context, instructions []solana.Instruction,
	signers []solana.PrivateKey) (solana.Signature, error) {
	recent, err := c.rpc.GetLatestBlockhash(ctx, c.cfg.Commitment)
	if err != nil {
		return solana.Signature{}, tracerr.Wrap(err)
	}
	tx, err := solana.NewTransaction(instructions, recent.Value.Blockhash,
		solana.TransactionPayer(c.payer.PublicKey()))
	if err != nil {
		return solana.Signature{}, tracerr.Wrap(err)
	}

	keys := map[solana.PublicKey]*solana.PrivateKey{
		c.payer.PublicKey(): &c.payer,
	}
	for i := range signers {
		k := signers[i]
		keys[k.PublicKey()] = &k
	}
	var missing *solana.PublicKey
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if pk, ok := keys[key]; ok {
			return pk
		}
		missing = &key
		return nil
	}); err != nil {
		if missing != nil {
			return solana.Signature{}, tracerr.Wrap(&common.SignerUnavailableError{Key: *missing})
		}
		return solana.Signature{}, tracerr.Wrap(err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.cfg.Commitment,
	})
	if err != nil {
		return solana.Signature{}, tracerr.Wrap(err)
	}
	log.Debugw("RPCClient transaction sent", "sig", sig.String())
	if err := c.confirm(ctx, sig); err != nil {
		return sig, tracerr.Wrap(err)
	}
	return sig, nil
}

// confirm polls the signature status until it reaches the configured
// commitment, errors on ledger rejection, or times out.
func (c *RPCClient) confirm(ctx context.Context, sig solana.Signature) error {
	deadline := time.Now().Add(c.cfg.ConfirmTimeout)
	for {
		res, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			log.Debugw("RPCClient GetSignatureStatuses", "err", err)
		} else if len(res.Value) > 0 && res.Value[0] != nil {
			status := res.Value[0]
			if status.Err != nil {
				return tracerr.Wrap(fmt.Errorf("transaction %s rejected: %v",
					sig, status.Err))
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return tracerr.Wrap(fmt.Errorf("transaction %s not confirmed after %v",
				sig, c.cfg.ConfirmTimeout))
		}
		select {
		case <-ctx.Done():
			return tracerr.Wrap(common.ErrDone)
		case <-time.After(c.cfg.PollInterval):
		}
	}
}
