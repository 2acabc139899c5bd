package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/hermeznetwork/tracerr"

	"github.com/metaprize/settler-node/common"
	"github.com/metaprize/settler-node/ledger"
	"github.com/metaprize/settler-node/log"
)

// FailurePolicy selects what SubmitAll does when a batch keeps failing
// after all attempts
type FailurePolicy string

const (
	// AbortOnFailure stops the run at the first exhausted batch
	AbortOnFailure FailurePolicy = "abort"
	// BestEffortContinue records the failure and moves on, so one stuck
	// prize never blocks the rest
	BestEffortContinue FailurePolicy = "continue"
)

// SubmitterConfig tunes retry behavior of the batch submitter
type SubmitterConfig struct {
	Attempts     int
	AttemptDelay time.Duration
	Policy       FailurePolicy
}

// BatchResult is the outcome of one submitted batch
type BatchResult struct {
	Batch Batch
	Sig   solana.Signature
	Err   error
}

// BatchSubmitter pushes planned batches to the ledger one at a time, in
// order, retrying transient failures. Batches are independent units: a
// confirmed batch stays settled no matter what later batches do.
type BatchSubmitter struct {
	client ledger.Submitter
	cfg    SubmitterConfig
}

// NewBatchSubmitter creates a submitter sending through client
func NewBatchSubmitter(client ledger.Submitter, cfg SubmitterConfig) *BatchSubmitter {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	return &BatchSubmitter{client: client, cfg: cfg}
}

// SubmitAll submits every batch in order, extraSigners joining each
// batch's own ephemeral keys. The returned slice holds one result per
// attempted batch, in submission order. A missing signer aborts
// immediately regardless of policy since no retry can fix it.
func (s *BatchSubmitter) SubmitAll(ctx context.Context, batches []Batch,
	extraSigners []solana.PrivateKey) ([]BatchResult, error) {
	results := make([]BatchResult, 0, len(batches))
	for i, batch := range batches {
		sig, err := s.submitWithRetry(ctx, batch, extraSigners)
		res := BatchResult{Batch: batch, Sig: sig}
		if err != nil {
			res.Err = &common.SubmissionError{
				Rank:  batch.Rank,
				Order: batch.Order,
				Unit:  batch.Unit,
				Sig:   sig,
				Err:   err,
			}
		}
		results = append(results, res)
		if err == nil {
			log.Infow("BatchSubmitter batch confirmed", "kind", batch.Kind.String(),
				"rank", batch.Rank, "order", batch.Order, "sig", sig.String())
			continue
		}

		var unavailable *common.SignerUnavailableError
		if errors.As(tracerr.Unwrap(err), &unavailable) || errors.Is(tracerr.Unwrap(err), common.ErrDone) {
			return results, tracerr.Wrap(err)
		}
		log.Errorw("BatchSubmitter batch failed", "kind", batch.Kind.String(),
			"rank", batch.Rank, "order", batch.Order, "err", err)
		if s.cfg.Policy != BestEffortContinue {
			return results, tracerr.Wrap(fmt.Errorf(
				"aborting after batch %d of %d: %w", i+1, len(batches), err))
		}
	}
	return results, nil
}

func (s *BatchSubmitter) submitWithRetry(ctx context.Context, batch Batch,
	extraSigners []solana.PrivateKey) (solana.Signature, error) {
	signers := make([]solana.PrivateKey, 0, len(batch.Signers)+len(extraSigners))
	signers = append(signers, batch.Signers...)
	signers = append(signers, extraSigners...)

	var lastErr error
	for attempt := 0; attempt < s.cfg.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return solana.Signature{}, tracerr.Wrap(common.ErrDone)
			case <-time.After(s.cfg.AttemptDelay):
			}
			log.Debugw("BatchSubmitter retrying batch", "kind", batch.Kind.String(),
				"attempt", attempt+1)
		}
		sig, err := s.client.Submit(ctx, batch.Instructions, signers)
		if err == nil {
			return sig, nil
		}
		var unavailable *common.SignerUnavailableError
		if errors.As(tracerr.Unwrap(err), &unavailable) || errors.Is(tracerr.Unwrap(err), common.ErrDone) {
			return sig, tracerr.Wrap(err)
		}
		lastErr = err
	}
	return solana.Signature{}, tracerr.Wrap(lastErr)
}
