package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/hermeznetwork/tracerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaprize/settler-node/common"
)

func testBatches(n int) []Batch {
	out := make([]Batch, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Batch{
			Kind:  BatchRedeemPrize,
			Rank:  0,
			Order: uint64(i),
		})
	}
	return out
}

func TestSubmitAllRetriesTransientFailure(t *testing.T) {
	mem := newMemLedger(solana.NewWallet().PublicKey())
	mem.submitErrs = []error{errors.New("blockhash not found"), nil}

	s := NewBatchSubmitter(mem, SubmitterConfig{
		Attempts:     2,
		AttemptDelay: time.Millisecond,
		Policy:       AbortOnFailure,
	})
	results, err := s.SubmitAll(context.Background(), testBatches(1), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Len(t, mem.submitted, 2)
}

func TestSubmitAllAbortPolicy(t *testing.T) {
	mem := newMemLedger(solana.NewWallet().PublicKey())
	mem.submitErrs = []error{errors.New("boom"), errors.New("boom")}

	s := NewBatchSubmitter(mem, SubmitterConfig{
		Attempts:     2,
		AttemptDelay: time.Millisecond,
		Policy:       AbortOnFailure,
	})
	results, err := s.SubmitAll(context.Background(), testBatches(3), nil)
	require.Error(t, err)
	// the run stops at the first exhausted batch
	require.Len(t, results, 1)

	var sub *common.SubmissionError
	require.ErrorAs(t, results[0].Err, &sub)
	assert.Equal(t, uint64(0), sub.Order)
	assert.Len(t, mem.submitted, 2)
}

func TestSubmitAllBestEffortPolicy(t *testing.T) {
	mem := newMemLedger(solana.NewWallet().PublicKey())
	mem.submitErrs = []error{errors.New("boom")}

	s := NewBatchSubmitter(mem, SubmitterConfig{
		Attempts:     1,
		AttemptDelay: time.Millisecond,
		Policy:       BestEffortContinue,
	})
	results, err := s.SubmitAll(context.Background(), testBatches(3), nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.NoError(t, results[2].Err)
}

func TestSubmitAllMissingSignerIsFatal(t *testing.T) {
	mem := newMemLedger(solana.NewWallet().PublicKey())
	missing := solana.NewWallet().PublicKey()
	mem.submitErrs = []error{
		&common.SignerUnavailableError{Key: missing},
	}

	// even the forgiving policy cannot retry an unsignable batch
	s := NewBatchSubmitter(mem, SubmitterConfig{
		Attempts:     3,
		AttemptDelay: time.Millisecond,
		Policy:       BestEffortContinue,
	})
	results, err := s.SubmitAll(context.Background(), testBatches(2), nil)
	var unavailable *common.SignerUnavailableError
	require.ErrorAs(t, tracerr.Unwrap(err), &unavailable)
	assert.Equal(t, missing, unavailable.Key)
	require.Len(t, results, 1)
	assert.Len(t, mem.submitted, 1)
}

func TestSubmitAllContextCancelled(t *testing.T) {
	mem := newMemLedger(solana.NewWallet().PublicKey())
	mem.submitErrs = []error{errors.New("boom")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewBatchSubmitter(mem, SubmitterConfig{
		Attempts:     2,
		AttemptDelay: time.Hour,
		Policy:       AbortOnFailure,
	})
	_, err := s.SubmitAll(ctx, testBatches(1), nil)
	require.ErrorIs(t, tracerr.Unwrap(err), common.ErrDone)
}
