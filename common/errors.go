package common

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ErrAccountNotFound is returned by ledger reads when the account does not
// exist
var ErrAccountNotFound = errors.New("account not found")

// ErrDone is returned when a context is done while an operation is in
// progress
var ErrDone = errors.New("done")

// ErrNotAuthority is returned when the sweep is attempted by an identity
// that is not the auction manager authority
var ErrNotAuthority = errors.New("identity is not the auction manager authority")

// StaleStateError means a claimed flag or edition mark read during planning
// contradicts an assumption made earlier in the same run. Planners recover
// by skipping the slot; it never aborts the whole run.
type StaleStateError struct {
	Rank   uint64
	Order  uint64
	Reason string
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("stale state at rank %d order %d: %s", e.Rank, e.Order, e.Reason)
}

// ResourceExhaustedError means a backing asset store had zero balance when
// a claim was expected. Recovered the same way as StaleStateError.
type ResourceExhaustedError struct {
	Order uint64
	Store solana.PublicKey
}

func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("asset store %s for order %d is empty", e.Store, e.Order)
}

// SubmissionError means a batch failed to send or confirm. Prior confirmed
// batches are not rolled back; the failed batch needs a fresh planning pass
// before any retry.
type SubmissionError struct {
	Rank  uint64
	Order uint64
	Unit  uint64
	Sig   solana.Signature
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("batch for rank %d order %d unit %d failed: %v",
		e.Rank, e.Order, e.Unit, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// SignerUnavailableError means a required signature cannot be produced.
// Fatal to the remainder of the run.
type SignerUnavailableError struct {
	Key solana.PublicKey
}

func (e *SignerUnavailableError) Error() string {
	return fmt.Sprintf("no signer available for %s", e.Key)
}
