package settlement

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/hermeznetwork/tracerr"

	"github.com/metaprize/settler-node/common"
	"github.com/metaprize/settler-node/ledger"
	"github.com/metaprize/settler-node/log"
)

// editionScanLimit bounds how far past the first candidate the allocator
// will probe before giving up on a slot. Concurrent claimants rarely push
// the frontier more than a few editions ahead.
const editionScanLimit = 1024

// EditionAllocator computes collision-avoiding sequential edition numbers
// for an (auction manager, asset) pair without a central counter. The
// checks are best effort: the ledger program is the final adjudicator of
// uniqueness, the allocator only avoids wasting submissions on
// near-certain collisions.
type EditionAllocator struct {
	reader   ledger.Reader
	programs ledger.Programs
}

// NewEditionAllocator creates an allocator reading marks through reader
func NewEditionAllocator(reader ledger.Reader, programs ledger.Programs) *EditionAllocator {
	return &EditionAllocator{reader: reader, programs: programs}
}

// Base returns the edition numbering base for a slot: the prize tracking
// ticket's supply snapshot when the ticket exists, else the master
// edition's current supply. The ticket may not exist yet when the first
// claim for an asset happens; another claimant may create it at any time,
// which is why this is re-read every run.
func (a *EditionAllocator) Base(ctx context.Context, manager solana.PublicKey,
	slot *common.PrizeSlot) (uint64, error) {
	if slot.MasterEdition == nil {
		return 0, tracerr.Wrap(&common.StaleStateError{
			Order:  slot.Order,
			Reason: "edition slot has no master edition",
		})
	}
	addr, err := ledger.PrizeTrackingTicketPDA(a.programs, manager, slot.TokenMint)
	if err != nil {
		return 0, tracerr.Wrap(err)
	}
	data, err := a.reader.ReadAccount(ctx, addr)
	if err != nil {
		if errors.Is(tracerr.Unwrap(err), common.ErrAccountNotFound) {
			return slot.MasterEdition.Supply, nil
		}
		return 0, tracerr.Wrap(err)
	}
	ticket, err := ledger.DecodePrizeTrackingTicket(addr, data)
	if err != nil {
		return 0, tracerr.Wrap(err)
	}
	return ticket.SupplySnapshot, nil
}

// RankOffset returns 1 plus the total allotted amount of same-asset,
// same-method slots at strictly lower (better) ranks. This pins a
// deterministic, rank-ordered numbering: rank 0 prints the lowest
// editions, rank 1 the next block, and so on.
func (a *EditionAllocator) RankOffset(m *common.AuctionManager, rank uint64,
	slot *common.PrizeSlot) uint64 {
	offset := uint64(1)
	for r := uint64(0); r < rank && r < uint64(len(m.WinningConfigs)); r++ {
		for i := range m.WinningConfigs[r] {
			other := &m.WinningConfigs[r][i]
			if other.Order == slot.Order && other.Method == slot.Method &&
				other.TokenMint.Equals(slot.TokenMint) {
				offset += other.Amount
			}
		}
	}
	return offset
}

// NextFree returns the first edition number >= from whose edition mark is
// not yet taken. Taken candidates are skipped rather than failing the
// batch: two claimants computing the same candidate off a stale base is
// expected under concurrency.
func (a *EditionAllocator) NextFree(ctx context.Context, masterMint solana.PublicKey,
	from uint64) (uint64, error) {
	for candidate := from; candidate < from+editionScanLimit; candidate++ {
		taken, err := a.taken(ctx, masterMint, candidate)
		if err != nil {
			return 0, tracerr.Wrap(err)
		}
		if !taken {
			return candidate, nil
		}
		log.Debugw("EditionAllocator edition taken, trying next",
			"mint", masterMint.String(), "edition", candidate)
	}
	return 0, tracerr.Wrap(&common.StaleStateError{
		Reason: "no free edition found within scan limit",
	})
}

func (a *EditionAllocator) taken(ctx context.Context, masterMint solana.PublicKey,
	edition uint64) (bool, error) {
	addr, err := ledger.EditionMarkPDA(a.programs, masterMint, edition)
	if err != nil {
		return false, tracerr.Wrap(err)
	}
	data, err := a.reader.ReadAccount(ctx, addr)
	if err != nil {
		if errors.Is(tracerr.Unwrap(err), common.ErrAccountNotFound) {
			// no marker page yet, nothing on it is taken
			return false, nil
		}
		return false, tracerr.Wrap(err)
	}
	marker, err := ledger.DecodeEditionMarker(data)
	if err != nil {
		return false, tracerr.Wrap(err)
	}
	return marker.Taken(edition), nil
}
