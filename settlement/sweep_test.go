package settlement

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/hermeznetwork/tracerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaprize/settler-node/common"
)

func TestSweepRequiresAuthority(t *testing.T) {
	f := newFixture(t)
	planner := NewPlanner(f.ledger, f.programs)

	_, err := planner.SweepUnclaimed(context.Background(), f.snap, f.winner)
	require.ErrorIs(t, tracerr.Unwrap(err), common.ErrNotAuthority)
}

func TestSweepRefusedBeforeEnd(t *testing.T) {
	f := newFixture(t)
	f.snap.Auction.State = common.AuctionStateStarted
	planner := NewPlanner(f.ledger, f.programs)

	_, err := planner.SweepUnclaimed(context.Background(), f.snap,
		f.snap.Manager.Authority)
	require.Error(t, err)
	assert.NotErrorIs(t, tracerr.Unwrap(err), common.ErrNotAuthority)
}

func TestSweepReclaimsUnwonRankAndWithdrawsMasters(t *testing.T) {
	f := newFixture(t)
	authority := f.snap.Manager.Authority

	// a second configured rank nobody bid into
	unwonStore := solana.NewWallet().PublicKey()
	f.ledger.balances[unwonStore] = 1
	unwon := common.PrizeSlot{
		Box:       solana.NewWallet().PublicKey(),
		Store:     unwonStore,
		TokenMint: solana.NewWallet().PublicKey(),
		Metadata:  solana.NewWallet().PublicKey(),
		Method:    common.TokenOnlyTransfer,
		Order:     1,
		Amount:    1,
	}
	f.snap.Manager.WinningConfigs = append(f.snap.Manager.WinningConfigs,
		[]common.PrizeSlot{unwon})

	// a participation prize every bidder still has coming
	partStore := solana.NewWallet().PublicKey()
	f.ledger.balances[partStore] = 1
	f.snap.Manager.Participation = &common.ParticipationConfig{
		WinnerConstraint:    common.ParticipationPrizeGiven,
		NonWinnerConstraint: common.ParticipationPrizeGiven,
	}
	f.snap.Manager.ParticipationSlot = participationSlot(partStore)

	planner := NewPlanner(f.ledger, f.programs)
	batches, err := planner.SweepUnclaimed(context.Background(), f.snap, authority)
	require.NoError(t, err)

	// one participation pair per bidder, then the unwon slot, masters last
	require.Equal(t, []BatchKind{
		BatchMintSetup, BatchParticipation,
		BatchMintSetup, BatchParticipation,
		BatchRedeemPrize,
		BatchWithdrawMaster,
	}, kinds(batches))

	reclaim := batches[4]
	assert.Equal(t, uint64(1), reclaim.Rank)
	assert.Equal(t, uint64(1), reclaim.Order)

	// the editions are pushed to the bidders, not the authority, so the
	// primary-sale flip stays with the future owner
	for _, b := range batches[:4] {
		assert.NotEqual(t, BatchPrimarySale, b.Kind)
	}
}

func TestSweepMintsEditionsForAbsentWinner(t *testing.T) {
	f := newFixture(t)
	store := solana.NewWallet().PublicKey()
	f.ledger.balances[store] = 1
	f.snap.Manager.WinningConfigs[0][0] = printSlot(store, 1)

	planner := NewPlanner(f.ledger, f.programs)
	batches, err := planner.SweepUnclaimed(context.Background(), f.snap,
		f.snap.Manager.Authority)
	require.NoError(t, err)

	// the winner's outstanding edition is minted before the parent asset
	// leaves the vault
	require.Equal(t, []BatchKind{BatchPrintEdition, BatchWithdrawMaster},
		kinds(batches))

	print := batches[0]
	assert.Equal(t, uint64(0), print.Rank)
	assert.Equal(t, uint64(0), print.Order)
	require.Len(t, print.Signers, 1)
	require.NotNil(t, redeemPrintData(t, print))

	// the authority pays but does not receive, so the primary-sale flip
	// stays with the winner
	for _, b := range batches {
		assert.NotEqual(t, BatchPrimarySale, b.Kind)
	}
}

func TestSweepSkipsEditionsOfCancelledWinner(t *testing.T) {
	f := newFixture(t)
	store := solana.NewWallet().PublicKey()
	f.ledger.balances[store] = 1
	f.snap.Manager.WinningConfigs[0][0] = printSlot(store, 1)
	f.snap.Bidders[0].Cancelled = true

	planner := NewPlanner(f.ledger, f.programs)
	batches, err := planner.SweepUnclaimed(context.Background(), f.snap,
		f.snap.Manager.Authority)
	require.NoError(t, err)
	assert.Equal(t, []BatchKind{BatchWithdrawMaster}, kinds(batches))
}

func TestSweepSkipsCancelledBidders(t *testing.T) {
	f := newFixture(t)
	partStore := solana.NewWallet().PublicKey()
	f.ledger.balances[partStore] = 1
	f.snap.Manager.Participation = &common.ParticipationConfig{
		WinnerConstraint:    common.NoParticipationPrize,
		NonWinnerConstraint: common.ParticipationPrizeGiven,
	}
	f.snap.Manager.ParticipationSlot = participationSlot(partStore)
	// the loser cancelled out, the winner is excluded by constraint
	f.snap.Bidders[1].Cancelled = true

	planner := NewPlanner(f.ledger, f.programs)
	batches, err := planner.SweepUnclaimed(context.Background(), f.snap,
		f.snap.Manager.Authority)
	require.NoError(t, err)

	// only the participation master withdrawal remains
	assert.Equal(t, []BatchKind{BatchWithdrawMaster}, kinds(batches))
}
