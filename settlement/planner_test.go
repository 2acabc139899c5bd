package settlement

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaprize/settler-node/common"
	"github.com/metaprize/settler-node/ledger"
)

func TestPlanRedemptionDirectTransferWin(t *testing.T) {
	f := newFixture(t)
	planner := NewPlanner(f.ledger, f.programs)

	batches, err := planner.PlanRedemption(context.Background(), f.snap, f.winner)
	require.NoError(t, err)
	require.Equal(t, []BatchKind{BatchRedeemPrize, BatchClaimBid}, kinds(batches))

	prize := batches[0]
	assert.Equal(t, uint64(0), prize.Rank)
	assert.Equal(t, uint64(0), prize.Order)
	// destination account does not exist yet: create, redeem, primary sale
	require.Len(t, prize.Instructions, 3)
	data, err := prize.Instructions[1].Data()
	require.NoError(t, err)
	assert.Equal(t, byte(2), data[0])

	claim := batches[1]
	assert.Equal(t, NoRank, claim.Rank)
	require.Len(t, claim.Instructions, 1)
}

func TestPlanRedemptionExistingDestinationSkipsCreate(t *testing.T) {
	f := newFixture(t)
	slot := &f.snap.Manager.WinningConfigs[0][0]
	ata, err := ledger.AssociatedTokenPDA(f.programs, f.winner, slot.TokenMint)
	require.NoError(t, err)
	f.ledger.accounts[ata] = ledger.EncodeTokenAccount(slot.TokenMint, f.winner, 0)

	planner := NewPlanner(f.ledger, f.programs)
	batches, err := planner.PlanRedemption(context.Background(), f.snap, f.winner)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0].Instructions, 2)
}

func TestPlanRedemptionSkipsClaimedSlot(t *testing.T) {
	f := newFixture(t)
	f.markClaimed(t, f.snap.MyBidderMetadata.Address, 0)

	planner := NewPlanner(f.ledger, f.programs)
	batches, err := planner.PlanRedemption(context.Background(), f.snap, f.winner)
	require.NoError(t, err)
	assert.Equal(t, []BatchKind{BatchClaimBid}, kinds(batches))
}

func TestPlanRedemptionSkipsDrainedStore(t *testing.T) {
	f := newFixture(t)
	f.ledger.balances[f.snap.Manager.WinningConfigs[0][0].Store] = 0

	planner := NewPlanner(f.ledger, f.programs)
	batches, err := planner.PlanRedemption(context.Background(), f.snap, f.winner)
	require.NoError(t, err)
	assert.Equal(t, []BatchKind{BatchClaimBid}, kinds(batches))
}

func TestPlanRedemptionClaimBidSkippedWhenEmptied(t *testing.T) {
	f := newFixture(t)
	f.snap.MyBidderPot.Emptied = true

	planner := NewPlanner(f.ledger, f.programs)
	batches, err := planner.PlanRedemption(context.Background(), f.snap, f.winner)
	require.NoError(t, err)
	assert.Equal(t, []BatchKind{BatchRedeemPrize}, kinds(batches))
}

func TestPlanRedemptionFullRightsTransfer(t *testing.T) {
	f := newFixture(t)
	f.snap.Manager.WinningConfigs[0][0].Method = common.FullRightsTransfer

	planner := NewPlanner(f.ledger, f.programs)
	batches, err := planner.PlanRedemption(context.Background(), f.snap, f.winner)
	require.NoError(t, err)
	require.NotEmpty(t, batches)

	data, err := batches[0].Instructions[1].Data()
	require.NoError(t, err)
	assert.Equal(t, byte(3), data[0])
}

func TestPlanRedemptionNonWinnerWithoutParticipation(t *testing.T) {
	f := newFixture(t)
	f.snap.MyBidderMetadata = bidderMetaFor(t, f.programs,
		f.snap.Auction.Address, f.loser, 50, false)
	f.snap.MyBidderPot = nil

	planner := NewPlanner(f.ledger, f.programs)
	batches, err := planner.PlanRedemption(context.Background(), f.snap, f.loser)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func participationSlot(store solana.PublicKey) *common.PrizeSlot {
	return &common.PrizeSlot{
		Box:       solana.NewWallet().PublicKey(),
		Store:     store,
		TokenMint: solana.NewWallet().PublicKey(),
		Metadata:  solana.NewWallet().PublicKey(),
		MasterEdition: &common.MasterEdition{
			Address: solana.NewWallet().PublicKey(),
			Supply:  7,
		},
		Method: common.ParticipationPrint,
		Order:  1,
		Amount: 1,
	}
}

func TestPlanRedemptionLoserGetsParticipationOnly(t *testing.T) {
	f := newFixture(t)
	store := solana.NewWallet().PublicKey()
	f.ledger.balances[store] = 1
	f.snap.Manager.Participation = &common.ParticipationConfig{
		WinnerConstraint:    common.ParticipationPrizeGiven,
		NonWinnerConstraint: common.ParticipationPrizeGiven,
	}
	f.snap.Manager.ParticipationSlot = participationSlot(store)
	f.snap.MyBidderMetadata = bidderMetaFor(t, f.programs,
		f.snap.Auction.Address, f.loser, 50, false)
	f.snap.MyBidderPot = nil

	planner := NewPlanner(f.ledger, f.programs)
	batches, err := planner.PlanRedemption(context.Background(), f.snap, f.loser)
	require.NoError(t, err)
	require.Equal(t, []BatchKind{BatchMintSetup, BatchParticipation, BatchPrimarySale},
		kinds(batches))

	// a loser redeems with no winner index
	redeemData := lastInstructionData(t, batches[1])
	assert.Equal(t, byte(19), redeemData[0])
	assert.Equal(t, byte(0), redeemData[1])
}

func TestPlanRedemptionWinnerParticipationCarriesRank(t *testing.T) {
	f := newFixture(t)
	store := solana.NewWallet().PublicKey()
	f.ledger.balances[store] = 1
	f.snap.Manager.Participation = &common.ParticipationConfig{
		WinnerConstraint:    common.ParticipationPrizeGiven,
		NonWinnerConstraint: common.NoParticipationPrize,
	}
	f.snap.Manager.ParticipationSlot = participationSlot(store)

	planner := NewPlanner(f.ledger, f.programs)
	batches, err := planner.PlanRedemption(context.Background(), f.snap, f.winner)
	require.NoError(t, err)
	require.Equal(t, []BatchKind{BatchRedeemPrize, BatchClaimBid, BatchMintSetup,
		BatchParticipation, BatchPrimarySale}, kinds(batches))

	redeemData := lastInstructionData(t, batches[3])
	require.Len(t, redeemData, 10)
	assert.Equal(t, byte(1), redeemData[1])
	assert.Equal(t, uint64(0), binary.LittleEndian.Uint64(redeemData[2:10]))
}

func TestPlanRedemptionParticipationPrice(t *testing.T) {
	f := newFixture(t)
	store := solana.NewWallet().PublicKey()
	f.ledger.balances[store] = 1
	fixed := uint64(25)
	f.snap.Manager.Participation = &common.ParticipationConfig{
		WinnerConstraint:    common.ParticipationPrizeGiven,
		NonWinnerConstraint: common.ParticipationPrizeGiven,
		FixedPrice:          &fixed,
	}
	f.snap.Manager.ParticipationSlot = participationSlot(store)

	planner := NewPlanner(f.ledger, f.programs)
	batches, err := planner.PlanRedemption(context.Background(), f.snap, f.winner)
	require.NoError(t, err)

	var part *Batch
	for i := range batches {
		if batches[i].Kind == BatchParticipation {
			part = &batches[i]
		}
	}
	require.NotNil(t, part)
	// the approve preceding the redeem delegates exactly the fixed price
	approveData, err := part.Instructions[len(part.Instructions)-2].Data()
	require.NoError(t, err)
	require.Len(t, approveData, 9)
	assert.Equal(t, fixed, binary.LittleEndian.Uint64(approveData[1:9]))
}

func TestPlanRedemptionLegacyParticipation(t *testing.T) {
	f := newFixture(t)
	store := solana.NewWallet().PublicKey()
	f.ledger.balances[store] = 1
	f.snap.Manager.Participation = &common.ParticipationConfig{
		WinnerConstraint:    common.ParticipationPrizeGiven,
		NonWinnerConstraint: common.ParticipationPrizeGiven,
	}
	slot := participationSlot(store)
	slot.MasterEdition.PrintingMint = solana.NewWallet().PublicKey()
	f.snap.Manager.ParticipationSlot = slot

	planner := NewPlanner(f.ledger, f.programs)
	batches, err := planner.PlanRedemption(context.Background(), f.snap, f.winner)
	require.NoError(t, err)

	// the printing token is the claim: one batch, no fresh mint setup
	require.Equal(t, []BatchKind{
		BatchRedeemPrize, BatchClaimBid, BatchParticipation,
	}, kinds(batches))

	part := batches[2]
	require.Len(t, part.Signers, 1)
	assert.Equal(t, []byte{4}, lastInstructionData(t, part))
}

func TestPlanRedemptionParticipationAlreadyClaimed(t *testing.T) {
	f := newFixture(t)
	store := solana.NewWallet().PublicKey()
	f.ledger.balances[store] = 1
	f.snap.Manager.Participation = &common.ParticipationConfig{
		WinnerConstraint:    common.ParticipationPrizeGiven,
		NonWinnerConstraint: common.ParticipationPrizeGiven,
	}
	f.snap.Manager.ParticipationSlot = participationSlot(store)
	f.markClaimed(t, f.snap.MyBidderMetadata.Address,
		f.snap.Manager.ParticipationSlot.Order)

	planner := NewPlanner(f.ledger, f.programs)
	batches, err := planner.PlanRedemption(context.Background(), f.snap, f.winner)
	require.NoError(t, err)
	// the regular prize still plans; only the participation print drops out
	assert.Equal(t, []BatchKind{BatchRedeemPrize, BatchClaimBid}, kinds(batches))
}

func printSlot(store solana.PublicKey, amount uint64) common.PrizeSlot {
	return common.PrizeSlot{
		Box:       solana.NewWallet().PublicKey(),
		Store:     store,
		TokenMint: solana.NewWallet().PublicKey(),
		Metadata:  solana.NewWallet().PublicKey(),
		MasterEdition: &common.MasterEdition{
			Address: solana.NewWallet().PublicKey(),
			Supply:  10,
		},
		Method: common.PrintEdition,
		Order:  0,
		Amount: amount,
	}
}

func TestPlanPrintEditions(t *testing.T) {
	f := newFixture(t)
	store := solana.NewWallet().PublicKey()
	f.ledger.balances[store] = 2
	f.snap.Manager.WinningConfigs[0][0] = printSlot(store, 2)

	planner := NewPlanner(f.ledger, f.programs)
	batches, err := planner.PlanRedemption(context.Background(), f.snap, f.winner)
	require.NoError(t, err)
	require.Equal(t, []BatchKind{BatchPrintEdition, BatchPrintEdition, BatchClaimBid},
		kinds(batches))

	// no tracking ticket: numbering starts at supply + rank offset
	for unit, want := range []uint64{1, 2} {
		b := batches[unit]
		assert.Equal(t, uint64(unit), b.Unit)
		require.Len(t, b.Signers, 1)
		redeemData := redeemPrintData(t, b)
		assert.Equal(t, want, binary.LittleEndian.Uint64(redeemData[1:9]))
		assert.Equal(t, uint64(0), binary.LittleEndian.Uint64(redeemData[9:17]))
	}
}

func TestPlanPrintEditionsBaseFromTrackingTicket(t *testing.T) {
	f := newFixture(t)
	store := solana.NewWallet().PublicKey()
	f.ledger.balances[store] = 1
	slot := printSlot(store, 1)
	f.snap.Manager.WinningConfigs[0][0] = slot

	trackingAddr, err := ledger.PrizeTrackingTicketPDA(f.programs,
		f.snap.Manager.Address, slot.TokenMint)
	require.NoError(t, err)
	f.ledger.accounts[trackingAddr] = ledger.EncodePrizeTrackingTicket(
		&common.PrizeTrackingTicket{SupplySnapshot: 40})

	planner := NewPlanner(f.ledger, f.programs)
	batches, err := planner.PlanRedemption(context.Background(), f.snap, f.winner)
	require.NoError(t, err)
	require.NotEmpty(t, batches)

	redeemData := redeemPrintData(t, batches[0])
	// offset is relative to the snapshot, not the live supply
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(redeemData[1:9]))
}

func TestPlanPrintEditionsSkipsTakenCandidates(t *testing.T) {
	f := newFixture(t)
	store := solana.NewWallet().PublicKey()
	f.ledger.balances[store] = 1
	slot := printSlot(store, 1)
	f.snap.Manager.WinningConfigs[0][0] = slot
	// edition 11 grabbed by a concurrent claimant
	f.takeEdition(t, slot.TokenMint, 11)

	planner := NewPlanner(f.ledger, f.programs)
	batches, err := planner.PlanRedemption(context.Background(), f.snap, f.winner)
	require.NoError(t, err)
	require.NotEmpty(t, batches)

	redeemData := redeemPrintData(t, batches[0])
	assert.Equal(t, uint64(2), binary.LittleEndian.Uint64(redeemData[1:9]))
}

func TestPlanRedemptionReplanIsStable(t *testing.T) {
	// with nothing submitted in between, two planning passes describe the
	// same remaining work, edition numbers included
	f := newFixture(t)
	store := solana.NewWallet().PublicKey()
	f.ledger.balances[store] = 2
	f.snap.Manager.WinningConfigs[0][0] = printSlot(store, 2)
	planner := NewPlanner(f.ledger, f.programs)

	first, err := planner.PlanRedemption(context.Background(), f.snap, f.winner)
	require.NoError(t, err)
	second, err := planner.PlanRedemption(context.Background(), f.snap, f.winner)
	require.NoError(t, err)

	require.Equal(t, kinds(first), kinds(second))
	for i := range first {
		assert.Equal(t, first[i].Rank, second[i].Rank, i)
		assert.Equal(t, first[i].Order, second[i].Order, i)
		assert.Equal(t, first[i].Unit, second[i].Unit, i)
	}
	assert.Equal(t, printEditionNumbers(t, first, 10),
		printEditionNumbers(t, second, 10))
}

func TestPlanRedemptionClaimantsGetDisjointEditions(t *testing.T) {
	// two ranks share one printable asset; each claimant planning
	// independently must land on its own edition numbers
	f := newFixture(t)
	store := solana.NewWallet().PublicKey()
	f.ledger.balances[store] = 4
	shared := printSlot(store, 2)
	f.snap.Auction.BidState.Max = 2
	f.snap.Manager.WinningConfigs = [][]common.PrizeSlot{{shared}, {shared}}
	planner := NewPlanner(f.ledger, f.programs)

	winnerPlan, err := planner.PlanRedemption(context.Background(), f.snap, f.winner)
	require.NoError(t, err)

	loserSnap, err := f.snap.Clone()
	require.NoError(t, err)
	loserSnap.MyBidderMetadata = loserSnap.BidderMeta(f.loser)
	require.NotNil(t, loserSnap.MyBidderMetadata)
	loserSnap.MyBidderPot = &common.BidderPot{
		Address: solana.NewWallet().PublicKey(),
		Pot:     solana.NewWallet().PublicKey(),
		Bidder:  f.loser,
		Auction: f.snap.Auction.Address,
	}
	loserPlan, err := planner.PlanRedemption(context.Background(), loserSnap, f.loser)
	require.NoError(t, err)

	// rank 0 starts right after the supply, rank 1 after rank 0's allotment
	winnerEditions := printEditionNumbers(t, winnerPlan, 10)
	loserEditions := printEditionNumbers(t, loserPlan, 10)
	assert.Equal(t, []uint64{11, 12}, winnerEditions)
	assert.Equal(t, []uint64{13, 14}, loserEditions)

	seen := make(map[uint64]bool)
	for _, e := range append(winnerEditions, loserEditions...) {
		assert.False(t, seen[e], "edition %d assigned twice", e)
		seen[e] = true
	}
}

// printEditionNumbers returns base plus the edition offset carried by each
// print batch's redemption payload, in batch order
func printEditionNumbers(t *testing.T, batches []Batch, base uint64) []uint64 {
	t.Helper()
	var out []uint64
	for _, b := range batches {
		if b.Kind != BatchPrintEdition {
			continue
		}
		data := redeemPrintData(t, b)
		out = append(out, base+binary.LittleEndian.Uint64(data[1:9]))
	}
	return out
}

func redeemPrintData(t *testing.T, b Batch) []byte {
	t.Helper()
	for _, instr := range b.Instructions {
		data, err := instr.Data()
		require.NoError(t, err)
		if len(data) == 17 && data[0] == 14 {
			return data
		}
	}
	t.Fatal("no print-edition redemption instruction in batch")
	return nil
}

func lastInstructionData(t *testing.T, b Batch) []byte {
	t.Helper()
	require.NotEmpty(t, b.Instructions)
	data, err := b.Instructions[len(b.Instructions)-1].Data()
	require.NoError(t, err)
	return data
}
