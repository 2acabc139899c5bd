package settlement

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/hermeznetwork/tracerr"

	"github.com/metaprize/settler-node/common"
	"github.com/metaprize/settler-node/ledger"
	"github.com/metaprize/settler-node/log"
)

// SweepUnclaimed plans the authority-only cleanup of an ended auction:
// participation prints pushed to every eligible bidder who never claimed
// theirs, prize slots no rank won redeemed back to the auctioneer, and
// printable parent assets withdrawn last. Only the manager's authority
// may sweep.
func (p *Planner) SweepUnclaimed(ctx context.Context, snap *common.AuctionSnapshot,
	identity solana.PublicKey) ([]Batch, error) {
	if !identity.Equals(snap.Manager.Authority) {
		return nil, tracerr.Wrap(common.ErrNotAuthority)
	}
	if snap.Auction.State != common.AuctionStateEnded {
		return nil, tracerr.Wrap(fmt.Errorf(
			"auction %s not ended, sweep refused", snap.Auction.Address))
	}

	var batches []Batch

	for i := range snap.Bidders {
		bidder := &snap.Bidders[i]
		if bidder.Cancelled {
			continue
		}
		var rankPtr *uint64
		if rank, won := RankOf(&snap.Auction, bidder.Bidder); won {
			r := rank
			rankPtr = &r
		}
		part, err := p.planParticipationFor(ctx, snap, bidder,
			bidder.Bidder, identity, rankPtr)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		batches = append(batches, part...)
	}

	unused, err := p.planUnusedSlots(ctx, snap, identity)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	batches = append(batches, unused...)

	editions, err := p.planWinnerEditions(ctx, snap, identity)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	batches = append(batches, editions...)

	withdrawals, err := p.planMasterWithdrawals(ctx, snap, identity)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	batches = append(batches, withdrawals...)

	return batches, nil
}

// planUnusedSlots redeems back to the auctioneer every slot of a rank
// that ended without a winner
func (p *Planner) planUnusedSlots(ctx context.Context, snap *common.AuctionSnapshot,
	authority solana.PublicKey) ([]Batch, error) {
	authorityMeta, err := ledger.BidderMetadataPDA(p.programs,
		snap.Auction.Address, authority)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	bidRedemption, err := ledger.BidRedemptionPDA(p.programs,
		snap.Auction.Address, authorityMeta)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}

	var batches []Batch
	for rank := range snap.Manager.WinningConfigs {
		if _, ok := snap.Auction.BidState.WinnerAt(uint64(rank)); ok {
			continue
		}
		for i := range snap.Manager.WinningConfigs[rank] {
			slot := &snap.Manager.WinningConfigs[rank][i]
			empty, err := p.storeEmpty(ctx, slot)
			if err != nil {
				return nil, tracerr.Wrap(err)
			}
			if empty {
				continue
			}
			var instrs []solana.Instruction
			dest, create, err := p.ensureTokenAccount(ctx, authority, authority,
				slot.TokenMint)
			if err != nil {
				return nil, tracerr.Wrap(err)
			}
			if create != nil {
				instrs = append(instrs, create)
			}
			redeem, err := ledger.RedeemUnusedAsAuctioneer(p.programs,
				ledger.RedeemBidAccounts{
					AuctionManager:    snap.Manager.Address,
					Store:             slot.Store,
					Destination:       dest,
					BidRedemption:     bidRedemption,
					SafetyDepositBox:  slot.Box,
					Vault:             snap.Manager.Vault,
					VaultFractionMint: snap.Manager.VaultFractionMint,
					Auction:           snap.Auction.Address,
					BidderMetadata:    authorityMeta,
					Bidder:            authority,
					Payer:             authority,
				}, slot.Order)
			if err != nil {
				return nil, tracerr.Wrap(err)
			}
			instrs = append(instrs, redeem)
			log.Infow("Planner reclaiming unwon slot",
				"rank", rank, "order", slot.Order)
			batches = append(batches, Batch{
				Kind:         BatchRedeemPrize,
				Rank:         uint64(rank),
				Order:        slot.Order,
				Instructions: instrs,
			})
		}
	}
	return batches, nil
}

// planWinnerEditions mints the print editions still owed to winners who
// never claimed, authority paying, editions delivered to the winner. Must
// run before the parent asset is withdrawn or the prints can never be
// minted. Direct-transfer slots are left to their winners; only editions
// block the withdrawal.
func (p *Planner) planWinnerEditions(ctx context.Context, snap *common.AuctionSnapshot,
	authority solana.PublicKey) ([]Batch, error) {
	var batches []Batch
	for rank := range snap.Manager.WinningConfigs {
		winner, ok := snap.Auction.BidState.WinnerAt(uint64(rank))
		if !ok {
			continue
		}
		meta := snap.BidderMeta(winner)
		if meta == nil || meta.Cancelled {
			continue
		}
		for i := range snap.Manager.WinningConfigs[rank] {
			slot := &snap.Manager.WinningConfigs[rank][i]
			if slot.Method != common.PrintEdition {
				continue
			}
			slotBatches, err := p.planPrintEditions(ctx, snap, meta,
				winner, authority, uint64(rank), slot)
			if err != nil {
				return nil, tracerr.Wrap(err)
			}
			if len(slotBatches) > 0 {
				log.Infow("Planner minting editions for absent winner",
					"rank", rank, "order", slot.Order, "winner", winner.String())
			}
			batches = append(batches, slotBatches...)
		}
	}
	return batches, nil
}

// planMasterWithdrawals returns every printable parent asset still in the
// vault to the authority. Runs last so no pending print loses its source.
func (p *Planner) planMasterWithdrawals(ctx context.Context, snap *common.AuctionSnapshot,
	authority solana.PublicKey) ([]Batch, error) {
	var slots []*common.PrizeSlot
	seen := make(map[solana.PublicKey]bool)
	for rank := range snap.Manager.WinningConfigs {
		for i := range snap.Manager.WinningConfigs[rank] {
			slot := &snap.Manager.WinningConfigs[rank][i]
			if slot.MasterEdition == nil || seen[slot.Box] {
				continue
			}
			if slot.Method != common.PrintEdition && slot.Method != common.PrintEditionLegacy {
				continue
			}
			seen[slot.Box] = true
			slots = append(slots, slot)
		}
	}
	if part := snap.Manager.ParticipationSlot; part != nil &&
		part.MasterEdition != nil && !seen[part.Box] {
		slots = append(slots, part)
	}

	var batches []Batch
	for _, slot := range slots {
		empty, err := p.storeEmpty(ctx, slot)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		if empty {
			continue
		}
		var instrs []solana.Instruction
		dest, create, err := p.ensureTokenAccount(ctx, authority, authority,
			slot.TokenMint)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		if create != nil {
			instrs = append(instrs, create)
		}
		withdraw, err := ledger.WithdrawMasterEdition(p.programs,
			snap.Manager.Address, slot.Store, dest, slot.Box,
			snap.Manager.Vault, snap.Manager.VaultFractionMint,
			snap.Auction.Address)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		instrs = append(instrs, withdraw)
		batches = append(batches, Batch{
			Kind:         BatchWithdrawMaster,
			Rank:         NoRank,
			Order:        slot.Order,
			Instructions: instrs,
		})
	}
	return batches, nil
}
