package settlement

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/hermeznetwork/tracerr"

	"github.com/metaprize/settler-node/common"
	"github.com/metaprize/settler-node/ledger"
	"github.com/metaprize/settler-node/log"
)

// PlanCancellation builds the single batch refunding the identity's
// locked bid, or nil when there is nothing to cancel: no bid on record,
// the bid is already cancelled, or the bid holds a winning rank.
// Cancellation and redemption are mutually exclusive for a winner.
func (p *Planner) PlanCancellation(ctx context.Context, snap *common.AuctionSnapshot,
	identity solana.PublicKey) (*Batch, error) {
	meta := snap.MyBidderMetadata
	if meta == nil {
		log.Debugw("Planner no bid to cancel", "bidder", identity.String())
		return nil, nil
	}
	if meta.Cancelled {
		log.Debugw("Planner bid already cancelled", "bidder", identity.String())
		return nil, nil
	}
	if snap.MyBidderPot == nil {
		log.Debugw("Planner no bidder pot, nothing locked", "bidder", identity.String())
		return nil, nil
	}
	if rank, won := RankOf(&snap.Auction, identity); won {
		log.Infow("Planner refusing to cancel a winning bid",
			"bidder", identity.String(), "rank", rank)
		return nil, nil
	}

	// Refunds land in a throwaway token account for the auction's mint,
	// closed back to the bidder in the same transaction.
	refund := solana.NewWallet()
	rent, err := p.reader.MinimumReserve(ctx, ledger.TokenAccountSize)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	createRefund, err := ledger.CreateAccount(p.programs, identity,
		refund.PublicKey(), rent, ledger.TokenAccountSize, p.programs.Token)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	initRefund, err := ledger.InitializeTokenAccount(p.programs,
		refund.PublicKey(), snap.Auction.TokenMint, identity)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}

	bidderPot, err := ledger.BidderPotPDA(p.programs, snap.Auction.Address, identity)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	extended, err := ledger.AuctionExtendedPDA(p.programs, snap.Manager.Vault)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	cancel, err := ledger.CancelBid(p.programs, identity, refund.PublicKey(),
		bidderPot, snap.MyBidderPot.Pot, meta.Address, snap.Auction.Address,
		extended, snap.Auction.TokenMint, snap.Manager.Vault)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	closeRefund, err := ledger.CloseAccount(p.programs, refund.PublicKey(),
		identity, identity)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}

	return &Batch{
		Kind: BatchCancelBid,
		Rank: NoRank,
		Instructions: []solana.Instruction{
			createRefund, initRefund, cancel, closeRefund,
		},
		Signers: []solana.PrivateKey{refund.PrivateKey},
	}, nil
}
