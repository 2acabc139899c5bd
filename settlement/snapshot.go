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

// SnapshotLoader assembles the point-in-time view of an auction that
// planning runs against. The manager catalog is static configuration; the
// auction account, the identity's bid accounts and every known bidder's
// metadata are read fresh from the ledger.
type SnapshotLoader struct {
	reader   ledger.Reader
	programs ledger.Programs
}

// NewSnapshotLoader creates a loader reading through reader
func NewSnapshotLoader(reader ledger.Reader, programs ledger.Programs) *SnapshotLoader {
	return &SnapshotLoader{reader: reader, programs: programs}
}

// Load reads the live auction state for manager and the bid accounts of
// identity. Bidders recorded in the auction's bid state plus any
// extraBidders get their metadata loaded too, for the sweep path.
// Missing per-bidder accounts are not errors; the corresponding snapshot
// fields stay nil.
func (l *SnapshotLoader) Load(ctx context.Context, manager common.AuctionManager,
	identity solana.PublicKey, extraBidders ...solana.PublicKey) (*common.AuctionSnapshot, error) {
	auctionAddr := manager.Auction
	if auctionAddr.IsZero() {
		derived, err := ledger.AuctionPDA(l.programs, manager.Vault)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		auctionAddr = derived
	}
	data, err := l.reader.ReadAccount(ctx, auctionAddr)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	auction, err := ledger.DecodeAuction(auctionAddr, data)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}

	snap := &common.AuctionSnapshot{
		Auction: *auction,
		Manager: manager,
	}

	snap.MyBidderMetadata, err = l.bidderMetadata(ctx, auctionAddr, identity)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	snap.MyBidderPot, err = l.bidderPot(ctx, auctionAddr, identity)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if snap.MyBidderMetadata != nil {
		snap.MyBidRedemption, err = l.bidRedemption(ctx, auctionAddr,
			snap.MyBidderMetadata.Address)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
	}

	seen := make(map[solana.PublicKey]bool)
	var bidders []solana.PublicKey
	for _, bid := range auction.BidState.Bids {
		if !seen[bid.Bidder] {
			seen[bid.Bidder] = true
			bidders = append(bidders, bid.Bidder)
		}
	}
	for _, b := range extraBidders {
		if !seen[b] {
			seen[b] = true
			bidders = append(bidders, b)
		}
	}
	for _, b := range bidders {
		meta, err := l.bidderMetadata(ctx, auctionAddr, b)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		if meta == nil {
			log.Debugw("SnapshotLoader bidder without metadata", "bidder", b.String())
			continue
		}
		snap.Bidders = append(snap.Bidders, *meta)
	}

	return snap, nil
}

func (l *SnapshotLoader) bidderMetadata(ctx context.Context, auction,
	bidder solana.PublicKey) (*common.BidderMetadata, error) {
	addr, err := ledger.BidderMetadataPDA(l.programs, auction, bidder)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	data, err := l.reader.ReadAccount(ctx, addr)
	if err != nil {
		if errors.Is(tracerr.Unwrap(err), common.ErrAccountNotFound) {
			return nil, nil
		}
		return nil, tracerr.Wrap(err)
	}
	meta, err := ledger.DecodeBidderMetadata(addr, data)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return meta, nil
}

func (l *SnapshotLoader) bidderPot(ctx context.Context, auction,
	bidder solana.PublicKey) (*common.BidderPot, error) {
	addr, err := ledger.BidderPotPDA(l.programs, auction, bidder)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	data, err := l.reader.ReadAccount(ctx, addr)
	if err != nil {
		if errors.Is(tracerr.Unwrap(err), common.ErrAccountNotFound) {
			return nil, nil
		}
		return nil, tracerr.Wrap(err)
	}
	pot, err := ledger.DecodeBidderPot(addr, data)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return pot, nil
}

func (l *SnapshotLoader) bidRedemption(ctx context.Context, auction,
	bidderMeta solana.PublicKey) (*common.BidRedemptionTicket, error) {
	addr, err := ledger.BidRedemptionPDA(l.programs, auction, bidderMeta)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	data, err := l.reader.ReadAccount(ctx, addr)
	if err != nil {
		if errors.Is(tracerr.Unwrap(err), common.ErrAccountNotFound) {
			return nil, nil
		}
		return nil, tracerr.Wrap(err)
	}
	ticket, err := ledger.DecodeBidRedemptionTicket(addr, data)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return ticket, nil
}
