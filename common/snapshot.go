package common

import (
	"github.com/gagliardetto/solana-go"
	"github.com/hermeznetwork/tracerr"
	"github.com/jinzhu/copier"
)

// AuctionSnapshot is an immutable point-in-time view of one auction plus
// the connected party's bidding state. Snapshots are short-lived: the
// caller loads a fresh one before each orchestration pass and discards it
// afterwards. Claimed flags and edition marks are still re-read from the
// ledger during planning, never trusted from the snapshot alone.
type AuctionSnapshot struct {
	Auction Auction
	Manager AuctionManager
	// MyBidderMetadata is nil when the party never bid
	MyBidderMetadata *BidderMetadata
	// MyBidderPot is nil when the party has no locked funds
	MyBidderPot *BidderPot
	// MyBidRedemption is nil until the party's first claim
	MyBidRedemption *BidRedemptionTicket
	// Bidders holds the metadata of every bidder in the final bid state,
	// needed by the authority sweep
	Bidders []BidderMetadata
}

// BidderMeta returns the loaded metadata of the given bidder, or nil when
// none was found on the ledger
func (s *AuctionSnapshot) BidderMeta(bidder solana.PublicKey) *BidderMetadata {
	for i := range s.Bidders {
		if s.Bidders[i].Bidder.Equals(bidder) {
			return &s.Bidders[i]
		}
	}
	return nil
}

// Clone returns a deep copy for callers that want to mutate a snapshot for
// what-if planning without touching the original.
func (s *AuctionSnapshot) Clone() (*AuctionSnapshot, error) {
	var out AuctionSnapshot
	if err := copier.CopyWithOption(&out, s, copier.Option{DeepCopy: true}); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &out, nil
}
