package common

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// AuctionState is the lifecycle state of an auction on the ledger.
type AuctionState uint8

const (
	// AuctionStateCreated means the auction exists but bidding has not started
	AuctionStateCreated AuctionState = iota
	// AuctionStateStarted means the auction accepts bids
	AuctionStateStarted
	// AuctionStateEnded means the auction is finalized and ranks are frozen
	AuctionStateEnded
)

func (s AuctionState) String() string {
	switch s {
	case AuctionStateCreated:
		return "Created"
	case AuctionStateStarted:
		return "Started"
	case AuctionStateEnded:
		return "Ended"
	}
	return "Unknown"
}

// PriceFloorType discriminates the price floor representation stored on the
// ledger.
type PriceFloorType uint8

const (
	// PriceFloorNone means any bid is valid
	PriceFloorNone PriceFloorType = iota
	// PriceFloorMinimum means bids below Minimum are rejected
	PriceFloorMinimum
	// PriceFloorBlinded means the floor is hidden until the auction ends
	PriceFloorBlinded
)

// PriceFloor is the minimum price rule of an auction. For a blinded floor
// only the hash is known client side.
type PriceFloor struct {
	Type    PriceFloorType
	Minimum uint64
	Hash    [32]byte
}

// Bid is one bid inside an auction's bid state
type Bid struct {
	Bidder solana.PublicKey
	Amount uint64
}

// BidState is the ordered bid list of an auction. Bids are stored in
// ascending amount order, so the best bid is the last element and rank 0
// maps to the end of the slice. Max is the number of winning ranks.
type BidState struct {
	Bids []Bid
	Max  uint64
}

// WinnerRank returns the winning rank of bidder (0 = best) and true if the
// bidder sits within the top Max bids. Cancelled bids are pruned from the
// stored list by the ledger program, so presence alone is enough.
func (s *BidState) WinnerRank(bidder solana.PublicKey) (uint64, bool) {
	for i := len(s.Bids) - 1; i >= 0; i-- {
		if s.Bids[i].Bidder.Equals(bidder) {
			rank := uint64(len(s.Bids) - 1 - i)
			if rank < s.Max {
				return rank, true
			}
			return 0, false
		}
	}
	return 0, false
}

// WinnerAt returns the bidder holding the given rank, if any
func (s *BidState) WinnerAt(rank uint64) (solana.PublicKey, bool) {
	if rank >= uint64(len(s.Bids)) || rank >= s.Max {
		return solana.PublicKey{}, false
	}
	return s.Bids[len(s.Bids)-1-int(rank)].Bidder, true
}

// AmountAt returns the bid amount locked at the given rank, if any
func (s *BidState) AmountAt(rank uint64) (uint64, bool) {
	if rank >= uint64(len(s.Bids)) || rank >= s.Max {
		return 0, false
	}
	return s.Bids[len(s.Bids)-1-int(rank)].Amount, true
}

// NumWinners returns the number of ranks that actually have a bidder
func (s *BidState) NumWinners() uint64 {
	n := uint64(len(s.Bids))
	if n > s.Max {
		return s.Max
	}
	return n
}

// Auction is the point-in-time view of one auction account
type Auction struct {
	Address   solana.PublicKey
	Authority solana.PublicKey
	// TokenMint is the mint of the currency bids are denominated in
	TokenMint solana.PublicKey
	// LastBid is the unix time of the most recent bid
	LastBid *int64
	// EndedAt is the unix time the auction officially ended at
	EndedAt *int64
	// EndAuctionAt is the hard cut-off unix time
	EndAuctionAt *int64
	// EndAuctionGap extends the auction when a bid lands within the gap
	// before EndedAt. Enforcement belongs to the ledger program.
	EndAuctionGap *int64
	PriceFloor    PriceFloor
	State         AuctionState
	BidState      BidState
}

// Ended reports whether the auction's end time has passed at the given
// instant. State may still lag behind until someone cranks EndAuction.
func (a *Auction) Ended(now time.Time) bool {
	if a.State == AuctionStateEnded {
		return true
	}
	if a.EndedAt != nil {
		return now.Unix() > *a.EndedAt
	}
	return false
}
